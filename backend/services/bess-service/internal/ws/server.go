package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Snapshot produces the message a subscriber receives right after connecting.
type Snapshot func(ctx context.Context) ([]byte, error)

// Server upgrades HTTP connections to dashboard feed websockets.
type Server struct {
	hub          *Hub
	snapshot     Snapshot
	logger       *zap.Logger
	writeTimeout time.Duration
	pingInterval time.Duration
	upgrader     websocket.Upgrader
	baseCtx      context.Context
}

// NewServer builds ws server. Connections end when ctx is cancelled.
func NewServer(ctx context.Context, hub *Hub, snapshot Snapshot, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		hub:          hub,
		snapshot:     snapshot,
		logger:       logger,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		baseCtx:      ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is HTTP handler for /ws/dashboard endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	connection := NewConnection(id, conn, s.writeTimeout, s.pingInterval, s.logger, s.hub.Remove)
	s.hub.Add(connection)

	if s.snapshot != nil {
		if msg, err := s.snapshot(r.Context()); err != nil {
			s.logger.Warn("initial dashboard snapshot failed", zap.String("subscriber_id", id), zap.Error(err))
		} else {
			connection.Send(msg)
		}
	}

	go connection.Start(s.baseCtx)
	s.logger.Info("dashboard subscriber connected", zap.String("subscriber_id", id), zap.Int("subscribers", s.hub.Count()))
}
