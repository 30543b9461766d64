package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(msg)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestServerSendsSnapshotAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last atomic.Int32
	hub := NewHub(func(n int) { last.Store(int32(n)) })
	snapshot := func(context.Context) ([]byte, error) { return []byte(`{"totalAssets":0}`), nil }
	server := NewServer(ctx, hub, snapshot, time.Second, time.Second, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	if got := readText(t, conn); got != `{"totalAssets":0}` {
		t.Fatalf("snapshot = %s", got)
	}

	waitFor(t, func() bool { return hub.Count() == 1 })
	if got := last.Load(); got != 1 {
		t.Fatalf("onChange reported %d subscribers", got)
	}
	if delivered := hub.Broadcast([]byte(`{"totalAssets":1}`)); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if got := readText(t, conn); got != `{"totalAssets":1}` {
		t.Fatalf("broadcast = %s", got)
	}
}

func TestServerUnregistersClosedSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	server := NewServer(ctx, hub, nil, time.Second, time.Second, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	waitFor(t, func() bool { return hub.Count() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, func() bool { return hub.Count() == 0 })
	if delivered := hub.Broadcast([]byte("x")); delivered != 0 {
		t.Fatalf("expected no deliveries, got %d", delivered)
	}
}

func TestHubCloseAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	server := NewServer(ctx, hub, nil, time.Second, time.Second, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(server.HandleWS))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.CloseAll()

	waitFor(t, func() bool { return hub.Count() == 0 })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}
