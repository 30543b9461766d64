package ws

import (
	"sync"
)

// Hub tracks dashboard feed subscribers.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	onChange    func(n int)
}

// NewHub builds subscriber registry. onChange, if set, receives the subscriber count after every change.
func NewHub(onChange func(n int)) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		onChange:    onChange,
	}
}

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID()] = conn
	n := len(h.connections)
	h.mu.Unlock()
	h.notify(n)
}

// Remove removes connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.connections, id)
	n := len(h.connections)
	h.mu.Unlock()
	h.notify(n)
}

// Count returns number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast queues msg on every connection and returns how many accepted it.
func (h *Hub) Broadcast(msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var delivered int
	for _, conn := range h.connections {
		if conn.Send(msg) {
			delivered++
		}
	}
	return delivered
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (h *Hub) notify(n int) {
	if h.onChange != nil {
		h.onChange(n)
	}
}
