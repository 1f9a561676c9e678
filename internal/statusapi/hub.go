// Package statusapi implements the supplemented campaign status/metrics/
// feed HTTP server: a small gorilla/mux router exposing GET /status and
// GET /metrics, plus a gorilla/websocket GET /feed endpoint broadcasting
// each published InjectionLog as it is written. Grounded on the
// teacher's internal/api/server.go (mux router + CORS middleware) and
// internal/fabric/hub.go/websocket.go (connection registry, broadcast
// loop, ping/pong keepalive), adapted from a multi-tenant agent routing
// fabric down to a single-process broadcast-only feed — this module has
// no routing decisions to make, only fan-out to whoever is listening.
package statusapi

import (
	"log/slog"
	"sync"
)

// feedClient is one connected /feed subscriber.
type feedClient struct {
	id   uint64
	send chan []byte
}

// Hub tracks the set of connected feed subscribers and fans out
// broadcast messages to each of their send channels without blocking
// the publisher on a slow reader.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]*feedClient
	nextID  uint64
	logger  *slog.Logger
}

// NewHub returns an empty subscriber registry.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[uint64]*feedClient), logger: logger}
}

// register adds a new subscriber and returns its send channel.
func (h *Hub) register() *feedClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &feedClient{id: h.nextID, send: make(chan []byte, 32)}
	h.clients[c.id] = c
	return c
}

// unregister removes a subscriber and closes its send channel.
func (h *Hub) unregister(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// Broadcast fans payload out to every connected subscriber. A
// subscriber whose send buffer is full is dropped rather than blocking
// the publisher — the feed is best-effort, the JSON log file is the
// durable record.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("statusapi: feed subscriber backpressured, dropping", "client", id)
			delete(h.clients, id)
			close(c.send)
		}
	}
}

// Count reports the number of connected feed subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
