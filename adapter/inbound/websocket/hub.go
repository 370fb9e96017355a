package websocket

import (
	"context"
	"sync"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const sendBufferSize = 64

// outgoing is a JSON frame queued for one client
type outgoing struct {
	Type         string                  `json:"type"`
	View         *model.AccessGrantView  `json:"view,omitempty"`
	Views        []model.AccessGrantView `json:"views,omitempty"`
	Notification *model.Notification     `json:"notification,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// client is one connected websocket; a single writer goroutine drains send
type client struct {
	mu     sync.Mutex
	send   chan outgoing
	closed bool
}

func newClient() *client {
	return &client{send: make(chan outgoing, sendBufferSize)}
}

// enqueue never blocks; a client too slow to keep up loses frames
func (c *client) enqueue(frame outgoing) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub tracks connected clients and doubles as the Notifier of the access service
type Hub struct {
	logger  outbound.Logger
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(logger outbound.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	c.close()
}

func (h *Hub) broadcast(frame outgoing) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.enqueue(frame) {
			h.logger.Debug("Dropping websocket frame for slow client", "type", frame.Type)
		}
	}
}

// Notify pushes a notification to every connected client
func (h *Hub) Notify(ctx context.Context, notification model.Notification) {
	h.logger.Info("Notification",
		"level", notification.Level,
		"module", notification.Module,
		"username", notification.Username,
		"message", notification.Message)

	n := notification
	h.broadcast(outgoing{Type: "notification", Notification: &n})
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

var _ outbound.Notifier = (*Hub)(nil)
