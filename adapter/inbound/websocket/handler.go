package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ajkula/GoAccessGate/domain/model"
	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	refreshTimeout = 30 * time.Second
)

// Handler streams access views and notifications to websocket clients
type Handler struct {
	access   inbound.AccessService
	hub      *Hub
	logger   outbound.Logger
	upgrader websocket.Upgrader
	rootCtx  context.Context
}

func NewHandler(rootCtx context.Context, access inbound.AccessService, hub *Hub, logger outbound.Logger, allowedOrigins []string) *Handler {
	return &Handler{
		access: access,
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		rootCtx: rootCtx,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleConnection upgrades the request, sends the current views and then every change
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Error upgrading to WebSocket", "error", err)
		return
	}

	c := newClient()
	if !h.hub.register(c) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	c.enqueue(outgoing{Type: "snapshot", Views: h.access.Views()})
	unwatch := h.access.Watch(func(view model.AccessGrantView) {
		v := view
		c.enqueue(outgoing{Type: "view", View: &v})
	})

	go h.writePump(conn, c)
	go func() {
		defer func() {
			unwatch()
			h.hub.unregister(c)
			conn.Close()
		}()
		h.readPump(conn, c)
	}()
}

func (h *Handler) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down"))
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) readPump(conn *websocket.Conn, c *client) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		if messageType == websocket.TextMessage {
			h.handleClientMessage(c, data)
		}
	}
}

func (h *Handler) handleClientMessage(c *client, data []byte) {
	var message struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &message); err != nil {
		h.logger.Debug("Error parsing client message", "error", err)
		return
	}

	switch message.Type {
	case "ping":
		c.enqueue(outgoing{Type: "pong"})
	case "snapshot":
		c.enqueue(outgoing{Type: "snapshot", Views: h.access.Views()})
	case "refresh":
		ctx, cancel := context.WithTimeout(h.rootCtx, refreshTimeout)
		defer cancel()
		if err := h.access.Refresh(ctx); err != nil {
			c.enqueue(outgoing{Type: "error", Error: err.Error()})
		}
	}
}

// Cleanup disconnects every client
func (h *Handler) Cleanup() {
	h.logger.Info("Cleaning up WebSocket handler resources")
	h.hub.Close()
}
