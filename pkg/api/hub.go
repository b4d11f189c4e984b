package api

import (
	"sync"

	"github.com/gofiber/contrib/websocket"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
)

const clientBufferSize = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans scene events out to connected WebSocket clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  customlog.Logger
}

// NewHub creates an empty hub
func NewHub(logger customlog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues data for every client. Clients whose buffer is full miss
// the event.
func (h *Hub) Broadcast(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warnf("Dropping %s event for slow WebSocket client %s", topic, c.conn.RemoteAddr())
		}
	}
}

// writePump sends queued events until the client is unregistered
func (c *client) writePump(logger customlog.Logger) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debugf("Scene WS write error: %v", err)
			return
		}
	}
}
