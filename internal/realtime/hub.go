package realtime

import (
	"sync"
	"time"

	"github.com/fieldops/backend/internal/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub is the injected push-socket registry. It is constructed once at
// process start and passed into the notification dispatcher; there is no
// process-global instance. Delivery is best-effort: a user without an active
// connection is simply skipped.
type Hub struct {
	mu    sync.RWMutex
	conns map[uint]map[string]*client
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes on the shared connection
}

type envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[string]*client)}
}

// Register adds a connection for the user and returns its id.
func (h *Hub) Register(userID uint, conn *websocket.Conn) string {
	id := uuid.New().String()

	h.mu.Lock()
	if h.conns[userID] == nil {
		h.conns[userID] = make(map[string]*client)
	}
	h.conns[userID][id] = &client{conn: conn}
	h.mu.Unlock()

	logger.WithUser(userID).WithField("conn_id", id).Debug("WebSocket connection registered")
	return id
}

// Unregister removes a connection. Safe to call for unknown ids.
func (h *Hub) Unregister(userID uint, id string) {
	h.mu.Lock()
	if m, ok := h.conns[userID]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(h.conns, userID)
		}
	}
	h.mu.Unlock()
}

// EmitToUser delivers an event to every active connection of the user.
// Failed connections are dropped; errors are logged, never returned.
func (h *Hub) EmitToUser(userID uint, event string, payload interface{}) {
	h.mu.RLock()
	clients := make(map[string]*client, len(h.conns[userID]))
	for id, c := range h.conns[userID] {
		clients[id] = c
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	msg := envelope{Event: event, Payload: payload, Timestamp: time.Now()}
	for id, c := range clients {
		c.mu.Lock()
		err := c.conn.WriteJSON(msg)
		c.mu.Unlock()
		if err != nil {
			logger.WithUser(userID).WithField("conn_id", id).
				WithField("error", err.Error()).Warn("WebSocket write failed, dropping connection")
			c.conn.Close()
			h.Unregister(userID, id)
		}
	}
}

// ConnectionCount reports active connections for the user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
