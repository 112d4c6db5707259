package controllers

import (
	"net/http"

	"github.com/fieldops/backend/internal/logger"
	"github.com/fieldops/backend/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSController struct {
	hub *realtime.Hub
}

func NewWSController(hub *realtime.Hub) *WSController {
	return &WSController{hub: hub}
}

// Connect upgrades the authenticated request and keeps the connection
// registered with the push hub until the client disconnects.
func (wc *WSController) Connect(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		unauthenticated(c)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithUser(actor.ID).WithField("error", err.Error()).Warn("WebSocket upgrade failed")
		return
	}

	connID := wc.hub.Register(actor.ID, conn)
	defer func() {
		wc.hub.Unregister(actor.ID, connID)
		conn.Close()
	}()

	// Drain client frames until the connection drops. Clients only receive.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
