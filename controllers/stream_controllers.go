package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-ops/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type StreamController struct {
	Hub *events.Hub
}

func NewStreamController(hub *events.Hub) *StreamController {
	return &StreamController{Hub: hub}
}

// Subscribe -> long-lived push stream for one restaurant and role.
// Identity comes from the ws auth middleware; the connection is registered
// until the transport signals closure, then deregistered immediately.
func (stc *StreamController) Subscribe(c *gin.Context) {
	roleValue, exists := c.Get("role")
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	role := roleValue.(string)

	restaurantID := restaurantFromContext(c)
	if restaurantID == 0 {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	sub := stc.Hub.Subscribe(ws, restaurantID, role)
	// Blocks until the client disconnects; Listen deregisters on exit so
	// the registry cannot leak subscribers.
	sub.Listen()
}
