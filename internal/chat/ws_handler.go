package chat

import (
	"errors"
	"net/http"
	"strings"

	"github.com/baatcheet/backend/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for demo; tighten in prod.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RegisterWS mounts GET /ws for authenticated clients.
// Auth works via:
// 1) Header: Authorization: Bearer <JWT>
// 2) Query:  ?token=<JWT>
// Verification runs before the upgrade; a rejected handshake never touches
// the registry or the store.
func RegisterWS(rg *gin.RouterGroup, hub *Hub, verifier *identity.Verifier) {
	rg.GET("/ws", func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			h := c.GetHeader("Authorization")
			if strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": authReason(err)})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := NewClient(hub, conn, user)
		hub.register <- client

		go client.writePump()
		go client.readPump()
	})
}

func authReason(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingToken):
		return "missing token"
	case errors.Is(err, identity.ErrInvalidToken):
		return "invalid token"
	case errors.Is(err, identity.ErrUnknownUser):
		return "user not found"
	default:
		return "authentication failed"
	}
}
