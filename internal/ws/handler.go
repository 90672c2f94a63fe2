package ws

import (
	"context"
	"log/slog"
	"net/http"

	"glxy/internal/logger"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleProfileWS upgrades an authenticated request into a live profile stream.
// Browsers cannot set headers on websocket requests, so the session token
// travels in the query string.
func HandleProfileWS(sessions *service.SessionManager, profiles ProfileStreamer, allowedOrigin string, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Get()
	}
	log = log.With("component", "ws")

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		claims, err := sessions.Parse(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("ws upgrade error", "error", err)
			return
		}

		// the request context ends when the handler returns; the stream
		// outlives it
		client := NewClient(claims.UserID, conn, log)
		go client.Run(context.WithoutCancel(c.Request.Context()), profiles)
	}
}
