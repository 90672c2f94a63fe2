package handlers

import (
	"glxy/internal/ws"

	"github.com/gin-gonic/gin"
)

// ProfileWS streams the caller's profile; the token comes in ?token=
func (h *Handler) ProfileWS() gin.HandlerFunc {
	return ws.HandleProfileWS(h.Sessions, h.Profiles, h.AllowedOrigin, h.log)
}
