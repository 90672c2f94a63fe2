package handlers

import (
	"errors"
	"net/http"
	"strings"

	"glxy/internal/domain"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	profile, err := h.Profiles.Get(c.Request.Context(), userID)
	if err != nil {
		h.ledgerError(c, err, "get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe changes the display name and profile preferences
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var upd domain.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must be 1-100 characters"})
			return
		}
		upd.Name = &name
	}
	if upd.Theme != nil && !upd.Theme.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "theme must be light or dark"})
		return
	}

	profile, err := h.Profiles.UpdateSettings(c.Request.Context(), userID, upd)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.ledgerError(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}
