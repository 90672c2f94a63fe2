package handlers

import (
	"net/http"
	"strings"

	"glxy/internal/domain"
	"glxy/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type SessionRequest struct {
	IDToken string `json:"id_token"`

	// DEV_MODE only
	DevUID   string `json:"dev_uid"`
	DevName  string `json:"dev_name"`
	DevEmail string `json:"dev_email"`
}

// Session exchanges an identity provider token for a GLXY session and
// bootstraps the profile on first sign-in.
func (h *Handler) Session(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	var id domain.Identity
	switch {
	case h.DevMode && req.DevUID != "":
		id = domain.Identity{UID: strings.TrimSpace(req.DevUID), Email: req.DevEmail, Name: req.DevName}
		if id.Name == "" {
			id.Name = "Explorer " + id.UID
		}
	case req.IDToken != "":
		if len(req.IDToken) > 8192 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id_token too long"})
			return
		}
		if h.Identity == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider not configured"})
			return
		}
		var err error
		id, err = h.Identity.Verify(req.IDToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale identity token"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token required"})
		return
	}

	ctx := c.Request.Context()
	profile, created, err := h.Profiles.Bootstrap(ctx, id)
	if err != nil {
		h.ledgerError(c, err, "bootstrap profile")
		return
	}

	token, claims, err := h.Sessions.Issue(profile.ID)
	if err != nil {
		h.reqLog(c).Error("token generation failed", "user_id", profile.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	if h.Audit != nil {
		h.Audit.LogLogin(ctx, profile.ID, c.ClientIP(), c.Request.UserAgent(), created)
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"created":    created,
		"user":       profile,
	})
}

// SignOut revokes the presented session token until it would have expired
func (h *Handler) SignOut(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Sessions.Revoke(ctx, claims); err != nil {
		h.reqLog(c).Error("revoke session failed", "user_id", claims.UserID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not sign out, try again"})
		return
	}

	if h.Audit != nil {
		h.Audit.LogLogout(ctx, claims.UserID, c.ClientIP(), c.Request.UserAgent())
	}
	c.JSON(http.StatusOK, gin.H{"signed_out": true})
}
