package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"glxy/internal/logger"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
)

// Context keys set by JWT
const (
	ContextUserID = "user_id"
	ContextClaims = "session_claims"
)

// SessionParser validates a session token, revocation included
type SessionParser interface {
	Parse(ctx context.Context, token string) (*service.SessionClaims, error)
}

// JWT requires a valid "Authorization: Bearer <token>" header and puts the
// user id and claims into the gin context.
func JWT(sessions SessionParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := sessions.Parse(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrTokenRevoked):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session signed out"})
			return
		case errors.Is(err, service.ErrInvalidToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		default:
			// the token may be fine; the session backend is not
			logger.WithContext(c.Request.Context()).Error("session check failed", "error", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session check unavailable, try again"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)

		ctx := c.Request.Context()
		c.Request = c.Request.WithContext(logger.NewContext(ctx, logger.WithContext(ctx).With("user_id", claims.UserID)))
		logger.WithContext(c.Request.Context()).Debug("session accepted", "jti", claims.ID)
		c.Next()
	}
}

// Admin lets through only users isAdmin approves. Must run after JWT.
func Admin(isAdmin func(userID string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !isAdmin(userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func Claims(c *gin.Context) (*service.SessionClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*service.SessionClaims)
	return claims, ok
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
