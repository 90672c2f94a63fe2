package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"glxy/internal/http/middleware"
	"glxy/internal/logger"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler holds the services every HTTP handler talks to
type Handler struct {
	Profiles *service.ProfileService
	Ledger   *service.Ledger
	Planets  *service.PlanetGateway
	Payments *service.PaymentService
	Wardrobe *service.WardrobeService
	Admin    *service.AdminService
	Audit    *service.AuditService
	Sessions *service.SessionManager
	Identity *service.IdentityVerifier

	DevMode        bool
	AllowedOrigin  string
	MaxUploadBytes int64

	log *slog.Logger
}

func NewHandler(h Handler, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Get()
	}
	h.log = log.With("component", "http")
	return &h
}

// reqLog returns the request-scoped logger set by middleware.RequestID
func (h *Handler) reqLog(c *gin.Context) *slog.Logger {
	return logger.WithContext(c.Request.Context()).With("component", "http")
}

// getUserID extracts the authenticated user id set by the JWT middleware
func getUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return userID, ok
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

// ledgerError answers for errors coming out of ledger-backed operations
func (h *Handler) ledgerError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient stardust"})
	case errors.Is(err, service.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
	case errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
	case errors.Is(err, service.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
	case errors.Is(err, service.ErrUnknownPlanet):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown planet"})
	case errors.Is(err, service.ErrUnknownInteraction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interaction type"})
	case errors.Is(err, service.ErrActionFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "planet action failed"})
	case service.IsUnavailable(err):
		h.reqLog(c).Error(op+" failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable, try again"})
	default:
		h.reqLog(c).Error(op+" failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
