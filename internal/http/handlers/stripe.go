package handlers

import (
	"errors"
	"io"
	"net/http"

	"glxy/internal/payments"
	"glxy/internal/service"

	"github.com/gin-gonic/gin"
)

// Stripe caps event payloads well below this
const maxWebhookBytes = 64 << 10

type CheckoutRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount" binding:"required"`
}

// CreateCheckout starts a hosted checkout for amount dollars of Stardust.
// The purchase is always credited to the caller.
func (h *Handler) CreateCheckout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	if req.UserID != "" && req.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot buy stardust for another user"})
		return
	}

	sess, err := h.Payments.CreateCheckout(c.Request.Context(), userID, req.Amount)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sess)
	case errors.Is(err, service.ErrInvalidPurchase):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase amount"})
	case errors.Is(err, service.ErrPaymentsDisabled), errors.Is(err, payments.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create checkout session"})
	}
}

// StripeWebhook answers 200 for every delivery that must not be retried,
// 400 for unauthenticated or unusable ones, 500 when crediting failed
// and Stripe should redeliver, and 503 when no webhook secret is set.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	outcome, err := h.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch outcome {
	case service.OutcomeRejected:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
	case service.OutcomeMalformed:
		msg := service.ErrMalformedEvent.Error()
		if err != nil {
			msg = err.Error()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case service.OutcomeFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook handler failed"})
	case service.OutcomeUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments are not configured"})
	default:
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
	}
}
