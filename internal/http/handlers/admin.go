package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultAdminUserLimit = 100

type GrantRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

type ReconcileRequest struct {
	Repair bool `json:"repair"`
}

func (h *Handler) AdminStats(c *gin.Context) {
	stats, err := h.Admin.GetStats(c.Request.Context())
	if err != nil {
		h.ledgerError(c, err, "admin stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// AdminUsers lists profiles ordered by name
func (h *Handler) AdminUsers(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultAdminUserLimit)
	if !ok {
		return
	}
	users, err := h.Admin.ListUsers(c.Request.Context(), limit)
	if err != nil {
		h.ledgerError(c, err, "admin users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// AdminGrant credits the selected user, never the calling admin
func (h *Handler) AdminGrant(c *gin.Context) {
	adminID, ok := getUserID(c)
	if !ok {
		return
	}

	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and amount are required"})
		return
	}

	balance, err := h.Admin.Grant(c.Request.Context(), adminID, req.UserID, req.Amount, req.Description)
	if err != nil {
		h.ledgerError(c, err, "admin grant")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "stardust": balance})
}

func (h *Handler) AdminAudit(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	logs, err := h.Admin.AuditLogs(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		h.ledgerError(c, err, "admin audit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// AdminPayment reports whether a checkout session was credited, and to whom
func (h *Handler) AdminPayment(c *gin.Context) {
	event, err := h.Admin.PaymentEvent(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.ledgerError(c, err, "admin payment")
		return
	}
	c.JSON(http.StatusOK, event)
}

// AdminReconcile compares balances with their transaction logs and, with
// repair set, rewrites drifted balances
func (h *Handler) AdminReconcile(c *gin.Context) {
	adminID, ok := getUserID(c)
	if !ok {
		return
	}

	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
	}

	report, err := h.Admin.Reconcile(c.Request.Context(), adminID, req.Repair)
	if err != nil {
		h.ledgerError(c, err, "reconcile")
		return
	}
	c.JSON(http.StatusOK, report)
}
