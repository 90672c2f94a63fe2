package handlers

import (
	"net/http"

	"glxy/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

func (h *Handler) Balance(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	balance, err := h.Ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		h.ledgerError(c, err, "get balance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stardust": balance})
}

// History pages through the caller's transactions newest first. Pass the
// returned next_cursor as before to continue.
func (h *Handler) History(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	before, ok := queryInt(c, "before", 0)
	if !ok {
		return
	}

	txs, err := h.Ledger.GetHistory(c.Request.Context(), userID, domain.HistoryQuery{Limit: limit, Before: int64(before)})
	if err != nil {
		h.ledgerError(c, err, "get history")
		return
	}
	if txs == nil {
		txs = []domain.StardustTransaction{}
	}

	resp := gin.H{"transactions": txs}
	if len(txs) == limit {
		resp["next_cursor"] = txs[len(txs)-1].Seq
	}
	c.JSON(http.StatusOK, resp)
}
