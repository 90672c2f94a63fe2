package handlers

import (
	"net/http"
	"strings"

	"glxy/internal/domain"

	"github.com/gin-gonic/gin"
)

type InteractionRequest struct {
	Type     string         `json:"type" binding:"required"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// planetParam resolves :planet or answers 404
func planetParam(c *gin.Context) (domain.Planet, bool) {
	planet, ok := domain.ParsePlanet(strings.ToLower(c.Param("planet")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown planet"})
	}
	return planet, ok
}

// Prices lists what each interaction costs
func (h *Handler) Prices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": domain.PriceList(), "billing_policy": h.Planets.Policy()})
}

// RecordInteraction spends the list price of the interaction and stores it
func (h *Handler) RecordInteraction(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	planet, ok := planetParam(c)
	if !ok {
		return
	}

	var req InteractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}
	if len(req.Content) > 20000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content too long"})
		return
	}

	in, balance, err := h.Planets.RecordPriced(c.Request.Context(), userID, planet, req.Type, req.Content, req.Metadata)
	if err != nil {
		h.ledgerError(c, err, "record interaction")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"interaction": in, "stardust": balance})
}

func (h *Handler) ListInteractions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	planet, ok := planetParam(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	items, err := h.Planets.ListRecentInteractions(c.Request.Context(), userID, planet, limit)
	if err != nil {
		h.ledgerError(c, err, "list interactions")
		return
	}
	if items == nil {
		items = []domain.PlanetInteraction{}
	}
	c.JSON(http.StatusOK, gin.H{"interactions": items})
}

func (h *Handler) GetPreferences(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	planet, ok := planetParam(c)
	if !ok {
		return
	}

	prefs, err := h.Planets.GetPreferences(c.Request.Context(), userID, planet)
	if err != nil {
		h.ledgerError(c, err, "get preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences merges the JSON object body into the stored preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	planet, ok := planetParam(c)
	if !ok {
		return
	}

	var update map[string]any
	if err := c.ShouldBindJSON(&update); err != nil || len(update) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "preferences object required"})
		return
	}

	prefs, err := h.Planets.SetPreferences(c.Request.Context(), userID, planet, update)
	if err != nil {
		h.ledgerError(c, err, "update preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}
