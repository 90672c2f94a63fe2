package handlers

import (
	"errors"
	"net/http"
	"strings"

	"glxy/internal/ai"
	"glxy/internal/domain"
	"glxy/internal/service"
	"glxy/internal/storage"

	"github.com/gin-gonic/gin"
)

type AnalyzeRequest struct {
	ImageURL string `json:"imageUrl" binding:"required"`
}

type SuggestRequest struct {
	Occasion string `json:"occasion" binding:"required"`
	Style    string `json:"style"`
}

// wardrobeError maps wardrobe validation and adapter errors, then falls
// back to the ledger mapping
func (h *Handler) wardrobeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category"})
	case errors.Is(err, service.ErrEmptyWardrobe):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wardrobe is empty"})
	case errors.Is(err, service.ErrMissingOccasion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "occasion is required"})
	case errors.Is(err, storage.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
	case errors.Is(err, storage.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
	case errors.Is(err, service.ErrActionFailed), errors.Is(err, ai.ErrAdapter):
		h.reqLog(c).Warn(op+" adapter failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "wardrobe assistant unavailable"})
	default:
		h.ledgerError(c, err, op)
	}
}

// Analyze passes a hosted image through the vision adapter, unbilled
func (h *Handler) AnalyzeClothing(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageUrl is required"})
		return
	}

	analysis, err := h.Wardrobe.Analyze(c.Request.Context(), req.ImageURL)
	if err != nil {
		h.wardrobeError(c, err, "analyze clothing")
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ProposeOutfit passes a caller supplied wardrobe to the stylist, unbilled
func (h *Handler) ProposeOutfit(c *gin.Context) {
	var req domain.SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	proposal, err := h.Wardrobe.Propose(c.Request.Context(), req)
	if err != nil {
		h.wardrobeError(c, err, "propose outfit")
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// UploadItem takes a multipart form with image, category, tags (comma
// separated) and notes.
func (h *Handler) UploadItem(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if h.MaxUploadBytes > 0 {
		// leave room for the other form fields
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+64<<10)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	defer f.Close()

	var tags []string
	for _, t := range strings.Split(c.PostForm("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	item, receipt, err := h.Wardrobe.Upload(c.Request.Context(), service.UploadRequest{
		UserID:      userID,
		Image:       f,
		ContentType: fh.Header.Get("Content-Type"),
		Category:    domain.ClothingCategory(strings.ToLower(c.PostForm("category"))),
		Tags:        tags,
		Notes:       c.PostForm("notes"),
	})
	if err != nil {
		h.wardrobeError(c, err, "upload clothing")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item, "stardust": receipt.Balance})
}

func (h *Handler) ListItems(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	items, err := h.Wardrobe.ListItems(c.Request.Context(), userID)
	if err != nil {
		h.wardrobeError(c, err, "list clothing")
		return
	}
	if items == nil {
		items = []domain.ClothingItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// CreateSuggestion bills a stylist run over the caller's stored wardrobe
func (h *Handler) CreateSuggestion(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}

	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "occasion is required"})
		return
	}

	sg, receipt, err := h.Wardrobe.Suggest(c.Request.Context(), userID, req.Occasion, req.Style)
	if err != nil {
		h.wardrobeError(c, err, "suggest outfit")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"suggestion": sg, "stardust": receipt.Balance})
}

func (h *Handler) ListSuggestions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}

	suggestions, err := h.Wardrobe.ListSuggestions(c.Request.Context(), userID, limit)
	if err != nil {
		h.wardrobeError(c, err, "list suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []domain.OutfitSuggestion{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
