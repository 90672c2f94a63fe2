package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidCategory = errors.New("invalid clothing category")
	ErrEmptyWardrobe   = errors.New("wardrobe is empty")
	ErrMissingOccasion = errors.New("occasion is required")
)

const defaultSuggestionLimit = 20

// ObjectStore keeps uploaded images and hands out public URLs for them
type ObjectStore interface {
	Put(ctx context.Context, r io.Reader, contentType string) (key, url string, err error)
	Delete(ctx context.Context, key string) error
}

// Stylist is the AI side of the wardrobe
type Stylist interface {
	AnalyzeClothing(ctx context.Context, imageURL string) (*domain.ClothingAnalysis, error)
	SuggestOutfit(ctx context.Context, req domain.SuggestRequest) (*domain.OutfitProposal, error)
}

type UploadRequest struct {
	UserID      string
	Image       io.Reader
	ContentType string
	Category    domain.ClothingCategory
	Tags        []string
	Notes       string
}

// WardrobeService runs the billed wardrobe flows: upload + analyze, and
// outfit suggestions.
type WardrobeService struct {
	gateway *PlanetGateway
	store   repository.WardrobeRepository
	objects ObjectStore
	stylist Stylist
	now     func() time.Time
	log     *slog.Logger
}

func NewWardrobeService(gateway *PlanetGateway, store repository.WardrobeRepository, objects ObjectStore, stylist Stylist, log *slog.Logger) *WardrobeService {
	if log == nil {
		log = logger.Get()
	}
	return &WardrobeService{
		gateway: gateway,
		store:   store,
		objects: objects,
		stylist: stylist,
		now:     time.Now,
		log:     log.With("component", "wardrobe"),
	}
}

// Analyze runs the vision adapter on an already hosted image, unbilled
func (s *WardrobeService) Analyze(ctx context.Context, imageURL string) (*domain.ClothingAnalysis, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("image url is required")
	}
	return s.stylist.AnalyzeClothing(ctx, imageURL)
}

// Propose runs the stylist on a caller-supplied wardrobe, unbilled
func (s *WardrobeService) Propose(ctx context.Context, req domain.SuggestRequest) (*domain.OutfitProposal, error) {
	if len(req.Wardrobe) == 0 {
		return nil, ErrEmptyWardrobe
	}
	if strings.TrimSpace(req.Occasion) == "" {
		return nil, ErrMissingOccasion
	}
	return s.stylist.SuggestOutfit(ctx, req)
}

// Upload stores the photo, bills wardrobe/upload around the analysis and
// persists the item. User tags come first, AI tags follow without repeats.
func (s *WardrobeService) Upload(ctx context.Context, req UploadRequest) (*domain.ClothingItem, *ChargeReceipt, error) {
	if !req.Category.Valid() {
		return nil, nil, ErrInvalidCategory
	}
	cost, _ := domain.Price(domain.PlanetWardrobe, domain.InteractionUpload)

	key, url, err := s.objects.Put(ctx, req.Image, req.ContentType)
	if err != nil {
		return nil, nil, fmt.Errorf("store image: %w", err)
	}

	var analysis *domain.ClothingAnalysis
	receipt, err := s.gateway.Charge(ctx, InteractionRequest{
		UserID:      req.UserID,
		Planet:      domain.PlanetWardrobe,
		Type:        domain.InteractionUpload,
		Content:     url,
		Cost:        cost,
		Description: "Wardrobe upload",
		Metadata:    map[string]any{"category": string(req.Category)},
	}, func(ctx context.Context) error {
		var err error
		analysis, err = s.stylist.AnalyzeClothing(ctx, url)
		return err
	})
	if err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.Warn("failed to remove orphaned image", "key", key, "error", derr)
		}
		return nil, receipt, err
	}

	item := &domain.ClothingItem{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		ImageURL:  url,
		ImageKey:  key,
		Category:  req.Category,
		Tags:      mergeTags(req.Tags, analysis.Tags),
		Colors:    analysis.Colors,
		Seasons:   analysis.Seasons,
		Styles:    analysis.Styles,
		Occasions: analysis.Occasions,
		Metadata: domain.ClothingMetadata{
			AITags:     analysis.Tags,
			Confidence: analysis.Confidence,
			UserNotes:  req.Notes,
		},
		InteractionID: receipt.Interaction.ID,
	}
	if err := s.store.CreateClothingItem(ctx, item); err != nil {
		s.gateway.ReportPartialWrite(ctx, receipt, err)
		return nil, receipt, fmt.Errorf("save clothing item: %w", err)
	}

	s.log.Info("clothing item uploaded", "user_id", req.UserID, "item_id", item.ID, "category", item.Category)
	return item, receipt, nil
}

func (s *WardrobeService) ListItems(ctx context.Context, userID string) ([]domain.ClothingItem, error) {
	return s.store.ListClothingItems(ctx, userID)
}

// Suggest bills wardrobe/suggestion around the stylist call, stores the
// suggestion and marks its items as worn.
func (s *WardrobeService) Suggest(ctx context.Context, userID, occasion, style string) (*domain.OutfitSuggestion, *ChargeReceipt, error) {
	if strings.TrimSpace(occasion) == "" {
		return nil, nil, ErrMissingOccasion
	}
	items, err := s.store.ListClothingItems(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, ErrEmptyWardrobe
	}
	cost, _ := domain.Price(domain.PlanetWardrobe, domain.InteractionSuggestion)

	var proposal *domain.OutfitProposal
	receipt, err := s.gateway.Charge(ctx, InteractionRequest{
		UserID:      userID,
		Planet:      domain.PlanetWardrobe,
		Type:        domain.InteractionSuggestion,
		Content:     occasion,
		Cost:        cost,
		Description: "Outfit suggestion",
		Metadata:    map[string]any{"occasion": occasion, "style": style},
	}, func(ctx context.Context) error {
		var err error
		proposal, err = s.stylist.SuggestOutfit(ctx, domain.SuggestRequest{Wardrobe: items, Occasion: occasion, Style: style})
		return err
	})
	if err != nil {
		return nil, receipt, err
	}

	sg := &domain.OutfitSuggestion{
		ID:          uuid.NewString(),
		UserID:      userID,
		ItemIDs:     proposal.ItemIDs,
		Occasion:    occasion,
		Style:       firstNonEmpty(proposal.Style, style),
		Season:      proposal.Season,
		Explanation: proposal.Explanation,
		Metadata: domain.SuggestionMetadata{
			AIConfidence: proposal.Confidence,
		},
		InteractionID: receipt.Interaction.ID,
	}
	if w, ok := proposal.Metadata["weather"].(string); ok {
		sg.Metadata.Weather = w
	}
	if err := s.store.CreateOutfitSuggestion(ctx, sg); err != nil {
		s.gateway.ReportPartialWrite(ctx, receipt, err)
		return nil, receipt, fmt.Errorf("save outfit suggestion: %w", err)
	}
	if err := s.store.MarkItemsWorn(ctx, userID, sg.ItemIDs, s.now().UTC()); err != nil {
		s.log.Warn("failed to mark items worn", "user_id", userID, "suggestion_id", sg.ID, "error", err)
	}

	sg.Items = pickItems(items, sg.ItemIDs)
	return sg, receipt, nil
}

// ListSuggestions returns stored suggestions newest first with items expanded
func (s *WardrobeService) ListSuggestions(ctx context.Context, userID string, limit int) ([]domain.OutfitSuggestion, error) {
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}
	suggestions, err := s.store.ListOutfitSuggestions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListClothingItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range suggestions {
		suggestions[i].Items = pickItems(items, suggestions[i].ItemIDs)
	}
	return suggestions, nil
}

// pickItems returns the items named by ids, in ids order; unknown ids are skipped
func pickItems(items []domain.ClothingItem, ids []string) []domain.ClothingItem {
	byID := make(map[string]domain.ClothingItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]domain.ClothingItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

func mergeTags(user, ai []string) []string {
	seen := make(map[string]bool, len(user)+len(ai))
	out := make([]string, 0, len(user)+len(ai))
	for _, list := range [][]string{user, ai} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
