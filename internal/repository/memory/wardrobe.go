package memory

import (
	"context"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"
)

func (s *Store) CreateClothingItem(ctx context.Context, item *domain.ClothingItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[item.UserID]; !ok {
		return repository.ErrNotFound
	}
	item.CreatedAt = s.now()
	s.items[item.UserID] = append(s.items[item.UserID], copyItem(*item))
	return nil
}

// ListClothingItems returns the wardrobe newest first
func (s *Store) ListClothingItems(ctx context.Context, userID string) ([]domain.ClothingItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.items[userID]
	res := make([]domain.ClothingItem, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		res = append(res, copyItem(all[i]))
	}
	return res, nil
}

func (s *Store) MarkItemsWorn(ctx context.Context, userID string, itemIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	items := s.items[userID]
	for i := range items {
		if wanted[items[i].ID] {
			worn := at
			items[i].LastWorn = &worn
		}
	}
	return nil
}

func (s *Store) CreateOutfitSuggestion(ctx context.Context, sg *domain.OutfitSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[sg.UserID]; !ok {
		return repository.ErrNotFound
	}
	sg.CreatedAt = s.now()
	stored := *sg
	stored.Items = nil
	stored.ItemIDs = append([]string(nil), sg.ItemIDs...)
	s.suggestions[sg.UserID] = append(s.suggestions[sg.UserID], stored)
	return nil
}

func (s *Store) ListOutfitSuggestions(ctx context.Context, userID string, limit int) ([]domain.OutfitSuggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.suggestions[userID]
	var res []domain.OutfitSuggestion
	for i := len(all) - 1; i >= 0; i-- {
		sg := all[i]
		sg.ItemIDs = append([]string(nil), sg.ItemIDs...)
		res = append(res, sg)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func copyItem(item domain.ClothingItem) domain.ClothingItem {
	item.Tags = append([]string(nil), item.Tags...)
	item.Colors = append([]string(nil), item.Colors...)
	item.Seasons = append([]string(nil), item.Seasons...)
	item.Styles = append([]string(nil), item.Styles...)
	item.Occasions = append([]string(nil), item.Occasions...)
	item.Metadata.AITags = append([]string(nil), item.Metadata.AITags...)
	if item.LastWorn != nil {
		worn := *item.LastWorn
		item.LastWorn = &worn
	}
	return item
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
