package postgres

import (
	"context"
	"encoding/json"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"

	"github.com/jackc/pgx/v5"
)

const clothingColumns = `id, user_id, image_url, image_key, category, tags, colors, seasons, styles, occasions, metadata, COALESCE(interaction_id, ''), last_worn_at, created_at`

func (s *Store) CreateClothingItem(ctx context.Context, item *domain.ClothingItem) error {
	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO clothing_items (id, user_id, image_url, image_key, category, tags, colors, seasons, styles, occasions, metadata, interaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''))
		 RETURNING created_at`,
		item.ID, item.UserID, item.ImageURL, item.ImageKey, item.Category,
		nonNil(item.Tags), nonNil(item.Colors), nonNil(item.Seasons), nonNil(item.Styles), nonNil(item.Occasions),
		metaJSON, item.InteractionID,
	).Scan(&item.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return classify(err)
	}
	return nil
}

func (s *Store) ListClothingItems(ctx context.Context, userID string) ([]domain.ClothingItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+clothingColumns+` FROM clothing_items WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var items []domain.ClothingItem
	for rows.Next() {
		item, err := scanClothingItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, classify(rows.Err())
}

func (s *Store) MarkItemsWorn(ctx context.Context, userID string, itemIDs []string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE clothing_items SET last_worn_at = $3 WHERE user_id = $1 AND id = ANY($2)`,
		userID, itemIDs, at,
	)
	return classify(err)
}

func (s *Store) CreateOutfitSuggestion(ctx context.Context, sg *domain.OutfitSuggestion) error {
	metaJSON, err := json.Marshal(sg.Metadata)
	if err != nil {
		return err
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO outfit_suggestions (id, user_id, item_ids, occasion, style, season, explanation, metadata, interaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		 RETURNING created_at`,
		sg.ID, sg.UserID, sg.ItemIDs, sg.Occasion, sg.Style, sg.Season, sg.Explanation, metaJSON, sg.InteractionID,
	).Scan(&sg.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return classify(err)
	}
	return nil
}

func (s *Store) ListOutfitSuggestions(ctx context.Context, userID string, limit int) ([]domain.OutfitSuggestion, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, item_ids, occasion, style, season, explanation, metadata, COALESCE(interaction_id, ''), created_at
		 FROM outfit_suggestions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var res []domain.OutfitSuggestion
	for rows.Next() {
		var (
			sg       domain.OutfitSuggestion
			metaJSON []byte
		)
		if err := rows.Scan(&sg.ID, &sg.UserID, &sg.ItemIDs, &sg.Occasion, &sg.Style, &sg.Season,
			&sg.Explanation, &metaJSON, &sg.InteractionID, &sg.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metaJSON, &sg.Metadata)
		res = append(res, sg)
	}
	return res, classify(rows.Err())
}

func scanClothingItem(row pgx.Row) (*domain.ClothingItem, error) {
	var (
		item     domain.ClothingItem
		metaJSON []byte
	)
	if err := row.Scan(
		&item.ID, &item.UserID, &item.ImageURL, &item.ImageKey, &item.Category,
		&item.Tags, &item.Colors, &item.Seasons, &item.Styles, &item.Occasions,
		&metaJSON, &item.InteractionID, &item.LastWorn, &item.CreatedAt,
	); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(metaJSON, &item.Metadata)
	return &item, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
