package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"glxy/internal/domain"
	"glxy/internal/repository"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetPlanetPreferences(ctx context.Context, userID string, planet domain.Planet) (*domain.PlanetPreferences, error) {
	prefs := &domain.PlanetPreferences{UserID: userID, PlanetName: planet}
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT preferences, updated_at FROM planet_preferences WHERE user_id = $1 AND planet_name = $2`,
		userID, planet,
	).Scan(&raw, &prefs.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		prefs.Preferences = map[string]any{}
		return prefs, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	if err := json.Unmarshal(raw, &prefs.Preferences); err != nil || prefs.Preferences == nil {
		prefs.Preferences = map[string]any{}
	}
	return prefs, nil
}

// MergePlanetPreferences overlays update on the stored document (jsonb ||),
// creating it on first write.
func (s *Store) MergePlanetPreferences(ctx context.Context, userID string, planet domain.Planet, update map[string]any) (*domain.PlanetPreferences, error) {
	updJSON, err := json.Marshal(update)
	if err != nil {
		return nil, err
	}

	prefs := &domain.PlanetPreferences{UserID: userID, PlanetName: planet}
	var raw []byte
	err = s.db.QueryRow(ctx,
		`INSERT INTO planet_preferences (user_id, planet_name, preferences, updated_at)
		 VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (user_id, planet_name) DO UPDATE
		 SET preferences = planet_preferences.preferences || EXCLUDED.preferences,
		     updated_at = now()
		 RETURNING preferences, updated_at`,
		userID, planet, updJSON,
	).Scan(&raw, &prefs.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	if err := json.Unmarshal(raw, &prefs.Preferences); err != nil {
		return nil, err
	}
	return prefs, nil
}
