package postgres

import (
	"context"
	"encoding/json"

	"glxy/internal/domain"

	"github.com/jackc/pgx/v5"
)

const interactionColumns = `seq, id, user_id, planet_name, type, content, stardust_cost, metadata, transaction_id, created_at`

// ListInteractions returns the most recent interactions on a planet
func (s *Store) ListInteractions(ctx context.Context, userID string, planet domain.Planet, limit int) ([]domain.PlanetInteraction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+interactionColumns+`
		 FROM planet_interactions
		 WHERE user_id = $1 AND planet_name = $2
		 ORDER BY seq DESC
		 LIMIT $3`,
		userID, planet, limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	res, err := scanInteractions(rows)
	return res, classify(err)
}

// ListUnbilledInteractions finds priced interactions that never got a debit
func (s *Store) ListUnbilledInteractions(ctx context.Context, limit int) ([]domain.PlanetInteraction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+interactionColumns+`
		 FROM planet_interactions
		 WHERE stardust_cost > 0 AND transaction_id IS NULL
		 ORDER BY seq DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	res, err := scanInteractions(rows)
	return res, classify(err)
}

func (t *pgTx) InsertInteraction(ctx context.Context, i *domain.PlanetInteraction) error {
	metaJSON, err := json.Marshal(i.Metadata)
	if err != nil || i.Metadata == nil {
		metaJSON = []byte("{}")
	}
	var txID *string
	if i.TransactionID != "" {
		txID = &i.TransactionID
	}

	return t.tx.QueryRow(ctx,
		`INSERT INTO planet_interactions (id, user_id, planet_name, type, content, stardust_cost, metadata, transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING seq, created_at`,
		i.ID, i.UserID, i.PlanetName, i.Type, i.Content, i.StardustCost, metaJSON, txID,
	).Scan(&i.Seq, &i.CreatedAt)
}

func scanInteractions(rows pgx.Rows) ([]domain.PlanetInteraction, error) {
	var result []domain.PlanetInteraction
	for rows.Next() {
		var (
			i        domain.PlanetInteraction
			metaJSON []byte
			txID     *string
		)
		if err := rows.Scan(
			&i.Seq, &i.ID, &i.UserID, &i.PlanetName, &i.Type, &i.Content,
			&i.StardustCost, &metaJSON, &txID, &i.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &i.Metadata)
		}
		if txID != nil {
			i.TransactionID = *txID
		}
		result = append(result, i)
	}
	return result, rows.Err()
}
