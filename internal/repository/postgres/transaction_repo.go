package postgres

import (
	"context"

	"glxy/internal/domain"

	"github.com/jackc/pgx/v5"
)

const transactionColumns = `seq, id, user_id, amount, type, description, planet_name, COALESCE(idempotency_key, ''), created_at`

// ListTransactions returns the user's history newest first
func (s *Store) ListTransactions(ctx context.Context, userID string, q domain.HistoryQuery) ([]domain.StardustTransaction, error) {
	sql := `SELECT ` + transactionColumns + `
		 FROM stardust_transactions
		 WHERE user_id = $1 AND ($2::bigint = 0 OR seq < $2::bigint)
		 ORDER BY seq DESC`
	args := []any{userID, q.Before}
	if q.Limit > 0 {
		sql += ` LIMIT $3`
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	res, err := scanTransactions(rows)
	return res, classify(err)
}

// InsertTransaction appends an entry and fills in Seq and CreatedAt
func (t *pgTx) InsertTransaction(ctx context.Context, tr *domain.StardustTransaction) error {
	var key *string
	if tr.IdempotencyKey != "" {
		key = &tr.IdempotencyKey
	}
	return t.tx.QueryRow(ctx,
		`INSERT INTO stardust_transactions (id, user_id, amount, type, description, planet_name, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING seq, created_at`,
		tr.ID, tr.UserID, tr.Amount, tr.Type, tr.Description, tr.PlanetName, key,
	).Scan(&tr.Seq, &tr.CreatedAt)
}

func (t *pgTx) SumTransactions(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM stardust_transactions WHERE user_id = $1`, userID,
	).Scan(&sum)
	return sum, err
}

func scanTransactions(rows pgx.Rows) ([]domain.StardustTransaction, error) {
	var result []domain.StardustTransaction
	for rows.Next() {
		var tr domain.StardustTransaction
		if err := rows.Scan(
			&tr.Seq, &tr.ID, &tr.UserID, &tr.Amount, &tr.Type,
			&tr.Description, &tr.PlanetName, &tr.IdempotencyKey, &tr.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, tr)
	}
	return result, rows.Err()
}
