package postgres

import (
	"context"

	"glxy/internal/domain"
)

// ClaimPaymentEvent inserts the processed marker. A conflicting key means
// another delivery already credited this purchase.
func (t *pgTx) ClaimPaymentEvent(ctx context.Context, e *domain.PaymentEvent) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO payment_events (key, event_id, event_type, user_id, amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO NOTHING`,
		e.Key, e.EventID, e.EventType, e.UserID, e.Amount, e.Status,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetPaymentEvent(ctx context.Context, key string) (*domain.PaymentEvent, error) {
	var e domain.PaymentEvent
	err := s.db.QueryRow(ctx,
		`SELECT key, event_id, event_type, user_id, amount, status, created_at
		 FROM payment_events WHERE key = $1`,
		key,
	).Scan(&e.Key, &e.EventID, &e.EventType, &e.UserID, &e.Amount, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, classify(notFound(err))
	}
	return &e, nil
}
