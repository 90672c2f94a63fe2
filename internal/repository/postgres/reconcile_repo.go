package postgres

import (
	"context"
	"time"

	"glxy/internal/domain"
)

// ListBalanceDrift compares every stored balance with its transaction sum
func (s *Store) ListBalanceDrift(ctx context.Context) ([]domain.BalanceDrift, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.stardust, COALESCE(SUM(t.amount), 0) AS ledger_sum
		FROM profiles p
		LEFT JOIN stardust_transactions t ON t.user_id = p.id
		GROUP BY p.id, p.stardust
		HAVING p.stardust <> COALESCE(SUM(t.amount), 0)
		ORDER BY p.id
	`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var drifts []domain.BalanceDrift
	for rows.Next() {
		var d domain.BalanceDrift
		if err := rows.Scan(&d.UserID, &d.Stored, &d.LedgerSum); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, classify(rows.Err())
}

// LedgerStats feeds the admin dashboard
func (s *Store) LedgerStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error) {
	st := &domain.LedgerStats{}
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM profiles),
			(SELECT COUNT(*) FROM profiles WHERE last_login_at >= $1),
			(SELECT COALESCE(SUM(stardust), 0) FROM profiles),
			(SELECT COALESCE(SUM(amount), 0) FROM stardust_transactions WHERE amount > 0 AND created_at >= $1),
			(SELECT COALESCE(SUM(-amount), 0) FROM stardust_transactions WHERE amount < 0 AND created_at >= $1),
			(SELECT COUNT(*) FROM planet_interactions WHERE created_at >= $1),
			(SELECT COUNT(*) FROM payment_events WHERE created_at >= $1)
	`, since).Scan(
		&st.TotalUsers,
		&st.ActiveUsersToday,
		&st.StardustInCirc,
		&st.CreditedToday,
		&st.DebitedToday,
		&st.InteractionsToday,
		&st.PaymentsToday,
	)
	if err != nil {
		return nil, classify(err)
	}
	return st, nil
}
