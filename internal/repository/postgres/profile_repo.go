package postgres

import (
	"context"
	"errors"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"

	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, name, email, stardust, theme, notifications, created_at, last_login_at`

func scanProfile(row pgx.Row) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Stardust,
		&p.Preferences.Theme,
		&p.Preferences.Notifications,
		&p.CreatedAt,
		&p.LastLoginAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// ListProfiles returns profiles ordered by name, for the admin screen
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles ORDER BY name, id LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var res []domain.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, classify(rows.Err())
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE profiles SET last_login_at = $2 WHERE id = $1`, userID, at)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateProfile changes settings only; stardust is never touched here
func (s *Store) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.UserProfile, error) {
	var theme *string
	if upd.Theme != nil {
		t := string(*upd.Theme)
		theme = &t
	}
	p, err := scanProfile(s.db.QueryRow(ctx,
		`UPDATE profiles SET
			name = COALESCE($2, name),
			theme = COALESCE($3, theme),
			notifications = COALESCE($4, notifications)
		 WHERE id = $1
		 RETURNING `+profileColumns,
		userID, upd.Name, theme, upd.Notifications,
	))
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// InsertProfile creates the profile unless it exists. The second concurrent
// sign-in loses the race quietly and gets created=false.
func (t *pgTx) InsertProfile(ctx context.Context, p *domain.UserProfile) (bool, error) {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO profiles (id, name, email, stardust, theme, notifications)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING
		 RETURNING created_at, last_login_at`,
		p.ID, p.Name, p.Email, p.Stardust, p.Preferences.Theme, p.Preferences.Notifications,
	).Scan(&p.CreatedAt, &p.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgTx) LockBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx, `SELECT stardust FROM profiles WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		return 0, notFound(err)
	}
	return balance, nil
}

// AddBalance applies delta; the CHECK constraint and the WHERE clause both
// refuse to take the balance below zero.
func (t *pgTx) AddBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	var balance int64
	err := t.tx.QueryRow(ctx,
		`UPDATE profiles SET stardust = stardust + $2
		 WHERE id = $1 AND stardust + $2 >= 0
		 RETURNING stardust`,
		userID, delta,
	).Scan(&balance)
	if err != nil {
		return 0, notFound(err)
	}
	return balance, nil
}

func (t *pgTx) SetBalance(ctx context.Context, userID string, balance int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE profiles SET stardust = $2 WHERE id = $1`, userID, balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
