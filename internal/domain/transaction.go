package domain

import "time"

// SystemPlanet is recorded as the planet name of credits that are not tied to a planet
const SystemPlanet = "system"

type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// StardustTransaction is an append-only ledger entry. Amount is signed:
// positive for credits, negative for debits.
type StardustTransaction struct {
	ID             string          `db:"id" json:"id"`
	Seq            int64           `db:"seq" json:"seq"`
	UserID         string          `db:"user_id" json:"user_id"`
	Amount         int64           `db:"amount" json:"amount"`
	Type           TransactionType `db:"type" json:"type"`
	Description    string          `db:"description" json:"description"`
	PlanetName     string          `db:"planet_name" json:"planet_name"`
	IdempotencyKey string          `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"timestamp"`
}

// HistoryQuery pages through a user's transactions newest first.
// Limit 0 returns everything; Before is an exclusive Seq cursor.
type HistoryQuery struct {
	Limit  int
	Before int64
}
