package domain

import (
	"errors"
	"time"
)

// ErrProviderNotConfigured is returned by payment adapters whose keys are
// missing. It is an operator problem, not a bad request.
var ErrProviderNotConfigured = errors.New("payment provider not configured")

type PaymentStatus string

const (
	PaymentApplied PaymentStatus = "applied"
)

// PaymentEvent marks an external payment as processed. Key is the checkout
// session id so every event about the same purchase collapses to one credit.
type PaymentEvent struct {
	Key       string        `db:"key" json:"key"`
	EventID   string        `db:"event_id" json:"event_id"`
	EventType string        `db:"event_type" json:"event_type"`
	UserID    string        `db:"user_id" json:"user_id"`
	Amount    int64         `db:"amount" json:"amount"`
	Status    PaymentStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// CheckoutSession is returned to the client to redirect into the hosted payment page
type CheckoutSession struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url,omitempty"`
	Stardust  int64  `json:"stardust"`
}

// CheckoutEvent is a verified webhook event reduced to what crediting needs
type CheckoutEvent struct {
	ID            string
	Type          string
	SessionID     string
	PaymentStatus string
	Metadata      map[string]string
}

// CheckoutRequest asks the payment processor for a hosted checkout page
type CheckoutRequest struct {
	UserID    string
	AmountUSD int64
	Stardust  int64
}
