// Package realtime fans profile change signals out to live subscribers.
// Events only say "this profile changed"; subscribers re-read the profile.
package realtime

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("broker closed")

type Event struct {
	UserID string    `json:"user_id"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Subscription delivers events for one profile. Events is closed when the
// subscription ends or its connection drops.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Broker interface {
	PublishProfileChange(ctx context.Context, userID, reason string) error
	Subscribe(ctx context.Context, userID string) (Subscription, error)
	Close() error
}

// subscriber buffer; events coalesce so dropping on a full buffer is fine
const eventBuffer = 16
