package realtime

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker delivers events within one process.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

var _ Broker = (*MemoryBroker)(nil)

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[*memorySub]struct{})}
}

func (b *MemoryBroker) PublishProfileChange(ctx context.Context, userID, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	ev := Event{UserID: userID, Reason: reason, At: time.Now().UTC()}
	for sub := range b.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{b: b, userID: userID, ch: make(chan Event, eventBuffer)}
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*memorySub]struct{})
	}
	b.subs[userID][sub] = struct{}{}
	return sub, nil
}

// Close ends every subscription
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			sub.closeLocked()
		}
	}
	b.subs = nil
	return nil
}

// Subscribers reports how many live subscriptions a profile has
func (b *MemoryBroker) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

type memorySub struct {
	b      *MemoryBroker
	userID string
	ch     chan Event
	done   bool
}

func (s *memorySub) Events() <-chan Event { return s.ch }

func (s *memorySub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if set := s.b.subs[s.userID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(s.b.subs, s.userID)
		}
	}
	s.closeLocked()
	return nil
}

func (s *memorySub) closeLocked() {
	if !s.done {
		s.done = true
		close(s.ch)
	}
}
