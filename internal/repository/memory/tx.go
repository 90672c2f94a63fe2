package memory

import (
	"context"

	"glxy/internal/domain"
	"glxy/internal/repository"
)

// memTx applies writes directly and keeps an undo log so a failed unit
// leaves no trace. The store lock is held for the whole unit.
type memTx struct {
	s    *Store
	undo []func()
}

var _ repository.Tx = (*memTx)(nil)

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) InsertProfile(ctx context.Context, p *domain.UserProfile) (bool, error) {
	if _, ok := t.s.profiles[p.ID]; ok {
		return false, nil
	}
	now := t.s.now()
	p.CreatedAt = now
	p.LastLoginAt = now
	cp := *p
	t.s.profiles[p.ID] = &cp
	t.undo = append(t.undo, func() { delete(t.s.profiles, p.ID) })
	return true, nil
}

func (t *memTx) LockBalance(ctx context.Context, userID string) (int64, error) {
	p, ok := t.s.profiles[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return p.Stardust, nil
}

func (t *memTx) AddBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	p, ok := t.s.profiles[userID]
	if !ok || p.Stardust+delta < 0 {
		return 0, repository.ErrNotFound
	}
	prev := p.Stardust
	p.Stardust += delta
	t.undo = append(t.undo, func() { p.Stardust = prev })
	return p.Stardust, nil
}

func (t *memTx) SetBalance(ctx context.Context, userID string, balance int64) error {
	p, ok := t.s.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	prev := p.Stardust
	p.Stardust = balance
	t.undo = append(t.undo, func() { p.Stardust = prev })
	return nil
}

func (t *memTx) SumTransactions(ctx context.Context, userID string) (int64, error) {
	return t.s.sumLocked(userID), nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *domain.StardustTransaction) error {
	if _, ok := t.s.profiles[tr.UserID]; !ok {
		return repository.ErrNotFound
	}
	prevSeq := t.s.seq
	t.s.seq++
	tr.Seq = t.s.seq
	tr.CreatedAt = t.s.now()

	prev := t.s.transactions[tr.UserID]
	t.s.transactions[tr.UserID] = append(prev[:len(prev):len(prev)], *tr)
	t.undo = append(t.undo, func() {
		t.s.transactions[tr.UserID] = prev
		t.s.seq = prevSeq
	})
	return nil
}

func (t *memTx) InsertInteraction(ctx context.Context, in *domain.PlanetInteraction) error {
	if _, ok := t.s.profiles[in.UserID]; !ok {
		return repository.ErrNotFound
	}
	prevSeq := t.s.seq
	t.s.seq++
	in.Seq = t.s.seq
	in.CreatedAt = t.s.now()

	prev := t.s.interactions[in.UserID]
	t.s.interactions[in.UserID] = append(prev[:len(prev):len(prev)], copyInteraction(*in))
	t.undo = append(t.undo, func() {
		t.s.interactions[in.UserID] = prev
		t.s.seq = prevSeq
	})
	return nil
}

func (t *memTx) ClaimPaymentEvent(ctx context.Context, e *domain.PaymentEvent) (bool, error) {
	if _, ok := t.s.payments[e.Key]; ok {
		return false, nil
	}
	e.CreatedAt = t.s.now()
	t.s.payments[e.Key] = *e
	t.undo = append(t.undo, func() { delete(t.s.payments, e.Key) })
	return true, nil
}
