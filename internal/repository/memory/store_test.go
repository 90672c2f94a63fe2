package memory

import (
	"context"
	"errors"
	"testing"

	"glxy/internal/domain"
	"glxy/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, uid string, balance int64) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx repository.Tx) error {
		if _, err := tx.InsertProfile(context.Background(), &domain.UserProfile{ID: uid, Stardust: balance}); err != nil {
			return err
		}
		return tx.InsertTransaction(context.Background(), &domain.StardustTransaction{
			ID: uid + "-welcome", UserID: uid, Amount: balance, Type: domain.TransactionCredit,
		})
	})
	require.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "u1", 100)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.AddBalance(ctx, "u1", -40); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &domain.StardustTransaction{ID: "t2", UserID: "u1", Amount: -40, Type: domain.TransactionDebit}); err != nil {
			return err
		}
		if _, err := tx.ClaimPaymentEvent(ctx, &domain.PaymentEvent{Key: "cs_1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Stardust)

	history, err := s.ListTransactions(ctx, "u1", domain.HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = s.GetPaymentEvent(ctx, "cs_1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestClaimPaymentEventOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	var first, second bool
	require.NoError(t, s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		first, err = tx.ClaimPaymentEvent(ctx, &domain.PaymentEvent{Key: "cs_1", EventID: "evt_1"})
		return err
	}))
	require.NoError(t, s.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		second, err = tx.ClaimPaymentEvent(ctx, &domain.PaymentEvent{Key: "cs_1", EventID: "evt_2"})
		return err
	}))
	assert.True(t, first)
	assert.False(t, second)

	e, err := s.GetPaymentEvent(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", e.EventID)
}

func TestListTransactions_NewestFirstWithCursor(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "u1", 100)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.WithTx(ctx, func(tx repository.Tx) error {
			return tx.InsertTransaction(ctx, &domain.StardustTransaction{UserID: "u1", Amount: -5, Type: domain.TransactionDebit})
		}))
	}

	page, err := s.ListTransactions(ctx, "u1", domain.HistoryQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Greater(t, page[0].Seq, page[1].Seq)

	rest, err := s.ListTransactions(ctx, "u1", domain.HistoryQuery{Limit: 10, Before: page[1].Seq})
	require.NoError(t, err)
	require.Len(t, rest, 3)
	assert.Equal(t, int64(100), rest[2].Amount)
}

func TestBalanceDrift(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "u1", 100)
	seed(t, s, "u2", 50)

	require.NoError(t, s.WithTx(ctx, func(tx repository.Tx) error {
		return tx.SetBalance(ctx, "u2", 70)
	}))

	drift, err := s.ListBalanceDrift(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "u2", drift[0].UserID)
	assert.Equal(t, int64(70), drift[0].Stored)
	assert.Equal(t, int64(50), drift[0].LedgerSum)
}
