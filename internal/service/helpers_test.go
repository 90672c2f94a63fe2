package service

import (
	"context"
	"testing"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/realtime"
	"glxy/internal/repository/memory"
	"glxy/internal/retry"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *memory.Store
	broker   *realtime.MemoryBroker
	audit    *AuditService
	ledger   *Ledger
	profiles *ProfileService
	planets  *PlanetGateway
}

func fastRetry() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Sleep:       func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
}

func newTestEnv(t *testing.T, policy BillingPolicy) *testEnv {
	t.Helper()
	log := logger.Discard()
	store := memory.New()
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })

	audit := NewAuditService(store)
	ledger := NewLedger(store, fastRetry(), broker, log)
	return &testEnv{
		store:    store,
		broker:   broker,
		audit:    audit,
		ledger:   ledger,
		profiles: NewProfileService(store, broker, fastRetry(), 1000, log),
		planets:  NewPlanetGateway(ledger, store, audit, policy, log),
	}
}

// signIn bootstraps a profile with the welcome grant
func (e *testEnv) signIn(t *testing.T, uid string) *domain.UserProfile {
	t.Helper()
	p, _, err := e.profiles.Bootstrap(context.Background(), domain.Identity{UID: uid, Email: uid + "@example.com", Name: uid})
	require.NoError(t, err)
	return p
}

// requireConsistent checks that the stored balance equals the log sum
func (e *testEnv) requireConsistent(t *testing.T, uid string) {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.GetProfile(ctx, uid)
	require.NoError(t, err)
	history, err := e.store.ListTransactions(ctx, uid, domain.HistoryQuery{})
	require.NoError(t, err)

	var sum int64
	for _, tr := range history {
		sum += tr.Amount
	}
	require.Equal(t, sum, p.Stardust, "balance must equal the transaction sum")
	require.GreaterOrEqual(t, p.Stardust, int64(0))
}
