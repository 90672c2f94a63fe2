package service

import (
	"context"
	"testing"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corrupt moves the stored balance without writing a transaction, the way a
// half-applied write would.
func corrupt(t *testing.T, env *testEnv, uid string, delta int64) {
	t.Helper()
	err := env.store.WithTx(context.Background(), func(tx repository.Tx) error {
		_, err := tx.AddBalance(context.Background(), uid, delta)
		return err
	})
	require.NoError(t, err)
}

func TestReconciler_ReportsDrift(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")
	env.signIn(t, "u2")
	corrupt(t, env, "u1", 40)

	r := NewReconciler(env.store, env.audit, env.broker, nil)
	report, err := r.Run(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, domain.BalanceDrift{UserID: "u1", Stored: 1040, LedgerSum: 1000}, report.Drifts[0])
	assert.Equal(t, 0, report.Repaired)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1040), balance)

	logs, err := env.audit.GetRecentLogs(ctx, domain.AuditCategoryReconcile, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionReconcileCandidate, logs[0].Action)
	assert.Equal(t, "u1", logs[0].UserID)
}

func TestReconciler_RepairsToLedgerSum(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")
	_, err := env.ledger.Debit(ctx, "u1", 20, "Art creation", "art")
	require.NoError(t, err)
	corrupt(t, env, "u1", -100)

	sub, err := env.broker.Subscribe(ctx, "u1")
	require.NoError(t, err)
	defer sub.Close()

	r := NewReconciler(env.store, env.audit, env.broker, nil)
	report, err := r.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Repaired)
	assert.Empty(t, report.RepairError)
	env.requireConsistent(t, "u1")

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(980), balance)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "reconcile", ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("repair did not notify profile subscribers")
	}

	again, err := r.Run(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, again.Drifts)
}

func TestReconciler_ReportsUnbilledInteractions(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	err := env.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.InsertInteraction(ctx, &domain.PlanetInteraction{
			ID:           "orphan",
			UserID:       "u1",
			PlanetName:   domain.PlanetArt,
			Type:         domain.InteractionCreation,
			StardustCost: 20,
		})
	})
	require.NoError(t, err)
	_, _, err = env.planets.RecordInteraction(ctx, chatMessage("u1"))
	require.NoError(t, err)

	report, err := NewReconciler(env.store, env.audit, env.broker, nil).Run(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.Unbilled, 1)
	assert.Equal(t, "orphan", report.Unbilled[0].ID)
}
