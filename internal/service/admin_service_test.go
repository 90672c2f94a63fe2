package service

import (
	"context"
	"testing"

	"glxy/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_GrantCreditsTheSelectedUser(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "admin")
	env.signIn(t, "u1")

	admin := NewAdminService(env.store, env.ledger, env.audit, NewReconciler(env.store, env.audit, env.broker, nil))
	balance, err := admin.Grant(ctx, "admin", "u1", 100, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), balance)

	adminBalance, err := env.ledger.GetBalance(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), adminBalance)

	history, err := env.ledger.GetHistory(ctx, "u1", domain.HistoryQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "Admin allocation", history[0].Description)
	assert.Equal(t, domain.SystemPlanet, history[0].PlanetName)

	logs, err := admin.AuditLogs(ctx, domain.AuditCategoryAdmin, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "u1", logs[0].UserID)
	assert.Equal(t, "admin", logs[0].Details["admin_id"])

	_, err = admin.Grant(ctx, "admin", "u1", 0, "nothing")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAdmin_ListUsersAndStats(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	for _, uid := range []string{"vega", "altair", "deneb"} {
		env.signIn(t, uid)
	}
	_, err := env.ledger.Debit(ctx, "vega", 20, "Art creation", "art")
	require.NoError(t, err)

	admin := NewAdminService(env.store, env.ledger, env.audit, NewReconciler(env.store, env.audit, env.broker, nil))
	users, err := admin.ListUsers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "altair", users[0].Name)
	assert.Equal(t, "deneb", users[1].Name)
	assert.Equal(t, "vega", users[2].Name)

	stats, err := admin.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(2980), stats.StardustInCirc)
	assert.Equal(t, int64(3000), stats.CreditedToday)
	assert.Equal(t, int64(20), stats.DebitedToday)

	report, err := admin.Reconcile(ctx, "vega", false)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestAdmin_PaymentEventLookup(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	svc := newPaymentService(env, &stubVerifier{event: completedEvent("evt_1", "cs_1", "u1", "100")}, nil)
	_, err := svc.HandleWebhook(ctx, []byte("{}"), "ok")
	require.NoError(t, err)

	admin := NewAdminService(env.store, env.ledger, env.audit, NewReconciler(env.store, env.audit, env.broker, nil))
	event, err := admin.PaymentEvent(ctx, " cs_1 ")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, int64(100), event.Amount)

	_, err = admin.PaymentEvent(ctx, "cs_unknown")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
