package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"glxy/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier accepts payloads whose signature is "ok" and hands back the
// configured event.
type stubVerifier struct {
	event *domain.CheckoutEvent
	err   error
}

func (v *stubVerifier) Verify(payload []byte, signature string) (*domain.CheckoutEvent, error) {
	if v.err != nil {
		return nil, v.err
	}
	if signature != "ok" {
		return nil, errors.New("signature mismatch")
	}
	ev := *v.event
	return &ev, nil
}

type stubCheckout struct {
	last domain.CheckoutRequest
	err  error
}

func (c *stubCheckout) CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.last = req
	return &domain.CheckoutSession{SessionID: "cs_test_new", URL: "https://checkout.example/cs_test_new", Stardust: req.Stardust}, nil
}

func completedEvent(id, session, uid, amount string) *domain.CheckoutEvent {
	return &domain.CheckoutEvent{
		ID:            id,
		Type:          EventCheckoutCompleted,
		SessionID:     session,
		PaymentStatus: "paid",
		Metadata:      map[string]string{"userId": uid, "stardustAmount": amount},
	}
}

func newPaymentService(env *testEnv, v *stubVerifier, c *stubCheckout) *PaymentService {
	return NewPaymentService(env.ledger, v, c, env.audit, PaymentConfig{StardustPerUSD: 20, MinUSD: 1, MaxUSD: 500}, nil)
}

func TestPayments_WebhookRedeliveryCreditsOnce(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	v := &stubVerifier{event: completedEvent("evt_1", "cs_1", "u1", "100")}
	svc := newPaymentService(env, v, nil)

	outcome, err := svc.HandleWebhook(ctx, []byte("{}"), "ok")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	// same session delivered again, also as the async success event
	v.event.ID = "evt_2"
	v.event.Type = EventAsyncPaymentSucceeded
	outcome, err = svc.HandleWebhook(ctx, []byte("{}"), "ok")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), balance)
	env.requireConsistent(t, "u1")

	logs, err := env.audit.GetRecentLogs(ctx, domain.AuditCategoryPayment, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.AuditActionPaymentDuplicate, logs[0].Action)
	assert.Equal(t, domain.AuditActionPaymentApplied, logs[1].Action)
}

func TestPayments_BadSignatureIsRejected(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	svc := newPaymentService(env, &stubVerifier{event: completedEvent("evt_1", "cs_1", "u1", "100")}, nil)
	outcome, err := svc.HandleWebhook(ctx, []byte("{}"), "forged")
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, OutcomeRejected, outcome)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestPayments_IgnoredEvents(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	other := completedEvent("evt_1", "cs_1", "u1", "100")
	other.Type = "payment_intent.created"
	unpaid := completedEvent("evt_2", "cs_2", "u1", "100")
	unpaid.PaymentStatus = "unpaid"

	for _, ev := range []*domain.CheckoutEvent{other, unpaid} {
		svc := newPaymentService(env, &stubVerifier{event: ev}, nil)
		outcome, err := svc.HandleWebhook(ctx, []byte("{}"), "ok")
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	}

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestPayments_MalformedMetadata(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	cases := map[string]*domain.CheckoutEvent{
		"missing user":    completedEvent("evt_1", "cs_1", "", "100"),
		"bad amount":      completedEvent("evt_2", "cs_2", "u1", "lots"),
		"zero amount":     completedEvent("evt_3", "cs_3", "u1", "0"),
		"unknown profile": completedEvent("evt_4", "cs_4", "ghost", "100"),
	}
	for name, ev := range cases {
		t.Run(name, func(t *testing.T) {
			svc := newPaymentService(env, &stubVerifier{event: ev}, nil)
			outcome, err := svc.HandleWebhook(ctx, []byte("{}"), "ok")
			require.ErrorIs(t, err, ErrMalformedEvent)
			assert.Equal(t, OutcomeMalformed, outcome)
		})
	}

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestPayments_StoreFailureAsksForRedelivery(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	flaky := &flakyStore{Store: env.store}
	flaky.failures.Store(10)
	ledger := NewLedger(flaky, fastRetry(), nil, nil)
	svc := NewPaymentService(ledger, &stubVerifier{event: completedEvent("evt_1", "cs_1", "u1", "100")}, nil, env.audit, PaymentConfig{}, nil)

	outcome, err := svc.HandleWebhook(ctx, []byte("{}"), "ok")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	// the processor retries later and the credit lands once
	flaky.failures.Store(0)
	outcome, err = svc.HandleWebhook(ctx, []byte("{}"), "ok")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	balance, err := env.ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), balance)
}

func TestPayments_CreateCheckout(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()

	c := &stubCheckout{}
	svc := newPaymentService(env, nil, c)

	sess, err := svc.CreateCheckout(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_new", sess.SessionID)
	assert.Equal(t, int64(100), sess.Stardust)
	assert.Equal(t, domain.CheckoutRequest{UserID: "u1", AmountUSD: 5, Stardust: 100}, c.last)

	for _, usd := range []int64{0, -5, 501} {
		_, err := svc.CreateCheckout(ctx, "u1", usd)
		assert.ErrorIs(t, err, ErrInvalidPurchase)
	}

	c.err = errors.New("processor down")
	_, err = svc.CreateCheckout(ctx, "u1", 5)
	assert.Error(t, err)
}

func TestPayments_MissingSecretIsNotASignatureFailure(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	env.signIn(t, "u1")
	v := &stubVerifier{err: fmt.Errorf("stripe: %w", domain.ErrProviderNotConfigured)}
	svc := newPaymentService(env, v, &stubCheckout{})

	outcome, err := svc.HandleWebhook(context.Background(), []byte(`{}`), "ok")
	assert.Equal(t, OutcomeUnavailable, outcome)
	assert.ErrorIs(t, err, ErrPaymentsDisabled)
	assert.NotErrorIs(t, err, ErrInvalidSignature)
}
