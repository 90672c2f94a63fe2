package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"glxy/internal/domain"
	"glxy/internal/logger"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed payment event")
	ErrInvalidPurchase  = errors.New("invalid purchase amount")
	ErrPaymentsDisabled = errors.New("payments are not configured")
	ErrPaymentNotFound  = errors.New("payment not found")
)

// Completion events. A session can complete before funds settle; the async
// success event follows in that case.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"

	paymentStatusUnpaid = "unpaid"
)

// WebhookOutcome is where a delivered event ended up
type WebhookOutcome string

const (
	OutcomeRejected  WebhookOutcome = "rejected"
	OutcomeIgnored   WebhookOutcome = "ignored"
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeMalformed WebhookOutcome = "malformed"
	OutcomeFailed    WebhookOutcome = "failed_apply"

	// OutcomeUnavailable means the webhook secret is not configured
	OutcomeUnavailable WebhookOutcome = "unavailable"
)

// WebhookVerifier authenticates a raw webhook delivery
type WebhookVerifier interface {
	Verify(payload []byte, signature string) (*domain.CheckoutEvent, error)
}

// CheckoutProvider creates hosted checkout sessions
type CheckoutProvider interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

type PaymentConfig struct {
	StardustPerUSD int64
	MinUSD         int64
	MaxUSD         int64
}

// PaymentService turns verified checkout completions into Stardust credits,
// at most once per checkout session.
type PaymentService struct {
	ledger   *Ledger
	verifier WebhookVerifier
	checkout CheckoutProvider
	audit    *AuditService
	cfg      PaymentConfig
	log      *slog.Logger
}

func NewPaymentService(ledger *Ledger, verifier WebhookVerifier, checkout CheckoutProvider, audit *AuditService, cfg PaymentConfig, log *slog.Logger) *PaymentService {
	if log == nil {
		log = logger.Get()
	}
	if cfg.StardustPerUSD <= 0 {
		cfg.StardustPerUSD = 20
	}
	return &PaymentService{
		ledger:   ledger,
		verifier: verifier,
		checkout: checkout,
		audit:    audit,
		cfg:      cfg,
		log:      log.With("component", "payments"),
	}
}

// HandleWebhook verifies and applies one delivery. The returned error is nil
// for every outcome the processor should not redeliver.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	event, err := s.verifier.Verify(payload, signature)
	if errors.Is(err, domain.ErrProviderNotConfigured) {
		webhookOutcomes.WithLabelValues(string(OutcomeUnavailable)).Inc()
		s.log.Error("webhook received but STRIPE_WEBHOOK_SECRET is not set")
		return OutcomeUnavailable, fmt.Errorf("%w: %w", ErrPaymentsDisabled, err)
	}
	if err != nil {
		webhookOutcomes.WithLabelValues(string(OutcomeRejected)).Inc()
		s.log.Warn("webhook rejected", "error", err)
		return OutcomeRejected, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	outcome, err := s.apply(ctx, event)
	webhookOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (s *PaymentService) apply(ctx context.Context, event *domain.CheckoutEvent) (WebhookOutcome, error) {
	if event.Type != EventCheckoutCompleted && event.Type != EventAsyncPaymentSucceeded {
		s.log.Debug("webhook ignored", "event_id", event.ID, "type", event.Type)
		return OutcomeIgnored, nil
	}
	if event.PaymentStatus == paymentStatusUnpaid {
		s.log.Info("checkout completed without payment, waiting for async result", "event_id", event.ID, "session_id", event.SessionID)
		return OutcomeIgnored, nil
	}

	userID, amount, err := parseCheckoutMetadata(event)
	if err != nil {
		s.log.Error("malformed checkout metadata", "event_id", event.ID, "session_id", event.SessionID, "error", err)
		s.auditPayment(ctx, userID, domain.AuditActionPaymentRejected, event, amount, err)
		return OutcomeMalformed, err
	}

	balance, err := s.ledger.CreditOnce(ctx, userID, amount, "Stardust purchase", domain.PaymentEvent{
		Key:       event.SessionID,
		EventID:   event.ID,
		EventType: event.Type,
	})
	switch {
	case err == nil:
		s.log.Info("payment applied", "user_id", userID, "session_id", event.SessionID, "amount", amount, "balance", balance)
		s.auditPayment(ctx, userID, domain.AuditActionPaymentApplied, event, amount, nil)
		return OutcomeApplied, nil
	case errors.Is(err, ErrAlreadyApplied):
		s.log.Info("payment already applied", "user_id", userID, "session_id", event.SessionID, "event_id", event.ID)
		s.auditPayment(ctx, userID, domain.AuditActionPaymentDuplicate, event, amount, nil)
		return OutcomeDuplicate, nil
	case errors.Is(err, ErrProfileNotFound):
		// redelivery cannot fix a missing profile
		s.log.Error("payment for unknown profile", "user_id", userID, "session_id", event.SessionID)
		s.auditPayment(ctx, userID, domain.AuditActionPaymentRejected, event, amount, err)
		return OutcomeMalformed, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	default:
		s.log.Error("payment apply failed", "user_id", userID, "session_id", event.SessionID, "error", err)
		s.auditPayment(ctx, userID, domain.AuditActionPaymentFailed, event, amount, err)
		return OutcomeFailed, err
	}
}

func (s *PaymentService) auditPayment(ctx context.Context, userID, action string, event *domain.CheckoutEvent, amount int64, cause error) {
	if s.audit == nil {
		return
	}
	details := map[string]any{"event_type": event.Type}
	if cause != nil {
		details["error"] = cause.Error()
	}
	s.audit.LogPayment(ctx, userID, action, event.ID, event.SessionID, amount, details)
}

func parseCheckoutMetadata(event *domain.CheckoutEvent) (string, int64, error) {
	if event.SessionID == "" {
		return "", 0, fmt.Errorf("%w: missing session id", ErrMalformedEvent)
	}
	userID := event.Metadata["userId"]
	if userID == "" {
		return "", 0, fmt.Errorf("%w: missing userId", ErrMalformedEvent)
	}
	amount, err := strconv.ParseInt(event.Metadata["stardustAmount"], 10, 64)
	if err != nil || amount <= 0 {
		return userID, 0, fmt.Errorf("%w: bad stardustAmount %q", ErrMalformedEvent, event.Metadata["stardustAmount"])
	}
	return userID, amount, nil
}

// StardustFor converts a dollar amount into Stardust
func (s *PaymentService) StardustFor(usd int64) int64 {
	return usd * s.cfg.StardustPerUSD
}

// CreateCheckout starts a purchase of usd dollars worth of Stardust
func (s *PaymentService) CreateCheckout(ctx context.Context, userID string, usd int64) (*domain.CheckoutSession, error) {
	if usd <= 0 || (s.cfg.MinUSD > 0 && usd < s.cfg.MinUSD) || (s.cfg.MaxUSD > 0 && usd > s.cfg.MaxUSD) {
		return nil, ErrInvalidPurchase
	}
	if s.checkout == nil {
		return nil, ErrPaymentsDisabled
	}
	sess, err := s.checkout.CreateSession(ctx, domain.CheckoutRequest{
		UserID:    userID,
		AmountUSD: usd,
		Stardust:  s.StardustFor(usd),
	})
	if err != nil {
		s.log.Error("checkout session failed", "user_id", userID, "usd", usd, "error", err)
		return nil, err
	}
	s.log.Info("checkout session created", "user_id", userID, "session_id", sess.SessionID, "stardust", sess.Stardust)
	return sess, nil
}
