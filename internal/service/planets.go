package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrUnknownPlanet      = errors.New("unknown planet")
	ErrUnknownInteraction = errors.New("unknown interaction type")
	ErrActionFailed       = errors.New("planet action failed")
)

const (
	defaultInteractionLimit = 10
	maxInteractionLimit     = 100

	compensationTimeout = 10 * time.Second
)

// BillingPolicy decides when a planet action is paid for relative to the
// external call it wraps.
type BillingPolicy string

const (
	// ChargeOnAttempt debits before the action and keeps the charge on failure.
	ChargeOnAttempt BillingPolicy = "charge_on_attempt"
	// RefundOnFailure debits before the action and credits it back on failure.
	RefundOnFailure BillingPolicy = "refund_on_failure"
	// ChargeOnSuccess runs the action first and debits only if it succeeded.
	ChargeOnSuccess BillingPolicy = "charge_on_success"
)

func ParseBillingPolicy(s string) (BillingPolicy, error) {
	switch p := BillingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ChargeOnAttempt, RefundOnFailure, ChargeOnSuccess:
		return p, nil
	case "":
		return RefundOnFailure, nil
	}
	return "", fmt.Errorf("unknown billing policy %q", s)
}

// InteractionRequest is one action on a planet
type InteractionRequest struct {
	UserID      string
	Planet      domain.Planet
	Type        string
	Content     string
	Cost        int64
	Description string
	Metadata    map[string]any
}

func (r InteractionRequest) description() string {
	if r.Description != "" {
		return r.Description
	}
	return fmt.Sprintf("%s %s", r.Planet, r.Type)
}

// ChargeReceipt describes what a billed action cost
type ChargeReceipt struct {
	Interaction *domain.PlanetInteraction `json:"interaction"`
	Balance     int64                     `json:"balance"`
	Refunded    bool                      `json:"refunded,omitempty"`
}

// PlanetGateway records paid interactions and per-planet preferences.
type PlanetGateway struct {
	ledger *Ledger
	store  repository.Store
	audit  *AuditService
	policy BillingPolicy
	log    *slog.Logger
}

func NewPlanetGateway(ledger *Ledger, store repository.Store, audit *AuditService, policy BillingPolicy, log *slog.Logger) *PlanetGateway {
	if log == nil {
		log = logger.Get()
	}
	if policy == "" {
		policy = RefundOnFailure
	}
	return &PlanetGateway{ledger: ledger, store: store, audit: audit, policy: policy, log: log.With("component", "planets")}
}

func (g *PlanetGateway) Policy() BillingPolicy { return g.policy }

// RecordInteraction debits the cost and stores the interaction in one unit.
// When the debit is refused nothing is recorded.
func (g *PlanetGateway) RecordInteraction(ctx context.Context, req InteractionRequest) (*domain.PlanetInteraction, int64, error) {
	if _, ok := domain.ParsePlanet(string(req.Planet)); !ok {
		return nil, 0, ErrUnknownPlanet
	}
	if req.Type == "" {
		return nil, 0, ErrUnknownInteraction
	}
	if req.Cost < 0 {
		return nil, 0, ErrInvalidAmount
	}

	in := &domain.PlanetInteraction{
		UserID:       req.UserID,
		PlanetName:   req.Planet,
		Type:         req.Type,
		Content:      req.Content,
		StardustCost: req.Cost,
		Metadata:     req.Metadata,
	}

	if req.Cost == 0 {
		return g.recordFree(ctx, in)
	}

	r, err := g.ledger.apply(ctx, mutation{
		userID:      req.UserID,
		amount:      -req.Cost,
		description: req.description(),
		planet:      string(req.Planet),
		then: func(ctx context.Context, tx repository.Tx, entry *domain.StardustTransaction) error {
			in.ID = uuid.NewString()
			in.TransactionID = entry.ID
			if err := tx.InsertInteraction(ctx, in); err != nil {
				return fmt.Errorf("record interaction: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, 0, err
	}
	return in, r.balance, nil
}

func (g *PlanetGateway) recordFree(ctx context.Context, in *domain.PlanetInteraction) (*domain.PlanetInteraction, int64, error) {
	var balance int64
	err := g.ledger.retry.Do(ctx, func(ctx context.Context) error {
		return g.store.WithTx(ctx, func(tx repository.Tx) error {
			b, err := tx.LockBalance(ctx, in.UserID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrProfileNotFound
				}
				return err
			}
			balance = b
			in.ID = uuid.NewString()
			return tx.InsertInteraction(ctx, in)
		})
	})
	if err != nil {
		return nil, 0, err
	}
	return in, balance, nil
}

// RecordPriced records an interaction at its list price
func (g *PlanetGateway) RecordPriced(ctx context.Context, userID string, planet domain.Planet, interactionType, content string, metadata map[string]any) (*domain.PlanetInteraction, int64, error) {
	if _, ok := domain.ParsePlanet(string(planet)); !ok {
		return nil, 0, ErrUnknownPlanet
	}
	cost, ok := domain.Price(planet, interactionType)
	if !ok {
		return nil, 0, ErrUnknownInteraction
	}
	return g.RecordInteraction(ctx, InteractionRequest{
		UserID:   userID,
		Planet:   planet,
		Type:     interactionType,
		Content:  content,
		Cost:     cost,
		Metadata: metadata,
	})
}

// Charge bills req around run according to the gateway's policy. A failing
// run comes back wrapped in ErrActionFailed.
func (g *PlanetGateway) Charge(ctx context.Context, req InteractionRequest, run func(ctx context.Context) error) (*ChargeReceipt, error) {
	if g.policy == ChargeOnSuccess {
		return g.chargeAfter(ctx, req, run)
	}

	in, balance, err := g.RecordInteraction(ctx, req)
	if err != nil {
		return nil, err
	}
	receipt := &ChargeReceipt{Interaction: in, Balance: balance}

	if err := run(ctx); err != nil {
		adapterCalls.WithLabelValues(string(req.Planet), req.Type, "failed").Inc()
		if g.policy == RefundOnFailure {
			rctx, cancel := detached(ctx)
			g.refund(rctx, receipt, "action failed", err)
			cancel()
		}
		return receipt, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}
	adapterCalls.WithLabelValues(string(req.Planet), req.Type, "ok").Inc()
	return receipt, nil
}

func (g *PlanetGateway) chargeAfter(ctx context.Context, req InteractionRequest, run func(ctx context.Context) error) (*ChargeReceipt, error) {
	balance, err := g.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if balance < req.Cost {
		ledgerRejected.WithLabelValues("insufficient_funds").Inc()
		return nil, ErrInsufficientFunds
	}

	if err := run(ctx); err != nil {
		adapterCalls.WithLabelValues(string(req.Planet), req.Type, "failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrActionFailed, err)
	}
	adapterCalls.WithLabelValues(string(req.Planet), req.Type, "ok").Inc()

	// the balance may have moved while the action ran
	in, balance, err := g.RecordInteraction(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ChargeReceipt{Interaction: in, Balance: balance}, nil
}

// ReportPartialWrite is called when a write that depends on a charge failed
// after the charge committed. The profile is flagged for reconciliation and,
// under RefundOnFailure, the charge is returned.
func (g *PlanetGateway) ReportPartialWrite(ctx context.Context, receipt *ChargeReceipt, cause error) {
	if receipt == nil || receipt.Interaction == nil {
		return
	}
	in := receipt.Interaction
	g.log.Error("dependent write failed after charge",
		"user_id", in.UserID,
		"planet", in.PlanetName,
		"interaction_id", in.ID,
		"transaction_id", in.TransactionID,
		"error", cause,
	)
	ctx, cancel := detached(ctx)
	defer cancel()
	if g.policy == RefundOnFailure {
		g.refund(ctx, receipt, "dependent write failed", cause)
		return
	}
	if g.audit != nil {
		g.audit.LogReconcileCandidate(ctx, in.UserID, "dependent write failed", map[string]any{
			"interaction_id": in.ID,
			"transaction_id": in.TransactionID,
			"error":          cause.Error(),
		})
	}
}

// detached keeps compensating writes alive after the caller has gone away,
// e.g. a client that disconnected during a slow model call.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}

func (g *PlanetGateway) refund(ctx context.Context, receipt *ChargeReceipt, reason string, cause error) {
	in := receipt.Interaction
	if in.StardustCost == 0 {
		return
	}
	desc := fmt.Sprintf("Refund: %s %s", in.PlanetName, in.Type)
	balance, err := g.ledger.Refund(ctx, in.UserID, in.StardustCost, desc, string(in.PlanetName))
	if err != nil {
		g.log.Error("refund failed", "user_id", in.UserID, "interaction_id", in.ID, "error", err)
		if g.audit != nil {
			g.audit.LogReconcileCandidate(ctx, in.UserID, "refund failed", map[string]any{
				"interaction_id": in.ID,
				"transaction_id": in.TransactionID,
				"amount":         in.StardustCost,
				"cause":          cause.Error(),
				"error":          err.Error(),
			})
		}
		return
	}
	receipt.Refunded = true
	receipt.Balance = balance
	g.log.Info("charge refunded", "user_id", in.UserID, "interaction_id", in.ID, "reason", reason, "amount", in.StardustCost)
}

// ListRecentInteractions returns the newest interactions on a planet
func (g *PlanetGateway) ListRecentInteractions(ctx context.Context, userID string, planet domain.Planet, limit int) ([]domain.PlanetInteraction, error) {
	if _, ok := domain.ParsePlanet(string(planet)); !ok {
		return nil, ErrUnknownPlanet
	}
	if limit <= 0 {
		limit = defaultInteractionLimit
	}
	if limit > maxInteractionLimit {
		limit = maxInteractionLimit
	}
	return g.store.ListInteractions(ctx, userID, planet, limit)
}

func (g *PlanetGateway) GetPreferences(ctx context.Context, userID string, planet domain.Planet) (*domain.PlanetPreferences, error) {
	if _, ok := domain.ParsePlanet(string(planet)); !ok {
		return nil, ErrUnknownPlanet
	}
	return g.store.GetPlanetPreferences(ctx, userID, planet)
}

// SetPreferences merges update into the stored preferences. Applying the
// same update twice leaves the same document.
func (g *PlanetGateway) SetPreferences(ctx context.Context, userID string, planet domain.Planet, update map[string]any) (*domain.PlanetPreferences, error) {
	if _, ok := domain.ParsePlanet(string(planet)); !ok {
		return nil, ErrUnknownPlanet
	}
	prefs, err := g.store.MergePlanetPreferences(ctx, userID, planet, update)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return prefs, err
}
