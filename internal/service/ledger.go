package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/repository"
	"glxy/internal/retry"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds = errors.New("insufficient stardust")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAlreadyApplied    = errors.New("payment already applied")
)

// IsUnavailable reports whether err means the store could not be reached
// even after retrying.
func IsUnavailable(err error) bool {
	return errors.Is(err, repository.ErrUnavailable) || errors.Is(err, retry.ErrExhausted)
}

// ChangePublisher fans out "this profile changed" signals to live subscribers.
type ChangePublisher interface {
	PublishProfileChange(ctx context.Context, userID, reason string) error
}

// Ledger owns every change to a Stardust balance. Each mutation writes the
// balance and its transaction entry in one store transaction, so the stored
// balance always equals the sum of the log.
type Ledger struct {
	store  repository.Store
	retry  retry.Policy
	events ChangePublisher
	log    *slog.Logger
}

func NewLedger(store repository.Store, policy retry.Policy, events ChangePublisher, log *slog.Logger) *Ledger {
	if log == nil {
		log = logger.Get()
	}
	policy.Retryable = func(err error) bool { return errors.Is(err, repository.ErrUnavailable) }
	return &Ledger{store: store, retry: policy, events: events, log: log.With("component", "ledger")}
}

// mutation describes one balance change. Amount is signed.
type mutation struct {
	userID      string
	amount      int64
	description string
	planet      string
	key         string
	claim       *domain.PaymentEvent
	// then runs inside the same transaction after the entry is written
	then func(ctx context.Context, tx repository.Tx, entry *domain.StardustTransaction) error
}

type receipt struct {
	entry   domain.StardustTransaction
	balance int64
}

// GetBalance reads the denormalized balance
func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	p, err := l.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrProfileNotFound
		}
		return 0, err
	}
	return p.Stardust, nil
}

// GetHistory returns transactions newest first
func (l *Ledger) GetHistory(ctx context.Context, userID string, q domain.HistoryQuery) ([]domain.StardustTransaction, error) {
	if q.Limit < 0 || q.Before < 0 {
		return nil, fmt.Errorf("%w: negative limit or cursor", ErrInvalidAmount)
	}
	return l.store.ListTransactions(ctx, userID, q)
}

// Debit spends amount on planet. Fails with ErrInsufficientFunds and no
// mutation when the balance is too low.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64, description, planet string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	r, err := l.apply(ctx, mutation{userID: userID, amount: -amount, description: description, planet: planet})
	if err != nil {
		return 0, err
	}
	return r.balance, nil
}

// Credit adds amount as a system credit (grants, manual adjustments)
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	r, err := l.apply(ctx, mutation{userID: userID, amount: amount, description: description, planet: domain.SystemPlanet})
	if err != nil {
		return 0, err
	}
	return r.balance, nil
}

// CreditOnce credits a payment exactly once per event key. A repeated key
// returns ErrAlreadyApplied without touching the balance.
func (l *Ledger) CreditOnce(ctx context.Context, userID string, amount int64, description string, event domain.PaymentEvent) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if event.Key == "" {
		return 0, errors.New("payment event key is required")
	}
	event.UserID = userID
	event.Amount = amount
	event.Status = domain.PaymentApplied

	r, err := l.apply(ctx, mutation{
		userID:      userID,
		amount:      amount,
		description: description,
		planet:      domain.SystemPlanet,
		key:         event.Key,
		claim:       &event,
	})
	if err != nil {
		return 0, err
	}
	return r.balance, nil
}

// Refund credits a planet charge back, e.g. after the action behind it failed
func (l *Ledger) Refund(ctx context.Context, userID string, amount int64, description, planet string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	r, err := l.apply(ctx, mutation{userID: userID, amount: amount, description: description, planet: planet})
	if err != nil {
		return 0, err
	}
	return r.balance, nil
}

func (l *Ledger) apply(ctx context.Context, m mutation) (*receipt, error) {
	var out receipt
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		return l.store.WithTx(ctx, func(tx repository.Tx) error {
			balance, err := tx.LockBalance(ctx, m.userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrProfileNotFound
				}
				return err
			}

			if m.claim != nil {
				claimed, err := tx.ClaimPaymentEvent(ctx, m.claim)
				if err != nil {
					return err
				}
				if !claimed {
					return ErrAlreadyApplied
				}
			}

			if m.amount < 0 && balance < -m.amount {
				return ErrInsufficientFunds
			}

			newBalance, err := tx.AddBalance(ctx, m.userID, m.amount)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// the conditional update refused to go negative
					return ErrInsufficientFunds
				}
				return err
			}

			entry := domain.StardustTransaction{
				ID:             uuid.NewString(),
				UserID:         m.userID,
				Amount:         m.amount,
				Type:           domain.TransactionCredit,
				Description:    m.description,
				PlanetName:     m.planet,
				IdempotencyKey: m.key,
			}
			if m.amount < 0 {
				entry.Type = domain.TransactionDebit
			}
			if err := tx.InsertTransaction(ctx, &entry); err != nil {
				return fmt.Errorf("record transaction: %w", err)
			}

			if m.then != nil {
				if err := m.then(ctx, tx, &entry); err != nil {
					return err
				}
			}

			out = receipt{entry: entry, balance: newBalance}
			return nil
		})
	})
	if err != nil {
		l.reject(m, err)
		return nil, err
	}

	ledgerMutations.WithLabelValues(string(out.entry.Type), m.planet).Inc()
	ledgerStardust.WithLabelValues(string(out.entry.Type)).Add(float64(abs(m.amount)))
	l.log.Debug("ledger mutation committed",
		"user_id", m.userID,
		"amount", m.amount,
		"planet", m.planet,
		"balance", out.balance,
		"transaction_id", out.entry.ID,
	)
	l.publish(ctx, m.userID, string(out.entry.Type))
	return &out, nil
}

func (l *Ledger) reject(m mutation, err error) {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		ledgerRejected.WithLabelValues("insufficient_funds").Inc()
	case errors.Is(err, ErrAlreadyApplied):
		ledgerRejected.WithLabelValues("duplicate").Inc()
	case errors.Is(err, ErrProfileNotFound):
		ledgerRejected.WithLabelValues("profile_not_found").Inc()
	default:
		ledgerRejected.WithLabelValues("error").Inc()
		l.log.Error("ledger mutation failed", "user_id", m.userID, "amount", m.amount, "planet", m.planet, "error", err)
	}
}

func (l *Ledger) publish(ctx context.Context, userID, reason string) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishProfileChange(ctx, userID, reason); err != nil {
		l.log.Warn("failed to publish profile change", "user_id", userID, "error", err)
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
