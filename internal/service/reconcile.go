package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/repository"
)

const unbilledReportLimit = 100

// Reconciler finds profiles whose stored balance no longer matches the
// transaction log and, when asked, rewrites the balance to the log sum.
type Reconciler struct {
	store  repository.Store
	audit  *AuditService
	events ChangePublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewReconciler takes an optional publisher so open profile streams see
// repaired balances.
func NewReconciler(store repository.Store, audit *AuditService, events ChangePublisher, log *slog.Logger) *Reconciler {
	if log == nil {
		log = logger.Get()
	}
	return &Reconciler{store: store, audit: audit, events: events, log: log.With("component", "reconciler"), now: time.Now}
}

func (r *Reconciler) Run(ctx context.Context, repair bool) (*domain.ReconcileReport, error) {
	report := &domain.ReconcileReport{StartedAt: r.now().UTC()}

	drifts, err := r.store.ListBalanceDrift(ctx)
	if err != nil {
		return nil, err
	}
	report.Drifts = drifts
	reconcileDrift.Set(float64(len(drifts)))

	for _, d := range drifts {
		r.log.Warn("balance drift", "user_id", d.UserID, "stored", d.Stored, "ledger_sum", d.LedgerSum)
		r.audit.LogReconcileCandidate(ctx, d.UserID, "balance drift", map[string]any{
			"stored":     d.Stored,
			"ledger_sum": d.LedgerSum,
			"delta":      d.Delta(),
		})
		if !repair {
			continue
		}
		fixed, err := r.repair(ctx, d.UserID)
		if err != nil {
			r.log.Error("balance repair failed", "user_id", d.UserID, "error", err)
			report.RepairError = err.Error()
			continue
		}
		report.Repaired++
		r.publish(ctx, d.UserID)
		r.audit.Log(ctx, d.UserID, domain.AuditActionReconcileRepaired, domain.AuditCategoryReconcile, map[string]any{
			"previous": d.Stored,
			"balance":  fixed,
		})
	}
	if repair && report.Repaired > 0 {
		reconcileDrift.Set(float64(len(drifts) - report.Repaired))
	}

	unbilled, err := r.store.ListUnbilledInteractions(ctx, unbilledReportLimit)
	if err != nil {
		return nil, err
	}
	report.Unbilled = unbilled
	for _, in := range unbilled {
		r.log.Warn("interaction without debit", "user_id", in.UserID, "interaction_id", in.ID, "planet", in.PlanetName)
	}

	report.FinishedAt = r.now().UTC()
	r.log.Info("reconciliation finished", "drifts", len(drifts), "repaired", report.Repaired, "unbilled", len(unbilled))
	return report, nil
}

// repair sets the balance to the log sum under the profile lock. The log
// is the source of truth; a negative sum is left for a human.
func (r *Reconciler) repair(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := r.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.LockBalance(ctx, userID); err != nil {
			return err
		}
		var err error
		sum, err = tx.SumTransactions(ctx, userID)
		if err != nil {
			return err
		}
		if sum < 0 {
			return errors.New("transaction log sums to a negative balance")
		}
		return tx.SetBalance(ctx, userID, sum)
	})
	return sum, err
}

func (r *Reconciler) publish(ctx context.Context, userID string) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishProfileChange(ctx, userID, "reconcile"); err != nil {
		r.log.Warn("failed to publish profile change", "user_id", userID, "error", err)
	}
}
