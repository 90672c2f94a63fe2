package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"
)

// AdminService provides admin statistics and operations
type AdminService struct {
	store      repository.Store
	ledger     *Ledger
	audit      *AuditService
	reconciler *Reconciler
	now        func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(store repository.Store, ledger *Ledger, audit *AuditService, reconciler *Reconciler) *AdminService {
	return &AdminService{store: store, ledger: ledger, audit: audit, reconciler: reconciler, now: time.Now}
}

// GetStats returns activity since the start of the current UTC day
func (s *AdminService) GetStats(ctx context.Context) (*domain.LedgerStats, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	return s.store.LedgerStats(ctx, today)
}

// ListUsers returns profiles ordered by name
func (s *AdminService) ListUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	return s.store.ListProfiles(ctx, limit)
}

// Grant credits the target user (never the admin making the call)
func (s *AdminService) Grant(ctx context.Context, adminID, targetUserID string, amount int64, description string) (int64, error) {
	if strings.TrimSpace(description) == "" {
		description = "Admin allocation"
	}
	balance, err := s.ledger.Credit(ctx, targetUserID, amount, description)
	if err != nil {
		return 0, err
	}
	s.audit.LogAdminGrant(ctx, adminID, targetUserID, amount, description)
	return balance, nil
}

// Reconcile runs the balance check on demand
func (s *AdminService) Reconcile(ctx context.Context, adminID string, repair bool) (*domain.ReconcileReport, error) {
	report, err := s.reconciler.Run(ctx, repair)
	if err != nil {
		return nil, err
	}
	s.audit.Log(ctx, adminID, domain.AuditActionAdminReconcile, domain.AuditCategoryAdmin, map[string]any{
		"repair":   repair,
		"drifts":   len(report.Drifts),
		"repaired": report.Repaired,
	})
	return report, nil
}

// PaymentEvent looks up the processed marker for a checkout session, which
// is how support answers "was this purchase credited?"
func (s *AdminService) PaymentEvent(ctx context.Context, sessionID string) (*domain.PaymentEvent, error) {
	e, err := s.store.GetPaymentEvent(ctx, strings.TrimSpace(sessionID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	return e, err
}

// AuditLogs returns recent audit entries, optionally by category
func (s *AdminService) AuditLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.GetRecentLogs(ctx, category, limit)
}
