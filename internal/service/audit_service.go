package service

import (
	"context"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/repository"
)

// AuditService handles audit logging
type AuditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, userID, action, category string, details map[string]any) {
	entry := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogWithRequest creates an audit log with request info (IP, User-Agent)
func (s *AuditService) LogWithRequest(ctx context.Context, userID, action, category, ip, userAgent string, details map[string]any) {
	entry := &domain.AuditLog{
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogLogin logs a user sign-in
func (s *AuditService) LogLogin(ctx context.Context, userID, ip, userAgent string, created bool) {
	s.LogWithRequest(ctx, userID, domain.AuditActionLogin, domain.AuditCategoryAuth, ip, userAgent,
		map[string]any{"profile_created": created})
}

// LogLogout logs a revoked session
func (s *AuditService) LogLogout(ctx context.Context, userID, ip, userAgent string) {
	s.LogWithRequest(ctx, userID, domain.AuditActionLogout, domain.AuditCategoryAuth, ip, userAgent, nil)
}

// LogPayment logs a webhook outcome
func (s *AuditService) LogPayment(ctx context.Context, userID, action, eventID, key string, amount int64, details map[string]any) {
	if details == nil {
		details = make(map[string]any)
	}
	details["event_id"] = eventID
	details["key"] = key
	details["amount"] = amount

	s.Log(ctx, userID, action, domain.AuditCategoryPayment, details)
}

// LogAdminGrant logs Stardust granted by an admin to another user
func (s *AuditService) LogAdminGrant(ctx context.Context, adminID, targetUserID string, amount int64, description string) {
	details := map[string]any{
		"admin_id":       adminID,
		"target_user_id": targetUserID,
		"amount":         amount,
		"description":    description,
	}

	s.Log(ctx, targetUserID, domain.AuditActionAdminGrant, domain.AuditCategoryAdmin, details)
}

// LogReconcileCandidate flags a profile whose balance and log may disagree
func (s *AuditService) LogReconcileCandidate(ctx context.Context, userID, reason string, details map[string]any) {
	if details == nil {
		details = make(map[string]any)
	}
	details["reason"] = reason

	s.Log(ctx, userID, domain.AuditActionReconcileCandidate, domain.AuditCategoryReconcile, details)
}

// GetRecentLogs returns recent audit logs, optionally filtered by category
func (s *AuditService) GetRecentLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, category, limit)
}
