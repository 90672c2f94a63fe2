package domain

import "time"

// AuditLog records actions worth looking at later: admin grants, payments,
// ledger repairs.
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	IP        string         `db:"ip" json:"ip,omitempty"`
	UserAgent string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth      = "auth"
	AuditCategoryPayment   = "payment"
	AuditCategoryAdmin     = "admin"
	AuditCategoryReconcile = "reconciliation"
)

// Audit actions
const (
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"

	AuditActionPaymentApplied   = "payment_applied"
	AuditActionPaymentDuplicate = "payment_duplicate"
	AuditActionPaymentRejected  = "payment_rejected"
	AuditActionPaymentFailed    = "payment_failed"

	AuditActionAdminGrant     = "admin_grant"
	AuditActionAdminReconcile = "admin_reconcile"

	AuditActionReconcileCandidate = "reconciliation_candidate"
	AuditActionReconcileRepaired  = "reconciliation_repaired"
)
