package domain

import "time"

// BalanceDrift is a profile whose stored balance disagrees with its log
type BalanceDrift struct {
	UserID    string `json:"user_id"`
	Stored    int64  `json:"stored"`
	LedgerSum int64  `json:"ledger_sum"`
}

// Delta is stored minus expected
func (d BalanceDrift) Delta() int64 {
	return d.Stored - d.LedgerSum
}

type ReconcileReport struct {
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Drifts      []BalanceDrift      `json:"drifts"`
	Repaired    int                 `json:"repaired"`
	Unbilled    []PlanetInteraction `json:"unbilled_interactions"`
	RepairError string              `json:"repair_error,omitempty"`
}

// LedgerStats is the admin dashboard summary
type LedgerStats struct {
	TotalUsers        int64 `json:"total_users"`
	ActiveUsersToday  int64 `json:"active_users_today"`
	StardustInCirc    int64 `json:"stardust_in_circulation"`
	CreditedToday     int64 `json:"credited_today"`
	DebitedToday      int64 `json:"debited_today"`
	InteractionsToday int64 `json:"interactions_today"`
	PaymentsToday     int64 `json:"payments_today"`
}
