package repository

import (
	"context"
	"errors"
	"time"

	"glxy/internal/domain"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps failures that left no trace in the store and are
	// safe to retry (connection refused, serialization failure, deadlock).
	ErrUnavailable = errors.New("store unavailable")
)

// Tx is the set of writes that must commit together. Implementations hold
// the profile row lock from LockBalance until the transaction ends.
type Tx interface {
	InsertProfile(ctx context.Context, p *domain.UserProfile) (created bool, err error)
	LockBalance(ctx context.Context, userID string) (int64, error)
	AddBalance(ctx context.Context, userID string, delta int64) (int64, error)
	SetBalance(ctx context.Context, userID string, balance int64) error
	SumTransactions(ctx context.Context, userID string) (int64, error)
	InsertTransaction(ctx context.Context, t *domain.StardustTransaction) error
	InsertInteraction(ctx context.Context, i *domain.PlanetInteraction) error
	// ClaimPaymentEvent records e unless its key was already claimed.
	ClaimPaymentEvent(ctx context.Context, e *domain.PaymentEvent) (claimed bool, err error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)
	ListProfiles(ctx context.Context, limit int) ([]domain.UserProfile, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.UserProfile, error)
}

type TransactionRepository interface {
	ListTransactions(ctx context.Context, userID string, q domain.HistoryQuery) ([]domain.StardustTransaction, error)
}

type InteractionRepository interface {
	ListInteractions(ctx context.Context, userID string, planet domain.Planet, limit int) ([]domain.PlanetInteraction, error)
}

type PreferenceRepository interface {
	GetPlanetPreferences(ctx context.Context, userID string, planet domain.Planet) (*domain.PlanetPreferences, error)
	MergePlanetPreferences(ctx context.Context, userID string, planet domain.Planet, update map[string]any) (*domain.PlanetPreferences, error)
}

type WardrobeRepository interface {
	CreateClothingItem(ctx context.Context, item *domain.ClothingItem) error
	ListClothingItems(ctx context.Context, userID string) ([]domain.ClothingItem, error)
	CreateOutfitSuggestion(ctx context.Context, s *domain.OutfitSuggestion) error
	ListOutfitSuggestions(ctx context.Context, userID string, limit int) ([]domain.OutfitSuggestion, error)
	MarkItemsWorn(ctx context.Context, userID string, itemIDs []string, at time.Time) error
}

type PaymentRepository interface {
	GetPaymentEvent(ctx context.Context, key string) (*domain.PaymentEvent, error)
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, log *domain.AuditLog) error
	// ListAuditLogs returns newest first; an empty category means all.
	ListAuditLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error)
}

type ReconcileRepository interface {
	ListBalanceDrift(ctx context.Context) ([]domain.BalanceDrift, error)
	// ListUnbilledInteractions returns priced interactions without a debit.
	ListUnbilledInteractions(ctx context.Context, limit int) ([]domain.PlanetInteraction, error)
	// LedgerStats summarizes balances and activity since the given instant.
	LedgerStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error)
}

// Store is the profile store: every repository plus atomic write units.
type Store interface {
	ProfileRepository
	TransactionRepository
	InteractionRepository
	PreferenceRepository
	WardrobeRepository
	PaymentRepository
	AuditRepository
	ReconcileRepository

	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
