// Package memory is an in-process profile store for dev mode and tests.
// It gives the same atomicity as the postgres store by running every
// WithTx under one write lock and undoing partial writes on error.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"glxy/internal/domain"
	"glxy/internal/repository"
)

type prefKey struct {
	userID string
	planet domain.Planet
}

// Store implements repository.Store in memory.
type Store struct {
	mu sync.RWMutex

	seq          int64
	auditSeq     int64
	profiles     map[string]*domain.UserProfile
	transactions map[string][]domain.StardustTransaction
	interactions map[string][]domain.PlanetInteraction
	preferences  map[prefKey]*domain.PlanetPreferences
	payments     map[string]domain.PaymentEvent
	items        map[string][]domain.ClothingItem
	suggestions  map[string][]domain.OutfitSuggestion
	audit        []domain.AuditLog

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		profiles:     make(map[string]*domain.UserProfile),
		transactions: make(map[string][]domain.StardustTransaction),
		interactions: make(map[string][]domain.PlanetInteraction),
		preferences:  make(map[prefKey]*domain.PlanetPreferences),
		payments:     make(map[string]domain.PaymentEvent),
		items:        make(map[string][]domain.ClothingItem),
		suggestions:  make(map[string][]domain.OutfitSuggestion),
		now:          time.Now,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// WithTx runs fn with the store locked. fn must only use tx; calling other
// Store methods from inside fn deadlocks.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// --- profiles ---

func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListProfiles(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]domain.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		res = append(res, *p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastLoginAt = at
	return nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	upd.Apply(p)
	cp := *p
	return &cp, nil
}

// --- ledger reads ---

func (s *Store) ListTransactions(ctx context.Context, userID string, q domain.HistoryQuery) ([]domain.StardustTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.transactions[userID]
	res := make([]domain.StardustTransaction, 0, len(log))
	for i := len(log) - 1; i >= 0; i-- {
		if q.Before > 0 && log[i].Seq >= q.Before {
			continue
		}
		res = append(res, log[i])
		if q.Limit > 0 && len(res) == q.Limit {
			break
		}
	}
	return res, nil
}

func (s *Store) ListInteractions(ctx context.Context, userID string, planet domain.Planet, limit int) ([]domain.PlanetInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.interactions[userID]
	var res []domain.PlanetInteraction
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].PlanetName != planet {
			continue
		}
		res = append(res, copyInteraction(all[i]))
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func (s *Store) ListUnbilledInteractions(ctx context.Context, limit int) ([]domain.PlanetInteraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []domain.PlanetInteraction
	for _, all := range s.interactions {
		for _, in := range all {
			if in.StardustCost > 0 && in.TransactionID == "" {
				res = append(res, copyInteraction(in))
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Seq > res[j].Seq })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Store) ListBalanceDrift(ctx context.Context) ([]domain.BalanceDrift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var drifts []domain.BalanceDrift
	for id, p := range s.profiles {
		sum := s.sumLocked(id)
		if sum != p.Stardust {
			drifts = append(drifts, domain.BalanceDrift{UserID: id, Stored: p.Stardust, LedgerSum: sum})
		}
	}
	sort.Slice(drifts, func(i, j int) bool { return drifts[i].UserID < drifts[j].UserID })
	return drifts, nil
}

func (s *Store) LedgerStats(ctx context.Context, since time.Time) (*domain.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &domain.LedgerStats{TotalUsers: int64(len(s.profiles))}
	for _, p := range s.profiles {
		st.StardustInCirc += p.Stardust
		if !p.LastLoginAt.Before(since) {
			st.ActiveUsersToday++
		}
	}
	for _, log := range s.transactions {
		for _, t := range log {
			if t.CreatedAt.Before(since) {
				continue
			}
			if t.Amount > 0 {
				st.CreditedToday += t.Amount
			} else {
				st.DebitedToday -= t.Amount
			}
		}
	}
	for _, all := range s.interactions {
		for _, in := range all {
			if !in.CreatedAt.Before(since) {
				st.InteractionsToday++
			}
		}
	}
	for _, e := range s.payments {
		if !e.CreatedAt.Before(since) {
			st.PaymentsToday++
		}
	}
	return st, nil
}

func (s *Store) sumLocked(userID string) int64 {
	var sum int64
	for _, t := range s.transactions[userID] {
		sum += t.Amount
	}
	return sum
}

// --- preferences ---

func (s *Store) GetPlanetPreferences(ctx context.Context, userID string, planet domain.Planet) (*domain.PlanetPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.preferences[prefKey{userID, planet}]
	if !ok {
		return &domain.PlanetPreferences{UserID: userID, PlanetName: planet, Preferences: map[string]any{}}, nil
	}
	cp := *p
	cp.Preferences = copyMap(p.Preferences)
	return &cp, nil
}

func (s *Store) MergePlanetPreferences(ctx context.Context, userID string, planet domain.Planet, update map[string]any) (*domain.PlanetPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return nil, repository.ErrNotFound
	}

	key := prefKey{userID, planet}
	cur, ok := s.preferences[key]
	if !ok {
		cur = &domain.PlanetPreferences{UserID: userID, PlanetName: planet}
		s.preferences[key] = cur
	}
	cur.Preferences = domain.MergePreferences(cur.Preferences, update)
	cur.UpdatedAt = s.now()

	cp := *cur
	cp.Preferences = copyMap(cur.Preferences)
	return &cp, nil
}

// --- payments ---

func (s *Store) GetPaymentEvent(ctx context.Context, key string) (*domain.PaymentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.payments[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

// --- audit ---

func (s *Store) CreateAuditLog(ctx context.Context, log *domain.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditSeq++
	log.ID = s.auditSeq
	log.CreatedAt = s.now()
	entry := *log
	entry.Details = copyMap(log.Details)
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []domain.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		if category != "" && s.audit[i].Category != category {
			continue
		}
		res = append(res, s.audit[i])
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}

func copyInteraction(in domain.PlanetInteraction) domain.PlanetInteraction {
	if in.Metadata != nil {
		in.Metadata = copyMap(in.Metadata)
	}
	return in
}
