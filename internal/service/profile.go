package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"glxy/internal/domain"
	"glxy/internal/logger"
	"glxy/internal/realtime"
	"glxy/internal/repository"
	"glxy/internal/retry"

	"github.com/google/uuid"
)

// ErrStreamUnavailable is handed to subscribers once retries are exhausted
var ErrStreamUnavailable = errors.New("database connection error")

const welcomeGrantDescription = "Welcome grant"

// ProfileService bootstraps profiles on first sign-in and keeps live
// subscribers up to date.
type ProfileService struct {
	store          repository.Store
	broker         realtime.Broker
	retry          retry.Policy
	initialBalance int64
	log            *slog.Logger
}

func NewProfileService(store repository.Store, broker realtime.Broker, policy retry.Policy, initialBalance int64, log *slog.Logger) *ProfileService {
	if log == nil {
		log = logger.Get()
	}
	return &ProfileService{
		store:          store,
		broker:         broker,
		retry:          policy,
		initialBalance: initialBalance,
		log:            log.With("component", "profiles"),
	}
}

// Bootstrap creates the profile on the first authenticated session, granting
// the starting balance as a credit transaction in the same unit. Later calls
// only bump lastLoginAt. Concurrent first sign-ins create one profile.
func (s *ProfileService) Bootstrap(ctx context.Context, id domain.Identity) (*domain.UserProfile, bool, error) {
	if id.UID == "" {
		return nil, false, errors.New("identity without uid")
	}

	var created bool
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx repository.Tx) error {
			p := &domain.UserProfile{
				ID:          id.UID,
				Name:        id.Name,
				Email:       id.Email,
				Stardust:    s.initialBalance,
				Preferences: domain.DefaultPreferences(),
			}
			ok, err := tx.InsertProfile(ctx, p)
			if err != nil {
				return fmt.Errorf("insert profile: %w", err)
			}
			created = ok
			if !ok || s.initialBalance <= 0 {
				return nil
			}
			return tx.InsertTransaction(ctx, &domain.StardustTransaction{
				ID:          uuid.NewString(),
				UserID:      id.UID,
				Amount:      s.initialBalance,
				Type:        domain.TransactionCredit,
				Description: welcomeGrantDescription,
				PlanetName:  domain.SystemPlanet,
			})
		})
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info("profile created", "user_id", id.UID, "stardust", s.initialBalance)
	} else if err := s.store.TouchLastLogin(ctx, id.UID, time.Now().UTC()); err != nil {
		return nil, false, err
	}

	p, err := s.store.GetProfile(ctx, id.UID)
	if err != nil {
		return nil, false, err
	}
	s.publish(ctx, id.UID, "login")
	return p, created, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

// UpdateSettings changes name and preferences; the balance is not reachable from here
func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, upd domain.ProfileUpdate) (*domain.UserProfile, error) {
	if upd.Theme != nil && !upd.Theme.Valid() {
		return nil, fmt.Errorf("unknown theme %q", *upd.Theme)
	}
	p, err := s.store.UpdateProfile(ctx, userID, upd)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, userID, "settings")
	return p, nil
}

// List returns profiles ordered by name
func (s *ProfileService) List(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	return s.store.ListProfiles(ctx, limit)
}

// Subscribe pushes the current profile to onChange and then a fresh snapshot
// after every change, until ctx ends. Broker or store failures are retried
// per policy; when retries run out onError receives ErrStreamUnavailable and
// Subscribe returns.
func (s *ProfileService) Subscribe(ctx context.Context, userID string, onChange func(*domain.UserProfile), onError func(error)) error {
	snapshot := func() error {
		var p *domain.UserProfile
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			p, err = s.store.GetProfile(ctx, userID)
			if errors.Is(err, repository.ErrNotFound) {
				return retry.Permanent(ErrProfileNotFound)
			}
			return err
		})
		if err != nil {
			return err
		}
		onChange(p)
		return nil
	}

	maxDrops := max(s.retry.MaxAttempts, 1)
	drops := 0
	for {
		var sub realtime.Subscription
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			sub, err = s.broker.Subscribe(ctx, userID)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("profile subscription failed", "user_id", userID, "error", err)
			onError(ErrStreamUnavailable)
			return err
		}

		if err := snapshot(); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("profile snapshot failed", "user_id", userID, "error", err)
			if errors.Is(err, ErrProfileNotFound) {
				onError(err)
			} else {
				onError(ErrStreamUnavailable)
			}
			return err
		}

		dropped, forwarded := s.pump(ctx, sub, snapshot)
		_ = sub.Close()
		if !dropped {
			return nil
		}

		// a subscription that carried events resets the budget; one that
		// drops straight away counts against it
		if forwarded > 0 {
			drops = 0
		}
		drops++
		if drops >= maxDrops {
			s.log.Error("profile subscription keeps dropping, giving up", "user_id", userID, "drops", drops)
			onError(ErrStreamUnavailable)
			return ErrStreamUnavailable
		}
		s.log.Warn("profile subscription dropped, resubscribing", "user_id", userID, "drops", drops)
		if err := s.wait(ctx, s.retry.Delay(drops-1)); err != nil {
			return nil
		}
	}
}

func (s *ProfileService) wait(ctx context.Context, d time.Duration) error {
	if s.retry.Sleep != nil {
		return s.retry.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pump forwards events until ctx ends or the subscription drops, and reports
// which of the two happened and how many events it forwarded
func (s *ProfileService) pump(ctx context.Context, sub realtime.Subscription, snapshot func() error) (dropped bool, forwarded int) {
	for {
		select {
		case <-ctx.Done():
			return false, forwarded
		case _, ok := <-sub.Events():
			if !ok {
				return true, forwarded
			}
			if err := snapshot(); err != nil {
				if ctx.Err() != nil {
					return false, forwarded
				}
				s.log.Warn("profile refresh failed", "error", err)
				return true, forwarded
			}
			forwarded++
		}
	}
}

func (s *ProfileService) publish(ctx context.Context, userID, reason string) {
	if s.broker == nil {
		return
	}
	if err := s.broker.PublishProfileChange(ctx, userID, reason); err != nil {
		s.log.Warn("failed to publish profile change", "user_id", userID, "error", err)
	}
}
