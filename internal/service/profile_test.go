package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"glxy/internal/domain"
	"glxy/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_BootstrapOnce(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	id := domain.Identity{UID: "u1", Email: "nova@example.com", Name: "Nova"}

	var created atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := env.profiles.Bootstrap(ctx, id)
			assert.NoError(t, err)
			if ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), created.Load())

	p, err := env.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.Stardust)
	assert.Equal(t, "Nova", p.Name)
	assert.Equal(t, domain.DefaultPreferences(), p.Preferences)

	history, err := env.ledger.GetHistory(ctx, "u1", domain.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, welcomeGrantDescription, history[0].Description)
	env.requireConsistent(t, "u1")
}

func TestProfile_ReturningUserKeepsBalance(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	_, err := env.ledger.Debit(ctx, "u1", 25, "Outfit suggestion", "wardrobe")
	require.NoError(t, err)

	p, created, err := env.profiles.Bootstrap(ctx, domain.Identity{UID: "u1", Name: "renamed"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(975), p.Stardust)
	assert.Equal(t, "u1", p.Name)
}

func TestProfile_UpdateSettings(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	ctx := context.Background()
	env.signIn(t, "u1")

	name := "Orion"
	theme := domain.ThemeLight
	off := false
	p, err := env.profiles.UpdateSettings(ctx, "u1", domain.ProfileUpdate{Name: &name, Theme: &theme, Notifications: &off})
	require.NoError(t, err)
	assert.Equal(t, "Orion", p.Name)
	assert.Equal(t, domain.ThemeLight, p.Preferences.Theme)
	assert.False(t, p.Preferences.Notifications)
	assert.Equal(t, int64(1000), p.Stardust)

	bad := domain.Theme("neon")
	_, err = env.profiles.UpdateSettings(ctx, "u1", domain.ProfileUpdate{Theme: &bad})
	assert.Error(t, err)

	_, err = env.profiles.UpdateSettings(ctx, "ghost", domain.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestProfile_SubscribeStreamsSnapshots(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	env.signIn(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan int64, 8)
	done := make(chan error, 1)
	go func() {
		done <- env.profiles.Subscribe(ctx, "u1", func(p *domain.UserProfile) {
			updates <- p.Stardust
		}, func(err error) {
			t.Errorf("unexpected stream error: %v", err)
		})
	}()

	assert.Equal(t, int64(1000), waitUpdate(t, updates))

	require.Eventually(t, func() bool { return env.broker.Subscribers("u1") == 1 }, time.Second, 5*time.Millisecond)
	_, err := env.ledger.Debit(context.Background(), "u1", 5, "Chat message", "chat")
	require.NoError(t, err)
	assert.Equal(t, int64(995), waitUpdate(t, updates))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
	assert.Equal(t, 0, env.broker.Subscribers("u1"))
}

// downBroker refuses every subscription
type downBroker struct {
	realtime.Broker
	attempts atomic.Int64
}

func (b *downBroker) Subscribe(ctx context.Context, userID string) (realtime.Subscription, error) {
	b.attempts.Add(1)
	return nil, errors.New("connection refused")
}

func TestProfile_SubscribeGivesUpAfterRetries(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	env.signIn(t, "u1")

	broker := &downBroker{Broker: env.broker}
	profiles := NewProfileService(env.store, broker, fastRetry(), 1000, nil)

	var got error
	err := profiles.Subscribe(context.Background(), "u1", func(*domain.UserProfile) {
		t.Error("no snapshot expected")
	}, func(err error) { got = err })

	require.Error(t, err)
	assert.ErrorIs(t, got, ErrStreamUnavailable)
	assert.Equal(t, int64(3), broker.attempts.Load())
}

// flappingBroker hands out subscriptions that end immediately
type flappingBroker struct {
	realtime.Broker
	attempts atomic.Int64
}

type endedSub struct{ ch chan realtime.Event }

func (s endedSub) Events() <-chan realtime.Event { return s.ch }
func (s endedSub) Close() error                  { return nil }

func (b *flappingBroker) Subscribe(ctx context.Context, userID string) (realtime.Subscription, error) {
	b.attempts.Add(1)
	ch := make(chan realtime.Event)
	close(ch)
	return endedSub{ch: ch}, nil
}

func TestProfile_SubscribeStopsWhenSubscriptionsKeepDropping(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)
	env.signIn(t, "u1")

	broker := &flappingBroker{Broker: env.broker}
	profiles := NewProfileService(env.store, broker, fastRetry(), 1000, nil)

	done := make(chan error, 1)
	var got error
	go func() {
		done <- profiles.Subscribe(context.Background(), "u1", func(*domain.UserProfile) {}, func(err error) { got = err })
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrStreamUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe kept resubscribing")
	}
	assert.ErrorIs(t, got, ErrStreamUnavailable)
	assert.Equal(t, int64(3), broker.attempts.Load())
}

func TestProfile_SubscribeUnknownProfile(t *testing.T) {
	env := newTestEnv(t, RefundOnFailure)

	var got error
	err := env.profiles.Subscribe(context.Background(), "ghost", func(*domain.UserProfile) {}, func(err error) { got = err })
	require.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, got, ErrProfileNotFound)
}

func waitUpdate(t *testing.T, ch <-chan int64) int64 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for profile update")
		return 0
	}
}
