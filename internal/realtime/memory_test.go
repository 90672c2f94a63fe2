package realtime

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBrokerDeliversToSubscribers(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	other, err := b.Subscribe(ctx, "u2")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := b.PublishProfileChange(ctx, "u1", "debit"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.UserID != "u1" || ev.Reason != "debit" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no event delivered")
	}

	select {
	case ev := <-other.Events():
		t.Fatalf("u2 should not see u1 events, got %+v", ev)
	default:
	}
}

func TestMemoryBrokerCloseEndsSubscriptions(t *testing.T) {
	b := NewMemoryBroker()
	sub, err := b.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if b.Subscribers("u1") != 1 {
		t.Fatalf("expected one subscriber")
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatalf("expected closed channel")
	}
	if b.Subscribers("u1") != 0 {
		t.Fatalf("subscriber not removed")
	}

	_ = b.Close()
	if _, err := b.Subscribe(context.Background(), "u1"); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryBrokerDoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	sub, _ := b.Subscribe(context.Background(), "u1")
	defer sub.Close()

	for i := 0; i < eventBuffer*3; i++ {
		if err := b.PublishProfileChange(context.Background(), "u1", "credit"); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if got := len(sub.Events()); got != eventBuffer {
		t.Fatalf("expected buffer of %d, got %d", eventBuffer, got)
	}
}
