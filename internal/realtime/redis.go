package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const channelPrefix = "glxy:profile:"

// RedisBroker fans events out across instances with Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	log    *slog.Logger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *redis.Client, log *slog.Logger) *RedisBroker {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBroker{client: client, log: log.With("component", "realtime")}
}

func channel(userID string) string {
	return channelPrefix + userID
}

func (b *RedisBroker) PublishProfileChange(ctx context.Context, userID, reason string) error {
	payload, err := json.Marshal(Event{UserID: userID, Reason: reason, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel(userID), payload).Err()
}

// Subscribe waits for Redis to confirm the subscription before returning
func (b *RedisBroker) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", userID, err)
	}

	sub := &redisSub{ps: ps, ch: make(chan Event, eventBuffer)}
	go sub.forward(b.log)
	return sub, nil
}

// Close is a no-op; the client is owned by the caller
func (b *RedisBroker) Close() error { return nil }

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Event
	once sync.Once
}

func (s *redisSub) Events() <-chan Event { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

func (s *redisSub) forward(log *slog.Logger) {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn("dropping malformed profile event", "channel", msg.Channel, "error", err)
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}
