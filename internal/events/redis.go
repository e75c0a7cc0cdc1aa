package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"healthbff/internal/platform/metrics"
)

// RedisBus publishes over Redis Pub/Sub.
type RedisBus struct {
	client     redis.UniversalClient
	instanceID string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewRedisBus(client redis.UniversalClient, instanceID string, logger *slog.Logger, m *metrics.Metrics) *RedisBus {
	return &RedisBus{client: client, instanceID: instanceID, logger: logger, metrics: m}
}

func (b *RedisBus) InstanceID() string { return b.instanceID }

func (b *RedisBus) Publish(ctx context.Context, channel string, e Event) error {
	payload, err := encode(stamp(e, b.instanceID, time.Now()))
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		b.metrics.IncPubSubEvent(string(e.Type), "publish_failed")
		return err
	}
	b.metrics.IncPubSubEvent(string(e.Type), "published")
	return nil
}

// Subscribe starts a receive loop on channel. The loop exits when ctx is done
// or the subscription is closed.
func (b *RedisBus) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.deliver(ctx, []byte(msg.Payload), h)
			}
		}
	}()
	return sub, nil
}

func (b *RedisBus) deliver(ctx context.Context, payload []byte, h Handler) {
	e, err := Decode(payload)
	if err != nil {
		b.metrics.IncPubSubEvent("unknown", "dropped")
		b.logger.WarnContext(ctx, "dropping malformed pubsub event", "error", err)
		return
	}
	if e.OriginInstanceID == b.instanceID {
		b.metrics.IncPubSubEvent(string(e.Type), "self_suppressed")
		return
	}
	b.metrics.IncPubSubEvent(string(e.Type), "received")
	h(ctx, e)
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}
