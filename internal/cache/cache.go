// Package cache is the two-tier snapshot cache for identity, eligibility, and
// permission lookups. L1 is a per-instance expirable LRU; L2 is Redis shared
// by all instances. Every failure is swallowed: a miss sends the caller to
// the backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"healthbff/internal/events"
	"healthbff/internal/platform/metrics"
	"healthbff/pkg/platform/circuit"
	"healthbff/pkg/platform/sentinel"
)

const (
	defaultPrefix    = "bff:cache:"
	defaultLocalSize = 10_000
	defaultLocalTTL  = 30 * time.Second
	defaultOpTimeout = 200 * time.Millisecond
	scanBatch        = 500
)

type Cache struct {
	local     *expirable.LRU[string, []byte]
	localSize int
	localTTL  time.Duration

	redis     redis.UniversalClient
	breaker   *circuit.Breaker
	opTimeout time.Duration
	prefix    string

	bus     events.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Cache)

// WithRedis enables the shared tier.
func WithRedis(client redis.UniversalClient) Option {
	return func(c *Cache) { c.redis = client }
}

// WithBus publishes evictions to, and accepts them from, other instances.
func WithBus(bus events.Bus) Option {
	return func(c *Cache) { c.bus = bus }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Cache) { c.breaker = b }
}

// WithLocal sizes the in-process tier. Its TTL caps every entry's local
// lifetime regardless of the TTL given to Set.
func WithLocal(size int, ttl time.Duration) Option {
	return func(c *Cache) {
		c.localSize = size
		c.localTTL = ttl
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

func WithOperationTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		localSize: defaultLocalSize,
		localTTL:  defaultLocalTTL,
		opTimeout: defaultOpTimeout,
		prefix:    defaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("cache", circuit.WithCooldown(5*time.Second))
	}
	c.local = expirable.NewLRU[string, []byte](c.localSize, nil, c.localTTL)
	return c
}

// Get decodes a cached value into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if raw, ok := c.local.Get(key); ok {
		if err := json.Unmarshal(raw, dest); err == nil {
			c.metrics.IncCacheRequest("l1", "hit")
			return true
		}
		c.local.Remove(key)
	}
	c.metrics.IncCacheRequest("l1", "miss")

	var raw []byte
	err := c.shared(ctx, func(ctx context.Context) error {
		var err error
		raw, err = c.redis.Get(ctx, c.prefix+key).Bytes()
		return err
	})
	switch {
	case errors.Is(err, redis.Nil):
		c.metrics.IncCacheRequest("l2", "miss")
		return false
	case err != nil:
		if !errors.Is(err, errDisabled) {
			c.metrics.IncCacheRequest("l2", "error")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		c.metrics.IncCacheRequest("l2", "error")
		return false
	}
	c.metrics.IncCacheRequest("l2", "hit")
	c.local.Add(key, raw)
	return true
}

// Set stores v in both tiers.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "cache value not encodable", "key", key, "error", err)
		return
	}
	c.local.Add(key, raw)
	err = c.shared(ctx, func(ctx context.Context) error {
		return c.redis.Set(ctx, c.prefix+key, raw, ttl).Err()
	})
	if err != nil && !errors.Is(err, errDisabled) {
		c.logger.DebugContext(ctx, "shared cache write skipped", "key", key, "error", err)
	}
}

// Evict removes key everywhere and tells other instances to drop it.
func (c *Cache) Evict(ctx context.Context, key string) {
	c.local.Remove(key)
	err := c.shared(ctx, func(ctx context.Context) error {
		return c.redis.Del(ctx, c.prefix+key).Err()
	})
	if err != nil && !errors.Is(err, errDisabled) {
		c.logger.WarnContext(ctx, "shared cache evict failed", "key", key, "error", err)
	}
	c.publish(ctx, events.Event{Type: events.TypeEvict, TargetKey: key})
}

// EvictAll clears both tiers and returns the number of shared keys removed.
func (c *Cache) EvictAll(ctx context.Context) int {
	c.local.Purge()
	removed := 0
	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
		batch := make([]string, 0, scanBatch)
		flush := func() {
			if len(batch) == 0 {
				return
			}
			n, err := c.redis.Del(ctx, batch...).Result()
			if err != nil {
				c.logger.WarnContext(ctx, "shared cache purge failed", "error", err)
			}
			removed += int(n)
			batch = batch[:0]
		}
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) == scanBatch {
				flush()
			}
		}
		flush()
		if err := iter.Err(); err != nil {
			c.logger.WarnContext(ctx, "shared cache scan failed", "error", err)
		}
	}
	c.publish(ctx, events.Event{Type: events.TypeEvictAll})
	return removed
}

// Start subscribes to evictions from other instances.
func (c *Cache) Start(ctx context.Context) (events.Subscription, error) {
	if c.bus == nil {
		return nil, errDisabled
	}
	return c.bus.Subscribe(ctx, events.ChannelCache, c.HandleEvent)
}

// HandleEvent applies a remote eviction to the local tier.
func (c *Cache) HandleEvent(_ context.Context, e events.Event) {
	switch e.Type {
	case events.TypeEvict:
		c.local.Remove(e.TargetKey)
	case events.TypeEvictAll:
		c.local.Purge()
	}
}

// LocalLen is the number of entries in the local tier.
func (c *Cache) LocalLen() int { return c.local.Len() }

var errDisabled = errors.New("shared cache disabled")

// shared runs fn against Redis behind the breaker with a short deadline.
func (c *Cache) shared(ctx context.Context, fn func(context.Context) error) error {
	if c.redis == nil {
		return errDisabled
	}
	if !c.breaker.ShouldAttempt() {
		return sentinel.ErrUnavailable
	}
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	err := fn(opCtx)
	if err == nil || errors.Is(err, redis.Nil) {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "shared cache recovered", "breaker", c.breaker.Name())
		}
		return err
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "shared cache unavailable, serving from backends",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
	return err
}

func (c *Cache) publish(ctx context.Context, e events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, events.ChannelCache, e); err != nil {
		c.logger.WarnContext(ctx, "failed to publish cache event", "error", err, "event_type", string(e.Type))
	}
}
