package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const cooldownKeyPrefix = "cyclegate:cooldown:"

// RedisCooldowns is a CooldownStore backed by Redis so cooldowns survive
// process restarts. Expiry is delegated to Redis key TTLs, which makes
// pruning a no-op.
type RedisCooldowns struct {
	client *redis.Client
	clock  func() time.Time
}

// NewRedisCooldowns wraps an existing Redis client.
func NewRedisCooldowns(client *redis.Client) *RedisCooldowns {
	return &RedisCooldowns{client: client, clock: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (r *RedisCooldowns) WithClock(clock func() time.Time) *RedisCooldowns {
	r.clock = clock
	return r
}

// Active reports whether symbol has an unexpired cooldown.
func (r *RedisCooldowns) Active(ctx context.Context, symbol string, _ time.Time) (bool, error) {
	n, err := r.client.Exists(ctx, cooldownKeyPrefix+symbol).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown lookup for %s: %w", symbol, err)
	}
	return n > 0, nil
}

// Place records a cooldown for symbol until the given time. An expiry in
// the past is ignored rather than stored.
func (r *RedisCooldowns) Place(ctx context.Context, symbol string, until time.Time) error {
	ttl := until.Sub(r.clock())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, cooldownKeyPrefix+symbol, until.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("cooldown place for %s: %w", symbol, err)
	}
	return nil
}

// Prune is a no-op: Redis expires cooldown keys itself.
func (r *RedisCooldowns) Prune(context.Context, time.Time) error { return nil }
