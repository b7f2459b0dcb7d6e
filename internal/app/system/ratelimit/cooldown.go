// internal/app/system/ratelimit/cooldown.go
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown allows one action per key per period.
type Cooldown interface {
	// Acquire returns true when the key was idle and is now cooling down.
	Acquire(ctx context.Context, key string) (bool, error)
}

// MemoryCooldown is a single-process Cooldown backed by a Limiter.
type MemoryCooldown struct {
	l *Limiter
}

// NewMemoryCooldown allows one action per key per period.
func NewMemoryCooldown(period time.Duration) *MemoryCooldown {
	return &MemoryCooldown{l: New(1, period)}
}

func (c *MemoryCooldown) Acquire(_ context.Context, key string) (bool, error) {
	return c.l.Allow(key), nil
}

// Stop releases the limiter's sweep goroutine.
func (c *MemoryCooldown) Stop() { c.l.Stop() }

// RedisCooldown shares the cooldown across replicas using SET NX PX.
type RedisCooldown struct {
	rdb    *redis.Client
	prefix string
	period time.Duration
}

// NewRedisCooldown builds a Cooldown on rdb. Keys are stored as prefix+key.
func NewRedisCooldown(rdb *redis.Client, prefix string, period time.Duration) *RedisCooldown {
	return &RedisCooldown{rdb: rdb, prefix: prefix, period: period}
}

func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.rdb.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), c.period).Result()
}
