// Package dedup admits each post once even when the backend redelivers the
// same update, so one post never produces two comments or two reports.
package dedup

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a claimed key is remembered in Redis.
const DefaultTTL = 24 * time.Hour

// MemoryGuard remembers the most recent keys in-process.
type MemoryGuard struct {
	cache *lru.Cache[string, struct{}]
}

// NewMemoryGuard keeps up to size keys.
func NewMemoryGuard(size int) (*MemoryGuard, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &MemoryGuard{cache: cache}, nil
}

// Claim reports whether key is seen for the first time.
func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	ok, _ := g.cache.ContainsOrAdd(key, struct{}{})
	return !ok, nil
}

// RedisGuard shares claims across restarts and replicas.
type RedisGuard struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisGuard stores claims under prefix with the given ttl (DefaultTTL when zero).
func NewRedisGuard(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}
