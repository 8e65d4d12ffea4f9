package payment

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	cmap "github.com/orcaman/concurrent-map/v2"
)

const dedupKeyPrefix = "payment:callback:"

// Deduper drops callbacks a provider delivers more than once. It is a fast
// path only; the ledger's unique top-up reference is authoritative.
type Deduper interface {
	// Claim returns true for the first caller with key.
	Claim(ctx context.Context, key string) (bool, error)
	// Forget lets a failed callback be retried.
	Forget(ctx context.Context, key string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, dedupKeyPrefix+key, time.Now().Unix(), d.ttl).Result()
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, dedupKeyPrefix+key).Err()
}

// MemoryDeduper is the single-process fallback when Redis is not configured.
type MemoryDeduper struct {
	seen cmap.ConcurrentMap[string, time.Time]
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: cmap.New[time.Time]()}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	return d.seen.SetIfAbsent(key, time.Now()), nil
}

func (d *MemoryDeduper) Forget(_ context.Context, key string) error {
	d.seen.Remove(key)
	return nil
}
