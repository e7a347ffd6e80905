package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps JSON encoded values under prefix+key with a TTL.
type RedisCache[T any] struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache[T any](redisClient *redis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var value T

	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("cache get %s: %w", c.prefix+key, err)
	}

	if err := json.Unmarshal(data, &value); err != nil {
		// a value we cannot read is as good as a miss
		c.redis.Del(ctx, c.prefix+key)
		return value, false, nil
	}
	return value, true, nil
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", c.prefix+key, err)
	}
	if err := c.redis.Set(ctx, c.prefix+key, string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", c.prefix+key, err)
	}
	return nil
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", c.prefix+key, err)
	}
	return nil
}

type memoryEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryCache is the in-process variant used by the CLI and CACHE_BACKEND=memory.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry[T]
	now     func() time.Time
}

func NewMemoryCache[T any](ttl time.Duration) *MemoryCache[T] {
	return &MemoryCache[T]{
		ttl:     ttl,
		entries: make(map[string]memoryEntry[T]),
		now:     time.Now,
	}
}

func (c *MemoryCache[T]) Get(_ context.Context, key string) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false, nil
	}
	if c.ttl > 0 && c.now().After(entry.expires) {
		delete(c.entries, key)
		var zero T
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache[T]) Set(_ context.Context, key string, value T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry[T]{value: value, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}
