package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ticket-reconcile/internal/status"
	"ticket-reconcile/utils"

	"github.com/redis/go-redis/v9"
)

// RedisLocker serializes operations per key across replicas with SETNX.
type RedisLocker struct {
	redis    *redis.Client
	prefix   string
	ttl      time.Duration
	newToken func() string
}

func NewRedisLocker(redisClient *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		redis:    redisClient,
		prefix:   "lock:ops:",
		ttl:      ttl,
		newToken: utils.NewRequestID,
	}
}

// Acquire takes the lock for key or fails with status.ErrOperationInProgress.
// The returned release is safe to call more than once.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	token := l.newToken()

	ok, err := l.redis.SetNX(ctx, lockKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
	}
	if !ok {
		return nil, status.ErrOperationInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may be gone by now
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			current, err := l.redis.Get(ctx, lockKey).Result()
			if err != nil || current != token {
				// expired and possibly taken by someone else
				return
			}
			if err := l.redis.Del(ctx, lockKey).Err(); err != nil {
				slog.Warn("release lock failed", "key", lockKey, "error", err)
			}
		})
	}, nil
}

// MemoryLocker is the in-process variant of RedisLocker.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, status.ErrOperationInProgress
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
