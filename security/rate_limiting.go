package security

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter caps payment actions per caller in a fixed one minute window.
type RateLimiter struct {
	redis    *redis.Client
	limit    int64
	window   time.Duration
	identify func(e *core.RequestEvent) string
}

// NewRateLimiter limits callers to perMinute requests. identify picks the
// caller key; nil falls back to the client IP.
func NewRateLimiter(redisClient *redis.Client, perMinute int, identify func(e *core.RequestEvent) string) *RateLimiter {
	if identify == nil {
		identify = func(e *core.RequestEvent) string {
			return "ip:" + e.RealIP()
		}
	}
	return &RateLimiter{
		redis:    redisClient,
		limit:    int64(perMinute),
		window:   time.Minute,
		identify: identify,
	}
}

// Limit is the middleware for payment and ticket action routes.
func (r *RateLimiter) Limit(e *core.RequestEvent) error {
	if r.limit <= 0 {
		return e.Next()
	}

	ctx := e.Request.Context()
	key := fmt.Sprintf("ratelimit:%s", r.identify(e))

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		// fail open, the backend has its own limits
		slog.Warn("rate limit check failed", "key", key, "error", err)
		return e.Next()
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > r.limit {
		return apis.NewTooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
	}

	return e.Next()
}

// AntiBot rejects obvious automated clients on the purchase route.
func AntiBot(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return apis.NewForbiddenError("Access denied", nil)
	}
	return e.Next()
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
