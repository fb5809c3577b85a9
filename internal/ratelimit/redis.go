package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts requests in fixed windows stored in Redis, so every
// replica behind a load balancer shares one budget per client. When Redis
// is unreachable requests are allowed through.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	logger *slog.Logger
}

// NewRedisLimiter creates a limiter storing counters under prefix+key. The
// client is owned by the caller.
func NewRedisLimiter(client *redis.Client, prefix string, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  maxRequests,
		window: window,
		logger: slog.Default().With("component", "ratelimit.redis"),
	}
}

// Allow increments the key's counter for the current window.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, Info) {
	redisKey := r.prefix + key
	now := time.Now()

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("rate limit store unavailable, allowing request", "key", redisKey, "error", err)
		return true, Info{Limit: r.limit, Remaining: r.limit, ResetAt: now.Add(r.window)}
	}

	count := int(incr.Val())
	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		// First hit of a new window, or a key that lost its expiry.
		if err := r.client.PExpire(ctx, redisKey, r.window).Err(); err != nil {
			r.logger.Warn("failed to set rate limit window expiry", "key", redisKey, "error", err)
		}
		remainingTTL = r.window
	}

	info := Info{
		Limit:     r.limit,
		Remaining: max(0, r.limit-count),
		ResetAt:   now.Add(remainingTTL),
	}
	if count > r.limit {
		info.RetryAfter = remainingTTL
		return false, info
	}
	return true, info
}

// Ping checks if the Redis connection is alive.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op; the shared client is closed by its owner.
func (r *RedisLimiter) Close() {}
