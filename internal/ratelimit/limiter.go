// Package ratelimit throttles HTTP clients per IP. Limiters are grouped in
// tiers (general, analysis, hospital) that stack on route groups, and each
// tier is backed either by an in-process token bucket or by a fixed window
// counter in Redis shared between replicas.
package ratelimit

import (
	"context"
	"time"

	"healthassist/internal/models"

	"github.com/redis/go-redis/v9"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed.
	// Returns whether the request is allowed and rate information for
	// populating response headers.
	Allow(ctx context.Context, key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Approximate requests remaining
	ResetAt    time.Time     // When the window or bucket is full again
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Tier names, used as Redis key segments and log fields.
const (
	TierGeneral  = "general"
	TierAnalysis = "analysis"
	TierHospital = "hospital"
)

// New builds the limiter for one tier. The redis client is only consulted
// when cfg.Store is "redis"; it may be nil otherwise.
func New(cfg models.RateLimitConfig, name string, tier models.RateTier, client *redis.Client) Limiter {
	if cfg.Store == models.RateLimitStoreRedis && client != nil {
		return NewRedisLimiter(client, cfg.Redis.KeyPrefix+name+":", tier.MaxRequests, tier.Window)
	}
	return NewMemoryLimiter(tier.MaxRequests, tier.Window, cfg.CleanupInterval)
}

// NewRedisClient opens a client for the shared rate limit store.
func NewRedisClient(cfg models.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
