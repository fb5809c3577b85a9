package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to a local Redis on DB 15, skipping when none is
// running. Skip explicitly with: go test -short
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available:", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("healthassist:test:%d:", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(context.Background(), prefix+"203.0.113.9") })

	limiter := NewRedisLimiter(client, prefix, 3, time.Minute)
	defer limiter.Close()

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow(ctx, "203.0.113.9")
		require.True(t, allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := limiter.Allow(ctx, "203.0.113.9")
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.True(t, info.RetryAfter > 0 && info.RetryAfter <= time.Minute)

	ttl, err := client.PTTL(ctx, prefix+"203.0.113.9").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0, "window key must carry an expiry")
}

func TestRedisLimiter_WindowExpires(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("healthassist:test:%d:", time.Now().UnixNano())

	limiter := NewRedisLimiter(client, prefix, 1, 200*time.Millisecond)

	allowed, _ := limiter.Allow(ctx, "client")
	require.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "client")
	require.False(t, allowed)

	assert.Eventually(t, func() bool {
		ok, _ := limiter.Allow(ctx, "client")
		return ok
	}, 2*time.Second, 100*time.Millisecond)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	// Nothing listens on port 1; disable retries so the test stays fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	limiter := NewRedisLimiter(client, "healthassist:test:", 1, time.Minute)
	require.Error(t, limiter.Ping(context.Background()))

	for i := 0; i < 3; i++ {
		allowed, info := limiter.Allow(context.Background(), "client")
		assert.True(t, allowed)
		assert.Equal(t, 1, info.Limit)
	}
}
