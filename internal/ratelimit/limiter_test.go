package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/relay-bot/pkg/config"
)

func limiters(t *testing.T) map[string]Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Limiter{
		"memory": NewMemoryLimiter(nil),
		"redis":  NewRedisLimiter(client, nil),
	}
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	for name, limiter := range limiters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				result, err := limiter.Check(ctx, "user:42:login", 3, time.Minute)
				require.NoError(t, err)
				assert.True(t, result.Allowed)
			}

			result, err := limiter.Check(ctx, "user:42:login", 3, time.Minute)
			assert.ErrorIs(t, err, ErrLimitExceeded)
			assert.False(t, result.Allowed)
			assert.Equal(t, 0, result.Remaining)
		})
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	for name, limiter := range limiters(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := limiter.Check(ctx, "user:42:send", 1, time.Minute)
			require.NoError(t, err)
			_, err = limiter.Check(ctx, "user:42:send", 1, time.Minute)
			require.ErrorIs(t, err, ErrLimitExceeded)

			result, err := limiter.Check(ctx, "user:99:send", 1, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		})
	}
}

func TestMemoryLimiter_WindowSlides(t *testing.T) {
	limiter := NewMemoryLimiter(nil)
	ctx := context.Background()

	_, err := limiter.Check(ctx, "k", 1, 20*time.Millisecond)
	require.NoError(t, err)

	_, err = limiter.Check(ctx, "k", 1, 20*time.Millisecond)
	require.ErrorIs(t, err, ErrLimitExceeded)

	time.Sleep(30 * time.Millisecond)

	result, err := limiter.Check(ctx, "k", 1, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(nil)
	ctx := context.Background()

	_, err := limiter.Check(ctx, "stale", 5, time.Millisecond)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	limiter.Cleanup(time.Millisecond)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.windows)
}

func TestRules_CommandLimits(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 30, Window: "1m"},
		Commands: config.RateLimitCommands{
			Login: config.RateLimitRule{Limit: 3, Window: "10m"},
			Send:  config.RateLimitRule{Limit: 10, Window: "1m"},
		},
		Whitelist: []int64{7},
	})

	limit, window, err := rules.GetCommandLimit("login")
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
	assert.Equal(t, 10*time.Minute, window)

	limit, window, err = rules.GetCommandLimit("send")
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	assert.Equal(t, time.Minute, window)

	_, _, err = rules.GetCommandLimit("help")
	assert.ErrorIs(t, err, ErrNoRule)

	assert.True(t, rules.IsWhitelisted(7))
	assert.False(t, rules.IsWhitelisted(8))
	assert.True(t, rules.Enabled())
}
