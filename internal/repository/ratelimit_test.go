package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRateLimiter(client, "ratelimit:login:", 2, time.Minute)
	ctx := context.Background()

	for i, want := range []bool{true, true, false, false} {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "attempt %d", i+1)

		ttl := mr.TTL("ratelimit:login:10.0.0.1")
		assert.Positive(t, ttl, "counter must expire with its window")
		assert.LessOrEqual(t, ttl, time.Minute)
	}

	ok, err := limiter.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "clients are counted separately")

	mr.FastForward(time.Minute + time.Second)

	ok, err = limiter.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window starts after expiry")
}

func TestRateLimiter_AllowStoreDown(t *testing.T) {
	mr, client := setupRedis(t)
	limiter := NewRateLimiter(client, "ratelimit:login:", 2, time.Minute)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
}
