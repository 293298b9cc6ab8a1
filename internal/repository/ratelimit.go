package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared across instances through Redis.
type RateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 5
	}
	return &RateLimiter{client: client, prefix: prefix, limit: int64(limit), window: window}
}

func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + key

	// SET NX EX and INCR share one MULTI; the counter always carries a TTL.
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, l.window)
		incr = pipe.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("Allow: %w", err)
	}
	return incr.Val() <= l.limit, nil
}
