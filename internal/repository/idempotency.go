package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idempotency:v1:"

type IdempotencyCacheEntry struct {
	Key          string    `json:"key"`
	AccountID    string    `json:"account_id"`
	RequestHash  string    `json:"request_hash"`
	InProgress   bool      `json:"in_progress"`
	StatusCode   int       `json:"status_code"`
	ResponseBody []byte    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
}

type IdempotencyRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyRepository(client *redis.Client, ttl time.Duration) *IdempotencyRepository {
	return &IdempotencyRepository{client: client, ttl: ttl}
}

func cacheKey(key, accountID string) string {
	return idempotencyPrefix + accountID + ":" + key
}

func (r *IdempotencyRepository) Get(ctx context.Context, key, accountID string) (*IdempotencyCacheEntry, error) {
	raw, err := r.client.Get(ctx, cacheKey(key, accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var e IdempotencyCacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &e, nil
}

// Reserve marks the key as in progress. It returns false if the key is
// already reserved or completed.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key, accountID, requestHash string) (bool, error) {
	entry := IdempotencyCacheEntry{
		Key:         key,
		AccountID:   accountID,
		RequestHash: requestHash,
		InProgress:  true,
		CreatedAt:   time.Now().UTC(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("Reserve: encode: %w", err)
	}

	ok, err := r.client.SetNX(ctx, cacheKey(key, accountID), raw, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("Reserve: %w", err)
	}
	return ok, nil
}

func (r *IdempotencyRepository) Set(ctx context.Context, entry *IdempotencyCacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(entry.Key, entry.AccountID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) Release(ctx context.Context, key, accountID string) error {
	if err := r.client.Del(ctx, cacheKey(key, accountID)).Err(); err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}
