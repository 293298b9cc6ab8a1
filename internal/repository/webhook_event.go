package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

const webhookEventColumns = `id, provider_event_id, event_type, payload, status,
	attempts, last_attempt, created_at`

type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Record stores a verified provider event. A redelivery of the same provider
// event bumps the attempt counter and returns the existing row.
func (r *WebhookEventRepository) Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO webhook_events (
			id, provider_event_id, event_type, payload, status, attempts, last_attempt, created_at
		) VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		ON CONFLICT (provider_event_id) DO UPDATE
		SET attempts = webhook_events.attempts + 1, last_attempt = EXCLUDED.last_attempt
		RETURNING `+webhookEventColumns,
		event.ID, event.ProviderEventID, event.EventType, []byte(event.Payload),
		event.Status, event.CreatedAt,
	)
	stored, err := scanWebhookEvent(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Class() == "22" {
			return nil, fmt.Errorf("Record: %w: %w", domain.ErrMalformedEvent, err)
		}
		return nil, storeError("Record", err)
	}
	return stored, nil
}

// UpdateStatus records the outcome of the latest attempt. Credited is terminal:
// later deliveries of a credited event only show up in attempts.
func (r *WebhookEventRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events
		SET status = CASE WHEN status = $3 THEN status ELSE $1 END, last_attempt = now()
		WHERE id = $2`,
		status, id, domain.WebhookEventStatusCredited,
	)
	if err != nil {
		return storeError("UpdateStatus", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storeError("UpdateStatus: rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *WebhookEventRepository) GetByProviderEventID(ctx context.Context, providerEventID string) (*domain.WebhookEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+webhookEventColumns+` FROM webhook_events WHERE provider_event_id = $1`,
		providerEventID,
	)
	e, err := scanWebhookEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetByProviderEventID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeError("GetByProviderEventID", err)
	}
	return e, nil
}

// ClaimRetryable marks up to limit failed or stalled events as received again
// and returns them. An event is stalled when it has sat in received for longer
// than olderThan. Events at maxAttempts are left for manual reconciliation.
func (r *WebhookEventRepository) ClaimRetryable(ctx context.Context, limit, maxAttempts int, olderThan time.Duration) ([]domain.WebhookEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE webhook_events SET status = $1, attempts = attempts + 1, last_attempt = now()
		WHERE id IN (
			SELECT id FROM webhook_events
			WHERE status IN ($2, $1)
			  AND attempts < $3
			  AND COALESCE(last_attempt, created_at) < now() - make_interval(secs => $4)
			ORDER BY created_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+webhookEventColumns,
		domain.WebhookEventStatusReceived, domain.WebhookEventStatusFailed,
		maxAttempts, olderThan.Seconds(), limit,
	)
	if err != nil {
		return nil, storeError("ClaimRetryable", err)
	}
	defer rows.Close()

	var events []domain.WebhookEvent
	for rows.Next() {
		e, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, storeError("ClaimRetryable: scan", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("ClaimRetryable: rows", err)
	}
	return events, nil
}

func scanWebhookEvent(s scanner) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	var payload []byte
	err := s.Scan(
		&e.ID, &e.ProviderEventID, &e.EventType, &payload,
		&e.Status, &e.Attempts, &e.LastAttempt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Payload = payload
	return &e, nil
}
