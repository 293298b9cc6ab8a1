package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusCredited  WebhookEventStatus = "credited"
	WebhookEventStatusDuplicate WebhookEventStatus = "duplicate"
	WebhookEventStatusIgnored   WebhookEventStatus = "ignored"
	WebhookEventStatusMalformed WebhookEventStatus = "malformed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

type WebhookEvent struct {
	ID              uuid.UUID
	ProviderEventID string
	EventType       string
	Payload         json.RawMessage
	Status          WebhookEventStatus
	Attempts        int
	LastAttempt     *time.Time
	CreatedAt       time.Time
}
