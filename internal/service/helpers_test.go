package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

var testTokens = auth.TokenConfig{
	Secret:   "test-jwt-secret",
	Issuer:   "stripe-wallet",
	Audience: "stripe-wallet-clients",
	TTL:      time.Hour,
}

func issueToken(t *testing.T, accountID string) string {
	t.Helper()
	token, _, err := auth.GenerateToken(accountID, testTokens)
	require.NoError(t, err)
	return token
}

func sessionObject(accountID, token string, amountTotal int64) map[string]any {
	return map[string]any{
		"id":                  "cs_test_" + accountID,
		"object":              "checkout.session",
		"amount_total":        amountTotal,
		"currency":            "usd",
		"client_reference_id": accountID,
		"payment_status":      "paid",
		"metadata": map[string]string{
			MetadataAccountID: accountID,
			MetadataToken:     token,
			MetadataAmount:    domain.FromMinorUnits(amountTotal).StringFixed(2),
		},
	}
}

func eventPayload(t *testing.T, eventID, eventType string, object any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":      eventID,
		"object":  "event",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return b
}

func sign(payload []byte) string {
	return SignPayload(payload, testWebhookSecret, time.Now())
}

type mockLedger struct {
	mu       sync.Mutex
	calls    int
	err      error
	applied  map[string]bool
	balances map[string]decimal.Decimal
	lastReq  domain.CreditRequest
}

func newMockLedger() *mockLedger {
	return &mockLedger{applied: map[string]bool{}, balances: map[string]decimal.Decimal{}}
}

func (m *mockLedger) CreditAccount(ctx context.Context, req domain.CreditRequest) (*domain.CreditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.applied[req.EventID] {
		return &domain.CreditResult{Balance: m.balances[req.AccountID], Applied: false}, nil
	}
	m.applied[req.EventID] = true
	m.balances[req.AccountID] = m.balances[req.AccountID].Add(req.Amount)
	return &domain.CreditResult{CreditID: uuid.New(), Balance: m.balances[req.AccountID], Applied: true}, nil
}

func (m *mockLedger) balance(accountID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID]
}

type mockEvents struct {
	mu        sync.Mutex
	recordErr error
	byID      map[string]*domain.WebhookEvent
	statuses  map[uuid.UUID]domain.WebhookEventStatus
}

func newMockEvents() *mockEvents {
	return &mockEvents{byID: map[string]*domain.WebhookEvent{}, statuses: map[uuid.UUID]domain.WebhookEventStatus{}}
}

func (m *mockEvents) Record(_ context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	if existing, ok := m.byID[event.ProviderEventID]; ok {
		existing.Attempts++
		return existing, nil
	}
	stored := *event
	stored.Attempts = 1
	m.byID[event.ProviderEventID] = &stored
	return &stored, nil
}

func (m *mockEvents) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WebhookEventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statuses[id] == domain.WebhookEventStatusCredited {
		return nil
	}
	m.statuses[id] = status
	return nil
}

func (m *mockEvents) statusOf(providerEventID string) domain.WebhookEventStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[providerEventID]
	if !ok {
		return ""
	}
	return m.statuses[e.ID]
}
