package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

func TestReconcilerRetry(t *testing.T) {
	payload := eventPayload(t, "evt_1", "checkout.session.completed", sessionObject("u1", issueToken(t, "u1"), 1999))

	t.Run("settles an event left failed by an outage", func(t *testing.T) {
		ledger, events := newMockLedger(), newMockEvents()
		ledger.err = fmt.Errorf("CreditAccount: %w", domain.ErrStoreUnavailable)
		r := newTestReconciler(ledger, events)

		_, err := r.Reconcile(context.Background(), payload, sign(payload))
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		require.Equal(t, domain.WebhookEventStatusFailed, events.statusOf("evt_1"))

		ledger.err = nil
		stored := *events.byID["evt_1"]

		res, err := r.Retry(context.Background(), stored)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCredited, res.Outcome)
		assert.Equal(t, domain.WebhookEventStatusCredited, events.statusOf("evt_1"))
		assert.Equal(t, "19.99", ledger.balance("u1").StringFixed(2))

		res, err = r.Retry(context.Background(), stored)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, res.Outcome)
		assert.Equal(t, "19.99", ledger.balance("u1").StringFixed(2))
	})

	t.Run("unreadable stored payload", func(t *testing.T) {
		ledger, events := newMockLedger(), newMockEvents()
		r := newTestReconciler(ledger, events)

		stored := domain.WebhookEvent{ID: uuid.New(), ProviderEventID: "evt_bad", Payload: []byte(`{"id":"evt_bad"}`)}
		res, err := r.Retry(context.Background(), stored)

		assert.ErrorIs(t, err, domain.ErrMalformedEvent)
		assert.Equal(t, OutcomeMalformed, res.Outcome)
		assert.Equal(t, domain.WebhookEventStatusMalformed, events.statuses[stored.ID])
		assert.Zero(t, ledger.calls)
	})
}

type mockClaimer struct {
	mu          sync.Mutex
	events      []domain.WebhookEvent
	err         error
	gotLimit    int
	gotAttempts int
	gotOlder    time.Duration
}

func (m *mockClaimer) ClaimRetryable(_ context.Context, limit, maxAttempts int, olderThan time.Duration) ([]domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gotLimit, m.gotAttempts, m.gotOlder = limit, maxAttempts, olderThan
	events := m.events
	m.events = nil
	return events, m.err
}

type mockRetrier struct {
	outcomes map[string]error
	seen     []string
}

func (m *mockRetrier) Retry(_ context.Context, stored domain.WebhookEvent) (*ReconcileResult, error) {
	m.seen = append(m.seen, stored.ProviderEventID)
	if err := m.outcomes[stored.ProviderEventID]; err != nil {
		return nil, err
	}
	return &ReconcileResult{Outcome: OutcomeCredited, EventID: stored.ProviderEventID}, nil
}

func TestWebhookRetrier_Poll(t *testing.T) {
	tests := []struct {
		name        string
		events      []string
		claimErr    error
		outcomes    map[string]error
		wantSettled int
	}{
		{name: "nothing to do", wantSettled: 0},
		{name: "all settle", events: []string{"evt_1", "evt_2"}, wantSettled: 2},
		{
			name:   "store still down",
			events: []string{"evt_1", "evt_2"},
			outcomes: map[string]error{
				"evt_2": fmt.Errorf("Retry: %w", domain.ErrStoreUnavailable),
			},
			wantSettled: 1,
		},
		{
			name:   "malformed counts as settled",
			events: []string{"evt_1"},
			outcomes: map[string]error{
				"evt_1": fmt.Errorf("Retry: %w", domain.ErrMalformedEvent),
			},
			wantSettled: 1,
		},
		{name: "claim fails", claimErr: errors.New("connection refused"), wantSettled: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			claimer := &mockClaimer{err: tc.claimErr}
			for _, id := range tc.events {
				claimer.events = append(claimer.events, domain.WebhookEvent{ID: uuid.New(), ProviderEventID: id, Attempts: 2})
			}
			retrier := &mockRetrier{outcomes: tc.outcomes}

			p := NewWebhookRetrier(claimer, retrier, logging.Discard(), WebhookRetryConfig{
				Interval:    30 * time.Second,
				BatchSize:   5,
				MaxAttempts: 8,
			})

			assert.Equal(t, tc.wantSettled, p.poll(context.Background()))
			assert.Equal(t, tc.events, nilIfEmpty(retrier.seen))
			assert.Equal(t, 5, claimer.gotLimit)
			assert.Equal(t, 8, claimer.gotAttempts)
			assert.Equal(t, 30*time.Second, claimer.gotOlder)
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestWebhookRetrier_StartStopsOnCancel(t *testing.T) {
	claimer := &mockClaimer{events: []domain.WebhookEvent{{ID: uuid.New(), ProviderEventID: "evt_1"}}}
	p := NewWebhookRetrier(claimer, &mockRetrier{}, logging.Discard(), WebhookRetryConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		claimer.mu.Lock()
		defer claimer.mu.Unlock()
		return claimer.events == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retrier did not stop")
	}
}

type blockingRetrier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRetrier) Retry(_ context.Context, stored domain.WebhookEvent) (*ReconcileResult, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return &ReconcileResult{Outcome: OutcomeCredited, EventID: stored.ProviderEventID}, nil
}

func TestWebhookRetrier_RunStopWaitsForInFlightRetry(t *testing.T) {
	claimer := &mockClaimer{events: []domain.WebhookEvent{{ID: uuid.New(), ProviderEventID: "evt_1"}}}
	retrier := &blockingRetrier{entered: make(chan struct{}), release: make(chan struct{})}
	p := NewWebhookRetrier(claimer, retrier, logging.Discard(), WebhookRetryConfig{Interval: 5 * time.Millisecond})

	stop := p.Run(context.Background())

	select {
	case <-retrier.entered:
	case <-time.After(time.Second):
		t.Fatal("retry never started")
	}

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a retry was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(retrier.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after the retry finished")
	}
}
