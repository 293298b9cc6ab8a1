package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

type failedEventClaimer interface {
	ClaimRetryable(ctx context.Context, limit, maxAttempts int, olderThan time.Duration) ([]domain.WebhookEvent, error)
}

type eventRetrier interface {
	Retry(ctx context.Context, stored domain.WebhookEvent) (*ReconcileResult, error)
}

type WebhookRetryConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// WebhookRetrier periodically re-applies stored events whose credit failed.
// It may race with provider redeliveries; the event-id dedup settles both.
type WebhookRetrier struct {
	events     failedEventClaimer
	reconciler eventRetrier
	logger     *slog.Logger
	cfg        WebhookRetryConfig
}

func NewWebhookRetrier(events failedEventClaimer, reconciler eventRetrier, logger *slog.Logger, cfg WebhookRetryConfig) *WebhookRetrier {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &WebhookRetrier{events: events, reconciler: reconciler, logger: logger, cfg: cfg}
}

func (p *WebhookRetrier) Start(ctx context.Context) {
	p.logger.Info("webhook retrier started", "interval", p.cfg.Interval, "max_attempts", p.cfg.MaxAttempts)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("webhook retrier stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// Run starts the retrier in its own goroutine. The returned stop cancels it and
// blocks until any in-flight retry has returned.
func (p *WebhookRetrier) Run(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Start(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// poll returns the number of events that reached a terminal outcome.
func (p *WebhookRetrier) poll(ctx context.Context) int {
	events, err := p.events.ClaimRetryable(ctx, p.cfg.BatchSize, p.cfg.MaxAttempts, p.cfg.Interval)
	if err != nil {
		p.logger.Error("failed to claim retryable webhook events", "error", err)
		return 0
	}

	settled := 0
	for _, event := range events {
		result, err := p.reconciler.Retry(ctx, event)
		switch {
		case err == nil:
			settled++
			p.logger.Info("webhook event settled on retry",
				"event_id", event.ProviderEventID,
				"outcome", result.Outcome,
				"attempts", event.Attempts,
			)
		case errors.Is(err, domain.ErrMalformedEvent):
			settled++
		default:
			p.logger.Error("webhook event retry failed",
				"event_id", event.ProviderEventID,
				"attempts", event.Attempts,
				"error", err,
			)
		}
	}
	return settled
}
