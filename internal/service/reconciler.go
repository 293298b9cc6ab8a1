package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

type ReconcileOutcome string

const (
	OutcomeCredited  ReconcileOutcome = "credited"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeIgnored   ReconcileOutcome = "ignored"
	OutcomeMalformed ReconcileOutcome = "malformed"
)

type ReconcileResult struct {
	Outcome   ReconcileOutcome
	EventID   string
	EventType string
	AccountID string
	Amount    decimal.Decimal
	Balance   decimal.Decimal
}

type ReconcilerConfig struct {
	Tokens        auth.TokenConfig
	Currency      string
	CreditTimeout time.Duration
}

type Reconciler struct {
	verifier eventVerifier
	ledger   ledgerWriter
	events   webhookEventStore
	cfg      ReconcilerConfig
}

func NewReconciler(verifier eventVerifier, ledger ledgerWriter, events webhookEventStore, cfg ReconcilerConfig) *Reconciler {
	if cfg.CreditTimeout <= 0 {
		cfg.CreditTimeout = 15 * time.Second
	}
	return &Reconciler{verifier: verifier, ledger: ledger, events: events, cfg: cfg}
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	AmountTotal       *int64            `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

// Reconcile verifies a provider callback and applies at most one credit for it.
// Errors wrap ErrInvalidSignature, ErrMalformedEvent or ErrStoreUnavailable;
// an already-applied event is OutcomeDuplicate, not an error.
func (r *Reconciler) Reconcile(ctx context.Context, payload []byte, sigHeader string) (*ReconcileResult, error) {
	event, err := r.verifier.VerifyEvent(payload, sigHeader)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedEvent) {
			logging.FromContext(ctx).Warn("signed webhook with unreadable body", "error", err)
			return &ReconcileResult{Outcome: OutcomeMalformed}, fmt.Errorf("Reconcile: %w", err)
		}
		return nil, fmt.Errorf("Reconcile: %w", err)
	}

	// Authentic events run to completion regardless of the caller's context.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CreditTimeout)
	defer cancel()
	ctx, log := logging.With(ctx, "event_id", event.ID, "event_type", string(event.Type))

	stored, err := r.events.Record(ctx, &domain.WebhookEvent{
		ID:              uuid.New(),
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Payload:         payload,
		Status:          domain.WebhookEventStatusReceived,
		CreatedAt:       time.Now().UTC(),
	})
	if errors.Is(err, domain.ErrMalformedEvent) {
		log.Warn("webhook payload rejected by event log", "error", err)
		return &ReconcileResult{Outcome: OutcomeMalformed, EventID: event.ID}, fmt.Errorf("Reconcile: %w", err)
	}
	if err != nil {
		log.Error("failed to record webhook event", "error", err)
		return nil, fmt.Errorf("Reconcile: %w", err)
	}
	if stored.Attempts > 1 {
		log.Info("webhook redelivered", "attempts", stored.Attempts, "previous_status", stored.Status)
	}

	result, err := r.apply(ctx, event, stored.ID)
	if err != nil {
		return result, fmt.Errorf("Reconcile: %w", err)
	}
	return result, nil
}

// Retry re-applies an event that was verified and stored earlier but could
// not be settled, typically because the ledger store was down.
func (r *Reconciler) Retry(ctx context.Context, stored domain.WebhookEvent) (*ReconcileResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CreditTimeout)
	defer cancel()
	ctx, log := logging.With(ctx, "event_id", stored.ProviderEventID, "event_type", stored.EventType, "attempts", stored.Attempts)

	event, err := decodeEvent(stored.Payload)
	if err != nil {
		log.Error("stored webhook payload is unreadable", "error", err)
		if err := r.events.UpdateStatus(ctx, stored.ID, domain.WebhookEventStatusMalformed); err != nil {
			log.Warn("failed to update webhook event status", "webhook_event_id", stored.ID, "error", err)
		}
		return &ReconcileResult{Outcome: OutcomeMalformed, EventID: stored.ProviderEventID}, fmt.Errorf("Retry: %w", err)
	}

	result, err := r.apply(ctx, event, stored.ID)
	if err != nil {
		return result, fmt.Errorf("Retry: %w", err)
	}
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, event *ProviderEvent, storedID uuid.UUID) (*ReconcileResult, error) {
	result, procErr := r.process(ctx, event)
	if result != nil {
		result.EventID = event.ID
		result.EventType = string(event.Type)
	}

	if err := r.events.UpdateStatus(ctx, storedID, eventStatus(result, procErr)); err != nil {
		logging.FromContext(ctx).Warn("failed to update webhook event status", "webhook_event_id", storedID, "error", err)
	}

	if procErr != nil {
		return result, procErr
	}
	return result, nil
}

func (r *Reconciler) process(ctx context.Context, event *ProviderEvent) (*ReconcileResult, error) {
	log := logging.FromContext(ctx)

	if event.Type != eventCheckoutCompleted {
		log.Info("ignoring webhook event type")
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	var session checkoutSessionObject
	if err := json.Unmarshal(event.Object, &session); err != nil {
		log.Warn("malformed checkout session object", "error", err)
		return &ReconcileResult{Outcome: OutcomeMalformed}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}

	if session.PaymentStatus != "" && session.PaymentStatus != "paid" && session.PaymentStatus != "no_payment_required" {
		log.Info("checkout completed without settled payment", "session_id", session.ID, "payment_status", session.PaymentStatus)
		return &ReconcileResult{Outcome: OutcomeIgnored}, nil
	}

	req, err := r.creditFromSession(event.ID, session)
	if err != nil {
		log.Warn("rejecting checkout session",
			"session_id", session.ID,
			"account_id", session.Metadata[MetadataAccountID],
			"error", err,
		)
		return &ReconcileResult{Outcome: OutcomeMalformed, AccountID: session.Metadata[MetadataAccountID]}, err
	}

	if requested, ok := session.Metadata[MetadataAmount]; ok {
		if want, err := decimal.NewFromString(requested); err == nil && !want.Equal(req.Amount) {
			log.Warn("settled total differs from requested amount",
				"account_id", req.AccountID,
				"requested", want.StringFixed(2),
				"settled", req.Amount.StringFixed(2),
			)
		}
	}

	res, err := r.ledger.CreditAccount(ctx, req)
	if err != nil {
		log.Error("credit failed",
			"account_id", req.AccountID,
			"amount", req.Amount.StringFixed(2),
			"session_id", session.ID,
			"error", err,
		)
		return nil, err
	}

	result := &ReconcileResult{
		Outcome:   OutcomeCredited,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Balance:   res.Balance,
	}
	if !res.Applied {
		result.Outcome = OutcomeDuplicate
		log.Info("webhook event already applied", "account_id", req.AccountID, "amount", req.Amount.StringFixed(2))
		return result, nil
	}

	log.Info("wallet credited",
		"account_id", req.AccountID,
		"amount", req.Amount.StringFixed(2),
		"balance", res.Balance.StringFixed(2),
		"credit_id", res.CreditID,
	)
	return result, nil
}

// creditFromSession rebuilds the credit from the metadata we attached when
// the session was created. The echoed token must be one we signed and must
// name the same account.
func (r *Reconciler) creditFromSession(eventID string, session checkoutSessionObject) (domain.CreditRequest, error) {
	accountID := session.Metadata[MetadataAccountID]
	token := session.Metadata[MetadataToken]
	if accountID == "" {
		return domain.CreditRequest{}, fmt.Errorf("%w: missing %s metadata", domain.ErrMalformedEvent, MetadataAccountID)
	}
	if token == "" {
		return domain.CreditRequest{}, fmt.Errorf("%w: missing %s metadata", domain.ErrMalformedEvent, MetadataToken)
	}
	if session.AmountTotal == nil || *session.AmountTotal <= 0 {
		return domain.CreditRequest{}, fmt.Errorf("%w: missing settled total", domain.ErrMalformedEvent)
	}
	if r.cfg.Currency != "" && session.Currency != "" && !strings.EqualFold(session.Currency, r.cfg.Currency) {
		return domain.CreditRequest{}, fmt.Errorf("%w: unexpected currency %q", domain.ErrMalformedEvent, session.Currency)
	}
	if session.ClientReferenceID != "" && session.ClientReferenceID != accountID {
		return domain.CreditRequest{}, fmt.Errorf("%w: client_reference_id does not match metadata", domain.ErrMalformedEvent)
	}

	claims, err := auth.VerifySignature(token, r.cfg.Tokens)
	if err != nil {
		return domain.CreditRequest{}, fmt.Errorf("%w: origin token: %w", domain.ErrMalformedEvent, err)
	}
	if claims.AccountID != accountID {
		return domain.CreditRequest{}, fmt.Errorf("%w: origin token belongs to another account", domain.ErrMalformedEvent)
	}

	return domain.CreditRequest{
		AccountID:   accountID,
		EventID:     eventID,
		Reference:   session.ID,
		Amount:      domain.FromMinorUnits(*session.AmountTotal),
		OriginToken: token,
		Description: "Stripe deposit",
	}, nil
}

func eventStatus(result *ReconcileResult, err error) domain.WebhookEventStatus {
	switch {
	case result != nil && result.Outcome == OutcomeCredited:
		return domain.WebhookEventStatusCredited
	case result != nil && result.Outcome == OutcomeDuplicate:
		return domain.WebhookEventStatusDuplicate
	case result != nil && result.Outcome == OutcomeIgnored:
		return domain.WebhookEventStatusIgnored
	case errors.Is(err, domain.ErrMalformedEvent):
		return domain.WebhookEventStatusMalformed
	default:
		return domain.WebhookEventStatusFailed
	}
}
