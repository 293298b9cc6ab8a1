package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
	"github.com/josh-kwaku/stripe-wallet/internal/service"
)

const maxWebhookBody = 1 << 20

type webhookReconciler interface {
	Reconcile(ctx context.Context, payload []byte, sigHeader string) (*service.ReconcileResult, error)
}

type WebhookHandler struct {
	reconciler webhookReconciler
}

func NewWebhookHandler(reconciler webhookReconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

type webhookResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id,omitempty"`
}

// ReceiveStripeWebhook acknowledges every authentic event the ledger has
// either absorbed or will never absorb. Only signature failures and store
// outages are reported as errors, the latter so the provider redelivers.
func (h *WebhookHandler) ReceiveStripeWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), body, r.Header.Get(service.SignatureHeader))
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		log.Warn("webhook signature verification failed", "error", err)
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	case errors.Is(err, domain.ErrMalformedEvent):
		resp := webhookResponse{Status: "ignored_malformed"}
		if result != nil {
			resp.EventID = result.EventID
		}
		RespondSuccess(w, http.StatusOK, resp)
		return
	case err != nil:
		log.Error("webhook reconciliation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, webhookResponse{
		Status:  webhookStatus(result.Outcome),
		EventID: result.EventID,
	})
}

func webhookStatus(outcome service.ReconcileOutcome) string {
	switch outcome {
	case service.OutcomeDuplicate:
		return "already_processed"
	case service.OutcomeIgnored:
		return "ignored"
	default:
		return string(outcome)
	}
}
