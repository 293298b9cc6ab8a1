package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
	"github.com/josh-kwaku/stripe-wallet/internal/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type walletService interface {
	CreateCheckout(ctx context.Context, req service.DepositRequest) (*service.CheckoutSession, error)
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetHistory(ctx context.Context, accountID string, limit, offset int) (*service.WalletHistory, error)
}

type WalletHandler struct {
	wallets walletService
}

func NewWalletHandler(wallets walletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type createCheckoutRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

func (r createCheckoutRequest) Validate() []FieldError {
	if r.Amount == nil {
		return []FieldError{{Field: "amount", Message: "required"}}
	}
	return nil
}

type balanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

type creditDTO struct {
	ID          uuid.UUID `json:"id"`
	Amount      string    `json:"amount"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
}

type historyResponse struct {
	AccountID    string      `json:"account_id"`
	Balance      string      `json:"balance"`
	LastCreditAt *string     `json:"last_credit_at"`
	Credits      []creditDTO `json:"credits"`
	Total        int         `json:"total"`
	Limit        int         `json:"limit"`
	Offset       int         `json:"offset"`
}

func (h *WalletHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	accountID, ok := auth.AccountIDFromContext(ctx)
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}
	token, _ := auth.BearerTokenFromContext(ctx)

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	session, err := h.wallets.CreateCheckout(ctx, service.DepositRequest{
		AccountID:      accountID,
		BearerToken:    token,
		Amount:         *req.Amount,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		log.Warn("checkout session creation failed", "amount", req.Amount.String(), "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, session)
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	balance, err := h.wallets.GetBalance(r.Context(), accountID)
	if err != nil {
		logging.FromContext(r.Context()).Error("balance lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, balanceResponse{
		AccountID: accountID,
		Balance:   balance.StringFixed(2),
	})
}

func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit, offset, fields := parsePagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	if limit == 0 {
		limit = service.DefaultHistoryLimit
	}
	if limit > service.MaxHistoryLimit {
		limit = service.MaxHistoryLimit
	}

	history, err := h.wallets.GetHistory(r.Context(), accountID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("transaction history lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := historyResponse{
		AccountID: history.AccountID,
		Balance:   history.Balance.StringFixed(2),
		Credits:   make([]creditDTO, 0, len(history.Credits)),
		Total:     history.Total,
		Limit:     limit,
		Offset:    offset,
	}
	if history.LastCreditAt != nil {
		ts := history.LastCreditAt.UTC().Format(time.RFC3339)
		resp.LastCreditAt = &ts
	}
	for _, c := range history.Credits {
		resp.Credits = append(resp.Credits, toCreditDTO(c))
	}

	RespondSuccess(w, http.StatusOK, resp)
}

func parsePagination(r *http.Request) (limit, offset int, errs []FieldError) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, FieldError{Field: "limit", Message: "must be a positive integer"})
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{Field: "offset", Message: "must be a non-negative integer"})
		}
		offset = n
	}
	return limit, offset, errs
}

func toCreditDTO(c domain.Credit) creditDTO {
	return creditDTO{
		ID:          c.ID,
		Amount:      c.Amount.StringFixed(2),
		Kind:        string(c.Kind),
		Reference:   c.Reference,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
