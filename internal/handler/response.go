package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{Success: true, Data: data})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// AppErrorFor maps a domain error to its transport representation.
// Unknown errors become ErrInternalError.
func AppErrorFor(err error) *AppError {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return ErrMissingToken
	case errors.Is(err, domain.ErrForbidden):
		return ErrInvalidAPIKey
	case errors.Is(err, domain.ErrMisconfigured):
		return ErrMisconfigured
	case errors.Is(err, domain.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, domain.ErrInvalidAmount):
		return ErrInvalidAmount
	case errors.Is(err, domain.ErrPaymentProvider):
		return ErrPaymentProvider
	case errors.Is(err, domain.ErrInvalidSignature):
		return ErrInvalidSignature
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return ErrIdempotencyConflict
	case errors.Is(err, domain.ErrStoreUnavailable):
		return ErrStoreUnavailable
	case errors.Is(err, domain.ErrNotFound):
		return ErrResourceNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return ErrInvalidRequest
	default:
		return ErrInternalError
	}
}

func RespondDomainError(w http.ResponseWriter, err error) {
	appErr := AppErrorFor(err)
	if appErr == ErrInternalError {
		slog.Error("unhandled domain error", "error", err)
	}
	RespondAppError(w, appErr, nil)
}
