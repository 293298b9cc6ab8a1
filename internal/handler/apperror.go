package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingAPIKey      = &AppError{http.StatusUnauthorized, "MISSING_API_KEY", "X-Api-Key header required"}
	ErrInvalidAPIKey      = &AppError{http.StatusForbidden, "INVALID_API_KEY", "API key is invalid"}
	ErrMisconfigured      = &AppError{http.StatusInternalServerError, "MISCONFIGURED", "Server is not configured to authenticate requests"}
	ErrMissingToken       = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken       = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidCredentials = &AppError{http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"}
	ErrInvalidRequest     = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed   = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound   = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrRateLimited        = &AppError{http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, try again later"}
	ErrRequestTooLarge    = &AppError{http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body too large"}
	ErrInternalError      = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrInvalidAmount       = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrPaymentProvider     = &AppError{http.StatusInternalServerError, "PAYMENT_PROVIDER_ERROR", "Payment provider could not create a checkout session"}
	ErrInvalidSignature    = &AppError{http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature is invalid"}
	ErrStoreUnavailable    = &AppError{http.StatusInternalServerError, "STORE_UNAVAILABLE", "Ledger store unavailable"}
	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key already used with a different request"}
	ErrRequestInProgress   = &AppError{http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed"}
)
