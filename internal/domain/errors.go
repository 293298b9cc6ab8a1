package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")

	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrMisconfigured       = errors.New("server authority not configured")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrPaymentProvider     = errors.New("payment provider error")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrMalformedEvent      = errors.New("malformed provider event")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
