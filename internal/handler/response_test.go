package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

func TestAppErrorFor(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "MISSING_TOKEN"},
		{domain.ErrForbidden, http.StatusForbidden, "INVALID_API_KEY"},
		{domain.ErrMisconfigured, http.StatusInternalServerError, "MISCONFIGURED"},
		{domain.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
		{domain.ErrPaymentProvider, http.StatusInternalServerError, "PAYMENT_PROVIDER_ERROR"},
		{domain.ErrInvalidSignature, http.StatusBadRequest, "INVALID_SIGNATURE"},
		{domain.ErrStoreUnavailable, http.StatusInternalServerError, "STORE_UNAVAILABLE"},
		{domain.ErrIdempotencyConflict, http.StatusConflict, "IDEMPOTENCY_CONFLICT"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{domain.ErrNotFound, http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{fmt.Errorf("something else"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.wantCode, func(t *testing.T) {
			got := AppErrorFor(fmt.Errorf("Op: %w", tc.err))
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantCode, got.Code)
		})
	}
}
