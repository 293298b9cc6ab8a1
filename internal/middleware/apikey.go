package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

const APIKeyHeader = "X-Api-Key"

// APIKey rejects requests that do not carry the shared secret. An empty
// expected key fails closed with 500.
func APIKey(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				handler.RespondAppError(w, handler.ErrMissingAPIKey, nil)
				return
			}

			if expected == "" {
				logging.FromContext(r.Context()).Error("api key check requested but no key is configured")
				handler.RespondAppError(w, handler.ErrMisconfigured, nil)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
				logging.FromContext(r.Context()).Warn("api key mismatch")
				handler.RespondAppError(w, handler.ErrInvalidAPIKey, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
