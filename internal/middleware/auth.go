package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

// Auth validates the bearer token and puts the account id, the raw token and
// an account-scoped logger into the request context.
func Auth(tokens auth.TokenConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, tokens)
			if err != nil {
				logging.FromContext(r.Context()).Info("bearer token rejected", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithAccountID(r.Context(), claims.AccountID)
			ctx = auth.ContextWithBearerToken(ctx, token)
			ctx, _ = logging.With(ctx, "account_id", claims.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
