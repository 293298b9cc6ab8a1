package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit throttles by client address. A limiter outage lets the request
// through.
func RateLimit(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logging.FromContext(r.Context()).Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				logging.FromContext(r.Context()).Warn("rate limit exceeded", "client", key, "path", r.URL.Path)
				handler.RespondAppError(w, handler.ErrRateLimited, nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
