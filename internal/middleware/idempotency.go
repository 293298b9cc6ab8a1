package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
	"github.com/josh-kwaku/stripe-wallet/internal/repository"
)

type idempotencyRepository interface {
	Get(ctx context.Context, key, accountID string) (*repository.IdempotencyCacheEntry, error)
	Reserve(ctx context.Context, key, accountID, requestHash string) (bool, error)
	Set(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key, accountID string) error
}

const maxIdempotentBody = 1 << 20

// Idempotency replays the stored response when a mutating request repeats an
// Idempotency-Key. Requests without the header pass through untouched.
// Server errors are not cached so the client can retry with the same key.
func Idempotency(repo idempotencyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(handler.IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			accountID, ok := auth.AccountIDFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			log := logging.FromContext(r.Context()).With("idempotency_key", key)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					handler.RespondAppError(w, handler.ErrRequestTooLarge, nil)
					return
				}
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			reqHash := computeHash(r.Method, r.URL.Path, body)

			reserved, err := repo.Reserve(r.Context(), key, accountID, reqHash)
			if err != nil {
				log.Error("idempotency reservation failed", "error", err)
				handler.RespondAppError(w, handler.ErrInternalError, nil)
				return
			}

			if !reserved {
				cached, err := repo.Get(r.Context(), key, accountID)
				if err != nil {
					log.Error("idempotency cache lookup failed", "error", err)
					handler.RespondAppError(w, handler.ErrInternalError, nil)
					return
				}
				replay(w, log, cached, reqHash)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.statusCode >= http.StatusInternalServerError {
				if err := repo.Release(ctx, key, accountID); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
				return
			}

			entry := &repository.IdempotencyCacheEntry{
				Key:          key,
				AccountID:    accountID,
				RequestHash:  reqHash,
				StatusCode:   rec.statusCode,
				ResponseBody: rec.body.Bytes(),
				CreatedAt:    time.Now().UTC(),
			}
			if err := repo.Set(ctx, entry); err != nil {
				log.Error("idempotency cache store failed", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, log *slog.Logger, cached *repository.IdempotencyCacheEntry, reqHash string) {
	switch {
	case cached == nil:
		// reservation expired between Reserve and Get
		handler.RespondAppError(w, handler.ErrRequestInProgress, nil)
		return
	case cached.RequestHash != reqHash:
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	case cached.InProgress:
		handler.RespondAppError(w, handler.ErrRequestInProgress, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotent-Replayed", "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		log.Error("failed to write idempotent replay", "error", err)
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
