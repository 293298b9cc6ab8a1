package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *sql.DB
	cache pinger
}

// NewHealthHandler reports database readiness and, when cache is non-nil,
// cache readiness as well.
func NewHealthHandler(db *sql.DB, cache pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			slog.Warn("readiness check failed: cache unreachable", "error", err)
			checks["cache"] = "down"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	overall := "ok"
	if httpStatus != http.StatusOK {
		overall = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
