package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/handler"
	"github.com/josh-kwaku/stripe-wallet/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Wallet  *handler.WalletHandler
	Webhook *handler.WebhookHandler
	Health  *handler.HealthHandler
}

type Options struct {
	APIKey  string
	Tokens  auth.TokenConfig
	OpenAPI []byte

	// Optional; nil leaves the route unwrapped.
	Idempotency  func(http.Handler) http.Handler
	LoginLimiter func(http.Handler) http.Handler
}

// New builds the HTTP surface. The webhook, health and docs routes sit
// outside the shared-secret gate; the webhook is authenticated by its
// signature instead.
func New(h Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondAppError(w, handler.ErrResourceNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		handler.RespondAppError(w, &handler.AppError{
			Status:  http.StatusMethodNotAllowed,
			Code:    "METHOD_NOT_ALLOWED",
			Message: "Method not allowed",
		}, nil)
	})

	r.Get("/health", h.Health.Liveness)
	r.Get("/health/ready", h.Health.Readiness)
	docs := handler.NewDocsHandler(opts.OpenAPI)
	r.Get("/docs", docs.Page)
	r.Get("/docs/openapi.yaml", docs.Spec)

	r.Post("/api/webhook/stripe", h.Webhook.ReceiveStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(opts.APIKey))

		r.With(optional(opts.LoginLimiter)...).Post("/api/login/authenticate", h.Auth.Login)

		r.Route("/api/wallet", func(r chi.Router) {
			r.Use(middleware.Auth(opts.Tokens))

			r.With(optional(opts.Idempotency)...).Post("/create-checkout-session", h.Wallet.CreateCheckoutSession)
			r.Get("/balance", h.Wallet.GetBalance)
			r.Get("/transactions", h.Wallet.ListTransactions)
		})
	})

	return r
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}
