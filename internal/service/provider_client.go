package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

const (
	MetadataAccountID = "account_id"
	MetadataToken     = "token"
	MetadataAmount    = "amount"

	SignatureHeader = "Stripe-Signature"

	eventCheckoutCompleted = stripe.EventTypeCheckoutSessionCompleted
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
	Currency      string
	SuccessURL    string
	CancelURL     string
	Tolerance     time.Duration
	HTTPClient    *http.Client
}

// StripeClient owns its API key; nothing here touches the stripe package's
// global Key.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
	currency      string
	successURL    string
	cancelURL     string
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(2),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}

	backends := stripe.NewBackends(httpClient)
	backends.API = stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &StripeClient{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		tolerance:     tolerance,
		currency:      currency,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

type CheckoutRequest struct {
	AccountID      string
	BearerToken    string
	Amount         decimal.Decimal
	AmountMinor    int64
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// providerIdempotencyKey scopes a client key to its account. Stripe keys are
// shared by every wallet user on the platform account.
func providerIdempotencyKey(accountID, key string) string {
	sum := sha256.Sum256([]byte(accountID + ":" + key))
	return hex.EncodeToString(sum[:])
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	log := logging.FromContext(ctx)

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID:  stripe.String(req.AccountID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(c.currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Wallet Deposit"),
						Description: stripe.String("Add funds to your wallet"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.successURL),
		CancelURL:  stripe.String(c.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata(MetadataAccountID, req.AccountID)
	params.AddMetadata(MetadataToken, req.BearerToken)
	params.AddMetadata(MetadataAmount, req.Amount.StringFixed(2))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(providerIdempotencyKey(req.AccountID, req.IdempotencyKey))
	}

	start := time.Now()
	log.Info("provider request sent", "provider", "stripe", "account_id", req.AccountID, "amount_minor", req.AmountMinor)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			log.Error("provider rejected checkout session",
				"status", stripeErr.HTTPStatusCode,
				"code", stripeErr.Code,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil, fmt.Errorf("CreateCheckoutSession: %w: %s", domain.ErrPaymentProvider, stripeErr.Msg)
		}
		log.Error("provider request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("CreateCheckoutSession: %w: %w", domain.ErrPaymentProvider, err)
	}

	log.Info("provider response received",
		"session_id", sess.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if sess.URL == "" {
		return nil, fmt.Errorf("CreateCheckoutSession: %w: session %s has no redirect url", domain.ErrPaymentProvider, sess.ID)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

type ProviderEvent struct {
	ID     string
	Type   stripe.EventType
	Object json.RawMessage
}

// VerifyEvent checks the timestamped signature before looking at the body.
func (c *StripeClient) VerifyEvent(payload []byte, sigHeader string) (*ProviderEvent, error) {
	if err := webhook.ValidatePayloadWithTolerance(payload, sigHeader, c.webhookSecret, c.tolerance); err != nil {
		return nil, fmt.Errorf("VerifyEvent: %w: %w", domain.ErrInvalidSignature, err)
	}

	event, err := decodeEvent(payload)
	if err != nil {
		return nil, fmt.Errorf("VerifyEvent: %w", err)
	}
	return event, nil
}

func decodeEvent(payload []byte) (*ProviderEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing id, type or data", domain.ErrMalformedEvent)
	}
	return &ProviderEvent{ID: event.ID, Type: event.Type, Object: event.Data.Raw}, nil
}

// SignPayload builds a Stripe-Signature header value for payload.
func SignPayload(payload []byte, secret string, at time.Time) string {
	sig := webhook.ComputeSignature(at, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(sig))
}
