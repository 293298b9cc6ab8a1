package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

type checkoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

type eventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*ProviderEvent, error)
}

type walletReader interface {
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetWallet(ctx context.Context, accountID string) (*domain.Wallet, error)
	ListCredits(ctx context.Context, accountID string, limit, offset int) ([]domain.Credit, int, error)
}

type ledgerWriter interface {
	CreditAccount(ctx context.Context, req domain.CreditRequest) (*domain.CreditResult, error)
}

type webhookEventStore interface {
	Record(ctx context.Context, event *domain.WebhookEvent) (*domain.WebhookEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WebhookEventStatus) error
}
