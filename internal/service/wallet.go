package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type WalletService struct {
	provider checkoutProvider
	wallets  walletReader
}

func NewWalletService(provider checkoutProvider, wallets walletReader) *WalletService {
	return &WalletService{provider: provider, wallets: wallets}
}

type DepositRequest struct {
	AccountID      string
	BearerToken    string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// CreateCheckout opens a funding intent with the provider. It never touches
// the ledger; the credit arrives later through the webhook.
func (s *WalletService) CreateCheckout(ctx context.Context, req DepositRequest) (*CheckoutSession, error) {
	if req.AccountID == "" || req.BearerToken == "" {
		return nil, fmt.Errorf("CreateCheckout: %w", domain.ErrUnauthenticated)
	}

	minor, err := domain.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		AccountID:      req.AccountID,
		BearerToken:    req.BearerToken,
		Amount:         domain.FromMinorUnits(minor),
		AmountMinor:    minor,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPaymentProvider) {
			err = fmt.Errorf("%w: %w", domain.ErrPaymentProvider, err)
		}
		return nil, fmt.Errorf("CreateCheckout: %w", err)
	}
	if session == nil || session.URL == "" {
		return nil, fmt.Errorf("CreateCheckout: %w: missing redirect url", domain.ErrPaymentProvider)
	}

	logging.FromContext(ctx).Info("checkout session created",
		"account_id", req.AccountID,
		"session_id", session.ID,
		"amount", domain.FromMinorUnits(minor).StringFixed(2),
	)
	return session, nil
}

func (s *WalletService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", domain.ErrUnauthenticated)
	}
	balance, err := s.wallets.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("GetBalance: %w", err)
	}
	return balance, nil
}

type WalletHistory struct {
	AccountID    string
	Balance      decimal.Decimal
	LastCreditAt *time.Time
	Credits      []domain.Credit
	Total        int
}

func (s *WalletService) GetHistory(ctx context.Context, accountID string, limit, offset int) (*WalletHistory, error) {
	if accountID == "" {
		return nil, fmt.Errorf("GetHistory: %w", domain.ErrUnauthenticated)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	history := &WalletHistory{AccountID: accountID, Balance: decimal.Zero, Credits: []domain.Credit{}}

	w, err := s.wallets.GetWallet(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return history, nil
	case err != nil:
		return nil, fmt.Errorf("GetHistory: %w", err)
	}
	history.Balance = w.Balance
	history.LastCreditAt = w.LastCreditAt

	credits, total, err := s.wallets.ListCredits(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("GetHistory: %w", err)
	}
	history.Credits = credits
	history.Total = total
	return history, nil
}
