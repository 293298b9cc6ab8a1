package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreditKind string

const (
	CreditKindDeposit CreditKind = "deposit"
)

type Wallet struct {
	AccountID    string
	Balance      decimal.Decimal
	LastToken    string
	LastCreditAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Credit struct {
	ID          uuid.UUID
	AccountID   string
	EventID     string
	Reference   string
	Amount      decimal.Decimal
	Kind        CreditKind
	Description string
	CreatedAt   time.Time
}

// CreditRequest is one provider-confirmed funding event. EventID is the
// dedup key: a second request with the same EventID is not applied.
type CreditRequest struct {
	AccountID   string
	EventID     string
	Reference   string
	Amount      decimal.Decimal
	OriginToken string
	Description string
}

func (r CreditRequest) Validate() error {
	if r.AccountID == "" || r.EventID == "" {
		return ErrInvalidRequest
	}
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

type CreditResult struct {
	CreditID uuid.UUID
	Balance  decimal.Decimal
	Applied  bool
}
