package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
)

const walletColumns = `account_id, balance, last_token, last_credit_at, created_at, updated_at`

const creditColumns = `id, account_id, event_id, reference, amount, kind, description, created_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// CreditAccount applies one credit atomically: the wallet is created on first
// use, the credit row is keyed by the provider event id, and the balance is
// incremented in place. A replayed event id leaves everything untouched and
// reports Applied=false.
func (r *WalletRepository) CreditAccount(ctx context.Context, req domain.CreditRequest) (*domain.CreditResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("CreditAccount: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("CreditAccount: begin", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (account_id, balance, created_at, updated_at)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (account_id) DO NOTHING`,
		req.AccountID, now,
	)
	if err != nil {
		return nil, storeError("CreditAccount: upsert wallet", err)
	}

	kind := domain.CreditKindDeposit
	creditID := uuid.New()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_credits (
			id, account_id, event_id, reference, amount, kind, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		creditID, req.AccountID, req.EventID, req.Reference, req.Amount,
		kind, req.Description, now,
	)
	if err != nil {
		return nil, storeError("CreditAccount: insert credit", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, storeError("CreditAccount: rows affected", err)
	}

	if inserted == 0 {
		balance, err := r.balance(ctx, tx, req.AccountID)
		if err != nil {
			return nil, storeError("CreditAccount: read balance", err)
		}
		return &domain.CreditResult{Balance: balance, Applied: false}, nil
	}

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx,
		`UPDATE wallets
		SET balance = balance + $2, last_token = $3, last_credit_at = $4, updated_at = $4
		WHERE account_id = $1
		RETURNING balance`,
		req.AccountID, req.Amount, req.OriginToken, now,
	).Scan(&balance)
	if err != nil {
		return nil, storeError("CreditAccount: increment balance", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError("CreditAccount: commit", err)
	}

	return &domain.CreditResult{CreditID: creditID, Balance: balance, Applied: true}, nil
}

// GetBalance returns zero for an account that was never credited.
func (r *WalletRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	balance, err := r.balance(ctx, r.db, accountID)
	if err != nil {
		return decimal.Zero, storeError("GetBalance", err)
	}
	return balance, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *WalletRepository) balance(ctx context.Context, q queryRower, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM wallets WHERE account_id = $1`, accountID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (r *WalletRepository) GetWallet(ctx context.Context, accountID string) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID,
	)
	w, err := scanWallet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("GetWallet: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeError("GetWallet", err)
	}
	return w, nil
}

func (r *WalletRepository) ListCredits(ctx context.Context, accountID string, limit, offset int) ([]domain.Credit, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wallet_credits WHERE account_id = $1`, accountID,
	).Scan(&total)
	if err != nil {
		return nil, 0, storeError("ListCredits: count", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+creditColumns+` FROM wallet_credits
		WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, 0, storeError("ListCredits", err)
	}
	defer rows.Close()

	credits := []domain.Credit{}
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, 0, storeError("ListCredits: scan", err)
		}
		credits = append(credits, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storeError("ListCredits: rows", err)
	}
	return credits, total, nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	var lastToken sql.NullString
	err := s.Scan(&w.AccountID, &w.Balance, &lastToken, &w.LastCreditAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.LastToken = lastToken.String
	return &w, nil
}

func scanCredit(s scanner) (*domain.Credit, error) {
	var c domain.Credit
	err := s.Scan(
		&c.ID, &c.AccountID, &c.EventID, &c.Reference,
		&c.Amount, &c.Kind, &c.Description, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
