package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedWallet inserts a wallet together with one opening credit so the
// balance stays equal to the sum of its credits.
func SeedWallet(t *testing.T, db *sql.DB, accountID string, balance string) {
	t.Helper()

	amount := decimal.RequireFromString(balance)
	now := time.Now().UTC()

	_, err := db.Exec(
		`INSERT INTO wallets (account_id, balance, last_credit_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $3, $3)`,
		accountID, amount, now,
	)
	if err != nil {
		t.Fatalf("seed wallet %s: %v", accountID, err)
	}

	if !amount.IsPositive() {
		return
	}
	_, err = db.Exec(
		`INSERT INTO wallet_credits (id, account_id, event_id, reference, amount, kind, description, created_at)
		 VALUES ($1, $2, $3, 'seed', $4, 'deposit', 'opening balance', $5)`,
		uuid.New(), accountID, "seed_"+uuid.NewString(), amount, now,
	)
	if err != nil {
		t.Fatalf("seed opening credit %s: %v", accountID, err)
	}
}

func GetBalance(t *testing.T, db *sql.DB, accountID string) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM wallets WHERE account_id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get balance %s: %v", accountID, err)
	}
	return balance
}

func SumCredits(t *testing.T, db *sql.DB, accountID string) decimal.Decimal {
	t.Helper()

	var sum decimal.Decimal
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM wallet_credits WHERE account_id = $1`, accountID,
	).Scan(&sum)
	if err != nil {
		t.Fatalf("sum credits %s: %v", accountID, err)
	}
	return sum
}

func CountCredits(t *testing.T, db *sql.DB, accountID string) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM wallet_credits WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count credits %s: %v", accountID, err)
	}
	return count
}
