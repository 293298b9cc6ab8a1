package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/stripe-wallet/internal/domain"
	"github.com/josh-kwaku/stripe-wallet/internal/repository"
	"github.com/josh-kwaku/stripe-wallet/internal/testutil"
)

func creditRequest(accountID, eventID, amount string) domain.CreditRequest {
	return domain.CreditRequest{
		AccountID:   accountID,
		EventID:     eventID,
		Reference:   "cs_test_" + eventID,
		Amount:      decimal.RequireFromString(amount),
		OriginToken: "token-" + accountID,
		Description: "Stripe deposit",
	}
}

func TestWalletRepository(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	t.Run("balance of unknown account is zero", func(t *testing.T) {
		balance, err := repo.GetBalance(ctx, "never-credited")
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("first credit creates the wallet", func(t *testing.T) {
		res, err := repo.CreditAccount(ctx, creditRequest("u1", "evt_first", "19.99"))
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.NotEqual(t, uuid.Nil, res.CreditID)
		assert.Equal(t, "19.99", res.Balance.StringFixed(2))

		w, err := repo.GetWallet(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "token-u1", w.LastToken)
		require.NotNil(t, w.LastCreditAt)

		balance, err := repo.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "19.99", balance.StringFixed(2))
	})

	t.Run("redelivered event is not applied twice", func(t *testing.T) {
		res, err := repo.CreditAccount(ctx, creditRequest("u1", "evt_first", "19.99"))
		require.NoError(t, err)
		assert.False(t, res.Applied)
		assert.Equal(t, uuid.Nil, res.CreditID)
		assert.Equal(t, "19.99", res.Balance.StringFixed(2))
		assert.Equal(t, 1, testutil.CountCredits(t, db, "u1"))
	})

	t.Run("second event accumulates", func(t *testing.T) {
		res, err := repo.CreditAccount(ctx, creditRequest("u1", "evt_second", "0.01"))
		require.NoError(t, err)
		assert.True(t, res.Applied)
		assert.Equal(t, "20.00", res.Balance.StringFixed(2))
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := repo.CreditAccount(ctx, creditRequest("u1", "evt_zero", "0"))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.Equal(t, 2, testutil.CountCredits(t, db, "u1"))
	})

	t.Run("history is newest first", func(t *testing.T) {
		credits, total, err := repo.ListCredits(ctx, "u1", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, credits, 2)
		assert.Equal(t, "evt_second", credits[0].EventID)
		assert.Equal(t, "evt_first", credits[1].EventID)
		assert.Equal(t, domain.CreditKindDeposit, credits[1].Kind)
		assert.Equal(t, "Stripe deposit", credits[1].Description)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		_, err := repo.GetWallet(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		credits, total, err := repo.ListCredits(ctx, "nobody", 10, 0)
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, credits)
	})

	t.Run("balance equals sum of credits", func(t *testing.T) {
		assert.True(t, testutil.GetBalance(t, db, "u1").Equal(testutil.SumCredits(t, db, "u1")))
	})
}

func TestWalletRepository_ConcurrentCreditsSameAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	testutil.SeedWallet(t, db, "busy", "5.00")

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.CreditAccount(ctx, creditRequest("busy", fmt.Sprintf("evt_busy_%d", i), "1.25"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "30.00", testutil.GetBalance(t, db, "busy").StringFixed(2))
	assert.Equal(t, n+1, testutil.CountCredits(t, db, "busy"))
}

func TestWalletRepository_ConcurrentRedelivery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.CreditAccount(ctx, creditRequest("fresh", "evt_same", "7.50"))
			if !assert.NoError(t, err) {
				return
			}
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, "7.50", testutil.GetBalance(t, db, "fresh").StringFixed(2))
	assert.Equal(t, 1, testutil.CountCredits(t, db, "fresh"))
}

func TestWalletRepository_ConcurrentDifferentAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewWalletRepository(db)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := fmt.Sprintf("acct_%d", i)
			for j := range 3 {
				_, err := repo.CreditAccount(ctx, creditRequest(account, fmt.Sprintf("evt_%d_%d", i, j), "2.00"))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := range 10 {
		assert.Equal(t, "6.00", testutil.GetBalance(t, db, fmt.Sprintf("acct_%d", i)).StringFixed(2))
	}
}
