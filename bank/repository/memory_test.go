package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newAccount(id, number string, balance int64) *models.Account {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.Account{
		ID:        id,
		Number:    number,
		OwnerName: "Ada",
		Balance:   decimal.NewFromInt(balance),
		Type:      models.AccountTypeChecking,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStore_Accounts(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, store.Accounts().Create(ctx, newAccount("a1", "000100000009", 100)))
	require.NoError(t, store.Accounts().Create(ctx, newAccount("a2", "000100000017", 50)))

	t.Run("duplicate id and number conflict", func(t *testing.T) {
		err := store.Accounts().Create(ctx, newAccount("a1", "000100000025", 0))
		require.ErrorIs(t, err, repository.ErrConflict)

		err = store.Accounts().Create(ctx, newAccount("a3", "000100000009", 0))
		require.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("get returns a copy", func(t *testing.T) {
		a, err := store.Accounts().Get(ctx, "a1")
		require.NoError(t, err)
		a.Balance = decimal.NewFromInt(1)

		again, err := store.Accounts().Get(ctx, "a1")
		require.NoError(t, err)
		require.True(t, again.Balance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("get by number", func(t *testing.T) {
		a, err := store.Accounts().GetByNumber(ctx, "000100000017")
		require.NoError(t, err)
		require.Equal(t, "a2", a.ID)

		_, err = store.Accounts().GetByNumber(ctx, "999999999999")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("list keeps creation order", func(t *testing.T) {
		list, err := store.Accounts().List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "a1", list[0].ID)
		require.Equal(t, "a2", list[1].ID)
	})

	t.Run("update keeps number", func(t *testing.T) {
		a, err := store.Accounts().Get(ctx, "a2")
		require.NoError(t, err)
		a.Number = "123"
		a.OwnerName = "Grace"
		require.NoError(t, store.Accounts().Update(ctx, a))

		got, err := store.Accounts().Get(ctx, "a2")
		require.NoError(t, err)
		require.Equal(t, "Grace", got.OwnerName)
		require.Equal(t, "000100000017", got.Number)

		err = store.Accounts().Update(ctx, newAccount("missing", "1", 0))
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestMemoryStore_Transactions(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	for i, acc := range []string{"a1", "a2", "a1"} {
		require.NoError(t, store.Transactions().Create(ctx, &models.Transaction{
			ID:        fmt.Sprintf("t%d", i),
			AccountID: acc,
			Type:      models.TransactionTypeDeposit,
			Amount:    decimal.NewFromInt(int64(i + 1)),
			Status:    models.TransactionStatusCompleted,
			Reference: "ref",
		}))
	}

	list, err := store.Transactions().ListByAccount(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t2", list[0].ID)
	require.Equal(t, "t0", list[1].ID)

	byRef, err := store.Transactions().ListByReference(ctx, "ref")
	require.NoError(t, err)
	require.Len(t, byRef, 3)

	byRef, err = store.Transactions().ListByReference(ctx, "")
	require.NoError(t, err)
	require.Empty(t, byRef)

	require.NoError(t, store.Transactions().UpdateStatus(ctx, "t1", models.TransactionStatusReversed))
	tx, err := store.Transactions().Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusReversed, tx.Status)

	require.ErrorIs(t, store.Transactions().UpdateStatus(ctx, "nope", models.TransactionStatusFailed), repository.ErrNotFound)
	require.ErrorIs(t, store.Transactions().Create(ctx, &models.Transaction{ID: "t0"}), repository.ErrConflict)
}

func TestMemoryStore_Loans(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	app := &models.LoanApplication{ID: "l1", Amount: decimal.NewFromInt(5000), CreditScore: 700, Status: models.LoanStatusPending}
	require.NoError(t, store.Loans().Create(ctx, app))
	require.ErrorIs(t, store.Loans().Create(ctx, app), repository.ErrConflict)

	require.NoError(t, app.Approve("system", time.Now()))
	require.NoError(t, store.Loans().Update(ctx, app))

	got, err := store.Loans().Get(ctx, "l1")
	require.NoError(t, err)
	require.Equal(t, models.LoanStatusApproved, got.Status)
	require.Equal(t, "system", got.DecidedBy)

	list, err := store.Loans().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = store.Loans().Get(ctx, "l2")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryStore_DoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Accounts().Create(ctx, newAccount("a1", "000100000009", 100)))

	boom := errors.New("boom")
	err := store.Do(ctx, func(r repository.Repositories) error {
		a, err := r.Accounts().Get(ctx, "a1")
		require.NoError(t, err)
		a.Balance = decimal.Zero
		require.NoError(t, r.Accounts().Update(ctx, a))
		require.NoError(t, r.Transactions().Create(ctx, &models.Transaction{ID: "t1", AccountID: "a1"}))

		// writes are visible inside the unit
		inside, err := r.Accounts().Get(ctx, "a1")
		require.NoError(t, err)
		require.True(t, inside.Balance.IsZero())
		return boom
	})
	require.ErrorIs(t, err, boom)

	a, err := store.Accounts().Get(ctx, "a1")
	require.NoError(t, err)
	require.True(t, a.Balance.Equal(decimal.NewFromInt(100)))

	_, err = store.Transactions().Get(ctx, "t1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMemoryStore_DoCommits(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	err := store.Do(ctx, func(r repository.Repositories) error {
		return r.Accounts().Create(ctx, newAccount("a1", "000100000009", 10))
	})
	require.NoError(t, err)

	_, err = store.Accounts().Get(ctx, "a1")
	require.NoError(t, err)
}

func TestMemoryStore_DoCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := repository.NewMemoryStore()
	called := false
	err := store.Do(ctx, func(r repository.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestMemoryStore_ConcurrentUnitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Accounts().Create(ctx, newAccount("a1", "000100000009", 0)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Do(ctx, func(r repository.Repositories) error {
				a, err := r.Accounts().Get(ctx, "a1")
				if err != nil {
					return err
				}
				a.Balance = a.Balance.Add(decimal.NewFromInt(1))
				return r.Accounts().Update(ctx, a)
			})
		}()
	}
	wg.Wait()

	a, err := store.Accounts().Get(ctx, "a1")
	require.NoError(t, err)
	require.True(t, a.Balance.Equal(decimal.NewFromInt(50)), a.Balance.String())
}
