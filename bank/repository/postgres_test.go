package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cenkalti/backoff/v4"
	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*repository.PostgresStore, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sdb := sqlx.NewDb(db, "postgres")
	store := repository.NewPostgresStore(sdb)
	store.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return store, sdb, mock
}

var accountCols = []string{"id", "number", "owner_name", "balance", "type", "created_at", "updated_at"}

func TestMigrate(t *testing.T) {
	_, db, mock := newMockStore(t)
	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS bank`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repository.Migrate(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAccount(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO bank\.accounts \(id,number,owner_name,balance,type,created_at,updated_at\)`).
		WithArgs("a1", "000100000009", "Ada", sqlmock.AnyArg(), "checking", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO bank\.accounts`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	require.NoError(t, store.Accounts().Create(ctx, newAccount("a1", "000100000009", 100)))

	err := store.Accounts().Create(ctx, newAccount("a1", "000100000009", 100))
	require.ErrorIs(t, err, repository.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAccount(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM bank\.accounts WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("a1", "000100000009", "Ada", "100.50", "savings", now, now))
	mock.ExpectQuery(`SELECT .+ FROM bank\.accounts WHERE number = \$1`).
		WithArgs("999999999999").
		WillReturnRows(sqlmock.NewRows(accountCols))

	a, err := store.Accounts().Get(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, "000100000009", a.Number)
	require.Equal(t, models.AccountTypeSavings, a.Type)
	require.True(t, a.Balance.Equal(decimal.RequireFromString("100.50")))

	_, err = store.Accounts().GetByNumber(ctx, "999999999999")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingAccount(t *testing.T) {
	store, _, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE bank\.accounts SET owner_name = \$1, balance = \$2, type = \$3, updated_at = \$4 WHERE id = \$5`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Accounts().Update(context.Background(), newAccount("nope", "1", 0))
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTransactionsNewestFirst(t *testing.T) {
	store, _, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{"id", "account_id", "type", "amount", "fee", "status", "reference", "description", "created_at"}

	mock.ExpectQuery(`SELECT .+ FROM bank\.transactions WHERE account_id = \$1 ORDER BY seq DESC`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t2", "a1", "withdrawal", "10.00", "1.00", "completed", "", "", now).
			AddRow("t1", "a1", "deposit", "50.00", "0", "completed", "", "opening", now))

	list, err := store.Transactions().ListByAccount(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t2", list[0].ID)
	require.Equal(t, models.TransactionTypeWithdrawal, list[0].Type)
	require.True(t, list[0].Fee.Equal(decimal.NewFromInt(1)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLoanWithoutDecision(t *testing.T) {
	store, _, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := []string{"id", "account_id", "amount", "credit_score", "purpose", "status", "decided_by", "reason", "created_at", "decided_at"}

	mock.ExpectQuery(`SELECT .+ FROM bank\.loan_applications WHERE id = \$1`).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("l1", "", "5000.00", 640, "car", "pending", "", "", now, nil))

	l, err := store.Loans().Get(context.Background(), "l1")
	require.NoError(t, err)
	require.Equal(t, 640, l.CreditScore)
	require.Equal(t, models.LoanStatusPending, l.Status)
	require.Nil(t, l.DecidedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DoRetriesSerializationFailures(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bank\.transactions SET status = \$1 WHERE id = \$2`).
		WithArgs("reversed", "t1").
		WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE bank\.transactions SET status = \$1 WHERE id = \$2`).
		WithArgs("reversed", "t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	attempts := 0
	err := store.Do(ctx, func(r repository.Repositories) error {
		attempts++
		return r.Transactions().UpdateStatus(ctx, "t1", models.TransactionStatusReversed)
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DoDoesNotRetryOtherErrors(t *testing.T) {
	ctx := context.Background()
	store, _, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := store.Do(ctx, func(r repository.Repositories) error {
		attempts++
		return models.ErrInsufficientFunds
	})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)
	require.Equal(t, 1, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
