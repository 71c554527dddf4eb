package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

type flatFee string

func (f flatFee) Calculate(decimal.Decimal) decimal.Decimal {
	return decimal.RequireFromString(string(f))
}

func TestAccountDeposit(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	acc := &models.Account{Balance: decimal.NewFromInt(100)}

	require.NoError(t, acc.Deposit(decimal.RequireFromString("50.25"), now))
	require.Equal(t, "150.25", acc.Balance.String())
	require.Equal(t, now, acc.UpdatedAt)

	for _, amount := range []string{"0", "-1"} {
		err := acc.Deposit(decimal.RequireFromString(amount), now)
		require.ErrorIs(t, err, models.ErrInvalidAmount)
	}
	require.Equal(t, "150.25", acc.Balance.String())
}

func TestAccountWithdraw(t *testing.T) {
	now := time.Now()

	t.Run("without fee", func(t *testing.T) {
		acc := &models.Account{Balance: decimal.NewFromInt(100)}
		fee, err := acc.Withdraw(decimal.NewFromInt(40), nil, now)
		require.NoError(t, err)
		require.True(t, fee.IsZero())
		require.Equal(t, "60", acc.Balance.String())
	})

	t.Run("fee is debited with the amount", func(t *testing.T) {
		acc := &models.Account{Balance: decimal.NewFromInt(100)}
		fee, err := acc.Withdraw(decimal.NewFromInt(40), flatFee("1.50"), now)
		require.NoError(t, err)
		require.Equal(t, "1.5", fee.String())
		require.Equal(t, "58.5", acc.Balance.String())
	})

	t.Run("balance must cover amount and fee", func(t *testing.T) {
		acc := &models.Account{Balance: decimal.NewFromInt(100)}
		_, err := acc.Withdraw(decimal.NewFromInt(100), flatFee("0.01"), now)
		require.ErrorIs(t, err, models.ErrInsufficientFunds)
		require.Equal(t, "100", acc.Balance.String())
		require.True(t, acc.UpdatedAt.IsZero())
	})

	t.Run("whole balance", func(t *testing.T) {
		acc := &models.Account{Balance: decimal.NewFromInt(100)}
		_, err := acc.Withdraw(decimal.NewFromInt(100), nil, now)
		require.NoError(t, err)
		require.True(t, acc.Balance.IsZero())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		acc := &models.Account{Balance: decimal.NewFromInt(100)}
		_, err := acc.Withdraw(decimal.Zero, nil, now)
		require.ErrorIs(t, err, models.ErrInvalidAmount)
		_, err = acc.Withdraw(decimal.NewFromInt(-5), nil, now)
		require.ErrorIs(t, err, models.ErrInvalidAmount)
	})
}

func TestAccountTypeValid(t *testing.T) {
	for _, typ := range models.AccountTypes {
		require.True(t, typ.Valid(), typ)
	}
	require.False(t, models.AccountType("crypto").Valid())
	require.False(t, models.AccountType("").Valid())
}

func TestTransactionReversible(t *testing.T) {
	tx := &models.Transaction{Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusCompleted}
	require.True(t, tx.Reversible())

	tx.Status = models.TransactionStatusFailed
	require.False(t, tx.Reversible())

	tx = &models.Transaction{Type: models.TransactionTypeReversal, Status: models.TransactionStatusCompleted}
	require.False(t, tx.Reversible())
}

func TestLoanApplicationDecision(t *testing.T) {
	now := time.Now()
	app := &models.LoanApplication{Status: models.LoanStatusPending}

	require.NoError(t, app.Approve("system", now))
	require.Equal(t, models.LoanStatusApproved, app.Status)
	require.Equal(t, "system", app.DecidedBy)
	require.NotNil(t, app.DecidedAt)

	require.ErrorIs(t, app.Reject("manager", "late", now), models.ErrApplicationDecided)
	require.Equal(t, models.LoanStatusApproved, app.Status)
}
