package iso8583_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	bankiso "github.com/hemachand1989/banking-design-patterns/bank/iso8583"
	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/moov-io/iso8583"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeLedger struct {
	accounts map[string]*models.Account
	seq      int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: map[string]*models.Account{
		"000100000009": {ID: "acc-1", Number: "000100000009", Balance: decimal.NewFromInt(50)},
	}}
}

func (l *fakeLedger) GetAccountByNumber(_ context.Context, number string) (*models.Account, error) {
	a, ok := l.accounts[number]
	if !ok {
		return nil, fmt.Errorf("getting account: %w", repository.ErrNotFound)
	}
	return a, nil
}

func (l *fakeLedger) find(id string) *models.Account {
	for _, a := range l.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (l *fakeLedger) tx(accountID string, typ models.TransactionType, amount decimal.Decimal) *models.Transaction {
	l.seq++
	return &models.Transaction{
		ID:        fmt.Sprintf("9f3a1c2e-%04d", l.seq),
		AccountID: accountID,
		Type:      typ,
		Amount:    amount,
		Status:    models.TransactionStatusCompleted,
	}
}

func (l *fakeLedger) Deposit(_ context.Context, id string, m models.MoneyMovement) (*models.Transaction, error) {
	a := l.find(id)
	a.Balance = a.Balance.Add(m.Amount)
	return l.tx(id, models.TransactionTypeDeposit, m.Amount), nil
}

func (l *fakeLedger) Withdraw(_ context.Context, id string, m models.MoneyMovement) (*models.Transaction, error) {
	a := l.find(id)
	if a.Balance.LessThan(m.Amount) {
		return nil, fmt.Errorf("withdrawing: %w", models.ErrInsufficientFunds)
	}
	a.Balance = a.Balance.Sub(m.Amount)
	return l.tx(id, models.TransactionTypeWithdrawal, m.Amount), nil
}

func request(t *testing.T, mti, account, proc, amount, stan string) *iso8583.Message {
	t.Helper()
	msg := iso8583.NewMessage(bankiso.Spec)
	msg.MTI(mti)
	require.NoError(t, msg.Field(2, account))
	require.NoError(t, msg.Field(3, proc))
	require.NoError(t, msg.Field(4, amount))
	require.NoError(t, msg.Field(11, stan))
	return msg
}

func responseCode(t *testing.T, msg *iso8583.Message) string {
	t.Helper()
	code, err := msg.GetString(39)
	require.NoError(t, err)
	return code
}

func TestAdapter_Deposit(t *testing.T) {
	ledger := newFakeLedger()
	adapter := bankiso.NewAdapter(slog.Default(), ledger)

	resp := adapter.Handle(context.Background(), request(t, "0200", "000100000009", "210000", "1250", "000001"))

	mti, err := resp.GetMTI()
	require.NoError(t, err)
	require.Equal(t, "0210", mti)
	require.Equal(t, bankiso.Approved, responseCode(t, resp))

	approval, err := resp.GetString(38)
	require.NoError(t, err)
	require.Equal(t, "9F3A1C", approval)

	stan, err := resp.GetString(11)
	require.NoError(t, err)
	require.Equal(t, "000001", stan)

	require.Equal(t, "62.50", ledger.accounts["000100000009"].Balance.StringFixed(2))

	_, err = resp.Pack()
	require.NoError(t, err)
}

func TestAdapter_Declines(t *testing.T) {
	tests := []struct {
		name    string
		mti     string
		account string
		proc    string
		amount  string
		want    string
	}{
		{"insufficient funds", "0200", "000100000009", "010000", "10000", bankiso.InsufficientFunds},
		{"unknown account", "0200", "000100000017", "010000", "100", bankiso.InvalidAccount},
		{"bad check digit", "0200", "000100000001", "010000", "100", bankiso.InvalidAccount},
		{"zero amount", "0200", "000100000009", "010000", "0", bankiso.InvalidAmount},
		{"unsupported processing code", "0200", "000100000009", "300000", "100", bankiso.InvalidTransaction},
		{"unsupported mti", "0100", "000100000009", "010000", "100", bankiso.InvalidTransaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newFakeLedger()
			adapter := bankiso.NewAdapter(slog.Default(), ledger)

			resp := adapter.Handle(context.Background(), request(t, tt.mti, tt.account, tt.proc, tt.amount, "000002"))
			require.Equal(t, tt.want, responseCode(t, resp))
			require.Equal(t, "50.00", ledger.accounts["000100000009"].Balance.StringFixed(2))
		})
	}
}

func TestAdapter_ResponseMTIFollowsRequest(t *testing.T) {
	adapter := bankiso.NewAdapter(slog.Default(), newFakeLedger())
	resp := adapter.Handle(context.Background(), request(t, "0100", "000100000009", "010000", "100", "000003"))

	mti, err := resp.GetMTI()
	require.NoError(t, err)
	require.Equal(t, "0110", mti)
}

func TestAdapter_ProcessWithdrawal(t *testing.T) {
	ledger := newFakeLedger()
	adapter := bankiso.NewAdapter(slog.Default(), ledger)

	res := adapter.Process(context.Background(), bankiso.Request{
		AccountNumber:  "0001-0000-0009",
		ProcessingCode: "010000",
		Amount:         decimal.RequireFromString("20.00"),
		STAN:           "000004",
	})
	require.Equal(t, bankiso.Approved, res.ResponseCode)
	require.Len(t, res.ApprovalCode, 6)
	require.Equal(t, models.TransactionTypeWithdrawal, res.Transaction.Type)
	require.Equal(t, "30.00", ledger.accounts["000100000009"].Balance.StringFixed(2))
}

func TestResponseCode(t *testing.T) {
	require.Equal(t, bankiso.Approved, bankiso.ResponseCode(nil))
	require.Equal(t, bankiso.InvalidAmount, bankiso.ResponseCode(fmt.Errorf("x: %w", models.ErrInvalidAmount)))
	require.Equal(t, bankiso.InvalidAccount, bankiso.ResponseCode(repository.ErrNotFound))
	require.Equal(t, bankiso.InsufficientFunds, bankiso.ResponseCode(models.ErrInsufficientFunds))
	require.Equal(t, bankiso.SystemError, bankiso.ResponseCode(errors.New("db down")))
}
