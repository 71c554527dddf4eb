package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeInterest    TransactionType = "interest"
	TransactionTypeReversal    TransactionType = "reversal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

type Transaction struct {
	ID          string            `json:"id" db:"id"`
	AccountID   string            `json:"account_id" db:"account_id"`
	Type        TransactionType   `json:"type" db:"type"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Fee         decimal.Decimal   `json:"fee" db:"fee"`
	Status      TransactionStatus `json:"status" db:"status"`
	Reference   string            `json:"reference,omitempty" db:"reference"`
	Description string            `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// Reversible reports whether the transaction can be compensated by a reversal.
func (t *Transaction) Reversible() bool {
	if t.Status != TransactionStatusCompleted {
		return false
	}
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeInterest,
		TransactionTypeTransferIn, TransactionTypeTransferOut:
		return true
	}
	return false
}

// Transfer is the pair of rows written for a transfer between two accounts.
type Transfer struct {
	Reference string       `json:"reference"`
	Debit     *Transaction `json:"debit"`
	Credit    *Transaction `json:"credit"`
}

type MoneyMovement struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

// FeeQuote is the cost of a prospective withdrawal.
type FeeQuote struct {
	AccountType AccountType     `json:"account_type"`
	Strategy    string          `json:"strategy"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Total       decimal.Decimal `json:"total"`
}
