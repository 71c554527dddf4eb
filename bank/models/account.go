package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "checking"
	AccountTypeSavings  AccountType = "savings"
	AccountTypeBusiness AccountType = "business"
	AccountTypePremium  AccountType = "premium"
)

// AccountTypes lists every supported account type.
var AccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeBusiness,
	AccountTypePremium,
}

func (t AccountType) Valid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// FeeCalculator returns the fee charged for moving amount out of an account.
type FeeCalculator interface {
	Calculate(amount decimal.Decimal) decimal.Decimal
}

type Account struct {
	ID        string          `json:"id" db:"id"`
	Number    string          `json:"number" db:"number"`
	OwnerName string          `json:"owner_name" db:"owner_name"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Type      AccountType     `json:"type" db:"type"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Deposit credits amount to the balance.
func (a *Account) Deposit(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = at

	return nil
}

// Withdraw debits amount plus the fee computed by fees and returns the fee.
// The account is left untouched when the balance does not cover both.
func (a *Account) Withdraw(amount decimal.Decimal, fees FeeCalculator, at time.Time) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	fee := decimal.Zero
	if fees != nil {
		fee = fees.Calculate(amount)
	}

	total := amount.Add(fee)
	if a.Balance.LessThan(total) {
		return decimal.Zero, ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(total)
	a.UpdatedAt = at

	return fee, nil
}

type CreateAccount struct {
	OwnerName      string          `json:"owner_name"`
	Type           AccountType     `json:"type"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}
