package models

import "errors"

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSameAccount        = errors.New("source and destination accounts are the same")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidCreditScore = errors.New("credit score must be between 300 and 850")
	ErrNotReversible      = errors.New("transaction cannot be reversed")
	ErrApplicationDecided = errors.New("loan application already decided")
	ErrOwnerRequired      = errors.New("owner name is required")
	ErrAlreadyCredited    = errors.New("interest already credited for period")
)
