package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusApproved LoanStatus = "approved"
	LoanStatusRejected LoanStatus = "rejected"
)

type LoanApplication struct {
	ID          string          `json:"id" db:"id"`
	AccountID   string          `json:"account_id,omitempty" db:"account_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	CreditScore int             `json:"credit_score" db:"credit_score"`
	Purpose     string          `json:"purpose,omitempty" db:"purpose"`
	Status      LoanStatus      `json:"status" db:"status"`
	DecidedBy   string          `json:"decided_by,omitempty" db:"decided_by"`
	Reason      string          `json:"reason,omitempty" db:"reason"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	DecidedAt   *time.Time      `json:"decided_at,omitempty" db:"decided_at"`
}

func (l *LoanApplication) Decided() bool {
	return l.Status == LoanStatusApproved || l.Status == LoanStatusRejected
}

func (l *LoanApplication) Approve(by string, at time.Time) error {
	if l.Decided() {
		return ErrApplicationDecided
	}
	l.Status = LoanStatusApproved
	l.DecidedBy = by
	l.DecidedAt = &at
	return nil
}

func (l *LoanApplication) Reject(by, reason string, at time.Time) error {
	if l.Decided() {
		return ErrApplicationDecided
	}
	l.Status = LoanStatusRejected
	l.DecidedBy = by
	l.Reason = reason
	l.DecidedAt = &at
	return nil
}

type LoanRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	CreditScore int             `json:"credit_score"`
	Purpose     string          `json:"purpose"`
}
