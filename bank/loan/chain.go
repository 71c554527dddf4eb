// Package loan decides loan applications with a chain of approval handlers.
// Each handler either decides the application or hands it to the next one.
package loan

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

const (
	MinScore = 300
	MaxScore = 850
)

// Handler is one link of the approval chain.
type Handler interface {
	SetNext(next Handler) Handler
	Handle(ctx context.Context, app *models.LoanApplication) error
}

// Limits configures the approval chain.
type Limits struct {
	MinCreditScore   int
	AutoApproveLimit decimal.Decimal
	AutoApproveScore int
	OfficerLimit     decimal.Decimal
	OfficerScore     int
	ManagerLimit     decimal.Decimal
	ManagerScore     int
}

func DefaultLimits() Limits {
	return Limits{
		MinCreditScore:   580,
		AutoApproveLimit: decimal.NewFromInt(10_000),
		AutoApproveScore: 720,
		OfficerLimit:     decimal.NewFromInt(50_000),
		OfficerScore:     650,
		ManagerLimit:     decimal.NewFromInt(250_000),
		ManagerScore:     700,
	}
}

// NewChain links validation, credit check and the approvers in ascending order of authority.
func NewChain(limits Limits, now func() time.Time) Handler {
	if now == nil {
		now = time.Now
	}

	head := &Validation{}
	head.SetNext(&CreditCheck{MinScore: limits.MinCreditScore, now: now}).
		SetNext(&Approver{Name: "system", Limit: limits.AutoApproveLimit, MinScore: limits.AutoApproveScore, now: now}).
		SetNext(&Approver{Name: "loan-officer", Limit: limits.OfficerLimit, MinScore: limits.OfficerScore, now: now}).
		SetNext(&Approver{Name: "branch-manager", Limit: limits.ManagerLimit, MinScore: limits.ManagerScore, now: now}).
		SetNext(&Terminal{now: now})

	return head
}

type link struct {
	next Handler
}

func (l *link) SetNext(next Handler) Handler {
	l.next = next
	return next
}

func stamp(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func (l *link) forward(ctx context.Context, app *models.LoanApplication) error {
	if l.next == nil {
		return nil
	}
	return l.next.Handle(ctx, app)
}

// Validation rejects malformed applications with an error instead of a decision.
type Validation struct {
	link
}

func (v *Validation) Handle(ctx context.Context, app *models.LoanApplication) error {
	if !app.Amount.IsPositive() {
		return models.ErrInvalidAmount
	}
	if app.CreditScore < MinScore || app.CreditScore > MaxScore {
		return models.ErrInvalidCreditScore
	}
	if app.Decided() {
		return models.ErrApplicationDecided
	}
	return v.forward(ctx, app)
}

// CreditCheck rejects applicants below the minimum credit score.
type CreditCheck struct {
	link
	MinScore int
	now      func() time.Time
}

func (c *CreditCheck) Handle(ctx context.Context, app *models.LoanApplication) error {
	if app.CreditScore < c.MinScore {
		return app.Reject("credit-check", "credit score below minimum", stamp(c.now))
	}
	return c.forward(ctx, app)
}

// Approver approves applications within its lending authority.
type Approver struct {
	link
	Name     string
	Limit    decimal.Decimal
	MinScore int
	now      func() time.Time
}

func (a *Approver) Handle(ctx context.Context, app *models.LoanApplication) error {
	if app.Amount.LessThanOrEqual(a.Limit) && app.CreditScore >= a.MinScore {
		return app.Approve(a.Name, stamp(a.now))
	}
	return a.forward(ctx, app)
}

// Terminal rejects whatever reaches the end of the chain.
type Terminal struct {
	link
	now func() time.Time
}

func (t *Terminal) Handle(_ context.Context, app *models.LoanApplication) error {
	return app.Reject("chain", "no approver accepted the application", stamp(t.now))
}
