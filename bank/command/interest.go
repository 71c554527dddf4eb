package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
	"github.com/hemachand1989/banking-design-patterns/internal/period"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

var monthsPerYear = decimal.NewFromInt(12)

// MonthlyInterest is one month of interest on balance at annualRate, rounded
// to cents.
func MonthlyInterest(balance, annualRate decimal.Decimal) decimal.Decimal {
	return balance.Mul(annualRate).Div(monthsPerYear).Round(2)
}

// AccrueInterest credits one month of interest to every savings account with
// a positive balance. Accounts already credited for the period are skipped.
type AccrueInterest struct {
	Ledger     Ledger
	AnnualRate decimal.Decimal
	Period     period.Month

	credited []*models.Transaction
}

func (c *AccrueInterest) Name() string { return "accrue-interest " + c.Period.String() }

func (c *AccrueInterest) Execute(ctx context.Context) error {
	if !c.AnnualRate.IsPositive() {
		return fmt.Errorf("annual rate %s: %w", c.AnnualRate, models.ErrInvalidAmount)
	}
	accounts, err := c.Ledger.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	c.credited = nil
	label := c.Period.String()
	var errs error
	for _, a := range accounts {
		if a.Type != models.AccountTypeSavings || !a.Balance.IsPositive() {
			continue
		}
		amount := MonthlyInterest(a.Balance, c.AnnualRate)
		if !amount.IsPositive() {
			continue
		}
		tx, err := c.Ledger.CreditInterest(ctx, a.ID, amount, label)
		if errors.Is(err, models.ErrAlreadyCredited) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("account %s: %w", a.ID, err))
			continue
		}
		c.credited = append(c.credited, tx)
	}
	return errs
}

func (c *AccrueInterest) Undo(ctx context.Context) error {
	if c.credited == nil {
		return ErrNotExecuted
	}
	var errs error
	for i := len(c.credited) - 1; i >= 0; i-- {
		if _, err := c.Ledger.Reverse(ctx, c.credited[i].ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reversing %s: %w", c.credited[i].ID, err))
		}
	}
	if errs == nil {
		c.credited = nil
	}
	return errs
}

// Credited returns the interest rows written by the last Execute.
func (c *AccrueInterest) Credited() []*models.Transaction { return c.credited }
