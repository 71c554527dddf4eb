// Package fee holds the withdrawal fee strategies and the factory that picks one
// for an account type.
package fee

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

// Places is the number of decimal places fees are rounded to.
const Places = 2

// Strategy computes the fee charged for moving amount out of an account.
type Strategy interface {
	Name() string
	Calculate(amount decimal.Decimal) decimal.Decimal
}

// normalize rounds fee to cents and clamps it at zero.
func normalize(fee decimal.Decimal) decimal.Decimal {
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee.Round(Places)
}

type NoFee struct{}

func (NoFee) Name() string { return "none" }

func (NoFee) Calculate(decimal.Decimal) decimal.Decimal { return decimal.Zero }

type FlatFee struct {
	Amount decimal.Decimal
}

func (f FlatFee) Name() string { return "flat " + f.Amount.StringFixed(Places) }

func (f FlatFee) Calculate(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return normalize(f.Amount)
}

// PercentageFee charges Rate percent of the amount.
type PercentageFee struct {
	Rate decimal.Decimal
}

func (f PercentageFee) Name() string { return f.Rate.String() + "%" }

func (f PercentageFee) Calculate(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return normalize(amount.Mul(f.Rate).Div(decimal.NewFromInt(100)))
}

// Tier applies Fee to amounts up to and including UpTo. A zero UpTo has no upper bound.
type Tier struct {
	UpTo decimal.Decimal
	Fee  Strategy
}

// TieredFee uses the first tier covering the amount. Tiers must be sorted by UpTo
// with the unbounded tier last.
type TieredFee struct {
	Tiers []Tier
}

func (f TieredFee) Name() string { return fmt.Sprintf("tiered(%d)", len(f.Tiers)) }

func (f TieredFee) Calculate(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	for _, tier := range f.Tiers {
		if tier.UpTo.IsZero() || amount.LessThanOrEqual(tier.UpTo) {
			return normalize(tier.Fee.Calculate(amount))
		}
	}
	return decimal.Zero
}

var (
	checkingFlat  = decimal.RequireFromString("1.00")
	savingsRate   = decimal.RequireFromString("0.5")
	savingsMin    = decimal.RequireFromString("0.50")
	savingsMax    = decimal.RequireFromString("25.00")
	businessSmall = decimal.RequireFromString("1000")
	businessMid   = decimal.RequireFromString("10000")
	businessMax   = decimal.RequireFromString("50.00")
)

// ForAccountType returns the fee strategy applied to withdrawals and outgoing
// transfers of the given account type.
func ForAccountType(t models.AccountType) (Strategy, error) {
	switch t {
	case models.AccountTypeChecking:
		return FlatFee{Amount: checkingFlat}, nil
	case models.AccountTypeSavings:
		return Capped(Floored(PercentageFee{Rate: savingsRate}, savingsMin), savingsMax), nil
	case models.AccountTypeBusiness:
		return TieredFee{Tiers: []Tier{
			{UpTo: businessSmall, Fee: FlatFee{Amount: decimal.NewFromInt(2)}},
			{UpTo: businessMid, Fee: PercentageFee{Rate: decimal.RequireFromString("0.25")}},
			{Fee: Capped(PercentageFee{Rate: decimal.RequireFromString("0.1")}, businessMax)},
		}}, nil
	case models.AccountTypePremium:
		return NoFee{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidAccountType, t)
	}
}

// Quote returns the fee a withdrawal of amount would cost on an account of type t.
func Quote(t models.AccountType, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, models.ErrInvalidAmount
	}
	s, err := ForAccountType(t)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Calculate(amount), nil
}
