package fee

import (
	"github.com/shopspring/decimal"
)

type capped struct {
	next    Strategy
	ceiling decimal.Decimal
}

// Capped limits the fee of next to ceiling.
func Capped(next Strategy, ceiling decimal.Decimal) Strategy {
	return capped{next: next, ceiling: ceiling}
}

func (c capped) Name() string { return c.next.Name() + " max " + c.ceiling.StringFixed(Places) }

func (c capped) Calculate(amount decimal.Decimal) decimal.Decimal {
	fee := c.next.Calculate(amount)
	if fee.GreaterThan(c.ceiling) {
		return normalize(c.ceiling)
	}
	return fee
}

type floored struct {
	next  Strategy
	floor decimal.Decimal
}

// Floored charges at least floor for any positive amount.
func Floored(next Strategy, floor decimal.Decimal) Strategy {
	return floored{next: next, floor: floor}
}

func (f floored) Name() string { return f.next.Name() + " min " + f.floor.StringFixed(Places) }

func (f floored) Calculate(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	fee := f.next.Calculate(amount)
	if fee.LessThan(f.floor) {
		return normalize(f.floor)
	}
	return fee
}

type discounted struct {
	next    Strategy
	percent decimal.Decimal
}

// Discounted takes percent off the fee of next. 100 waives it.
func Discounted(next Strategy, percent decimal.Decimal) Strategy {
	return discounted{next: next, percent: percent}
}

func (d discounted) Name() string { return d.next.Name() + " -" + d.percent.String() + "%" }

func (d discounted) Calculate(amount decimal.Decimal) decimal.Decimal {
	fee := d.next.Calculate(amount)
	factor := decimal.NewFromInt(100).Sub(d.percent).Div(decimal.NewFromInt(100))
	return normalize(fee.Mul(factor))
}
