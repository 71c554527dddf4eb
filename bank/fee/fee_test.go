package fee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hemachand1989/banking-design-patterns/bank/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireFee(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "fee got %s want %s", got, want)
}

func TestForAccountType(t *testing.T) {
	cases := []struct {
		typ    models.AccountType
		amount string
		want   string
	}{
		{models.AccountTypeChecking, "100", "1.00"},
		{models.AccountTypeChecking, "0.01", "1.00"},
		{models.AccountTypeSavings, "50", "0.50"},
		{models.AccountTypeSavings, "1000", "5.00"},
		{models.AccountTypeSavings, "10000", "25.00"},
		{models.AccountTypeBusiness, "500", "2.00"},
		{models.AccountTypeBusiness, "1000", "2.00"},
		{models.AccountTypeBusiness, "5000", "12.50"},
		{models.AccountTypeBusiness, "20000", "20.00"},
		{models.AccountTypeBusiness, "100000", "50.00"},
		{models.AccountTypePremium, "100000", "0"},
	}
	for _, c := range cases {
		s, err := ForAccountType(c.typ)
		require.NoError(t, err)
		requireFee(t, c.want, s.Calculate(d(c.amount)))
	}
}

func TestForAccountType_Unknown(t *testing.T) {
	_, err := ForAccountType("crypto")
	require.ErrorIs(t, err, models.ErrInvalidAccountType)
}

func TestStrategies_NonPositiveAmount(t *testing.T) {
	strategies := []Strategy{
		NoFee{},
		FlatFee{Amount: d("3")},
		PercentageFee{Rate: d("1")},
		Floored(PercentageFee{Rate: d("1")}, d("1")),
		TieredFee{Tiers: []Tier{{Fee: FlatFee{Amount: d("1")}}}},
	}
	for _, s := range strategies {
		requireFee(t, "0", s.Calculate(decimal.Zero))
		requireFee(t, "0", s.Calculate(d("-10")))
	}
}

func TestPercentageFee_Rounding(t *testing.T) {
	requireFee(t, "0.33", PercentageFee{Rate: d("1")}.Calculate(d("33.33")))
	requireFee(t, "0.17", PercentageFee{Rate: d("0.5")}.Calculate(d("33.33")))
}

func TestTieredFee_Boundaries(t *testing.T) {
	s := TieredFee{Tiers: []Tier{
		{UpTo: d("100"), Fee: FlatFee{Amount: d("1")}},
		{UpTo: d("200"), Fee: FlatFee{Amount: d("2")}},
	}}
	requireFee(t, "1", s.Calculate(d("100")))
	requireFee(t, "2", s.Calculate(d("100.01")))
	// no tier covers the amount
	requireFee(t, "0", s.Calculate(d("500")))
}

func TestDecorators(t *testing.T) {
	base := FlatFee{Amount: d("10")}

	requireFee(t, "5", Capped(base, d("5")).Calculate(d("1")))
	requireFee(t, "10", Capped(base, d("50")).Calculate(d("1")))
	requireFee(t, "12", Floored(base, d("12")).Calculate(d("1")))
	requireFee(t, "7.5", Discounted(base, d("25")).Calculate(d("1")))
	requireFee(t, "0", Discounted(base, d("100")).Calculate(d("1")))
	require.Contains(t, Capped(base, d("5")).Name(), "max 5.00")
}

func TestQuote(t *testing.T) {
	got, err := Quote(models.AccountTypeChecking, d("20"))
	require.NoError(t, err)
	requireFee(t, "1", got)

	_, err = Quote(models.AccountTypeChecking, decimal.Zero)
	require.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = Quote("gold", d("1"))
	require.ErrorIs(t, err, models.ErrInvalidAccountType)
}
