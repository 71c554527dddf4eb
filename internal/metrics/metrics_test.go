package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsSingleton(t *testing.T) {
	first := Default()
	second := Default()
	require.Same(t, first, second)

	first.Transactions.WithLabelValues("deposit", "completed").Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(second.Transactions.WithLabelValues("deposit", "completed")))
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.FeesCollected.Add(2.5)
	c.LoanDecisions.WithLabelValues("approved", "system").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["bank_fees_collected_total"])
	require.True(t, names["bank_loan_decisions_total"])

	require.Panics(t, func() { New(reg) })
}
