// Package metrics defines the prometheus collectors exported by the bank service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bank"

type Collectors struct {
	AccountsOpened    *prometheus.CounterVec
	Transactions      *prometheus.CounterVec
	TransactionAmount *prometheus.CounterVec
	FeesCollected     prometheus.Counter
	LoanDecisions     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		AccountsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_opened_total",
			Help:      "Accounts opened by account type.",
		}, []string{"type"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by type and status.",
		}, []string{"type", "status"}),
		TransactionAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_amount_total",
			Help:      "Sum of completed transaction amounts by type.",
		}, []string{"type"}),
		FeesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected_total",
			Help:      "Sum of fees charged on completed transactions.",
		}),
		LoanDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loan_decisions_total",
			Help:      "Loan application decisions by status and decider.",
		}, []string{"status", "decided_by"}),
	}

	reg.MustRegister(c.AccountsOpened, c.Transactions, c.TransactionAmount, c.FeesCollected, c.LoanDecisions)

	return c
}

var (
	defaultOnce       sync.Once
	defaultCollectors *Collectors
)

// Default returns the collectors registered with the global prometheus registry.
// Registration happens on first use only; registering twice panics.
func Default() *Collectors {
	defaultOnce.Do(func() {
		defaultCollectors = New(prometheus.DefaultRegisterer)
	})
	return defaultCollectors
}
