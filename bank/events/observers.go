package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"github.com/hemachand1989/banking-design-patterns/internal/acctnum"
	"github.com/hemachand1989/banking-design-patterns/internal/metrics"
)

// LogObserver writes every event to a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With(slog.String("observer", "log"))}
}

func (o *LogObserver) Notify(ctx context.Context, e Event) error {
	attrs := []any{slog.String("event_id", e.ID), slog.String("type", string(e.Type))}
	if e.Account != nil {
		attrs = append(attrs, slog.String("account", acctnum.Mask(e.Account.Number)))
	}
	if e.Transaction != nil {
		attrs = append(attrs,
			slog.String("transaction_id", e.Transaction.ID),
			slog.String("transaction_type", string(e.Transaction.Type)),
			slog.String("amount", e.Transaction.Amount.String()),
			slog.String("fee", e.Transaction.Fee.String()),
		)
	}
	if e.Loan != nil {
		attrs = append(attrs,
			slog.String("loan_id", e.Loan.ID),
			slog.String("status", string(e.Loan.Status)),
			slog.String("decided_by", e.Loan.DecidedBy),
		)
	}

	if e.Error != "" {
		o.logger.WarnContext(ctx, "bank event", append(attrs, slog.String("err", e.Error))...)
		return nil
	}
	o.logger.InfoContext(ctx, "bank event", attrs...)
	return nil
}

// MetricsObserver counts events into prometheus collectors.
type MetricsObserver struct {
	collectors *metrics.Collectors
}

func NewMetricsObserver(c *metrics.Collectors) *MetricsObserver {
	return &MetricsObserver{collectors: c}
}

func (o *MetricsObserver) Notify(_ context.Context, e Event) error {
	switch e.Type {
	case AccountOpened:
		if e.Account != nil {
			o.collectors.AccountsOpened.WithLabelValues(string(e.Account.Type)).Inc()
		}
	case TransactionCompleted, TransactionFailed, TransactionReversed:
		tx := e.Transaction
		if tx == nil {
			return nil
		}
		o.collectors.Transactions.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
		if e.Type == TransactionCompleted {
			amount, _ := tx.Amount.Float64()
			o.collectors.TransactionAmount.WithLabelValues(string(tx.Type)).Add(amount)
			if tx.Fee.IsPositive() {
				fee, _ := tx.Fee.Float64()
				o.collectors.FeesCollected.Add(fee)
			}
		}
	case LoanDecided:
		if e.Loan != nil {
			o.collectors.LoanDecisions.WithLabelValues(string(e.Loan.Status), e.Loan.DecidedBy).Inc()
		}
	}
	return nil
}

// LargeTransactionAlert calls Alert for completed transactions of at least Threshold.
type LargeTransactionAlert struct {
	Threshold decimal.Decimal
	Alert     func(ctx context.Context, e Event) error
}

func (o *LargeTransactionAlert) Notify(ctx context.Context, e Event) error {
	if e.Type != TransactionCompleted || e.Transaction == nil {
		return nil
	}
	if e.Transaction.Amount.LessThan(o.Threshold) {
		return nil
	}
	return o.Alert(ctx, e)
}

// RedisClient is the part of *redis.Client used by RedisPublisher.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher forwards events as JSON to a redis pub/sub channel.
type RedisPublisher struct {
	client  RedisClient
	channel string
}

func NewRedisPublisher(client RedisClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = "bank:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (o *RedisPublisher) Notify(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := o.client.Publish(ctx, o.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", o.channel, err)
	}
	return nil
}
