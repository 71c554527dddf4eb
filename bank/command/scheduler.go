package command

import (
	"context"
	"time"

	"github.com/hemachand1989/banking-design-patterns/internal/period"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

// Factory builds the command for a run started at the given time.
type Factory func(now time.Time) Command

// Scheduler runs commands through an Invoker on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	invoker *Invoker
	logger  *slog.Logger
}

func NewScheduler(logger *slog.Logger, invoker *Invoker) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(period.DefaultLocation())),
		invoker: invoker,
		logger:  logger,
	}
}

// Schedule registers factory under a standard five-field cron spec or a
// descriptor such as "@monthly".
func (s *Scheduler) Schedule(spec string, factory Factory) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		cmd := factory(time.Now())
		s.logger.Info("running scheduled command", "command", cmd.Name())
		if err := s.invoker.Execute(context.Background(), cmd); err != nil {
			s.logger.Error("scheduled command failed", "command", cmd.Name(), "err", err)
		}
	})
}

func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InterestFactory credits interest for the month before the run time, so a
// job firing on the first of the month pays the month that just ended.
func InterestFactory(ledger Ledger, annualRate decimal.Decimal) Factory {
	return func(now time.Time) Command {
		return &AccrueInterest{
			Ledger:     ledger,
			AnnualRate: annualRate,
			Period:     period.Of(now).Previous(),
		}
	}
}
