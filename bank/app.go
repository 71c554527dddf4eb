package bank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"

	"github.com/hemachand1989/banking-design-patterns/bank/command"
	"github.com/hemachand1989/banking-design-patterns/bank/events"
	bankiso "github.com/hemachand1989/banking-design-patterns/bank/iso8583"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/hemachand1989/banking-design-patterns/internal/acctnum"
	"github.com/hemachand1989/banking-design-patterns/internal/metrics"
	"github.com/hemachand1989/banking-design-patterns/internal/middleware"
	"github.com/hemachand1989/banking-design-patterns/internal/period"
)

// App is the main application, it contains all the components of the bank
// and is responsible for starting and stopping them.
type App struct {
	srv               *http.Server
	wg                *sync.WaitGroup
	Addr              string
	ISO8583ServerAddr string
	logger            *slog.Logger
	config            *Config

	store         repository.UnitOfWork
	service       *Service
	invoker       *command.Invoker
	scheduler     *command.Scheduler
	iso8583Server io.Closer
	closers       []io.Closer
}

func NewApp(logger *slog.Logger, config *Config) *App {
	logger = logger.With(slog.String("app", "bank"))

	if config == nil {
		config = DefaultConfig()
	}

	return &App{
		wg:     &sync.WaitGroup{},
		logger: logger,
		config: config,
	}
}

// Service is available once Start has returned.
func (a *App) Service() *Service {
	return a.service
}

func (a *App) Start() error {
	a.logger.Info("starting app...")

	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := time.LoadLocation(a.config.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}
	period.SetDefaultLocation(loc)

	rate, err := decimal.NewFromString(a.config.InterestRate)
	if err != nil {
		return fmt.Errorf("parsing interest rate: %w", err)
	}
	threshold, err := decimal.NewFromString(a.config.LargeTransactionThreshold)
	if err != nil {
		return fmt.Errorf("parsing large transaction threshold: %w", err)
	}

	store, err := a.openStore()
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if a.config.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: a.config.RedisAddr})
		a.closers = append(a.closers, rdb)
		if a.config.CacheAccounts {
			store = repository.NewCachedStore(store, repository.NewRedisCache(rdb, "", a.config.CacheTTL))
		}
	}
	a.store = store

	publisher := events.NewPublisher()
	publisher.Subscribe("log", events.NewLogObserver(a.logger))
	publisher.Subscribe("metrics", events.NewMetricsObserver(metrics.Default()))
	publisher.Subscribe("large-transactions", &events.LargeTransactionAlert{
		Threshold: threshold,
		Alert: func(_ context.Context, e events.Event) error {
			a.logger.Warn("large transaction",
				"transaction_id", e.Transaction.ID,
				"type", string(e.Transaction.Type),
				"amount", e.Transaction.Amount.String(),
			)
			return nil
		},
	})
	if rdb != nil {
		publisher.Subscribe("redis", events.NewRedisPublisher(rdb, a.config.RedisChannel))
	}

	a.service = NewService(a.logger, store, publisher, a.config)

	if a.config.ISO8583Addr != "" {
		iso8583Server := bankiso.NewServer(a.logger, a.config.ISO8583Addr, bankiso.NewAdapter(a.logger, a.service))
		if err := iso8583Server.Start(); err != nil {
			return fmt.Errorf("starting iso8583 server: %w", err)
		}
		a.ISO8583ServerAddr = iso8583Server.Addr
		a.iso8583Server = iso8583Server
	}

	a.invoker = command.NewInvoker(0)
	a.scheduler = command.NewScheduler(a.logger, a.invoker)
	if a.config.InterestSchedule != "" {
		if _, err := a.scheduler.Schedule(a.config.InterestSchedule, command.InterestFactory(a.service, rate)); err != nil {
			return fmt.Errorf("scheduling interest accrual: %w", err)
		}
	}
	a.scheduler.Start()

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(middleware.NewStructuredLogger(a.logger))
	router.Use(chimw.Recoverer)

	api := NewAPI(a.service)
	api.AppendRoutes(router)

	// Health and admin endpoints
	router.Get("/-/live", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Get("/-/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Post("/dev/interest/accrue", a.accrueInterest(rate))
	router.Post("/dev/commands/undo", a.undoLastCommand)

	l, err := net.Listen("tcp", a.config.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp port: %w", err)
	}

	a.Addr = l.Addr().String()

	a.srv = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.wg.Add(1)
	go func() {
		a.logger.Info("http server started", slog.String("addr", a.Addr))

		if err := a.srv.Serve(l); err != nil {
			if err != http.ErrServerClosed {
				a.logger.Error("starting http server", "err", err)
			}

			a.logger.Info("http server stopped")
		}

		a.wg.Done()
	}()

	return nil
}

func (a *App) openStore() (repository.UnitOfWork, error) {
	switch a.config.Backend {
	case BackendPostgres:
		db, err := sqlx.Open("postgres", a.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if a.config.Migrate {
			if err := repository.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
		}
		a.closers = append(a.closers, db)
		return repository.NewPostgresStore(db), nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// accrueInterest runs interest accrual through the invoker. The optional
// ?period=YYYY-MM defaults to the previous month.
func (a *App) accrueInterest(rate decimal.Decimal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		month := period.Of(time.Now()).Previous()
		if label := r.URL.Query().Get("period"); label != "" {
			parsed, err := period.Parse(label)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			month = parsed
		}

		cmd := &command.AccrueInterest{Ledger: a.service, AnnualRate: rate, Period: month}
		if err := a.invoker.Execute(r.Context(), cmd); err != nil {
			writeError(w, err)
			return
		}

		credited := cmd.Credited()
		masked := make([]string, 0, len(credited))
		for _, tx := range credited {
			if account, err := a.service.GetAccount(r.Context(), tx.AccountID); err == nil {
				masked = append(masked, acctnum.Mask(account.Number))
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"period":       month.String(),
			"credited":     credited,
			"accounts":     masked,
			"command":      cmd.Name(),
			"history_size": len(a.invoker.History()),
		})
	}
}

func (a *App) undoLastCommand(w http.ResponseWriter, r *http.Request) {
	if err := a.invoker.Undo(r.Context()); err != nil {
		if errors.Is(err, command.ErrNothingToUndo) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Shutdown() {
	a.logger.Info("shutting down app...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.srv != nil {
		a.srv.Shutdown(ctx)
	}

	if a.iso8583Server != nil {
		if err := a.iso8583Server.Close(); err != nil {
			a.logger.Error("closing iso8583 server", "err", err)
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Error("stopping scheduler", "err", err)
		}
	}

	a.wg.Wait()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Error("closing resource", "err", err)
		}
	}

	a.logger.Info("app stopped")
}
