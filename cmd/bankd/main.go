// Command bankd runs the bank server and offers a CLI over its HTTP API.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"github.com/hemachand1989/banking-design-patterns/bank"
	"github.com/hemachand1989/banking-design-patterns/bank/repository"
	"github.com/hemachand1989/banking-design-patterns/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "bankd",
	Short: "banking design patterns playground",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dotenv, _ := cmd.Flags().GetString("dotenv")
		if dotenv == "" {
			return nil
		}
		if _, err := os.Stat(dotenv); err != nil {
			return nil
		}
		if err := godotenv.Load(dotenv); err != nil {
			return fmt.Errorf("loading %s: %w", dotenv, err)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API, the ISO 8583 server and the interest scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		app := bank.NewApp(logger, cfg)
		if err := app.Start(); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		s := <-sig
		logger.Info("received signal", "signal", s.String())

		app.Shutdown()
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "apply the postgres schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer closeLog()

		if cfg.Backend != bank.BackendPostgres {
			return fmt.Errorf("migrate needs the postgres backend, got %q", cfg.Backend)
		}

		db, err := sqlx.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		if err := repository.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("schema applied")
		return nil
	},
}

// loadRuntime reads the config and builds the logger. --debug overrides the
// configured log level.
func loadRuntime(cmd *cobra.Command) (*bank.Config, *slog.Logger, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := bank.LoadConfig(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if viper.GetBool("debug") {
		cfg.Log.Level = "debug"
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building logger: %w", err)
	}
	slog.SetDefault(logger)

	return cfg, logger, func() { closer.Close() }, nil
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "debug logging")
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("dotenv", ".env.local", "env file loaded before the config")
	rootCmd.PersistentFlags().String("server", "http://localhost:9090", "bank API base URL for client commands")

	rootCmd.AddCommand(serveCmd, migrateCmd)
	addClientCommands(rootCmd)
}

func main() {
	viper.SetEnvPrefix("BANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, "binding flags:", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
