package bank

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is a configuration for the bank application
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// ISO8583Addr is where terminals connect. Empty disables the ISO 8583 server.
	ISO8583Addr string `mapstructure:"iso8583_addr"`

	// Backend selects the store: "memory" or "postgres".
	Backend     string `mapstructure:"backend"`
	DatabaseDSN string `mapstructure:"database_dsn"`
	// Migrate applies the schema on start when using postgres.
	Migrate bool `mapstructure:"migrate"`

	// RedisAddr enables the account cache and event fan-out to redis.
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisChannel  string        `mapstructure:"redis_channel"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheAccounts bool          `mapstructure:"cache_accounts"`

	// Branch is the 4-digit branch code prefixed to new account numbers.
	Branch string `mapstructure:"branch"`
	// Timezone is an IANA name used for statement periods and schedules.
	Timezone string `mapstructure:"timezone"`

	// InterestRate is the annual savings rate as a decimal string, e.g. "0.02".
	InterestRate     string `mapstructure:"interest_rate"`
	InterestSchedule string `mapstructure:"interest_schedule"`

	// LargeTransactionThreshold triggers an alert log for bigger movements.
	LargeTransactionThreshold string `mapstructure:"large_transaction_threshold"`

	Log LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives logs rotated by size.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:                  "localhost:9090",
		ISO8583Addr:               "localhost:8583",
		Backend:                   BackendMemory,
		RedisChannel:              "bank:events",
		CacheTTL:                  30 * time.Second,
		CacheAccounts:             true,
		Branch:                    "0001",
		Timezone:                  "UTC",
		InterestRate:              "0.02",
		InterestSchedule:          "@monthly",
		LargeTransactionThreshold: "10000",
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig reads configuration from defaults, the optional file at path and
// BANK_* environment variables, in increasing order of precedence. Nested keys
// use underscores in the environment, e.g. BANK_LOG_LEVEL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("http_addr", def.HTTPAddr)
	v.SetDefault("iso8583_addr", def.ISO8583Addr)
	v.SetDefault("backend", def.Backend)
	v.SetDefault("database_dsn", def.DatabaseDSN)
	v.SetDefault("migrate", def.Migrate)
	v.SetDefault("redis_addr", def.RedisAddr)
	v.SetDefault("redis_channel", def.RedisChannel)
	v.SetDefault("cache_ttl", def.CacheTTL)
	v.SetDefault("cache_accounts", def.CacheAccounts)
	v.SetDefault("branch", def.Branch)
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("interest_rate", def.InterestRate)
	v.SetDefault("interest_schedule", def.InterestSchedule)
	v.SetDefault("large_transaction_threshold", def.LargeTransactionThreshold)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)

	v.SetEnvPrefix("BANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late at start.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("database_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	return nil
}
