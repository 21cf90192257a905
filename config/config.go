package config

import (
	"fmt"
	"sync"
	"time"

	"walletledger/database"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseName string `envconfig:"DATABASE_NAME"`

	// Transfer engine
	TransferMaxAttempts int `envconfig:"TRANSFER_MAX_ATTEMPTS" default:"3"`

	// Archival and retention
	LedgerRetentionMonths       int    `envconfig:"LEDGER_RETENTION_MONTHS" default:"12"`
	OperationalLogRetentionDays int    `envconfig:"OPERATIONAL_LOG_RETENTION_DAYS" default:"15"`
	ArchiveBatchSize            int    `envconfig:"ARCHIVE_BATCH_SIZE" default:"1000"`
	ArchiveSchedule             string `envconfig:"ARCHIVE_SCHEDULE" default:"0 3 * * *"`
	PurgeSchedule               string `envconfig:"PURGE_SCHEDULE" default:"30 3 * * *"`
	ScheduleTimezone            string `envconfig:"SCHEDULE_TIMEZONE" default:"UTC"`

	// Caller-side idempotency store, disabled when RedisAddr is empty
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// Administrator alerts, disabled when the webhook is not configured
	OpsWebhookID    string `envconfig:"OPS_WEBHOOK_ID"`
	OpsWebhookToken string `envconfig:"OPS_WEBHOOK_TOKEN"`

	// Environment
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		if instance != nil {
			return
		}
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// SetForTest installs cfg as the global configuration.
// Must be called before the first Get.
func SetForTest(cfg *Config) {
	instance = cfg
}

// ConnectionURL returns the database URL with the database name applied
func (c *Config) ConnectionURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// AlertsEnabled reports whether an administrator webhook is configured
func (c *Config) AlertsEnabled() bool {
	return c.OpsWebhookID != "" && c.OpsWebhookToken != ""
}

// IdempotencyEnabled reports whether the redis idempotency store is configured
func (c *Config) IdempotencyEnabled() bool {
	return c.RedisAddr != ""
}

// Validate checks value ranges that envconfig cannot express
func (c *Config) Validate() error {
	if c.Environment != "test" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TransferMaxAttempts <= 0 {
		return fmt.Errorf("TRANSFER_MAX_ATTEMPTS must be positive, got %d", c.TransferMaxAttempts)
	}
	if c.LedgerRetentionMonths <= 0 {
		return fmt.Errorf("LEDGER_RETENTION_MONTHS must be positive, got %d", c.LedgerRetentionMonths)
	}
	if c.OperationalLogRetentionDays <= 0 {
		return fmt.Errorf("OPERATIONAL_LOG_RETENTION_DAYS must be positive, got %d", c.OperationalLogRetentionDays)
	}
	if c.ArchiveBatchSize <= 0 {
		return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive, got %d", c.ArchiveBatchSize)
	}
	if _, err := time.LoadLocation(c.ScheduleTimezone); err != nil {
		return fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	return nil
}

// load loads configuration from environment variables
func load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
