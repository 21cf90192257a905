package cmd

import (
	"context"
	"fmt"
	"os"

	"walletledger/alerts"
	"walletledger/config"
	"walletledger/database"
	"walletledger/events"
	"walletledger/idempotency"
	"walletledger/jobs"
	"walletledger/repository"
	"walletledger/service"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// App holds the wired services shared by the scheduler and the one-shot commands
type App struct {
	Config    *config.Config
	DB        *database.DB
	Bus       *events.Bus
	Accounts  service.AccountService
	Transfers service.TransferService
	Lifecycle service.LifecycleService
	Archive   service.ArchiveService
	Retention service.RetentionService
	Scheduler *jobs.Scheduler

	// Idempotent is nil when no redis store is configured
	Idempotent *idempotency.Transferer

	redis *redis.Client
}

// SetupLogging configures the global logger from cfg
func SetupLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)
	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// NewApp connects to the database and wires every service
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.ConnectionURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	app := &App{
		Config:    cfg,
		DB:        db,
		Bus:       eventBus,
		Accounts:  service.NewAccountService(uowFactory),
		Transfers: service.NewTransferService(uowFactory, cfg.TransferMaxAttempts),
		Lifecycle: service.NewLifecycleService(uowFactory),
		Archive:   service.NewArchiveService(uowFactory, cfg.ArchiveBatchSize),
		Retention: service.NewRetentionService(repository.NewOperationalLogRepository(db), cfg.ArchiveBatchSize),
	}

	var notifier alerts.Notifier = alerts.NopNotifier{}
	if cfg.AlertsEnabled() {
		discord, err := alerts.NewDiscordNotifier(cfg.OpsWebhookID, cfg.OpsWebhookToken, cfg.Environment)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize alerts: %w", err)
		}
		notifier = discord
		log.Info("Administrator alerts enabled")
	}
	alerts.Subscribe(eventBus, notifier)

	app.Scheduler, err = jobs.NewScheduler(cfg, app.Archive, app.Retention, eventBus)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	if cfg.IdempotencyEnabled() {
		app.redis = idempotency.NewRedisClient(cfg)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Idempotent = idempotency.NewTransferer(app.Transfers, app.redis, cfg.IdempotencyTTL)
		log.WithField("addr", cfg.RedisAddr).Info("Idempotency store connected")
	}

	return app, nil
}

// Close releases the database and redis connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.WithError(err).Warn("Error closing redis connection")
		}
	}
	a.DB.Close()
}
