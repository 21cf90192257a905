package cmd

import (
	"context"
	"fmt"
	"time"

	"walletledger/config"

	log "github.com/sirupsen/logrus"
)

// Run starts the maintenance scheduler and blocks until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	SetupLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting wallet ledger...")

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	stopped := make(chan struct{})
	go func() {
		app.Scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("Shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("Shutdown timeout exceeded, abandoning running jobs")
	}

	return nil
}
