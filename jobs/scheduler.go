// Package jobs runs the scheduled ledger archival and operational log purge.
package jobs

import (
	"context"
	"fmt"
	"time"

	"walletledger/config"
	"walletledger/events"
	"walletledger/models"
	"walletledger/service"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Task names reported in maintenance events
const (
	TaskLedgerArchive = "ledger_archive"
	TaskLogPurge      = "log_purge"
)

// Scheduler triggers maintenance on cron schedules
type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	archive   service.ArchiveService
	retention service.RetentionService
	bus       *events.Bus
	now       func() time.Time
}

// NewScheduler creates a scheduler running in the configured timezone
func NewScheduler(cfg *config.Config, archive service.ArchiveService, retention service.RetentionService, bus *events.Bus) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule timezone %q: %w", cfg.ScheduleTimezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		cfg:       cfg,
		archive:   archive,
		retention: retention,
		bus:       bus,
		now:       time.Now,
	}, nil
}

// Start registers both maintenance jobs and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.ArchiveSchedule, func() {
		log.Info("[CRON] Ledger archival")
		if _, err := s.RunArchive(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ledger archival failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid archive schedule %q: %w", s.cfg.ArchiveSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.PurgeSchedule, func() {
		log.Info("[CRON] Operational log purge")
		if _, err := s.RunPurge(ctx); err != nil {
			log.WithError(err).Error("[CRON] Operational log purge failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", s.cfg.PurgeSchedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"archiveSchedule": s.cfg.ArchiveSchedule,
		"purgeSchedule":   s.cfg.PurgeSchedule,
		"timezone":        s.cfg.ScheduleTimezone,
	}).Info("Maintenance scheduler started")

	return nil
}

// Stop waits for running jobs and stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Maintenance scheduler stopped")
}

// RunArchive archives ledger entries older than the configured retention window
func (s *Scheduler) RunArchive(ctx context.Context) (*models.ArchiveResult, error) {
	return s.RunArchiveWithRetention(ctx, s.cfg.LedgerRetentionMonths)
}

// RunArchiveWithRetention archives ledger entries older than months and reports the run
func (s *Scheduler) RunArchiveWithRetention(ctx context.Context, months int) (*models.ArchiveResult, error) {
	cutoff := service.LedgerArchiveCutoff(s.now(), months)
	start := s.now()

	result, err := s.archive.ArchiveOlderThan(ctx, cutoff)

	event := events.MaintenanceCompletedEvent{Task: TaskLedgerArchive, Duration: s.now().Sub(start)}
	if result != nil {
		event.Processed = int64(result.MovedCount)
		for _, failure := range result.Failures {
			event.Failures = append(event.Failures, fmt.Sprintf("entry %d: %s", failure.OriginalID, failure.Error))
		}
	}
	if err != nil {
		event.Failures = append(event.Failures, err.Error())
	}
	s.bus.Emit(context.WithoutCancel(ctx), event)

	return result, err
}

// RunPurge deletes operational logs older than the configured retention window
func (s *Scheduler) RunPurge(ctx context.Context) (*models.PurgeResult, error) {
	return s.RunPurgeWithRetention(ctx, s.cfg.OperationalLogRetentionDays)
}

// RunPurgeWithRetention deletes operational logs older than days and reports the run
func (s *Scheduler) RunPurgeWithRetention(ctx context.Context, days int) (*models.PurgeResult, error) {
	cutoff := service.LogPurgeCutoff(s.now(), days)
	start := s.now()

	result, err := s.retention.PurgeOperationalLogsOlderThan(ctx, cutoff)

	event := events.MaintenanceCompletedEvent{Task: TaskLogPurge, Duration: s.now().Sub(start)}
	if result != nil {
		event.Processed = result.DeletedCount
		event.Failures = append(event.Failures, result.Errors...)
	}
	if err != nil {
		event.Failures = append(event.Failures, err.Error())
	}
	s.bus.Emit(context.WithoutCancel(ctx), event)

	return result, err
}

// RunAll runs both maintenance tasks concurrently. They touch disjoint tables.
func (s *Scheduler) RunAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := s.RunArchive(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.RunPurge(gctx)
		return err
	})

	return g.Wait()
}
