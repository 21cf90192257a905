package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"walletledger/models"

	log "github.com/sirupsen/logrus"
)

// purgePreviewSamples is how many rows a dry run returns
const purgePreviewSamples = 10

// retentionService hard-deletes operational logs. It never touches the ledger
// and does not go through the ledger's unit of work.
type retentionService struct {
	logRepo   OperationalLogRepository
	batchSize int
	now       func() time.Time
}

// NewRetentionService creates a new operational log retention service
func NewRetentionService(logRepo OperationalLogRepository, batchSize int) RetentionService {
	if batchSize <= 0 {
		batchSize = DefaultArchiveBatchSize
	}
	return &retentionService{
		logRepo:   logRepo,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// PurgeOperationalLogsOlderThan deletes expired logs in bounded batches.
// A failing batch stops the run and is reported in the result, not as an error.
func (s *retentionService) PurgeOperationalLogsOlderThan(ctx context.Context, cutoff time.Time) (*models.PurgeResult, error) {
	if cutoff.IsZero() {
		return nil, fmt.Errorf("%w: cutoff must be set", ErrInvalidCutoff)
	}

	start := s.now()
	result := &models.PurgeResult{Cutoff: cutoff}

	// Delete in batches until a short batch signals the end
	for {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			break
		}

		deleted, err := s.logRepo.DeleteOlderThan(ctx, cutoff, s.batchSize)
		if err != nil {
			log.WithError(err).WithField("deletedSoFar", result.DeletedCount).Error("Operational log purge batch failed")
			result.Errors = append(result.Errors, err.Error())
			break
		}

		result.DeletedCount += deleted
		if deleted < int64(s.batchSize) {
			break
		}
	}

	result.Duration = s.now().Sub(start)

	log.WithFields(log.Fields{
		"cutoff":   cutoff.Format(time.RFC3339),
		"deleted":  result.DeletedCount,
		"errors":   len(result.Errors),
		"duration": result.Duration,
	}).Info("Operational log purge completed")

	return result, nil
}

func (s *retentionService) PreviewPurge(ctx context.Context, cutoff time.Time) (*models.PurgePreview, error) {
	if cutoff.IsZero() {
		return nil, fmt.Errorf("%w: cutoff must be set", ErrInvalidCutoff)
	}

	// Count everything eligible, then sample a few rows
	count, err := s.logRepo.CountOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	samples, err := s.logRepo.SampleOlderThan(ctx, cutoff, purgePreviewSamples)
	if err != nil {
		return nil, err
	}

	return &models.PurgePreview{Cutoff: cutoff, Count: count, Samples: samples}, nil
}

func (s *retentionService) Stats(ctx context.Context, cutoff time.Time) (*models.RetentionStats, error) {
	stats, err := s.logRepo.Stats(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	stats.WindowDays = int(math.Round(s.now().Sub(cutoff).Hours() / 24))
	return stats, nil
}
