package service

import (
	"context"
	"fmt"
	"time"

	"walletledger/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultArchiveBatchSize bounds rows read and locked per archival transaction
const DefaultArchiveBatchSize = 1000

type archiveService struct {
	uowFactory UnitOfWorkFactory
	batchSize  int
	now        func() time.Time
}

// NewArchiveService creates a new ledger archival service
func NewArchiveService(uowFactory UnitOfWorkFactory, batchSize int) ArchiveService {
	if batchSize <= 0 {
		batchSize = DefaultArchiveBatchSize
	}
	return &archiveService{
		uowFactory: uowFactory,
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// ArchiveOlderThan copies entries created before cutoff into cold storage and then
// removes the hot rows that were copied. Each batch commits on its own. A row that
// fails to copy is recorded and stays in the hot table; the run still succeeds.
// Re-running is safe: cold storage is unique on the original id.
func (s *archiveService) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (*models.ArchiveResult, error) {
	// Validate cutoff
	if cutoff.IsZero() {
		return nil, fmt.Errorf("%w: cutoff must be set", ErrInvalidCutoff)
	}
	start := s.now()
	if cutoff.After(start) {
		return nil, fmt.Errorf("%w: %s is in the future", ErrInvalidCutoff, cutoff.Format(time.RFC3339))
	}

	result := &models.ArchiveResult{
		BatchID: uuid.New(),
		Cutoff:  cutoff,
		Success: true,
	}

	logger := log.WithFields(log.Fields{
		"batchID": result.BatchID,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	logger.Info("Starting ledger archival")

	// Walk eligible rows one keyset page at a time
	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return s.abort(result, start, err)
		}

		processed, lastID, err := s.archiveBatch(ctx, cutoff, afterID, result)
		if err != nil {
			return s.abort(result, start, err)
		}
		if processed < s.batchSize {
			break
		}
		afterID = lastID
	}

	result.Duration = s.now().Sub(start)

	logger.WithFields(log.Fields{
		"moved":    result.MovedCount,
		"failures": len(result.Failures),
		"duration": result.Duration,
	}).Info("Ledger archival completed")

	return result, nil
}

// archiveBatch moves one keyset page of eligible rows and folds the outcome into result
func (s *archiveService) archiveBatch(ctx context.Context, cutoff time.Time, afterID int64, result *models.ArchiveResult) (int, int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, afterID, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Read and lock the next page
	entries, err := uow.LedgerRepository().ListOlderThan(ctx, cutoff, afterID, s.batchSize)
	if err != nil {
		return 0, afterID, fmt.Errorf("failed to read archival batch: %w", err)
	}
	if len(entries) == 0 {
		return 0, afterID, nil
	}

	// Copy each row, skipping the ones that fail
	var failures []models.RowFailure
	copied := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if _, err := uow.ArchiveRepository().CopyEntry(ctx, entry, result.BatchID); err != nil {
			log.WithFields(log.Fields{
				"entryID": entry.ID,
				"batchID": result.BatchID,
			}).WithError(err).Warn("Failed to archive ledger entry, skipping")
			failures = append(failures, models.RowFailure{OriginalID: entry.ID, Error: err.Error()})
			continue
		}
		copied = append(copied, entry.ID)
	}

	// Delete only what made it to cold storage
	moved, err := uow.LedgerRepository().DeleteArchived(ctx, copied)
	if err != nil {
		return 0, afterID, fmt.Errorf("failed to remove archived rows: %w", err)
	}

	// Commit transaction
	if err := uow.Commit(); err != nil {
		return 0, afterID, fmt.Errorf("failed to commit archival batch: %w", err)
	}

	result.MovedCount += int(moved)
	result.Failures = append(result.Failures, failures...)

	lastID := entries[len(entries)-1].ID
	log.WithFields(log.Fields{
		"batchID":  result.BatchID,
		"rows":     len(entries),
		"moved":    moved,
		"failures": len(failures),
		"lastID":   lastID,
	}).Debug("Archival batch committed")

	return len(entries), lastID, nil
}

func (s *archiveService) abort(result *models.ArchiveResult, start time.Time, cause error) (*models.ArchiveResult, error) {
	result.Success = false
	result.Duration = s.now().Sub(start)

	log.WithFields(log.Fields{
		"batchID": result.BatchID,
		"moved":   result.MovedCount,
	}).WithError(cause).Error("Ledger archival aborted")

	return result, &ArchivalPartialFailureError{Result: result, Cause: cause}
}

// RestoreBatch moves one archive batch back into the hot ledger under its original ids
func (s *archiveService) RestoreBatch(ctx context.Context, batchID uuid.UUID) (*models.RestoreResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Capture the batch before it leaves cold storage
	batch, err := uow.ArchiveRepository().ListBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}

	// Move rows back under their original ids
	restored, err := uow.ArchiveRepository().RestoreBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	originalIDs := make([]int64, 0, len(batch))
	for _, entry := range batch {
		originalIDs = append(originalIDs, entry.OriginalID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"batchID":   batchID,
		"batchSize": len(batch),
		"restored":  restored,
	}).Warn("Archive batch restored into hot ledger")

	return &models.RestoreResult{
		BatchID:       batchID,
		RestoredCount: int(restored),
		OriginalIDs:   originalIDs,
	}, nil
}

func (s *archiveService) Stats(ctx context.Context, cutoff time.Time) (*models.ArchiveStats, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stats, err := uow.ArchiveRepository().Stats(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
