package models

import (
	"time"

	"github.com/google/uuid"
)

// RowFailure records one ledger row that could not be archived
type RowFailure struct {
	OriginalID int64
	Error      string
}

// ArchiveResult is the aggregate outcome of an archival run.
// Success stays true when individual rows failed; those are listed in Failures.
type ArchiveResult struct {
	BatchID    uuid.UUID
	Cutoff     time.Time
	MovedCount int
	Failures   []RowFailure
	Success    bool
	Duration   time.Duration
}

// RestoreResult is the outcome of restoring an archive batch into the hot ledger
type RestoreResult struct {
	BatchID       uuid.UUID
	RestoredCount int
	OriginalIDs   []int64
}

// ArchiveStats summarizes hot and cold ledger storage
type ArchiveStats struct {
	HotEntries         int64
	ArchivedEntries    int64
	ArchiveBatches     int64
	EligibleForArchive int64
	OldestHotEntry     *time.Time
	OldestArchived     *time.Time
	NewestArchived     *time.Time
	HotTableSize       string
	ArchiveTableSize   string
}
