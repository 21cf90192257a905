package repository

import (
	"context"
	"fmt"
	"time"

	"walletledger/database"
	"walletledger/models"

	"github.com/google/uuid"
)

// ArchiveRepository implements the ArchiveRepository interface
type ArchiveRepository struct {
	q queryable
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *database.DB) *ArchiveRepository {
	return &ArchiveRepository{q: db.Pool}
}

// newArchiveRepositoryWithTx creates a new archive repository with a transaction
func newArchiveRepositoryWithTx(tx queryable) *ArchiveRepository {
	return &ArchiveRepository{q: tx}
}

// CopyEntry copies entry into cold storage under batchID inside a savepoint,
// so a rejected row does not abort the surrounding transaction
func (r *ArchiveRepository) CopyEntry(ctx context.Context, entry *models.LedgerEntry, batchID uuid.UUID) (bool, error) {
	metadataJSON, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata of ledger entry %d: %w", entry.ID, err)
	}

	var retractedAt *time.Time
	var retractedBy *int64
	var retractionReason *string
	if entry.Retraction != nil {
		retractedAt = &entry.Retraction.At
		retractedBy = &entry.Retraction.ActorID
		retractionReason = &entry.Retraction.Reason
	}

	savepoint, err := r.q.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open savepoint for ledger entry %d: %w", entry.ID, err)
	}
	defer savepoint.Rollback(ctx)

	query := `
		INSERT INTO archived_ledger_entries (original_id, ` + ledgerFields + `, archive_batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (original_id) DO NOTHING
	`

	result, err := savepoint.Exec(ctx, query,
		entry.ID,
		entry.FromAccountID,
		entry.ToAccountID,
		entry.FromDisplayName,
		entry.ToDisplayName,
		entry.Amount,
		entry.Kind,
		metadataJSON,
		entry.FromBalanceBefore,
		entry.FromBalanceAfter,
		entry.ToBalanceBefore,
		entry.ToBalanceAfter,
		retractedAt,
		retractedBy,
		retractionReason,
		entry.CreatedAt,
		batchID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to archive ledger entry %d: %w", entry.ID, err)
	}

	if err := savepoint.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to release savepoint for ledger entry %d: %w", entry.ID, err)
	}

	return result.RowsAffected() == 1, nil
}

// CopyAccount copies the account row into cold storage
func (r *ArchiveRepository) CopyAccount(ctx context.Context, account *models.Account, reason string, actorID int64) error {
	query := `
		INSERT INTO archived_accounts (
			original_id, account_type, user_name, name, email, phone, balance, owner_ref,
			status, created_at, updated_at, archive_reason, archived_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (original_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query,
		account.ID,
		account.Type,
		account.UserName,
		account.Name,
		account.Email,
		account.Phone,
		account.Balance,
		account.OwnerRef,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
		reason,
		actorID,
	)
	if err != nil {
		return fmt.Errorf("failed to archive account %d: %w", account.ID, classifyError(err))
	}

	return nil
}

// UpdateDisplayNames rewrites the denormalized display name on every archived entry touching the account
func (r *ArchiveRepository) UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error) {
	query := `
		UPDATE archived_ledger_entries
		SET from_display_name = CASE WHEN from_account_id = $1 THEN $2 ELSE from_display_name END,
			to_display_name = CASE WHEN to_account_id = $1 THEN $2 ELSE to_display_name END
		WHERE from_account_id = $1 OR to_account_id = $1
	`

	result, err := r.q.Exec(ctx, query, accountID, displayName)
	if err != nil {
		return 0, fmt.Errorf("failed to update archived display names for account %d: %w", accountID, classifyError(err))
	}

	return result.RowsAffected(), nil
}

// ListBatch returns the archived entries of one batch ordered by original id
func (r *ArchiveRepository) ListBatch(ctx context.Context, batchID uuid.UUID) ([]*models.ArchivedLedgerEntry, error) {
	query := `
		SELECT original_id, ` + ledgerFields + `, id, archived_at, archive_batch_id
		FROM archived_ledger_entries
		WHERE archive_batch_id = $1
		ORDER BY original_id
	`

	rows, err := r.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list archive batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var archived []*models.ArchivedLedgerEntry
	for rows.Next() {
		var item models.ArchivedLedgerEntry
		entry, err := scanLedgerEntry(rows, &item.ArchiveID, &item.ArchivedAt, &item.ArchiveBatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived ledger entry: %w", err)
		}
		item.LedgerEntry = *entry
		item.OriginalID = entry.ID
		archived = append(archived, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive batch: %w", err)
	}

	return archived, nil
}

// RestoreBatch re-inserts a batch into the hot table under its original ids
// and removes the cold copies that are back in place
func (r *ArchiveRepository) RestoreBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	insert := `
		INSERT INTO ledger_entries (id, ` + ledgerFields + `)
		SELECT original_id, ` + ledgerFields + `
		FROM archived_ledger_entries
		WHERE archive_batch_id = $1
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.q.Exec(ctx, insert, batchID); err != nil {
		return 0, fmt.Errorf("failed to restore archive batch %s: %w", batchID, classifyError(err))
	}

	cleanup := `
		DELETE FROM archived_ledger_entries a
		WHERE a.archive_batch_id = $1
		  AND EXISTS (SELECT 1 FROM ledger_entries le WHERE le.id = a.original_id)
	`
	result, err := r.q.Exec(ctx, cleanup, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear restored archive batch %s: %w", batchID, classifyError(err))
	}

	return result.RowsAffected(), nil
}

// Stats summarizes hot and cold storage relative to cutoff
func (r *ArchiveRepository) Stats(ctx context.Context, cutoff time.Time) (*models.ArchiveStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM ledger_entries),
			(SELECT COUNT(*) FROM archived_ledger_entries),
			(SELECT COUNT(DISTINCT archive_batch_id) FROM archived_ledger_entries),
			(SELECT COUNT(*) FROM ledger_entries WHERE created_at < $1),
			(SELECT MIN(created_at) FROM ledger_entries),
			(SELECT MIN(created_at) FROM archived_ledger_entries),
			(SELECT MAX(created_at) FROM archived_ledger_entries),
			pg_size_pretty(pg_total_relation_size('ledger_entries')),
			pg_size_pretty(pg_total_relation_size('archived_ledger_entries'))
	`

	var stats models.ArchiveStats
	err := r.q.QueryRow(ctx, query, cutoff).Scan(
		&stats.HotEntries,
		&stats.ArchivedEntries,
		&stats.ArchiveBatches,
		&stats.EligibleForArchive,
		&stats.OldestHotEntry,
		&stats.OldestArchived,
		&stats.NewestArchived,
		&stats.HotTableSize,
		&stats.ArchiveTableSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive stats: %w", err)
	}

	return &stats, nil
}
