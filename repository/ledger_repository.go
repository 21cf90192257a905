package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletledger/database"
	"walletledger/models"
	"walletledger/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ledgerFields is shared by the hot and cold tables
const ledgerFields = `
	from_account_id, to_account_id, from_display_name, to_display_name,
	amount, kind, metadata,
	from_balance_before, from_balance_after, to_balance_before, to_balance_after,
	retracted_at, retracted_by, retraction_reason, created_at`

const ledgerColumns = `id, ` + ledgerFields

// LedgerRepository implements the LedgerRepository interface
type LedgerRepository struct {
	q queryable
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{q: db.Pool}
}

// newLedgerRepositoryWithTx creates a new ledger repository with a transaction
func newLedgerRepositoryWithTx(tx queryable) *LedgerRepository {
	return &LedgerRepository{q: tx}
}

// scanLedgerEntry scans ledgerColumns followed by any extra destinations
func scanLedgerEntry(row pgx.Row, extra ...any) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	var metadataJSON []byte
	var fromBefore, fromAfter decimal.NullDecimal
	var retractedAt *time.Time
	var retractedBy *int64
	var retractionReason *string

	dest := []any{
		&entry.ID,
		&entry.FromAccountID,
		&entry.ToAccountID,
		&entry.FromDisplayName,
		&entry.ToDisplayName,
		&entry.Amount,
		&entry.Kind,
		&metadataJSON,
		&fromBefore,
		&fromAfter,
		&entry.ToBalanceBefore,
		&entry.ToBalanceAfter,
		&retractedAt,
		&retractedBy,
		&retractionReason,
		&entry.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of ledger entry %d: %w", entry.ID, err)
		}
	}
	if fromBefore.Valid {
		entry.FromBalanceBefore = &fromBefore.Decimal
	}
	if fromAfter.Valid {
		entry.FromBalanceAfter = &fromAfter.Decimal
	}
	if retractedAt != nil {
		entry.Retraction = &models.Retraction{At: *retractedAt}
		if retractedBy != nil {
			entry.Retraction.ActorID = *retractedBy
		}
		if retractionReason != nil {
			entry.Retraction.Reason = *retractionReason
		}
	}

	return &entry, nil
}

func collectLedgerEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

func encodeMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}

// Append inserts entry and fills its ID and CreatedAt
func (r *LedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	metadataJSON, err := encodeMetadata(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode ledger metadata: %w", err)
	}

	query := `
		INSERT INTO ledger_entries (
			from_account_id, to_account_id, from_display_name, to_display_name,
			amount, kind, metadata,
			from_balance_before, from_balance_after, to_balance_before, to_balance_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
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
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append %s ledger entry: %w", entry.Kind, classifyError(err))
	}

	return nil
}

// GetByID retrieves an entry from the hot table
func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanLedgerEntry(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry %d: %w", id, classifyError(err))
	}

	return entry, nil
}

// LockByID retrieves an entry and locks it until the transaction ends
func (r *LedgerRepository) LockByID(ctx context.Context, id int64) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1 FOR UPDATE`

	entry, err := scanLedgerEntry(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger entry %d: %w", id, classifyError(err))
	}

	return entry, nil
}

// buildLedgerWhere renders filter as a WHERE clause and its arguments
func buildLedgerWhere(filter models.LedgerFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("(from_account_id = $%d OR to_account_id = $%d)", len(args), len(args)))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, kind := range filter.Kinds {
			kinds[i] = string(kind)
		}
		args = append(args, kinds)
		conditions = append(conditions, fmt.Sprintf("kind = ANY($%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if !filter.IncludeRetracted {
		conditions = append(conditions, "retracted_at IS NULL")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of entries, newest first, with the total match count
func (r *LedgerRepository) List(ctx context.Context, filter models.LedgerFilter, page models.Pagination) ([]*models.LedgerEntry, int64, error) {
	where, args := buildLedgerWhere(filter)

	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`SELECT %s FROM ledger_entries%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		ledgerColumns, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	entries, err := collectLedgerEntries(rows)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListByAccount returns every hot entry touching the account, oldest first
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries for account %d: %w", accountID, err)
	}

	return collectLedgerEntries(rows)
}

// ListOlderThan returns up to limit entries created before cutoff with id > afterID, ordered by id.
// The rows stay locked until the transaction ends so a concurrent retraction or
// anonymization cannot land between the copy to cold storage and the delete.
func (r *LedgerRepository) ListOlderThan(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM ledger_entries
		WHERE created_at < $1 AND id > $2
		ORDER BY id
		LIMIT $3
		FOR UPDATE
	`

	rows, err := r.q.Query(ctx, query, cutoff, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	return collectLedgerEntries(rows)
}

// Retract attaches a retraction marker to an entry that has none
func (r *LedgerRepository) Retract(ctx context.Context, id int64, retraction models.Retraction) error {
	query := `
		UPDATE ledger_entries
		SET retracted_at = $2, retracted_by = $3, retraction_reason = $4
		WHERE id = $1 AND retracted_at IS NULL
	`

	at := retraction.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	result, err := r.q.Exec(ctx, query, id, at, retraction.ActorID, retraction.Reason)
	if err != nil {
		return fmt.Errorf("failed to retract ledger entry %d: %w", id, classifyError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrAlreadyRetracted, id)
	}

	return nil
}

// UpdateDisplayNames rewrites the denormalized display name on every entry touching the account
func (r *LedgerRepository) UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error) {
	query := `
		UPDATE ledger_entries
		SET from_display_name = CASE WHEN from_account_id = $1 THEN $2 ELSE from_display_name END,
			to_display_name = CASE WHEN to_account_id = $1 THEN $2 ELSE to_display_name END
		WHERE from_account_id = $1 OR to_account_id = $1
	`

	result, err := r.q.Exec(ctx, query, accountID, displayName)
	if err != nil {
		return 0, fmt.Errorf("failed to update display names for account %d: %w", accountID, classifyError(err))
	}

	return result.RowsAffected(), nil
}

// DeleteArchived removes the given hot rows that already exist in cold storage
func (r *LedgerRepository) DeleteArchived(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM ledger_entries le
		WHERE le.id = ANY($1)
		  AND EXISTS (SELECT 1 FROM archived_ledger_entries a WHERE a.original_id = le.id)
	`

	result, err := r.q.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived ledger entries: %w", classifyError(err))
	}

	return result.RowsAffected(), nil
}

// Counterparts returns the distinct accounts sharing non-retracted entries with accountID
func (r *LedgerRepository) Counterparts(ctx context.Context, accountID int64) ([]models.Counterpart, error) {
	query := `
		SELECT DISTINCT a.id, a.user_name, a.account_type
		FROM ledger_entries le
		JOIN accounts a ON a.id = CASE
			WHEN le.from_account_id = $1 THEN le.to_account_id
			ELSE le.from_account_id
		END
		WHERE (le.from_account_id = $1 OR le.to_account_id = $1)
		  AND le.retracted_at IS NULL
		  AND a.id <> $1
		ORDER BY a.id
	`

	rows, err := r.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparts of account %d: %w", accountID, err)
	}
	defer rows.Close()

	var counterparts []models.Counterpart
	for rows.Next() {
		var c models.Counterpart
		if err := rows.Scan(&c.AccountID, &c.DisplayName, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan counterpart: %w", err)
		}
		counterparts = append(counterparts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counterparts: %w", err)
	}

	return counterparts, nil
}
