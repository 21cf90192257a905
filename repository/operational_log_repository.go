package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"walletledger/database"
	"walletledger/models"

	"github.com/jackc/pgx/v5"
)

// OperationalLogRepository manages game round logs, which carry no audit requirement
type OperationalLogRepository struct {
	db *database.DB
}

// NewOperationalLogRepository creates a new operational log repository
func NewOperationalLogRepository(db *database.DB) *OperationalLogRepository {
	return &OperationalLogRepository{db: db}
}

// DeleteOlderThan hard-deletes up to limit of the oldest rows created before cutoff
func (r *OperationalLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM game_round_logs
		WHERE id IN (
			SELECT id FROM game_round_logs
			WHERE created_at < $1
			ORDER BY id
			LIMIT $2
		)
	`

	var deleted int64
	err := r.db.WithTransaction(ctx, pgx.ReadCommitted, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, query, cutoff, limit)
		if err != nil {
			return err
		}
		deleted = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete game round logs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	return deleted, nil
}

// CountOlderThan counts rows created before cutoff
func (r *OperationalLogRepository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM game_round_logs WHERE created_at < $1`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count game round logs: %w", err)
	}
	return count, nil
}

// SampleOlderThan returns up to limit of the oldest rows created before cutoff
func (r *OperationalLogRepository) SampleOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.GameRoundLog, error) {
	query := `
		SELECT id, account_id, provider, round_ref, payload, created_at
		FROM game_round_logs
		WHERE created_at < $1
		ORDER BY created_at, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to sample game round logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.GameRoundLog
	for rows.Next() {
		var entry models.GameRoundLog
		var payloadJSON []byte
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.Provider, &entry.RoundRef, &payloadJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game round log: %w", err)
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode payload of game round log %d: %w", entry.ID, err)
			}
		}
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game round logs: %w", err)
	}

	return logs, nil
}

// Stats summarizes the log table relative to cutoff
func (r *OperationalLogRepository) Stats(ctx context.Context, cutoff time.Time) (*models.RetentionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE created_at < $1),
			MIN(created_at),
			MAX(created_at),
			pg_size_pretty(pg_total_relation_size('game_round_logs'))
		FROM game_round_logs
	`

	var stats models.RetentionStats
	err := r.db.QueryRow(ctx, query, cutoff).Scan(
		&stats.TotalLogs,
		&stats.ExpiredLogs,
		&stats.OldestLog,
		&stats.NewestLog,
		&stats.TableSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get game round log stats: %w", err)
	}

	return &stats, nil
}

// Insert stores a round log. Provider adapters write these; the ledger core only purges them.
func (r *OperationalLogRepository) Insert(ctx context.Context, entry *models.GameRoundLog) error {
	payloadJSON, err := encodeMetadata(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode round payload: %w", err)
	}

	query := `
		INSERT INTO game_round_logs (account_id, provider, round_ref, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING id, created_at
	`

	var createdAt *time.Time
	if !entry.CreatedAt.IsZero() {
		createdAt = &entry.CreatedAt
	}

	err = r.db.QueryRow(ctx, query, entry.AccountID, entry.Provider, entry.RoundRef, payloadJSON, createdAt).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game round log: %w", err)
	}

	return nil
}
