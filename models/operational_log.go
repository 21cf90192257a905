package models

import "time"

// GameRoundLog is a raw provider round payload kept for troubleshooting only
type GameRoundLog struct {
	ID        int64          `db:"id"`
	AccountID *int64         `db:"account_id"`
	Provider  string         `db:"provider"`
	RoundRef  string         `db:"round_ref"`
	Payload   map[string]any `db:"payload"`
	CreatedAt time.Time      `db:"created_at"`
}

// PurgeResult is the outcome of an operational log purge
type PurgeResult struct {
	Cutoff       time.Time
	DeletedCount int64
	Errors       []string
	Duration     time.Duration
}

// PurgePreview is a dry run of a purge
type PurgePreview struct {
	Cutoff  time.Time
	Count   int64
	Samples []*GameRoundLog
}

// RetentionStats summarizes the operational log table
type RetentionStats struct {
	TotalLogs   int64
	ExpiredLogs int64
	OldestLog   *time.Time
	NewestLog   *time.Time
	TableSize   string
	WindowDays  int
}
