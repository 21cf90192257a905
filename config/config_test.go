package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DATABASE_URL", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.TransferMaxAttempts)
	assert.Equal(t, 12, cfg.LedgerRetentionMonths)
	assert.Equal(t, 15, cfg.OperationalLogRetentionDays)
	assert.Equal(t, 1000, cfg.ArchiveBatchSize)
	assert.Equal(t, "0 3 * * *", cfg.ArchiveSchedule)
	assert.Equal(t, "UTC", cfg.ScheduleTimezone)
	assert.False(t, cfg.AlertsEnabled())
	assert.False(t, cfg.IdempotencyEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "postgres://ledger:secret@db:5432")
	t.Setenv("DATABASE_NAME", "ledger")
	t.Setenv("ARCHIVE_BATCH_SIZE", "250")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("OPS_WEBHOOK_ID", "123")
	t.Setenv("OPS_WEBHOOK_TOKEN", "abc")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.ArchiveBatchSize)
	assert.Equal(t, "postgres://ledger:secret@db:5432/ledger?sslmode=disable", cfg.ConnectionURL())
	assert.True(t, cfg.AlertsEnabled())
	assert.True(t, cfg.IdempotencyEnabled())
}

func TestLoad_Validation(t *testing.T) {
	t.Run("database url required outside test", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")
		_, err := load()
		assert.ErrorContains(t, err, "DATABASE_URL is required")
	})

	t.Run("non-positive batch size", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("ARCHIVE_BATCH_SIZE", "0")
		_, err := load()
		assert.ErrorContains(t, err, "ARCHIVE_BATCH_SIZE")
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("SCHEDULE_TIMEZONE", "Mars/Olympus")
		_, err := load()
		assert.ErrorContains(t, err, "SCHEDULE_TIMEZONE")
	})
}
