package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	t.Run("valid amounts", func(t *testing.T) {
		for _, input := range []string{"1", "0.01", "30000", "1234.50", " 99.9 "} {
			d, err := ParseAmount(input)
			require.NoError(t, err, input)
			assert.True(t, d.IsPositive())
		}
	})

	t.Run("rejected amounts", func(t *testing.T) {
		for _, input := range []string{"0", "-5", "1.005", "abc", "", "0.001"} {
			_, err := ParseAmount(input)
			assert.Error(t, err, input)
		}
	})
}

func TestIsValidAmount(t *testing.T) {
	assert.True(t, IsValidAmount(decimal.RequireFromString("10.25")))
	assert.True(t, IsValidAmount(decimal.RequireFromString("10.250")))
	assert.False(t, IsValidAmount(decimal.RequireFromString("10.251")))
	assert.False(t, IsValidAmount(decimal.Zero))
	assert.False(t, IsValidAmount(decimal.RequireFromString("-1")))
}

func TestObligationCounts_Blockers(t *testing.T) {
	assert.Empty(t, ObligationCounts{}.Blockers())
	assert.Equal(t, int64(0), ObligationCounts{}.Total())

	counts := ObligationCounts{PendingWithdrawals: 2, OpenBets: 1}
	assert.Equal(t, []string{"pending_withdrawals:2", "open_bets:1"}, counts.Blockers())
	assert.Equal(t, int64(3), counts.Total())
}

func TestTransferRequest_AuditMetadata(t *testing.T) {
	req := TransferRequest{
		Note:      "weekly top-up",
		Reference: "dep-42",
		Metadata:  map[string]any{"channel": "admin"},
		Actor:     Actor{ID: 7, Name: "alice"},
	}

	meta := req.AuditMetadata()
	assert.Equal(t, "weekly top-up", meta[MetadataNote])
	assert.Equal(t, "dep-42", meta[MetadataReference])
	assert.Equal(t, int64(7), meta[MetadataActorID])
	assert.Equal(t, "alice", meta[MetadataActorName])
	assert.Equal(t, "admin", meta["channel"])

	// caller map is not mutated
	_, leaked := req.Metadata[MetadataActorID]
	assert.False(t, leaked)
}
