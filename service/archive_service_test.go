package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"walletledger/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var archiveNow = time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

func newTestArchiveService(m *testMocks, batchSize int) *archiveService {
	svc := NewArchiveService(m.Factory, batchSize).(*archiveService)
	svc.now = func() time.Time { return archiveNow }
	return svc
}

func oldEntries(ids ...int64) []*models.LedgerEntry {
	entries := make([]*models.LedgerEntry, len(ids))
	for i, id := range ids {
		entries[i] = &models.LedgerEntry{
			ID:        id,
			Kind:      models.TransactionKindCreditTransfer,
			Amount:    dec("10"),
			CreatedAt: archiveNow.AddDate(-2, 0, 0),
		}
	}
	return entries
}

func TestArchiveService_ArchiveOlderThan_MovesOnlyOldRows(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 1000)

	cutoff := LedgerArchiveCutoff(archiveNow, 12)
	entries := oldEntries(1, 2, 3)

	m.UoW.On("Commit").Return(nil).Once()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(0), 1000).Return(entries, nil).Once()
	for _, entry := range entries {
		m.ArchiveRepo.On("CopyEntry", ctx, entry, mock.AnythingOfType("uuid.UUID")).Return(true, nil).Once()
	}
	m.LedgerRepo.On("DeleteArchived", ctx, []int64{1, 2, 3}).Return(int64(3), nil).Once()

	result, err := svc.ArchiveOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.MovedCount)
	assert.Empty(t, result.Failures)
	assert.Equal(t, cutoff, result.Cutoff)
	assert.NotEqual(t, uuid.Nil, result.BatchID)
	m.AssertExpectations(t)
}

func TestArchiveService_ArchiveOlderThan_RerunMovesNothing(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 1000)

	cutoff := LedgerArchiveCutoff(archiveNow, 12)
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(0), 1000).Return([]*models.LedgerEntry{}, nil).Once()

	result, err := svc.ArchiveOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Zero(t, result.MovedCount)
	assert.Empty(t, result.Failures)
	m.ArchiveRepo.AssertNotCalled(t, "CopyEntry", mock.Anything, mock.Anything, mock.Anything)
	m.UoW.AssertNotCalled(t, "Commit")
}

func TestArchiveService_ArchiveOlderThan_BatchesByKeyset(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 2)

	cutoff := LedgerArchiveCutoff(archiveNow, 12)
	first := oldEntries(4, 7)
	second := oldEntries(9)

	m.UoW.On("Commit").Return(nil).Twice()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(0), 2).Return(first, nil).Once()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(7), 2).Return(second, nil).Once()
	m.ArchiveRepo.On("CopyEntry", ctx, mock.Anything, mock.Anything).Return(true, nil).Times(3)
	m.LedgerRepo.On("DeleteArchived", ctx, []int64{4, 7}).Return(int64(2), nil).Once()
	m.LedgerRepo.On("DeleteArchived", ctx, []int64{9}).Return(int64(1), nil).Once()

	result, err := svc.ArchiveOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, 3, result.MovedCount)
	m.AssertExpectations(t)
}

func TestArchiveService_ArchiveOlderThan_RowFailureIsSkipped(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 1000)

	cutoff := LedgerArchiveCutoff(archiveNow, 12)
	entries := oldEntries(1, 2, 3)

	m.UoW.On("Commit").Return(nil).Once()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(0), 1000).Return(entries, nil).Once()
	m.ArchiveRepo.On("CopyEntry", ctx, entries[0], mock.Anything).Return(true, nil)
	m.ArchiveRepo.On("CopyEntry", ctx, entries[1], mock.Anything).Return(false, errors.New("value too long"))
	m.ArchiveRepo.On("CopyEntry", ctx, entries[2], mock.Anything).Return(true, nil)
	m.LedgerRepo.On("DeleteArchived", ctx, []int64{1, 3}).Return(int64(2), nil).Once()

	result, err := svc.ArchiveOlderThan(ctx, cutoff)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.MovedCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, int64(2), result.Failures[0].OriginalID)
	assert.Contains(t, result.Failures[0].Error, "value too long")
	m.AssertExpectations(t)
}

func TestArchiveService_ArchiveOlderThan_AbortKeepsCommittedProgress(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 2)

	cutoff := LedgerArchiveCutoff(archiveNow, 12)
	first := oldEntries(1, 2)

	m.UoW.On("Commit").Return(nil).Once()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(0), 2).Return(first, nil).Once()
	m.ArchiveRepo.On("CopyEntry", ctx, mock.Anything, mock.Anything).Return(true, nil).Twice()
	m.LedgerRepo.On("DeleteArchived", ctx, []int64{1, 2}).Return(int64(2), nil).Once()
	m.LedgerRepo.On("ListOlderThan", ctx, cutoff, int64(2), 2).Return(nil, errors.New("connection reset")).Once()

	result, err := svc.ArchiveOlderThan(ctx, cutoff)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArchivalPartialFailure)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.MovedCount)

	var partial *ArchivalPartialFailureError
	require.True(t, errors.As(err, &partial))
	assert.Same(t, result, partial.Result)
	assert.Contains(t, partial.Cause.Error(), "connection reset")
	m.AssertExpectations(t)
}

func TestArchiveService_ArchiveOlderThan_InvalidCutoff(t *testing.T) {
	ctx := context.Background()
	m := newTestMocks(ctx)
	svc := newTestArchiveService(m, 10)

	_, err := svc.ArchiveOlderThan(ctx, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	_, err = svc.ArchiveOlderThan(ctx, archiveNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidCutoff)

	m.Factory.AssertNotCalled(t, "Create")
}

func TestArchiveService_RestoreBatch(t *testing.T) {
	ctx := context.Background()
	batchID := uuid.New()

	t.Run("restores rows", func(t *testing.T) {
		m := newTestMocks(ctx)
		svc := newTestArchiveService(m, 10)

		m.UoW.On("Commit").Return(nil)
		m.ArchiveRepo.On("ListBatch", ctx, batchID).Return([]*models.ArchivedLedgerEntry{
			{OriginalID: 3, ArchiveBatchID: batchID},
			{OriginalID: 7, ArchiveBatchID: batchID},
		}, nil)
		m.ArchiveRepo.On("RestoreBatch", ctx, batchID).Return(int64(2), nil)

		result, err := svc.RestoreBatch(ctx, batchID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.RestoredCount)
		assert.Equal(t, []int64{3, 7}, result.OriginalIDs)
		assert.Equal(t, batchID, result.BatchID)
		m.AssertExpectations(t)
	})

	t.Run("unknown batch", func(t *testing.T) {
		m := newTestMocks(ctx)
		svc := newTestArchiveService(m, 10)

		m.ArchiveRepo.On("ListBatch", ctx, batchID).Return([]*models.ArchivedLedgerEntry{}, nil)

		_, err := svc.RestoreBatch(ctx, batchID)
		assert.ErrorIs(t, err, ErrBatchNotFound)
		m.UoW.AssertNotCalled(t, "Commit")
		m.ArchiveRepo.AssertNotCalled(t, "RestoreBatch", mock.Anything, mock.Anything)
	})
}
