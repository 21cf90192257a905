package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"walletledger/events"
	"walletledger/models"
	"walletledger/repository"
	"walletledger/repository/testutil"
	"walletledger/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var admin = models.Actor{ID: 900, Name: "integration"}

type ledgerFixture struct {
	db        *testutil.TestDatabase
	accounts  *repository.AccountRepository
	ledger    *repository.LedgerRepository
	transfers service.TransferService
	registry  service.AccountService
	lifecycle service.LifecycleService
	archive   service.ArchiveService
	owner     *models.Account
	player    *models.Account
	wallet    *models.Account
}

func setupLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := testutil.SetupTestDatabase(t)
	uowFactory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	f := &ledgerFixture{
		db:        testDB,
		accounts:  repository.NewAccountRepository(testDB.DB),
		ledger:    repository.NewLedgerRepository(testDB.DB),
		transfers: service.NewTransferService(uowFactory, 5),
		registry:  service.NewAccountService(uowFactory),
		lifecycle: service.NewLifecycleService(uowFactory),
		archive:   service.NewArchiveService(uowFactory, 2),
	}

	var err error
	f.wallet, err = f.registry.RegisterAccount(ctx, testutil.CreateTestSystemWallet())
	require.NoError(t, err)
	f.owner, err = f.registry.RegisterAccount(ctx, testutil.CreateTestOwner("alice"))
	require.NoError(t, err)
	f.player, err = f.registry.RegisterAccount(ctx, testutil.CreateTestPlayer(f.owner.ID, "bob"))
	require.NoError(t, err)

	return f
}

func (f *ledgerFixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	balance, err := f.registry.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance
}

func TestLedger_CreditTransferScenario(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.transfers.CapitalDeposit(ctx, decimal.RequireFromString("100000"), admin, "seed")
	require.NoError(t, err)
	_, err = f.transfers.Deposit(ctx, f.owner.ID, decimal.RequireFromString("100000"), admin, "dep-1")
	require.NoError(t, err)

	entry, err := f.transfers.CreditTransfer(ctx, f.owner.ID, f.player.ID, decimal.RequireFromString("30000"), admin, "")
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("70000").Equal(f.balance(t, f.owner.ID)))
	assert.True(t, decimal.RequireFromString("30000").Equal(f.balance(t, f.player.ID)))
	assert.True(t, decimal.RequireFromString("100000").Equal(*entry.FromBalanceBefore))
	assert.True(t, decimal.RequireFromString("70000").Equal(*entry.FromBalanceAfter))
	assert.True(t, decimal.Zero.Equal(entry.ToBalanceBefore))
	assert.True(t, decimal.RequireFromString("30000").Equal(entry.ToBalanceAfter))

	t.Run("insufficient balance leaves no trace", func(t *testing.T) {
		before, _, err := f.ledger.List(ctx, models.LedgerFilter{}, models.Pagination{Limit: 100})
		require.NoError(t, err)

		_, err = f.transfers.DebitTransfer(ctx, f.player.ID, f.owner.ID, decimal.RequireFromString("30000.01"), admin, "")
		assert.ErrorIs(t, err, service.ErrInsufficientBalance)

		after, _, err := f.ledger.List(ctx, models.LedgerFilter{}, models.Pagination{Limit: 100})
		require.NoError(t, err)
		assert.Len(t, after, len(before))
		assert.True(t, decimal.RequireFromString("30000").Equal(f.balance(t, f.player.ID)))
	})

	t.Run("player to player is unauthorized", func(t *testing.T) {
		sibling, err := f.registry.RegisterAccount(ctx, testutil.CreateTestPlayer(f.owner.ID, "carol"))
		require.NoError(t, err)

		_, err = f.transfers.Transfer(ctx, models.TransferRequest{
			FromAccountID: f.player.ID,
			ToAccountID:   sibling.ID,
			Amount:        decimal.RequireFromString("1"),
			Kind:          models.TransactionKindCreditTransfer,
			Actor:         admin,
		})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
		assert.True(t, f.balance(t, sibling.ID).IsZero())
	})
}

func TestLedger_ConcurrentOpposingTransfers(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.SetBalance(t, f.db.DB, f.owner.ID, "10000")
	testutil.SetBalance(t, f.db.DB, f.player.ID, "10000")

	expectedOwner := decimal.RequireFromString("10000")
	expectedPlayer := decimal.RequireFromString("10000")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 100; i++ {
		amount := decimal.NewFromInt(int64(1 + i%7)).Add(decimal.RequireFromString("0.25"))
		if i%2 == 0 {
			expectedOwner = expectedOwner.Sub(amount)
			expectedPlayer = expectedPlayer.Add(amount)
			g.Go(func() error {
				_, err := f.transfers.CreditTransfer(gctx, f.owner.ID, f.player.ID, amount, admin, "")
				return err
			})
		} else {
			expectedOwner = expectedOwner.Add(amount)
			expectedPlayer = expectedPlayer.Sub(amount)
			g.Go(func() error {
				_, err := f.transfers.DebitTransfer(gctx, f.player.ID, f.owner.ID, amount, admin, "")
				return err
			})
		}
	}
	require.NoError(t, g.Wait())

	assert.True(t, expectedOwner.Equal(f.balance(t, f.owner.ID)), "owner balance")
	assert.True(t, expectedPlayer.Equal(f.balance(t, f.player.ID)), "player balance")

	// Replaying each account's entries in commit order must chain without gaps or overlaps
	for _, accountID := range []int64{f.owner.ID, f.player.ID} {
		entries, err := f.ledger.ListByAccount(ctx, accountID)
		require.NoError(t, err)
		require.Len(t, entries, 100)

		running := decimal.RequireFromString("10000")
		for _, entry := range entries {
			before, after := entry.ToBalanceBefore, entry.ToBalanceAfter
			if entry.FromAccountID != nil && *entry.FromAccountID == accountID {
				before, after = *entry.FromBalanceBefore, *entry.FromBalanceAfter
			}
			require.True(t, running.Equal(before), "entry %d starts at %s, expected %s", entry.ID, before, running)
			require.False(t, after.IsNegative())
			running = after
		}
	}
}

func TestLedger_Conservation(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	total := func() decimal.Decimal {
		sum, err := f.accounts.SumBalances(ctx)
		require.NoError(t, err)
		return sum
	}

	require.True(t, total().IsZero())

	_, err := f.transfers.CapitalDeposit(ctx, decimal.RequireFromString("5000"), admin, "seed")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5000").Equal(total()))

	_, err = f.transfers.Deposit(ctx, f.owner.ID, decimal.RequireFromString("2000"), admin, "dep-1")
	require.NoError(t, err)
	_, err = f.transfers.CreditTransfer(ctx, f.owner.ID, f.player.ID, decimal.RequireFromString("750.50"), admin, "")
	require.NoError(t, err)
	_, err = f.transfers.GameLoss(ctx, f.player.ID, decimal.RequireFromString("100"), admin, "round-1")
	require.NoError(t, err)
	_, err = f.transfers.GameWin(ctx, f.player.ID, decimal.RequireFromString("40.25"), admin, "round-2")
	require.NoError(t, err)
	_, err = f.transfers.Withdraw(ctx, f.player.ID, decimal.RequireFromString("50"), admin, "wd-1")
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("5000").Equal(total()), "internal transfers conserve the total")
}

func TestLedger_AtomicityUnderInjectedFault(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.SetBalance(t, f.db.DB, f.owner.ID, "500")

	_, err := f.db.DB.Exec(ctx, `
		CREATE FUNCTION fail_marked_entries() RETURNS TRIGGER AS $$
		BEGIN
			IF NEW.metadata->>'inject_fault' IS NOT NULL THEN
				RAISE EXCEPTION 'injected fault';
			END IF;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;

		CREATE TRIGGER trg_fail_marked_entries
			BEFORE INSERT ON ledger_entries
			FOR EACH ROW EXECUTE FUNCTION fail_marked_entries();
	`)
	require.NoError(t, err)

	_, err = f.transfers.Transfer(ctx, models.TransferRequest{
		FromAccountID: f.owner.ID,
		ToAccountID:   f.player.ID,
		Amount:        decimal.RequireFromString("200"),
		Kind:          models.TransactionKindCreditTransfer,
		Metadata:      map[string]any{"inject_fault": true},
		Actor:         admin,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected fault")

	// Balances were updated before the failed insert and must have rolled back with it
	assert.True(t, decimal.RequireFromString("500").Equal(f.balance(t, f.owner.ID)))
	assert.True(t, f.balance(t, f.player.ID).IsZero())

	entries, err := f.ledger.ListByAccount(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedger_Reverse(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.SetBalance(t, f.db.DB, f.owner.ID, "100")

	original, err := f.transfers.CreditTransfer(ctx, f.owner.ID, f.player.ID, decimal.RequireFromString("60"), admin, "")
	require.NoError(t, err)

	reversal, err := f.transfers.Reverse(ctx, original.ID, admin, "sent to wrong player")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionKindReversal, reversal.Kind)
	assert.True(t, reversal.IsCorrection())

	assert.True(t, decimal.RequireFromString("100").Equal(f.balance(t, f.owner.ID)))
	assert.True(t, f.balance(t, f.player.ID).IsZero())

	stored, err := f.ledger.GetByID(ctx, original.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Retraction)
	assert.Equal(t, "sent to wrong player", stored.Retraction.Reason)

	_, err = f.transfers.Reverse(ctx, original.ID, admin, "again")
	assert.ErrorIs(t, err, service.ErrAlreadyRetracted)
}

func TestLifecycle_PendingWithdrawalsBlockAnonymize(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.InsertPendingWithdrawal(t, f.db.DB, f.player.ID, "10")
	testutil.InsertPendingWithdrawal(t, f.db.DB, f.player.ID, "20")

	_, err := f.lifecycle.Retire(ctx, f.player.ID, models.RetireModeAnonymize, "user request", admin)

	var blocking *service.ObligationsBlockingError
	require.True(t, errors.As(err, &blocking))
	assert.Equal(t, []string{"pending_withdrawals:2"}, blocking.Counts.Blockers())

	account, err := f.registry.GetAccount(ctx, f.player.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", account.UserName)
	assert.Nil(t, account.AnonymizedAt)
	assert.True(t, account.IsActive())
}

func TestLifecycle_AnonymizePropagatesToHistory(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.SetBalance(t, f.db.DB, f.owner.ID, "10")
	entry, err := f.transfers.CreditTransfer(ctx, f.owner.ID, f.player.ID, decimal.RequireFromString("10"), admin, "")
	require.NoError(t, err)
	_, err = f.registry.RetractEntry(ctx, entry.ID, admin, "settled offline")
	require.NoError(t, err)

	result, err := f.lifecycle.Retire(ctx, f.player.ID, models.RetireModeAnonymize, "gdpr", admin)
	require.NoError(t, err)

	stored, err := f.ledger.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, result.AnonymizedName, stored.ToDisplayName)
	assert.True(t, decimal.RequireFromString("10").Equal(stored.Amount))

	account, err := f.registry.GetAccount(ctx, f.player.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10").Equal(account.Balance))
	assert.Nil(t, account.Email)

	err = f.lifecycle.Reactivate(ctx, f.player.ID, admin)
	assert.ErrorIs(t, err, service.ErrAlreadyAnonymized)
}

func TestLifecycle_ArchiveAccount(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	testutil.SetBalance(t, f.db.DB, f.owner.ID, "10")
	entry, err := f.transfers.CreditTransfer(ctx, f.owner.ID, f.player.ID, decimal.RequireFromString("10"), admin, "")
	require.NoError(t, err)
	_, err = f.transfers.Reverse(ctx, entry.ID, admin, "mistake")
	require.NoError(t, err)

	history, err := f.ledger.ListByAccount(ctx, f.player.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	// The compensating entry is open history of its own
	_, err = f.registry.RetractEntry(ctx, history[1].ID, admin, "closing account")
	require.NoError(t, err)

	result, err := f.lifecycle.Retire(ctx, f.player.ID, models.RetireModeArchive, "closed by owner", admin)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ArchivedCount)

	account, err := f.registry.GetAccount(ctx, f.player.ID)
	require.NoError(t, err)
	assert.True(t, account.IsArchived())

	var archivedAccounts, archivedEntries int
	require.NoError(t, f.db.DB.QueryRow(ctx, `SELECT COUNT(*) FROM archived_accounts WHERE original_id = $1`, f.player.ID).Scan(&archivedAccounts))
	require.NoError(t, f.db.DB.QueryRow(ctx, `SELECT COUNT(*) FROM archived_ledger_entries WHERE original_id = ANY($1)`,
		[]int64{history[0].ID, history[1].ID}).Scan(&archivedEntries))
	assert.Equal(t, 1, archivedAccounts)
	assert.Equal(t, 2, archivedEntries)

	remaining, err := f.ledger.ListByAccount(ctx, f.player.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestArchive_OldRowsMoveAndRerunIsNoop(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	now := time.Now().UTC()
	var oldIDs []int64
	for i := 0; i < 3; i++ {
		oldIDs = append(oldIDs, testutil.InsertLedgerEntryAt(t, f.db.DB, f.owner.ID, f.player.ID, "1", now.AddDate(-2, 0, -i)))
	}
	for i := 0; i < 2; i++ {
		testutil.InsertLedgerEntryAt(t, f.db.DB, f.owner.ID, f.player.ID, "1", now.AddDate(0, 0, -i))
	}

	cutoff := service.LedgerArchiveCutoff(now, 12)

	result, err := f.archive.ArchiveOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.MovedCount)
	assert.Empty(t, result.Failures)

	stats, err := f.archive.Stats(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.HotEntries)
	assert.Equal(t, int64(3), stats.ArchivedEntries)

	archived, err := repository.NewArchiveRepository(f.db.DB).ListBatch(ctx, result.BatchID)
	require.NoError(t, err)
	require.Len(t, archived, 3)
	for i, item := range archived {
		assert.Equal(t, oldIDs[i], item.OriginalID)
	}

	rerun, err := f.archive.ArchiveOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.True(t, rerun.Success)
	assert.Zero(t, rerun.MovedCount)
	assert.Empty(t, rerun.Failures)

	restored, err := f.archive.RestoreBatch(ctx, result.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.RestoredCount)
	assert.Equal(t, oldIDs, restored.OriginalIDs)

	stats, err = f.archive.Stats(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.HotEntries)
	assert.Zero(t, stats.ArchivedEntries)
}

func TestArchive_ConcurrentRetractionIsCarriedToColdStorage(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	entryID := testutil.InsertLedgerEntryAt(t, f.db.DB, f.owner.ID, f.player.ID, "5", time.Now().UTC().AddDate(-2, 0, 0))

	// Retraction in flight while archival starts
	tx, err := f.db.DB.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)
	_, err = tx.Exec(ctx, `
		UPDATE ledger_entries
		SET retracted_at = NOW(), retracted_by = $2, retraction_reason = 'late reversal'
		WHERE id = $1
	`, entryID, admin.ID)
	require.NoError(t, err)

	done := make(chan *models.ArchiveResult, 1)
	go func() {
		result, err := f.archive.ArchiveOlderThan(ctx, service.LedgerArchiveCutoff(time.Now(), 12))
		assert.NoError(t, err)
		done <- result
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, tx.Commit(ctx))

	var result *models.ArchiveResult
	select {
	case result = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("archival did not finish")
	}
	require.NotNil(t, result)
	assert.Equal(t, 1, result.MovedCount)

	var retractedAt *time.Time
	var reason *string
	require.NoError(t, f.db.DB.QueryRow(ctx, `
		SELECT retracted_at, retraction_reason FROM archived_ledger_entries WHERE original_id = $1
	`, entryID).Scan(&retractedAt, &reason))
	assert.NotNil(t, retractedAt)
	require.NotNil(t, reason)
	assert.Equal(t, "late reversal", *reason)
}

func TestLifecycle_AnonymizeReachesArchivedHistory(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	entryID := testutil.InsertLedgerEntryAt(t, f.db.DB, f.owner.ID, f.player.ID, "5", time.Now().UTC().AddDate(-2, 0, 0))
	_, err := f.registry.RetractEntry(ctx, entryID, admin, "settled offline")
	require.NoError(t, err)

	archived, err := f.archive.ArchiveOlderThan(ctx, service.LedgerArchiveCutoff(time.Now(), 12))
	require.NoError(t, err)
	require.Equal(t, 1, archived.MovedCount)

	result, err := f.lifecycle.Retire(ctx, f.player.ID, models.RetireModeAnonymize, "gdpr", admin)
	require.NoError(t, err)

	var toName string
	require.NoError(t, f.db.DB.QueryRow(ctx, `
		SELECT to_display_name FROM archived_ledger_entries WHERE original_id = $1
	`, entryID).Scan(&toName))
	assert.Equal(t, result.AnonymizedName, toName)
}
