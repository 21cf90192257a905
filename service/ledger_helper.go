package service

import (
	"context"
	"fmt"

	"walletledger/events"
	"walletledger/models"
)

// externalCapitalName labels the source side of entries funded from outside the system
const externalCapitalName = "external capital"

// RecordLedgerEntry appends the entry and queues its event.
// This is the single entry point for writing ledger rows.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if err := uow.LedgerRepository().Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	actorID, _ := entry.Metadata[models.MetadataActorID].(int64)
	uow.EventBus().Publish(events.LedgerEntryRecordedEvent{
		EntryID:       entry.ID,
		FromAccountID: entry.FromAccountID,
		ToAccountID:   entry.ToAccountID,
		Amount:        entry.Amount,
		Kind:          entry.Kind,
		Correction:    entry.IsCorrection(),
		ActorID:       actorID,
	})

	return nil
}

// applyTransfer mutates both balances and writes the matching ledger entry inside uow.
// from is nil when funds enter from outside the system. Both accounts must already be locked.
func applyTransfer(ctx context.Context, uow UnitOfWork, from, to *models.Account, req models.TransferRequest) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		ToAccountID:     &to.ID,
		ToDisplayName:   to.DisplayName(),
		FromDisplayName: externalCapitalName,
		Amount:          req.Amount,
		Kind:            req.Kind,
		Metadata:        req.AuditMetadata(),
		ToBalanceBefore: to.Balance,
		ToBalanceAfter:  to.Balance.Add(req.Amount),
	}

	if from != nil {
		fromBefore := from.Balance
		fromAfter := from.Balance.Sub(req.Amount)
		if fromAfter.IsNegative() {
			return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance,
				fromBefore.StringFixed(models.AmountScale), req.Amount.StringFixed(models.AmountScale))
		}

		if err := uow.AccountRepository().UpdateBalance(ctx, from.ID, fromAfter); err != nil {
			return nil, fmt.Errorf("failed to debit account %d: %w", from.ID, err)
		}

		entry.FromAccountID = &from.ID
		entry.FromDisplayName = from.DisplayName()
		entry.FromBalanceBefore = &fromBefore
		entry.FromBalanceAfter = &fromAfter
	}

	if err := uow.AccountRepository().UpdateBalance(ctx, to.ID, entry.ToBalanceAfter); err != nil {
		return nil, fmt.Errorf("failed to credit account %d: %w", to.ID, err)
	}

	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, err
	}

	return entry, nil
}
