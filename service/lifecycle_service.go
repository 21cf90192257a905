package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"walletledger/events"
	"walletledger/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// AnonymizedDisplayName replaces the personal name of anonymized accounts
const AnonymizedDisplayName = "Anonymized User"

type lifecycleService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewLifecycleService creates a new lifecycle guard
func NewLifecycleService(uowFactory UnitOfWorkFactory) LifecycleService {
	return &lifecycleService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// CanRetire returns nil when no obligation blocks a destructive action on the account
func (s *lifecycleService) CanRetire(ctx context.Context, accountID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to get account %d: %w", accountID, err)
	}
	if err := checkRetirable(account, accountID); err != nil {
		return err
	}

	return checkObligations(ctx, uow, accountID)
}

// GetDeletionImpact previews what retiring the account would touch. It never fails on blockers.
func (s *lifecycleService) GetDeletionImpact(ctx context.Context, accountID int64) (*models.RetirementImpact, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}

	// Gather blockers and affected counterparts
	counts, err := uow.ObligationRepository().CountForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to count obligations: %w", err)
	}

	counterparts, err := uow.LedgerRepository().Counterparts(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparts: %w", err)
	}

	impact := &models.RetirementImpact{
		AccountID:    account.ID,
		DisplayName:  account.DisplayName(),
		Balance:      account.Balance,
		Obligations:  counts,
		Counterparts: counterparts,
	}

	// Build warnings
	if account.Type == models.AccountTypeSystemWallet {
		impact.Warnings = append(impact.Warnings, "the system wallet cannot be retired")
	}
	if !account.Balance.IsZero() {
		impact.Warnings = append(impact.Warnings,
			fmt.Sprintf("account still holds a balance of %s", account.Balance.StringFixed(models.AmountScale)))
	}
	if account.IsAnonymized() {
		impact.Warnings = append(impact.Warnings, "account is already anonymized")
	}
	if account.IsArchived() {
		impact.Warnings = append(impact.Warnings, "account is already archived")
	}
	if len(counterparts) > 0 {
		impact.Warnings = append(impact.Warnings,
			fmt.Sprintf("%d counterpart accounts share open ledger history", len(counterparts)))
	}

	return impact, nil
}

// Retire runs the destructive action selected by mode as one atomic unit.
// The account state is untouched when any obligation blocks it.
func (s *lifecycleService) Retire(ctx context.Context, accountID int64, mode models.RetireMode, reason string, actor models.Actor) (*models.RetirementResult, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("a retirement reason is required")
	}

	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the account for the rest of the unit
	account, err := uow.AccountRepository().LockByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", accountID, err)
	}
	if err := checkRetirable(account, accountID); err != nil {
		return nil, err
	}
	if mode == models.RetireModeAnonymize && account.IsAnonymized() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyAnonymized, accountID)
	}

	// Refuse while anything still depends on the account
	if err := checkObligations(ctx, uow, accountID); err != nil {
		return nil, err
	}

	// Apply the selected action
	result := &models.RetirementResult{AccountID: accountID, Mode: mode}

	switch mode {
	case models.RetireModeDeactivate:
		err = uow.AccountRepository().Deactivate(ctx, accountID, actor.ID, reason)
	case models.RetireModeAnonymize:
		result.AnonymizedName, err = s.anonymize(ctx, uow, accountID, actor, reason)
	case models.RetireModeArchive:
		result.ArchivedCount, err = archiveAccount(ctx, uow, account, actor, reason)
	}
	if err != nil {
		return nil, err
	}

	// Publish event (delivered after commit)
	uow.EventBus().Publish(events.AccountRetiredEvent{
		AccountID: accountID,
		Mode:      mode,
		Reason:    reason,
		ActorID:   actor.ID,
	})

	// Commit transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID": accountID,
		"mode":      mode,
		"actorID":   actor.ID,
		"reason":    reason,
	}).Info("Account retired")

	return result, nil
}

func (s *lifecycleService) anonymize(ctx context.Context, uow UnitOfWork, accountID int64, actor models.Actor, reason string) (string, error) {
	anonymizedName := fmt.Sprintf("ANON_%d_%d", accountID, s.now().Unix())

	if err := uow.AccountRepository().Anonymize(ctx, accountID, anonymizedName, actor.ID, reason); err != nil {
		return "", fmt.Errorf("failed to anonymize account %d: %w", accountID, err)
	}

	// Hot rows first. The update waits out any archival batch holding them,
	// and the cold update then sees whatever that batch moved.
	updated, err := uow.LedgerRepository().UpdateDisplayNames(ctx, accountID, anonymizedName)
	if err != nil {
		return "", fmt.Errorf("failed to anonymize ledger history of account %d: %w", accountID, err)
	}

	archived, err := uow.ArchiveRepository().UpdateDisplayNames(ctx, accountID, anonymizedName)
	if err != nil {
		return "", fmt.Errorf("failed to anonymize archived history of account %d: %w", accountID, err)
	}

	log.WithFields(log.Fields{
		"accountID":       accountID,
		"entriesUpdated":  updated,
		"archivedUpdated": archived,
	}).Debug("Ledger display names anonymized")

	return anonymizedName, nil
}

// archiveAccount moves the account and its whole ledger history to cold storage.
// Any failed copy aborts the unit so no partial history is archived.
func archiveAccount(ctx context.Context, uow UnitOfWork, account *models.Account, actor models.Actor, reason string) (int, error) {
	if err := uow.ArchiveRepository().CopyAccount(ctx, account, reason, actor.ID); err != nil {
		return 0, fmt.Errorf("failed to archive account %d: %w", account.ID, err)
	}

	// Copy every ledger entry under one batch
	entries, err := uow.LedgerRepository().ListByAccount(ctx, account.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list ledger history of account %d: %w", account.ID, err)
	}

	batchID := uuid.New()
	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		if _, err := uow.ArchiveRepository().CopyEntry(ctx, entry, batchID); err != nil {
			return 0, fmt.Errorf("failed to archive ledger entry %d of account %d: %w", entry.ID, account.ID, err)
		}
		ids = append(ids, entry.ID)
	}

	// Remove the hot copies
	if _, err := uow.LedgerRepository().DeleteArchived(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to remove archived history of account %d: %w", account.ID, err)
	}

	if err := uow.AccountRepository().SoftDelete(ctx, account.ID, actor.ID); err != nil {
		return 0, fmt.Errorf("failed to delete account %d: %w", account.ID, err)
	}

	return len(entries), nil
}

// Reactivate reverses a deactivation. Anonymized and archived accounts stay retired.
func (s *lifecycleService) Reactivate(ctx context.Context, accountID int64, actor models.Actor) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().LockByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to lock account %d: %w", accountID, err)
	}
	if account == nil || account.IsArchived() {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}
	if account.IsAnonymized() {
		return fmt.Errorf("%w: %d cannot be reactivated", ErrAlreadyAnonymized, accountID)
	}
	if account.IsActive() {
		return nil
	}

	if err := uow.AccountRepository().Reactivate(ctx, accountID); err != nil {
		return fmt.Errorf("failed to reactivate account %d: %w", accountID, err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID": accountID,
		"actorID":   actor.ID,
	}).Info("Account reactivated")

	return nil
}

func checkRetirable(account *models.Account, accountID int64) error {
	if account == nil || account.IsArchived() {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}
	if account.Type == models.AccountTypeSystemWallet {
		return fmt.Errorf("%w: the system wallet cannot be retired", ErrUnauthorized)
	}
	return nil
}

func checkObligations(ctx context.Context, uow UnitOfWork, accountID int64) error {
	counts, err := uow.ObligationRepository().CountForAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to count obligations: %w", err)
	}
	if counts.Total() > 0 {
		return &ObligationsBlockingError{AccountID: accountID, Counts: counts}
	}
	return nil
}
