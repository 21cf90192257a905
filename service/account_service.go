package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"walletledger/events"
	"walletledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Listing window bounds
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type accountService struct {
	uowFactory UnitOfWorkFactory
	now        func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		now:        time.Now,
	}
}

// RegisterAccount creates an account from a collaborator's account-creation event.
// Players must name an existing owner; owners and the system wallet must not.
func (s *accountService) RegisterAccount(ctx context.Context, account *models.NewAccount) (*models.Account, error) {
	// Validate inputs
	if account == nil || !account.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown account type", ErrInvalidAccount)
	}
	if strings.TrimSpace(account.UserName) == "" {
		return nil, fmt.Errorf("%w: user name is required", ErrInvalidAccount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Check the ownership edge
	switch account.Type {
	case models.AccountTypePlayer:
		if account.OwnerRef == nil {
			return nil, fmt.Errorf("%w: a player must reference its owner", ErrInvalidAccount)
		}
		owner, err := uow.AccountRepository().GetByID(ctx, *account.OwnerRef)
		if err != nil {
			return nil, fmt.Errorf("failed to get owner %d: %w", *account.OwnerRef, err)
		}
		if owner == nil || owner.IsArchived() {
			return nil, fmt.Errorf("%w: owner %d", ErrAccountNotFound, *account.OwnerRef)
		}
		if owner.Type != models.AccountTypeOwner {
			return nil, fmt.Errorf("%w: account %d is not an owner", ErrInvalidAccount, owner.ID)
		}
	default:
		if account.OwnerRef != nil {
			return nil, fmt.Errorf("%w: only players reference an owner", ErrInvalidAccount)
		}
	}

	// Only one system wallet may exist
	if account.Type == models.AccountTypeSystemWallet {
		existing, err := uow.AccountRepository().GetSystemWallet(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get system wallet: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: system wallet %d already exists", ErrInvalidAccount, existing.ID)
		}
	}

	created, err := uow.AccountRepository().Create(ctx, account)
	if err != nil {
		return nil, err
	}

	// Publish event (delivered after commit)
	uow.EventBus().Publish(events.AccountRegisteredEvent{
		AccountID:   created.ID,
		AccountType: created.Type,
		OwnerRef:    created.OwnerRef,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"accountID": created.ID,
		"type":      created.Type,
		"userName":  created.UserName,
	}).Info("Account registered")

	return created, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
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

	return account, nil
}

func (s *accountService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// ListLedgerEntries returns one page of entries, newest first. Retracted entries are
// hidden unless the filter asks for them.
func (s *accountService) ListLedgerEntries(ctx context.Context, filter models.LedgerFilter, page models.Pagination) (*models.LedgerPage, error) {
	// Clamp the page window
	if page.Limit <= 0 {
		page.Limit = DefaultPageSize
	}
	if page.Limit > MaxPageSize {
		page.Limit = MaxPageSize
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, fmt.Errorf("invalid date range: %s is not before %s",
			filter.From.Format(time.RFC3339), filter.To.Format(time.RFC3339))
	}
	for _, kind := range filter.Kinds {
		if !kind.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entries, total, err := uow.LedgerRepository().List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return &models.LedgerPage{
		Entries: entries,
		Total:   total,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}, nil
}

// RetractEntry attaches a retraction to an entry without moving any funds.
// Use the transfer engine's Reverse to also undo the balance effect.
func (s *accountService) RetractEntry(ctx context.Context, entryID int64, actor models.Actor, reason string) (*models.LedgerEntry, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("a retraction reason is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the entry
	entry, err := uow.LedgerRepository().LockByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger entry %d: %w", entryID, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, entryID)
	}
	if entry.IsRetracted() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyRetracted, entryID)
	}

	retraction := models.Retraction{Reason: reason, ActorID: actor.ID, At: s.now().UTC()}
	if err := uow.LedgerRepository().Retract(ctx, entryID, retraction); err != nil {
		return nil, fmt.Errorf("failed to retract ledger entry %d: %w", entryID, err)
	}

	// Commit transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Retraction = &retraction

	log.WithFields(log.Fields{
		"entryID": entryID,
		"actorID": actor.ID,
		"reason":  reason,
	}).Info("Ledger entry retracted")

	return entry, nil
}
