package service

import (
	"context"
	"time"

	"walletledger/events"
	"walletledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// Create inserts a new account with a zero balance
	Create(ctx context.Context, account *models.NewAccount) (*models.Account, error)

	// GetByID retrieves an account, including soft-deleted ones. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*models.Account, error)

	// LockByID retrieves an account and holds a row lock until the transaction ends
	LockByID(ctx context.Context, id int64) (*models.Account, error)

	// GetSystemWallet retrieves the active system wallet. Returns nil when absent.
	GetSystemWallet(ctx context.Context) (*models.Account, error)

	// LockSystemWallet retrieves and locks the active system wallet
	LockSystemWallet(ctx context.Context) (*models.Account, error)

	// UpdateBalance writes a new authoritative balance
	UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error

	// Deactivate marks the account inactive
	Deactivate(ctx context.Context, id int64, actorID int64, reason string) error

	// Reactivate clears a previous deactivation
	Reactivate(ctx context.Context, id int64) error

	// Anonymize replaces personal fields with the given anonymous identifier
	Anonymize(ctx context.Context, id int64, anonymizedName string, actorID int64, reason string) error

	// SoftDelete marks the live row deleted
	SoftDelete(ctx context.Context, id int64, actorID int64) error
}

// LedgerRepository defines the interface for the hot ledger table
type LedgerRepository interface {
	// Append inserts entry and fills its ID and CreatedAt
	Append(ctx context.Context, entry *models.LedgerEntry) error

	// GetByID retrieves an entry. Returns nil when absent.
	GetByID(ctx context.Context, id int64) (*models.LedgerEntry, error)

	// LockByID retrieves an entry and holds a row lock until the transaction ends
	LockByID(ctx context.Context, id int64) (*models.LedgerEntry, error)

	// List returns one page of entries matching filter together with the total match count
	List(ctx context.Context, filter models.LedgerFilter, page models.Pagination) ([]*models.LedgerEntry, int64, error)

	// ListByAccount returns every entry touching the account, oldest first
	ListByAccount(ctx context.Context, accountID int64) ([]*models.LedgerEntry, error)

	// ListOlderThan returns and locks up to limit entries created before cutoff with id > afterID, ordered by id
	ListOlderThan(ctx context.Context, cutoff time.Time, afterID int64, limit int) ([]*models.LedgerEntry, error)

	// Retract attaches a retraction marker to an entry
	Retract(ctx context.Context, id int64, retraction models.Retraction) error

	// UpdateDisplayNames rewrites the denormalized display name on every entry touching the account
	UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error)

	// DeleteArchived removes the given hot rows that already exist in cold storage
	DeleteArchived(ctx context.Context, ids []int64) (int64, error)

	// Counterparts returns the distinct accounts sharing open entries with accountID
	Counterparts(ctx context.Context, accountID int64) ([]models.Counterpart, error)
}

// ArchiveRepository defines the interface for cold ledger storage
type ArchiveRepository interface {
	// CopyEntry copies entry into cold storage under batchID.
	// Returns false when the original id was already archived.
	// A failed copy leaves the enclosing transaction usable.
	CopyEntry(ctx context.Context, entry *models.LedgerEntry, batchID uuid.UUID) (bool, error)

	// CopyAccount copies the account row into cold storage
	CopyAccount(ctx context.Context, account *models.Account, reason string, actorID int64) error

	// ListBatch returns the archived entries of one batch
	ListBatch(ctx context.Context, batchID uuid.UUID) ([]*models.ArchivedLedgerEntry, error)

	// RestoreBatch moves a batch back into the hot table under its original ids
	RestoreBatch(ctx context.Context, batchID uuid.UUID) (int64, error)

	// UpdateDisplayNames rewrites the denormalized display name on archived entries touching the account
	UpdateDisplayNames(ctx context.Context, accountID int64, displayName string) (int64, error)

	// Stats summarizes hot and cold storage relative to cutoff
	Stats(ctx context.Context, cutoff time.Time) (*models.ArchiveStats, error)
}

// ObligationRepository defines read-only access to obligation sources
type ObligationRepository interface {
	// CountForAccount counts every unresolved obligation tied to the account
	CountForAccount(ctx context.Context, accountID int64) (models.ObligationCounts, error)
}

// OperationalLogRepository defines access to high-volume logs without audit requirements
type OperationalLogRepository interface {
	// DeleteOlderThan hard-deletes up to limit rows created before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// CountOlderThan counts rows created before cutoff
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// SampleOlderThan returns up to limit of the oldest rows created before cutoff
	SampleOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*models.GameRoundLog, error)

	// Stats summarizes the log table relative to cutoff
	Stats(ctx context.Context, cutoff time.Time) (*models.RetentionStats, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// TransferService is the transfer engine
type TransferService interface {
	// Transfer moves funds between two accounts as one atomic unit
	Transfer(ctx context.Context, req models.TransferRequest) (*models.LedgerEntry, error)

	// CreditTransfer moves funds from an owner to one of its players
	CreditTransfer(ctx context.Context, ownerID, playerID int64, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error)

	// DebitTransfer moves funds from a player back to its owner
	DebitTransfer(ctx context.Context, playerID, ownerID int64, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error)

	// Deposit settles an approved deposit into the account from its funding counterpart
	Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error)

	// Withdraw settles an approved withdrawal from the account to its funding counterpart
	Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error)

	// GameWin pays a player from the system wallet
	GameWin(ctx context.Context, playerID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error)

	// GameLoss collects a player's stake into the system wallet
	GameLoss(ctx context.Context, playerID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error)

	// CapitalDeposit injects external capital into the system wallet
	CapitalDeposit(ctx context.Context, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error)

	// Reverse moves the amount of a committed entry back and retracts the original
	Reverse(ctx context.Context, entryID int64, actor models.Actor, reason string) (*models.LedgerEntry, error)
}

// AccountService defines read access to accounts and the ledger
type AccountService interface {
	// RegisterAccount consumes an account-creation event
	RegisterAccount(ctx context.Context, account *models.NewAccount) (*models.Account, error)

	// GetAccount retrieves an account
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)

	// GetBalance returns the authoritative balance of an account
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// ListLedgerEntries returns one page of ledger entries
	ListLedgerEntries(ctx context.Context, filter models.LedgerFilter, page models.Pagination) (*models.LedgerPage, error)

	// RetractEntry attaches a retraction to an entry without moving funds
	RetractEntry(ctx context.Context, entryID int64, actor models.Actor, reason string) (*models.LedgerEntry, error)
}

// LifecycleService guards destructive account-state changes
type LifecycleService interface {
	// CanRetire returns nil when the account has no blocking obligations
	CanRetire(ctx context.Context, accountID int64) error

	// GetDeletionImpact previews what retiring the account would touch
	GetDeletionImpact(ctx context.Context, accountID int64) (*models.RetirementImpact, error)

	// Retire deactivates, anonymizes or archives the account
	Retire(ctx context.Context, accountID int64, mode models.RetireMode, reason string, actor models.Actor) (*models.RetirementResult, error)

	// Reactivate reverses a deactivation
	Reactivate(ctx context.Context, accountID int64, actor models.Actor) error
}

// ArchiveService moves aged ledger rows to cold storage
type ArchiveService interface {
	// ArchiveOlderThan moves entries created before cutoff into cold storage
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (*models.ArchiveResult, error)

	// RestoreBatch moves one archive batch back into the hot ledger
	RestoreBatch(ctx context.Context, batchID uuid.UUID) (*models.RestoreResult, error)

	// Stats summarizes hot and cold storage
	Stats(ctx context.Context, cutoff time.Time) (*models.ArchiveStats, error)
}

// RetentionService purges operational logs
type RetentionService interface {
	// PurgeOperationalLogsOlderThan hard-deletes logs created before cutoff
	PurgeOperationalLogsOlderThan(ctx context.Context, cutoff time.Time) (*models.PurgeResult, error)

	// PreviewPurge reports what a purge would delete without deleting
	PreviewPurge(ctx context.Context, cutoff time.Time) (*models.PurgePreview, error)

	// Stats summarizes the log table
	Stats(ctx context.Context, cutoff time.Time) (*models.RetentionStats, error)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes queued events
	Commit() error

	// Rollback rolls back the transaction and discards queued events
	Rollback() error

	AccountRepository() AccountRepository
	LedgerRepository() LedgerRepository
	ArchiveRepository() ArchiveRepository
	ObligationRepository() ObligationRepository

	// EventBus returns the transactional event bus for this unit of work
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
