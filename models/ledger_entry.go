package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind tags what caused a ledger entry
type TransactionKind string

const (
	TransactionKindCreditTransfer TransactionKind = "credit_transfer"
	TransactionKindDebitTransfer  TransactionKind = "debit_transfer"
	TransactionKindDeposit        TransactionKind = "deposit"
	TransactionKindWithdraw       TransactionKind = "withdraw"
	TransactionKindGameWin        TransactionKind = "game_win"
	TransactionKindGameLoss       TransactionKind = "game_loss"
	TransactionKindCapitalDeposit TransactionKind = "capital_deposit"
	TransactionKindReversal       TransactionKind = "reversal"
)

// IsValid reports whether k is a known transaction kind
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindCreditTransfer, TransactionKindDebitTransfer,
		TransactionKindDeposit, TransactionKindWithdraw,
		TransactionKindGameWin, TransactionKindGameLoss,
		TransactionKindCapitalDeposit, TransactionKindReversal:
		return true
	}
	return false
}

// IsGame reports whether k originates from a game provider round
func (k TransactionKind) IsGame() bool {
	return k == TransactionKindGameWin || k == TransactionKindGameLoss
}

// Well-known metadata keys
const (
	MetadataActorID    = "actor_id"
	MetadataActorName  = "actor_name"
	MetadataNote       = "note"
	MetadataReference  = "reference"
	MetadataCorrection = "correction"
	MetadataReverses   = "reverses"
)

// Retraction is the single annotation that may be attached to a written entry
type Retraction struct {
	Reason  string
	ActorID int64
	At      time.Time
}

// LedgerEntry is the immutable audit record of one committed balance mutation.
// FromAccountID and the From balances are nil when funds enter from outside the system.
type LedgerEntry struct {
	ID                int64            `db:"id"`
	FromAccountID     *int64           `db:"from_account_id"`
	ToAccountID       *int64           `db:"to_account_id"`
	FromDisplayName   string           `db:"from_display_name"`
	ToDisplayName     string           `db:"to_display_name"`
	Amount            decimal.Decimal  `db:"amount"`
	Kind              TransactionKind  `db:"kind"`
	Metadata          map[string]any   `db:"metadata"`
	FromBalanceBefore *decimal.Decimal `db:"from_balance_before"`
	FromBalanceAfter  *decimal.Decimal `db:"from_balance_after"`
	ToBalanceBefore   decimal.Decimal  `db:"to_balance_before"`
	ToBalanceAfter    decimal.Decimal  `db:"to_balance_after"`
	Retraction        *Retraction
	CreatedAt         time.Time `db:"created_at"`
}

// IsRetracted reports whether the entry carries a retraction marker
func (e *LedgerEntry) IsRetracted() bool {
	return e.Retraction != nil
}

// IsCorrection reports whether the entry was written as an operator correction
func (e *LedgerEntry) IsCorrection() bool {
	flag, _ := e.Metadata[MetadataCorrection].(bool)
	return flag
}

// ArchivedLedgerEntry is a ledger entry moved to cold storage
type ArchivedLedgerEntry struct {
	LedgerEntry
	ArchiveID      int64
	OriginalID     int64     `db:"original_id"`
	ArchivedAt     time.Time `db:"archived_at"`
	ArchiveBatchID uuid.UUID `db:"archive_batch_id"`
}

// LedgerFilter narrows a ledger listing
type LedgerFilter struct {
	AccountID        *int64
	Kinds            []TransactionKind
	From             *time.Time
	To               *time.Time
	IncludeRetracted bool
}

// Pagination is a limit/offset window over a listing
type Pagination struct {
	Limit  int
	Offset int
}

// LedgerPage is one page of ledger entries, newest first
type LedgerPage struct {
	Entries []*LedgerEntry
	Total   int64
	Limit   int
	Offset  int
}
