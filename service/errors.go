package service

import (
	"errors"
	"fmt"
	"strings"

	"walletledger/models"
)

var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrAccountNotFound        = errors.New("account not found")
	ErrUnauthorized           = errors.New("transfer not permitted")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrConcurrentModification = errors.New("concurrent modification, retry later")
	ErrObligationsBlocking    = errors.New("account has unresolved obligations")
	ErrArchivalPartialFailure = errors.New("archival stopped before completion")

	ErrSameAccount       = errors.New("source and destination are the same account")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidMode       = errors.New("invalid retirement mode")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrEntryNotFound     = errors.New("ledger entry not found")
	ErrAlreadyRetracted  = errors.New("ledger entry already retracted")
	ErrNotReversible     = errors.New("ledger entry cannot be reversed")
	ErrAlreadyAnonymized = errors.New("account already anonymized")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrBatchNotFound     = errors.New("archive batch not found")
	ErrInvalidCutoff     = errors.New("invalid cutoff")

	// ErrTransient marks lock conflicts that the transfer engine retries
	ErrTransient = errors.New("transient storage conflict")
)

// ObligationsBlockingError itemizes the obligations that block a lifecycle action
type ObligationsBlockingError struct {
	AccountID int64
	Counts    models.ObligationCounts
}

func (e *ObligationsBlockingError) Error() string {
	return fmt.Sprintf("account %d has unresolved obligations: %s",
		e.AccountID, strings.Join(e.Counts.Blockers(), ", "))
}

func (e *ObligationsBlockingError) Is(target error) bool {
	return target == ErrObligationsBlocking
}

// ArchivalPartialFailureError reports an archival run that aborted after committing some batches
type ArchivalPartialFailureError struct {
	Result *models.ArchiveResult
	Cause  error
}

func (e *ArchivalPartialFailureError) Error() string {
	return fmt.Sprintf("archival stopped after moving %d rows: %v", e.Result.MovedCount, e.Cause)
}

func (e *ArchivalPartialFailureError) Is(target error) bool {
	return target == ErrArchivalPartialFailure
}

func (e *ArchivalPartialFailureError) Unwrap() error {
	return e.Cause
}
