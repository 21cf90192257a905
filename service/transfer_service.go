package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"walletledger/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxTransferAttempts bounds how often a transfer is retried after a lock conflict
const DefaultMaxTransferAttempts = 3

type transferService struct {
	uowFactory   UnitOfWorkFactory
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

// NewTransferService creates a new transfer engine
func NewTransferService(uowFactory UnitOfWorkFactory, maxAttempts int) TransferService {
	return newTransferService(uowFactory, maxAttempts, 20*time.Millisecond)
}

func newTransferService(uowFactory UnitOfWorkFactory, maxAttempts int, retryBackoff time.Duration) *transferService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxTransferAttempts
	}
	return &transferService{
		uowFactory:   uowFactory,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		now:          time.Now,
	}
}

func (s *transferService) Transfer(ctx context.Context, req models.TransferRequest) (*models.LedgerEntry, error) {
	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	entry, err := s.withRetry(ctx, "transfer", func(ctx context.Context) (*models.LedgerEntry, error) {
		return s.transferOnce(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"entryID": entry.ID,
		"from":    req.FromAccountID,
		"to":      req.ToAccountID,
		"amount":  req.Amount.StringFixed(models.AmountScale),
		"kind":    req.Kind,
		"actorID": req.Actor.ID,
	}).Debug("Transfer committed")

	return entry, nil
}

func (s *transferService) transferOnce(ctx context.Context, req models.TransferRequest) (*models.LedgerEntry, error) {
	// Create unit of work
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Lock both accounts
	from, to, err := lockPair(ctx, uow.AccountRepository(), req.FromAccountID, req.ToAccountID)
	if err != nil {
		return nil, err
	}

	// Both sides must be open for business
	if !from.IsActive() {
		return nil, fmt.Errorf("%w: %d", ErrAccountInactive, from.ID)
	}
	if !to.IsActive() {
		return nil, fmt.Errorf("%w: %d", ErrAccountInactive, to.ID)
	}

	// Check the hierarchy allows this kind of transfer
	if err := Authorize(from, to, req.Kind); err != nil {
		return nil, err
	}

	// Check if sender has sufficient balance
	if from.Balance.LessThan(req.Amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance,
			from.Balance.StringFixed(models.AmountScale), req.Amount.StringFixed(models.AmountScale))
	}

	// Move the funds and record the ledger entry
	entry, err := applyTransfer(ctx, uow, from, to, req)
	if err != nil {
		return nil, err
	}

	// Commit transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, nil
}

func (s *transferService) CreditTransfer(ctx context.Context, ownerID, playerID int64, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error) {
	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: ownerID,
		ToAccountID:   playerID,
		Amount:        amount,
		Kind:          models.TransactionKindCreditTransfer,
		Note:          note,
		Actor:         actor,
	})
}

func (s *transferService) DebitTransfer(ctx context.Context, playerID, ownerID int64, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error) {
	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: playerID,
		ToAccountID:   ownerID,
		Amount:        amount,
		Kind:          models.TransactionKindDebitTransfer,
		Note:          note,
		Actor:         actor,
	})
}

// Deposit credits a player from its owner, or an owner from the system wallet
func (s *transferService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	counterpartID, err := s.fundingCounterpart(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: counterpartID,
		ToAccountID:   accountID,
		Amount:        amount,
		Kind:          models.TransactionKindDeposit,
		Reference:     reference,
		Actor:         actor,
	})
}

// Withdraw debits a player to its owner, or an owner to the system wallet
func (s *transferService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	counterpartID, err := s.fundingCounterpart(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: accountID,
		ToAccountID:   counterpartID,
		Amount:        amount,
		Kind:          models.TransactionKindWithdraw,
		Reference:     reference,
		Actor:         actor,
	})
}

func (s *transferService) GameWin(ctx context.Context, playerID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	walletID, err := s.systemWalletID(ctx)
	if err != nil {
		return nil, err
	}

	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: walletID,
		ToAccountID:   playerID,
		Amount:        amount,
		Kind:          models.TransactionKindGameWin,
		Reference:     reference,
		Actor:         actor,
	})
}

func (s *transferService) GameLoss(ctx context.Context, playerID int64, amount decimal.Decimal, actor models.Actor, reference string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	walletID, err := s.systemWalletID(ctx)
	if err != nil {
		return nil, err
	}

	return s.Transfer(ctx, models.TransferRequest{
		FromAccountID: playerID,
		ToAccountID:   walletID,
		Amount:        amount,
		Kind:          models.TransactionKindGameLoss,
		Reference:     reference,
		Actor:         actor,
	})
}

// CapitalDeposit credits the system wallet from outside the system. The entry has no source account.
func (s *transferService) CapitalDeposit(ctx context.Context, amount decimal.Decimal, actor models.Actor, note string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	req := models.TransferRequest{
		Amount: amount,
		Kind:   models.TransactionKindCapitalDeposit,
		Note:   note,
		Actor:  actor,
	}

	return s.withRetry(ctx, "capital_deposit", func(ctx context.Context) (*models.LedgerEntry, error) {
		uow := s.uowFactory.Create()
		if err := uow.Begin(ctx); err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer uow.Rollback()

		// Lock the system wallet, the only account touched
		wallet, err := uow.AccountRepository().LockSystemWallet(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to lock system wallet: %w", err)
		}
		if wallet == nil {
			return nil, fmt.Errorf("%w: no active system wallet", ErrAccountNotFound)
		}

		// Credit the wallet and record the ledger entry
		req.ToAccountID = wallet.ID
		entry, err := applyTransfer(ctx, uow, nil, wallet, req)
		if err != nil {
			return nil, err
		}

		// Commit transaction
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return entry, nil
	})
}

// Reverse writes a compensating correction entry and retracts the original in one atomic unit.
// Hierarchy rules and account status are not re-checked; balance sufficiency is.
func (s *transferService) Reverse(ctx context.Context, entryID int64, actor models.Actor, reason string) (*models.LedgerEntry, error) {
	entry, err := s.withRetry(ctx, "reversal", func(ctx context.Context) (*models.LedgerEntry, error) {
		return s.reverseOnce(ctx, entryID, actor, reason)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"entryID":    entry.ID,
		"reversesID": entryID,
		"actorID":    actor.ID,
		"reason":     reason,
	}).Info("Ledger entry reversed")

	return entry, nil
}

func (s *transferService) reverseOnce(ctx context.Context, entryID int64, actor models.Actor, reason string) (*models.LedgerEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// Lock the entry being reversed
	original, err := uow.LedgerRepository().LockByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger entry %d: %w", entryID, err)
	}
	if original == nil {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, entryID)
	}
	if original.IsRetracted() {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyRetracted, entryID)
	}
	if original.FromAccountID == nil || original.ToAccountID == nil {
		return nil, fmt.Errorf("%w: entry %d has no internal source account", ErrNotReversible, entryID)
	}

	// Funds flow back from the original destination to the original source
	from, to, err := lockPair(ctx, uow.AccountRepository(), *original.ToAccountID, *original.FromAccountID)
	if err != nil {
		return nil, err
	}

	// Check the original destination can pay it back
	if from.Balance.LessThan(original.Amount) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance,
			from.Balance.StringFixed(models.AmountScale), original.Amount.StringFixed(models.AmountScale))
	}

	// Write the correction entry
	req := models.TransferRequest{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        original.Amount,
		Kind:          models.TransactionKindReversal,
		Note:          reason,
		Actor:         actor,
		Metadata: map[string]any{
			models.MetadataCorrection: true,
			models.MetadataReverses:   original.ID,
			"reversed_kind":           string(original.Kind),
		},
	}

	entry, err := applyTransfer(ctx, uow, from, to, req)
	if err != nil {
		return nil, err
	}

	// Retract the original
	retraction := models.Retraction{Reason: reason, ActorID: actor.ID, At: s.now().UTC()}
	if err := uow.LedgerRepository().Retract(ctx, original.ID, retraction); err != nil {
		return nil, fmt.Errorf("failed to retract ledger entry %d: %w", original.ID, err)
	}

	// Commit transaction
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, nil
}

// fundingCounterpart resolves who funds deposits into and receives withdrawals from an account.
// Account types and ownership edges never change, so the answer may be read outside the transfer.
func (s *transferService) fundingCounterpart(ctx context.Context, accountID int64) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account %d: %w", accountID, err)
	}
	if account == nil {
		return 0, fmt.Errorf("%w: %d", ErrAccountNotFound, accountID)
	}

	switch account.Type {
	case models.AccountTypePlayer:
		return *account.OwnerRef, nil
	case models.AccountTypeOwner:
		wallet, err := uow.AccountRepository().GetSystemWallet(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to get system wallet: %w", err)
		}
		if wallet == nil {
			return 0, fmt.Errorf("%w: no active system wallet", ErrAccountNotFound)
		}
		return wallet.ID, nil
	default:
		return 0, fmt.Errorf("%w: the system wallet has no funding counterpart", ErrUnauthorized)
	}
}

func (s *transferService) systemWalletID(ctx context.Context) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	wallet, err := uow.AccountRepository().GetSystemWallet(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get system wallet: %w", err)
	}
	if wallet == nil {
		return 0, fmt.Errorf("%w: no active system wallet", ErrAccountNotFound)
	}
	return wallet.ID, nil
}

// withRetry reruns fn while it fails with a transient lock conflict.
// Cancellation is honored only between attempts; once an attempt has begun its
// transaction it runs to commit or rollback.
func (s *transferService) withRetry(ctx context.Context, operation string, fn func(ctx context.Context) (*models.LedgerEntry, error)) (*models.LedgerEntry, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := fn(detach(ctx))
		if err == nil || !errors.Is(err, ErrTransient) {
			return entry, err
		}
		lastErr = err

		log.WithFields(log.Fields{
			"operation":   operation,
			"attempt":     attempt,
			"maxAttempts": s.maxAttempts,
		}).WithError(err).Warn("Lock conflict, retrying")

		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.retryBackoff):
		}
	}

	return nil, fmt.Errorf("%w: %s gave up after %d attempts: %v", ErrConcurrentModification, operation, s.maxAttempts, lastErr)
}

// detach shields an atomic unit from caller cancellation while keeping ctx values
func detach(ctx context.Context) context.Context {
	if ctx.Done() == nil {
		return ctx
	}
	return context.WithoutCancel(ctx)
}

// lockPair locks both accounts in ascending id order so opposing transfers cannot deadlock
func lockPair(ctx context.Context, repo AccountRepository, fromID, toID int64) (*models.Account, *models.Account, error) {
	ids := []int64{fromID, toID}
	slices.Sort(ids)

	locked := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		account, err := repo.LockByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		if account == nil || account.IsArchived() {
			return nil, nil, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
		}
		locked[id] = account
	}

	return locked[fromID], locked[toID], nil
}

func validateAmount(amount decimal.Decimal) error {
	if !models.IsValidAmount(amount) {
		return fmt.Errorf("%w: %s must be positive with at most %d decimal places",
			ErrInvalidAmount, amount.String(), models.AmountScale)
	}
	return nil
}

func validateTransferRequest(req models.TransferRequest) error {
	if err := validateAmount(req.Amount); err != nil {
		return err
	}
	if req.FromAccountID == req.ToAccountID {
		return ErrSameAccount
	}
	switch {
	case !req.Kind.IsValid():
		return fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	case req.Kind == models.TransactionKindReversal, req.Kind == models.TransactionKindCapitalDeposit:
		return fmt.Errorf("%w: %s has a dedicated operation", ErrInvalidKind, req.Kind)
	}
	return nil
}
