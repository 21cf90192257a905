package repository

import (
	"context"
	"errors"
	"fmt"

	"walletledger/database"
	"walletledger/models"
	"walletledger/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `
	id, account_type, user_name, name, email, phone, balance, owner_ref, status,
	deactivated_at, deactivation_reason, anonymized_at, anonymization_reason,
	deleted_at, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID,
		&account.Type,
		&account.UserName,
		&account.Name,
		&account.Email,
		&account.Phone,
		&account.Balance,
		&account.OwnerRef,
		&account.Status,
		&account.DeactivatedAt,
		&account.DeactivationReason,
		&account.AnonymizedAt,
		&account.AnonymizationReason,
		&account.DeletedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Create inserts a new account with a zero balance
func (r *AccountRepository) Create(ctx context.Context, account *models.NewAccount) (*models.Account, error) {
	query := `
		INSERT INTO accounts (account_type, user_name, name, email, phone, owner_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + accountColumns

	created, err := scanAccount(r.q.QueryRow(ctx, query,
		account.Type,
		account.UserName,
		account.Name,
		account.Email,
		account.Phone,
		account.OwnerRef,
	))
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return nil, fmt.Errorf("%w: an active system wallet already exists", service.ErrInvalidAccount)
		case pgCheckViolation:
			return nil, fmt.Errorf("%w: owner_ref must be set for players only", service.ErrInvalidAccount)
		case pgForeignKeyViolation:
			return nil, fmt.Errorf("%w: owner %d does not exist", service.ErrAccountNotFound, *account.OwnerRef)
		}
		return nil, fmt.Errorf("failed to create %s account %q: %w", account.Type, account.UserName, err)
	}

	return created, nil
}

// GetByID retrieves an account by id, including soft-deleted ones
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, classifyError(err))
	}

	return account, nil
}

// LockByID retrieves an account and locks its row until the transaction ends
func (r *AccountRepository) LockByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", id, classifyError(err))
	}

	return account, nil
}

// GetSystemWallet retrieves the active system wallet
func (r *AccountRepository) GetSystemWallet(ctx context.Context) (*models.Account, error) {
	return r.systemWallet(ctx, "")
}

// LockSystemWallet retrieves the active system wallet and locks its row
func (r *AccountRepository) LockSystemWallet(ctx context.Context) (*models.Account, error) {
	return r.systemWallet(ctx, " FOR UPDATE")
}

func (r *AccountRepository) systemWallet(ctx context.Context, lockClause string) (*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE account_type = 'system_wallet' AND status = 'active' AND deleted_at IS NULL` + lockClause

	account, err := scanAccount(r.q.QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system wallet: %w", classifyError(err))
	}

	return account, nil
}

// UpdateBalance writes a new authoritative balance
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1 WHERE id = $2`

	result, err := r.q.Exec(ctx, query, newBalance, id)
	if err != nil {
		if pgErrorCode(err) == pgCheckViolation {
			return fmt.Errorf("%w: balance of account %d would become %s", service.ErrInsufficientBalance, id, newBalance)
		}
		return fmt.Errorf("failed to update balance for account %d: %w", id, classifyError(err))
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrAccountNotFound, id)
	}

	return nil
}

// Deactivate marks the account inactive
func (r *AccountRepository) Deactivate(ctx context.Context, id int64, actorID int64, reason string) error {
	query := `
		UPDATE accounts
		SET status = 'inactive', deactivated_at = NOW(), deactivated_by = $2, deactivation_reason = $3
		WHERE id = $1
	`
	return r.execOne(ctx, "deactivate", id, query, id, actorID, reason)
}

// Reactivate clears a previous deactivation
func (r *AccountRepository) Reactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET status = 'active', deactivated_at = NULL, deactivated_by = NULL, deactivation_reason = NULL
		WHERE id = $1
	`
	return r.execOne(ctx, "reactivate", id, query, id)
}

// Anonymize scrubs personal fields and deactivates the account
func (r *AccountRepository) Anonymize(ctx context.Context, id int64, anonymizedName string, actorID int64, reason string) error {
	query := `
		UPDATE accounts
		SET user_name = $2,
			name = 'Anonymized User',
			email = NULL,
			phone = NULL,
			status = 'inactive',
			anonymized_at = NOW(),
			anonymized_by = $3,
			anonymization_reason = $4
		WHERE id = $1
	`
	return r.execOne(ctx, "anonymize", id, query, id, anonymizedName, actorID, reason)
}

// SoftDelete marks the live row deleted
func (r *AccountRepository) SoftDelete(ctx context.Context, id int64, actorID int64) error {
	query := `
		UPDATE accounts
		SET status = 'inactive', deleted_at = NOW(), deleted_by = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.execOne(ctx, "soft delete", id, query, id, actorID)
}

// SumBalances returns the total of all balances held in the system
func (r *AccountRepository) SumBalances(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

func (r *AccountRepository) execOne(ctx context.Context, action string, id int64, query string, args ...any) error {
	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s account %d: %w", action, id, classifyError(err))
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", service.ErrAccountNotFound, id)
	}
	return nil
}
