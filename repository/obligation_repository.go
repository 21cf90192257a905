package repository

import (
	"context"
	"fmt"

	"walletledger/database"
	"walletledger/models"
)

// ObligationRepository reads the tables that can block an account's retirement
type ObligationRepository struct {
	q queryable
}

// NewObligationRepository creates a new obligation repository
func NewObligationRepository(db *database.DB) *ObligationRepository {
	return &ObligationRepository{q: db.Pool}
}

// newObligationRepositoryWithTx creates a new obligation repository with a transaction
func newObligationRepositoryWithTx(tx queryable) *ObligationRepository {
	return &ObligationRepository{q: tx}
}

// CountForAccount counts every unresolved obligation tied to the account
func (r *ObligationRepository) CountForAccount(ctx context.Context, accountID int64) (models.ObligationCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM ledger_entries
				WHERE (from_account_id = $1 OR to_account_id = $1) AND retracted_at IS NULL),
			(SELECT COUNT(*) FROM deposit_requests WHERE account_id = $1 AND status = 'pending'),
			(SELECT COUNT(*) FROM withdraw_requests WHERE account_id = $1 AND status = 'pending'),
			(SELECT COUNT(*) FROM bet_positions WHERE account_id = $1 AND status = 'active')
	`

	var counts models.ObligationCounts
	err := r.q.QueryRow(ctx, query, accountID).Scan(
		&counts.OpenLedgerEntries,
		&counts.PendingDeposits,
		&counts.PendingWithdrawals,
		&counts.OpenBets,
	)
	if err != nil {
		return models.ObligationCounts{}, fmt.Errorf("failed to count obligations for account %d: %w", accountID, classifyError(err))
	}

	return counts, nil
}
