package testutil

import (
	"context"
	"testing"
	"time"

	"walletledger/database"
	"walletledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// CreateTestOwner returns a new owner account with default values
func CreateTestOwner(userName string) *models.NewAccount {
	return &models.NewAccount{
		Type:     models.AccountTypeOwner,
		UserName: userName,
		Name:     "Owner " + userName,
	}
}

// CreateTestPlayer returns a new player account under ownerID
func CreateTestPlayer(ownerID int64, userName string) *models.NewAccount {
	email := userName + "@example.com"
	return &models.NewAccount{
		Type:     models.AccountTypePlayer,
		UserName: userName,
		Name:     "Player " + userName,
		Email:    &email,
		OwnerRef: &ownerID,
	}
}

// CreateTestSystemWallet returns the system wallet account
func CreateTestSystemWallet() *models.NewAccount {
	return &models.NewAccount{
		Type:     models.AccountTypeSystemWallet,
		UserName: "system",
		Name:     "System Wallet",
	}
}

// SetBalance overwrites an account balance without writing a ledger entry
func SetBalance(t *testing.T, db *database.DB, accountID int64, balance string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`UPDATE accounts SET balance = $1 WHERE id = $2`, decimal.RequireFromString(balance), accountID)
	require.NoError(t, err)
}

// InsertLedgerEntryAt writes a raw ledger row with an explicit creation time
func InsertLedgerEntryAt(t *testing.T, db *database.DB, fromID, toID int64, amount string, createdAt time.Time) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO ledger_entries (
			from_account_id, to_account_id, from_display_name, to_display_name, amount, kind,
			from_balance_before, from_balance_after, to_balance_before, to_balance_after, created_at
		) VALUES ($1, $2, 'from', 'to', $3, 'credit_transfer', $3, 0, 0, $3, $4)
		RETURNING id
	`, fromID, toID, decimal.RequireFromString(amount), createdAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertPendingDeposit adds a pending deposit request for the account
func InsertPendingDeposit(t *testing.T, db *database.DB, accountID int64, amount string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO deposit_requests (account_id, amount) VALUES ($1, $2)`, accountID, decimal.RequireFromString(amount))
	require.NoError(t, err)
}

// InsertPendingWithdrawal adds a pending withdraw request for the account
func InsertPendingWithdrawal(t *testing.T, db *database.DB, accountID int64, amount string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO withdraw_requests (account_id, amount) VALUES ($1, $2)`, accountID, decimal.RequireFromString(amount))
	require.NoError(t, err)
}

// InsertActiveBet adds an unsettled bet position for the account
func InsertActiveBet(t *testing.T, db *database.DB, accountID int64, stake string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO bet_positions (account_id, stake, game_code) VALUES ($1, $2, 'roulette')`, accountID, decimal.RequireFromString(stake))
	require.NoError(t, err)
}

// CreateTestGameRoundLog returns a round log created at createdAt
func CreateTestGameRoundLog(accountID int64, createdAt time.Time) *models.GameRoundLog {
	return &models.GameRoundLog{
		AccountID: &accountID,
		Provider:  "test-provider",
		RoundRef:  "round-" + createdAt.Format("20060102150405"),
		Payload: map[string]any{
			"result": "win",
		},
		CreatedAt: createdAt,
	}
}
