package service

import (
	"errors"
	"testing"

	"walletledger/models"

	"github.com/stretchr/testify/assert"
)

func TestTransferRules_CoverEveryTypePair(t *testing.T) {
	types := []models.AccountType{
		models.AccountTypeOwner,
		models.AccountTypePlayer,
		models.AccountTypeSystemWallet,
	}

	assert.Len(t, transferRules, len(types))
	for _, from := range types {
		row, ok := transferRules[from]
		if assert.True(t, ok, "missing row for %s", from) {
			assert.Len(t, row, len(types))
			for _, to := range types {
				assert.NotNil(t, row[to], "missing rule %s -> %s", from, to)
			}
		}
	}
}

func TestCanTransfer(t *testing.T) {
	owner := &models.Account{ID: 1, Type: models.AccountTypeOwner}
	otherOwner := &models.Account{ID: 2, Type: models.AccountTypeOwner}
	player := &models.Account{ID: 10, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(1))}
	siblingPlayer := &models.Account{ID: 11, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(1))}
	foreignPlayer := &models.Account{ID: 20, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(2))}
	wallet := &models.Account{ID: 99, Type: models.AccountTypeSystemWallet}

	tests := []struct {
		name     string
		from     *models.Account
		to       *models.Account
		kind     models.TransactionKind
		expected bool
	}{
		{"owner to own player", owner, player, models.TransactionKindCreditTransfer, true},
		{"owner to foreign player", owner, foreignPlayer, models.TransactionKindCreditTransfer, false},
		{"player to own owner", player, owner, models.TransactionKindDebitTransfer, true},
		{"player to foreign owner", player, otherOwner, models.TransactionKindDebitTransfer, false},
		{"owner to owner", owner, otherOwner, models.TransactionKindCreditTransfer, false},
		{"player to sibling player", player, siblingPlayer, models.TransactionKindCreditTransfer, false},
		{"player to foreign player", player, foreignPlayer, models.TransactionKindCreditTransfer, false},
		{"owner to system wallet", owner, wallet, models.TransactionKindWithdraw, true},
		{"system wallet to owner", wallet, owner, models.TransactionKindDeposit, true},
		{"system wallet to player via game win", wallet, player, models.TransactionKindGameWin, true},
		{"player to system wallet via game loss", player, wallet, models.TransactionKindGameLoss, true},
		{"system wallet to player via deposit", wallet, player, models.TransactionKindDeposit, false},
		{"player to system wallet via withdraw", player, wallet, models.TransactionKindWithdraw, false},
		{"same account", owner, owner, models.TransactionKindCreditTransfer, false},
		{"nil source", nil, owner, models.TransactionKindDeposit, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanTransfer(tt.from, tt.to, tt.kind))
		})
	}
}

func TestCanTransfer_IsDeterministic(t *testing.T) {
	owner := &models.Account{ID: 1, Type: models.AccountTypeOwner}
	player := &models.Account{ID: 10, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(1))}

	first := CanTransfer(owner, player, models.TransactionKindCreditTransfer)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, CanTransfer(owner, player, models.TransactionKindCreditTransfer))
	}
}

func TestAuthorize_Messages(t *testing.T) {
	owner := &models.Account{ID: 1, Type: models.AccountTypeOwner}
	foreignPlayer := &models.Account{ID: 20, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(2))}
	p1 := &models.Account{ID: 10, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(1))}
	p2 := &models.Account{ID: 11, Type: models.AccountTypePlayer, OwnerRef: ptr(int64(1))}

	err := Authorize(owner, foreignPlayer, models.TransactionKindCreditTransfer)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.Contains(t, err.Error(), "not your player")

	err = Authorize(p1, p2, models.TransactionKindCreditTransfer)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	assert.NoError(t, Authorize(owner, p1, models.TransactionKindCreditTransfer))
}
