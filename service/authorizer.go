package service

import (
	"fmt"

	"walletledger/models"
)

// transferRule decides one (source type, destination type) cell of the hierarchy table
type transferRule func(from, to *models.Account, kind models.TransactionKind) bool

func allow(_, _ *models.Account, _ models.TransactionKind) bool { return true }

func deny(_, _ *models.Account, _ models.TransactionKind) bool { return false }

// ownsPlayer: an owner may only fund players it administers
func ownsPlayer(from, to *models.Account, _ models.TransactionKind) bool {
	return to.OwnerRef != nil && *to.OwnerRef == from.ID
}

// ownedBy: a player may only return funds to its own owner
func ownedBy(from, to *models.Account, _ models.TransactionKind) bool {
	return from.OwnerRef != nil && *from.OwnerRef == to.ID
}

func gameOnly(_, _ *models.Account, kind models.TransactionKind) bool {
	return kind.IsGame()
}

// transferRules is the complete hierarchy table. Every pair of account types has an entry.
var transferRules = map[models.AccountType]map[models.AccountType]transferRule{
	models.AccountTypeOwner: {
		models.AccountTypeOwner:        deny,
		models.AccountTypePlayer:       ownsPlayer,
		models.AccountTypeSystemWallet: allow,
	},
	models.AccountTypePlayer: {
		models.AccountTypeOwner:        ownedBy,
		models.AccountTypePlayer:       deny,
		models.AccountTypeSystemWallet: gameOnly,
	},
	models.AccountTypeSystemWallet: {
		models.AccountTypeOwner:        allow,
		models.AccountTypePlayer:       gameOnly,
		models.AccountTypeSystemWallet: deny,
	},
}

// CanTransfer reports whether funds may move from one account to another under kind.
// It depends only on account types, ownership edges and kind.
func CanTransfer(from, to *models.Account, kind models.TransactionKind) bool {
	if from == nil || to == nil || from.ID == to.ID {
		return false
	}
	rule, ok := transferRules[from.Type][to.Type]
	if !ok {
		return false
	}
	return rule(from, to, kind)
}

// Authorize wraps CanTransfer with a caller-facing reason
func Authorize(from, to *models.Account, kind models.TransactionKind) error {
	if CanTransfer(from, to, kind) {
		return nil
	}

	switch {
	case from.Type == models.AccountTypeOwner && to.Type == models.AccountTypePlayer:
		return fmt.Errorf("%w: not your player", ErrUnauthorized)
	case from.Type == models.AccountTypePlayer && to.Type == models.AccountTypeOwner:
		return fmt.Errorf("%w: not your owner", ErrUnauthorized)
	case from.Type == models.AccountTypeSystemWallet || to.Type == models.AccountTypeSystemWallet:
		return fmt.Errorf("%w: %s cannot move funds between %s and %s", ErrUnauthorized, kind, from.Type, to.Type)
	default:
		return fmt.Errorf("%w: %s to %s transfers are not allowed", ErrUnauthorized, from.Type, to.Type)
	}
}
