package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the closed set of account kinds in the hierarchy
type AccountType string

const (
	AccountTypeOwner        AccountType = "owner"
	AccountTypePlayer       AccountType = "player"
	AccountTypeSystemWallet AccountType = "system_wallet"
)

// IsValid reports whether t is one of the known account types
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeOwner, AccountTypePlayer, AccountTypeSystemWallet:
		return true
	}
	return false
}

// AccountStatus represents whether an account may take part in new transfers
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account represents a balance-holding account in the database
type Account struct {
	ID                  int64           `db:"id"`
	Type                AccountType     `db:"account_type"`
	UserName            string          `db:"user_name"`
	Name                string          `db:"name"`
	Email               *string         `db:"email"`
	Phone               *string         `db:"phone"`
	Balance             decimal.Decimal `db:"balance"`
	OwnerRef            *int64          `db:"owner_ref"`
	Status              AccountStatus   `db:"status"`
	DeactivatedAt       *time.Time      `db:"deactivated_at"`
	DeactivationReason  *string         `db:"deactivation_reason"`
	AnonymizedAt        *time.Time      `db:"anonymized_at"`
	AnonymizationReason *string         `db:"anonymization_reason"`
	DeletedAt           *time.Time      `db:"deleted_at"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// IsActive reports whether the account may originate or receive regular transfers
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive && a.DeletedAt == nil
}

// IsAnonymized reports whether personal data has been scrubbed
func (a *Account) IsAnonymized() bool {
	return a.AnonymizedAt != nil
}

// IsArchived reports whether the live row has been soft-deleted by archival
func (a *Account) IsArchived() bool {
	return a.DeletedAt != nil
}

// DisplayName is the human-readable label denormalized onto ledger entries
func (a *Account) DisplayName() string {
	if a.UserName != "" {
		return a.UserName
	}
	return fmt.Sprintf("account-%d", a.ID)
}

// NewAccount carries the fields of an account-creation event
type NewAccount struct {
	Type     AccountType
	UserName string
	Name     string
	Email    *string
	Phone    *string
	OwnerRef *int64
}

// Actor identifies the authenticated caller on whose behalf the core acts
type Actor struct {
	ID   int64
	Name string
}

// SystemActor is used for scheduled maintenance runs
var SystemActor = Actor{ID: 0, Name: "system"}
