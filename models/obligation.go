package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Obligation categories reported by the lifecycle guard
const (
	ObligationOpenLedgerEntries  = "open_ledger_entries"
	ObligationPendingDeposits    = "pending_deposits"
	ObligationPendingWithdrawals = "pending_withdrawals"
	ObligationOpenBets           = "open_bets"
)

// ObligationCounts is the per-category count of unresolved obligations on an account
type ObligationCounts struct {
	OpenLedgerEntries  int64
	PendingDeposits    int64
	PendingWithdrawals int64
	OpenBets           int64
}

// Total returns the number of obligations across all categories
func (c ObligationCounts) Total() int64 {
	return c.OpenLedgerEntries + c.PendingDeposits + c.PendingWithdrawals + c.OpenBets
}

// Blockers lists every non-zero category as "category:count" in a fixed order
func (c ObligationCounts) Blockers() []string {
	var blockers []string
	for _, item := range []struct {
		name  string
		count int64
	}{
		{ObligationOpenLedgerEntries, c.OpenLedgerEntries},
		{ObligationPendingDeposits, c.PendingDeposits},
		{ObligationPendingWithdrawals, c.PendingWithdrawals},
		{ObligationOpenBets, c.OpenBets},
	} {
		if item.count > 0 {
			blockers = append(blockers, fmt.Sprintf("%s:%d", item.name, item.count))
		}
	}
	return blockers
}

// RetireMode selects the destructive lifecycle action
type RetireMode string

const (
	RetireModeDeactivate RetireMode = "deactivate"
	RetireModeAnonymize  RetireMode = "anonymize"
	RetireModeArchive    RetireMode = "archive"
)

// IsValid reports whether m is a known retirement mode
func (m RetireMode) IsValid() bool {
	switch m {
	case RetireModeDeactivate, RetireModeAnonymize, RetireModeArchive:
		return true
	}
	return false
}

// Counterpart is another account that shares ledger history with a retiring account
type Counterpart struct {
	AccountID   int64
	DisplayName string
	Type        AccountType
}

// RetirementImpact is a read-only preview of what retiring an account would touch
type RetirementImpact struct {
	AccountID    int64
	DisplayName  string
	Balance      decimal.Decimal
	Obligations  ObligationCounts
	Counterparts []Counterpart
	Warnings     []string
}

// RetirementResult describes a completed retirement
type RetirementResult struct {
	AccountID      int64
	Mode           RetireMode
	AnonymizedName string
	ArchivedCount  int
}
