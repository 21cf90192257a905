package service

import (
	"time"
)

// LedgerArchiveCutoff returns the instant before which ledger entries are archived,
// retentionMonths calendar months before now
func LedgerArchiveCutoff(now time.Time, retentionMonths int) time.Time {
	return now.UTC().AddDate(0, -retentionMonths, 0)
}

// LogPurgeCutoff returns the instant before which operational logs are purged,
// aligned to the start of the UTC day so repeated runs on one day agree
func LogPurgeCutoff(now time.Time, retentionDays int) time.Time {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return startOfDay.AddDate(0, 0, -retentionDays)
}
