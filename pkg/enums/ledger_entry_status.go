package enums

import "fmt"

// LedgerEntryStatus maps to the ledger_entry_status enum in Postgres.
//
// Entries with status completed or paid count toward the available balance;
// pending and processing entries count toward the pending balance, except
// payout entries, whose processing amounts reduce available as obligations
// already issued; failed entries count toward neither.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending    LedgerEntryStatus = "pending"
	LedgerEntryStatusProcessing LedgerEntryStatus = "processing"
	LedgerEntryStatusCompleted  LedgerEntryStatus = "completed"
	LedgerEntryStatusPaid       LedgerEntryStatus = "paid"
	LedgerEntryStatusFailed     LedgerEntryStatus = "failed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusProcessing,
	LedgerEntryStatusCompleted,
	LedgerEntryStatusPaid,
	LedgerEntryStatusFailed,
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CountsAsAvailable reports whether the entry contributes to available balance.
func (s LedgerEntryStatus) CountsAsAvailable() bool {
	return s == LedgerEntryStatusCompleted || s == LedgerEntryStatusPaid
}

// CountsAsPending reports whether the entry contributes to pending balance.
func (s LedgerEntryStatus) CountsAsPending() bool {
	return s == LedgerEntryStatusPending || s == LedgerEntryStatusProcessing
}

// ParseLedgerEntryStatus converts raw input into LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
