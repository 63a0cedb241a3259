package enums

import "fmt"

// ScheduledPayoutStatus maps to the scheduled_payout_status enum in Postgres.
type ScheduledPayoutStatus string

const (
	ScheduledPayoutStatusPending    ScheduledPayoutStatus = "pending"
	ScheduledPayoutStatusProcessing ScheduledPayoutStatus = "processing"
	ScheduledPayoutStatusCompleted  ScheduledPayoutStatus = "completed"
	ScheduledPayoutStatusFailed     ScheduledPayoutStatus = "failed"
)

var validScheduledPayoutStatuses = []ScheduledPayoutStatus{
	ScheduledPayoutStatusPending,
	ScheduledPayoutStatusProcessing,
	ScheduledPayoutStatusCompleted,
	ScheduledPayoutStatusFailed,
}

// IsValid reports whether the value is a known ScheduledPayoutStatus.
func (s ScheduledPayoutStatus) IsValid() bool {
	for _, candidate := range validScheduledPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseScheduledPayoutStatus converts raw input into a ScheduledPayoutStatus.
func ParseScheduledPayoutStatus(value string) (ScheduledPayoutStatus, error) {
	for _, candidate := range validScheduledPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid scheduled payout status %q", value)
}
