package enums

import (
	"fmt"
	"time"
)

// PayoutSchedule maps to the payout_schedule enum in Postgres.
type PayoutSchedule string

const (
	PayoutScheduleImmediate PayoutSchedule = "immediate"
	PayoutScheduleDaily     PayoutSchedule = "daily"
	PayoutScheduleWeekly    PayoutSchedule = "weekly"
	PayoutScheduleBiWeekly  PayoutSchedule = "bi_weekly"
	PayoutScheduleMonthly   PayoutSchedule = "monthly"
)

var validPayoutSchedules = []PayoutSchedule{
	PayoutScheduleImmediate,
	PayoutScheduleDaily,
	PayoutScheduleWeekly,
	PayoutScheduleBiWeekly,
	PayoutScheduleMonthly,
}

// String implements fmt.Stringer.
func (p PayoutSchedule) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutSchedule.
func (p PayoutSchedule) IsValid() bool {
	for _, candidate := range validPayoutSchedules {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsRecurring reports whether the schedule repeats after a successful run.
func (p PayoutSchedule) IsRecurring() bool {
	return p != PayoutScheduleImmediate && p.IsValid()
}

// Next returns the next run time after a successful execution at `from`.
// Monthly advances by one calendar month, not a fixed number of hours.
func (p PayoutSchedule) Next(from time.Time) time.Time {
	switch p {
	case PayoutScheduleDaily:
		return from.Add(24 * time.Hour)
	case PayoutScheduleWeekly:
		return from.Add(7 * 24 * time.Hour)
	case PayoutScheduleBiWeekly:
		return from.Add(14 * 24 * time.Hour)
	case PayoutScheduleMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from
	}
}

// ParsePayoutSchedule converts raw input into a PayoutSchedule.
func ParsePayoutSchedule(value string) (PayoutSchedule, error) {
	for _, candidate := range validPayoutSchedules {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout schedule %q", value)
}
