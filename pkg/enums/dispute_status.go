package enums

import "fmt"

// DisputeStatus maps to the dispute_status enum in Postgres.
type DisputeStatus string

const (
	DisputeStatusPending         DisputeStatus = "pending"
	DisputeStatusReturnRequested DisputeStatus = "return_requested"
	DisputeStatusReturnApproved  DisputeStatus = "return_approved"
	DisputeStatusReturnRejected  DisputeStatus = "return_rejected"
	DisputeStatusRefunded        DisputeStatus = "refunded"
	DisputeStatusCanceled        DisputeStatus = "canceled"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusPending,
	DisputeStatusReturnRequested,
	DisputeStatusReturnApproved,
	DisputeStatusReturnRejected,
	DisputeStatusRefunded,
	DisputeStatusCanceled,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispute can no longer change state.
func (d DisputeStatus) IsTerminal() bool {
	switch d {
	case DisputeStatusRefunded, DisputeStatusReturnRejected, DisputeStatusCanceled:
		return true
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
