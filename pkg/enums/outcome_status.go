package enums

import "fmt"

// OutcomeStatus is the normalized payment result reported by the gateway
// adapter. Raw gateway vocabularies collapse into these four values.
type OutcomeStatus string

const (
	OutcomeApproved  OutcomeStatus = "approved"
	OutcomeDeclined  OutcomeStatus = "declined"
	OutcomeCancelled OutcomeStatus = "cancelled"
	OutcomeUnknown   OutcomeStatus = "unknown"
)

var validOutcomeStatuses = []OutcomeStatus{
	OutcomeApproved,
	OutcomeDeclined,
	OutcomeCancelled,
	OutcomeUnknown,
}

// String implements fmt.Stringer.
func (o OutcomeStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OutcomeStatus.
func (o OutcomeStatus) IsValid() bool {
	for _, candidate := range validOutcomeStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutcomeStatus converts raw input into an OutcomeStatus.
func ParseOutcomeStatus(value string) (OutcomeStatus, error) {
	for _, candidate := range validOutcomeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outcome status %q", value)
}
