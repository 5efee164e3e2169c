package gateway

import (
	"strings"

	"github.com/craftandcart/shopfront-backend/pkg/enums"
)

// statusTable maps every raw gateway vocabulary we have seen to the
// four-value outcome enum. Unmapped codes fall through to Unknown, never to
// Approved.
var statusTable = map[string]enums.OutcomeStatus{
	"approved":   enums.OutcomeApproved,
	"success":    enums.OutcomeApproved,
	"ok":         enums.OutcomeApproved,
	"authorized": enums.OutcomeApproved,
	"paid":       enums.OutcomeApproved,
	"0000":       enums.OutcomeApproved,
	"00":         enums.OutcomeApproved,

	"declined":           enums.OutcomeDeclined,
	"refused":            enums.OutcomeDeclined,
	"rejected":           enums.OutcomeDeclined,
	"failed":             enums.OutcomeDeclined,
	"insufficient_funds": enums.OutcomeDeclined,
	"0500":               enums.OutcomeDeclined,
	"05":                 enums.OutcomeDeclined,

	"cancelled":      enums.OutcomeCancelled,
	"canceled":       enums.OutcomeCancelled,
	"user_cancelled": enums.OutcomeCancelled,
	"aborted":        enums.OutcomeCancelled,
	"0999":           enums.OutcomeCancelled,
}

// NormalizeStatus collapses a raw gateway status code into the outcome enum.
func NormalizeStatus(raw string) enums.OutcomeStatus {
	if status, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return status
	}
	return enums.OutcomeUnknown
}
