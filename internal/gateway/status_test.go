package gateway

import (
	"testing"

	"github.com/craftandcart/shopfront-backend/pkg/enums"
)

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want enums.OutcomeStatus
	}{
		{"approved", enums.OutcomeApproved},
		{"APPROVED", enums.OutcomeApproved},
		{"success", enums.OutcomeApproved},
		{"ok", enums.OutcomeApproved},
		{"authorized", enums.OutcomeApproved},
		{"paid", enums.OutcomeApproved},
		{"0000", enums.OutcomeApproved},
		{"00", enums.OutcomeApproved},
		{" approved ", enums.OutcomeApproved},

		{"declined", enums.OutcomeDeclined},
		{"refused", enums.OutcomeDeclined},
		{"rejected", enums.OutcomeDeclined},
		{"failed", enums.OutcomeDeclined},
		{"insufficient_funds", enums.OutcomeDeclined},
		{"0500", enums.OutcomeDeclined},
		{"05", enums.OutcomeDeclined},

		{"cancelled", enums.OutcomeCancelled},
		{"canceled", enums.OutcomeCancelled},
		{"user_cancelled", enums.OutcomeCancelled},
		{"aborted", enums.OutcomeCancelled},
		{"0999", enums.OutcomeCancelled},

		{"", enums.OutcomeUnknown},
		{"pending", enums.OutcomeUnknown},
		{"weird_code_42", enums.OutcomeUnknown},
		{"1234", enums.OutcomeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			if got := NormalizeStatus(tc.raw); got != tc.want {
				t.Fatalf("NormalizeStatus(%q) = %s, want %s", tc.raw, got, tc.want)
			}
		})
	}
}
