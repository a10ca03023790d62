package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckInOutcomeMessage(t *testing.T) {
	asha := &Ticket{ID: "T-A", FullName: "Asha Rao"}
	for _, tc := range []struct {
		name string
		out  CheckInOutcome
		want string
		tone string
	}{
		{"granted", CheckInOutcome{Kind: OutcomeGranted, Ticket: asha}, "Welcome, Asha Rao!", "success"},
		{"already arrived", CheckInOutcome{Kind: OutcomeAlreadyArrived, Ticket: asha}, "Already Used: Asha Rao", "error"},
		{"not found", CheckInOutcome{Kind: OutcomeNotFound}, "Invalid Ticket!", "error"},
		{"granted without ticket", CheckInOutcome{Kind: OutcomeGranted}, "Welcome!", "success"},
		{"already arrived without ticket", CheckInOutcome{Kind: OutcomeAlreadyArrived}, "Already Used", "error"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tc.want, tc.out.Message())
				assert.Equal(t, tc.tone, tc.out.Tone())
			})
		})
	}
}
