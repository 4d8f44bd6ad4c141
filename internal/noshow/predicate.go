// Package noshow flags appointments whose customer never showed up within
// the allowed window. The rule runs as a single set-based update; the pure
// predicate here mirrors the SQL so the rule can be unit tested.
package noshow

import (
	"time"

	"taller_portal_backend/internal/appointments/domain"
)

// IsNoShow evaluates the no-show rule against a frontend state at a given
// instant. Two cases flag an appointment:
//
//	Case A: confirmed but work never started, and more than the threshold
//	        has elapsed since confirmation.
//	Case B: work did start, but the gap between confirmation and the start
//	        of work exceeds the threshold.
//
// An already reached in-progress stage inside the window keeps the
// appointment clean forever, since the gap between the two write-once
// timestamps never changes afterwards.
func IsNoShow(state domain.FrontendState, now time.Time, threshold time.Duration) bool {
	if state.Confirmed.Timestamp == nil {
		return false
	}

	started := state.InProgress.Active || state.InProgress.Completed
	if !started {
		return now.Sub(*state.Confirmed.Timestamp) > threshold
	}

	if state.InProgress.Timestamp == nil {
		return false
	}
	return state.InProgress.Timestamp.Sub(*state.Confirmed.Timestamp) > threshold
}
