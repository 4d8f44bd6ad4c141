// Package domain contains the appointment entity and the frontend state
// machine that mirrors ERP progress into the three-stage view shown to
// customers.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stage identifies one of the three frontend stages in progression order.
type Stage int

const (
	StageConfirmed Stage = iota
	StageInProgress
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageConfirmed:
		return "confirmed"
	case StageInProgress:
		return "in_progress"
	case StageCompleted:
		return "completed"
	}
	return "unknown"
}

// StageState is the persisted record for a single stage. Active marks the
// stage the customer currently sees; Completed marks stages already passed.
// Timestamp records when the stage was first entered and is write-once.
type StageState struct {
	Active    bool       `json:"active"`
	Completed bool       `json:"completed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// FrontendState is the nested keyed record persisted on the appointment.
// The JSON shape is read by both the reconciliation job and the no-show
// detector and must stay backward compatible.
type FrontendState struct {
	Confirmed  StageState `json:"confirmed"`
	InProgress StageState `json:"in_progress"`
	Completed  StageState `json:"completed"`
}

// ERPDates carries the two dates mirrored from the ERP. A nil pointer means
// the ERP reported the unset sentinel (empty or all-zero date).
type ERPDates struct {
	LastService *time.Time
	Invoice     *time.Time
}

// NewConfirmedState returns the initial state for a freshly booked
// appointment: confirmed reached, downstream stages untouched.
func NewConfirmedState(now time.Time) FrontendState {
	ts := now.UTC()
	return FrontendState{
		Confirmed: StageState{Active: true, Completed: true, Timestamp: &ts},
	}
}

// Stage returns the furthest stage the state has reached.
func (s FrontendState) Stage() Stage {
	if s.Completed.Active || s.Completed.Completed {
		return StageCompleted
	}
	if s.InProgress.Active || s.InProgress.Completed {
		return StageInProgress
	}
	return StageConfirmed
}

// Advance applies the ERP dates to the current state and returns the new
// state. The transform is pure: same inputs always produce the same output.
//
// Rules, in priority order:
//   - invoice date present and on or after the appointment date: completed
//   - last-service date equal to the appointment date: in progress
//   - otherwise: confirmed
//
// Progression is monotonic. When the ERP dates resolve to an earlier stage
// than the one already reached, the current state is kept unchanged. Stage
// timestamps are written on first entry and never overwritten; the
// in-progress timestamp in particular feeds the no-show gap calculation
// and is only set when the in-progress stage was actually observed, never
// by the direct jump from confirmed to completed.
func Advance(current FrontendState, appointmentDate time.Time, erp ERPDates, now time.Time) FrontendState {
	target := targetStage(appointmentDate, erp)
	if target < current.Stage() {
		return current
	}

	next := current
	switch target {
	case StageCompleted:
		next.Confirmed.Active = false
		next.Confirmed.Completed = true
		next.InProgress.Active = false
		next.InProgress.Completed = true
		// On the direct confirmed-to-completed jump the start of work was
		// never observed: the in-progress timestamp stays unset so the
		// no-show gap rule cannot match a finished appointment.
		next.Completed.Active = true
		next.Completed.Completed = true
		next.Completed.Timestamp = stampOnce(current.Completed.Timestamp, now)
	case StageInProgress:
		next.Confirmed.Active = false
		next.Confirmed.Completed = true
		next.InProgress.Active = true
		next.InProgress.Completed = false
		next.InProgress.Timestamp = stampOnce(current.InProgress.Timestamp, now)
	case StageConfirmed:
		next.Confirmed.Active = true
		next.Confirmed.Completed = true
	}
	return next
}

func targetStage(appointmentDate time.Time, erp ERPDates) Stage {
	if erp.Invoice != nil && !dateOf(*erp.Invoice).Before(dateOf(appointmentDate)) {
		return StageCompleted
	}
	if erp.LastService != nil && dateOf(*erp.LastService).Equal(dateOf(appointmentDate)) {
		return StageInProgress
	}
	return StageConfirmed
}

func stampOnce(existing *time.Time, now time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	ts := now.UTC()
	return &ts
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MarshalState serializes the state to its persisted JSON shape.
func MarshalState(s FrontendState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal frontend state: %w", err)
	}
	return data, nil
}

// UnmarshalState parses the persisted JSON shape. An empty or NULL column
// yields the zero state, which reads as confirmed-not-reached; callers that
// need the initial state use NewConfirmedState instead.
func UnmarshalState(data []byte) (FrontendState, error) {
	var s FrontendState
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return FrontendState{}, fmt.Errorf("unmarshal frontend state: %w", err)
	}
	return s, nil
}
