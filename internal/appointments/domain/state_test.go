package domain

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func TestAdvanceStageSelection(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	appt := date("2024-01-05")

	tests := []struct {
		name string
		erp  ERPDates
		want Stage
	}{
		{
			name: "no erp dates keeps confirmed",
			erp:  ERPDates{},
			want: StageConfirmed,
		},
		{
			name: "last service equal to appointment date moves to in progress",
			erp:  ERPDates{LastService: datePtr("2024-01-05")},
			want: StageInProgress,
		},
		{
			name: "last service on a different day keeps confirmed",
			erp:  ERPDates{LastService: datePtr("2024-01-03")},
			want: StageConfirmed,
		},
		{
			name: "invoice on appointment date completes",
			erp:  ERPDates{Invoice: datePtr("2024-01-05")},
			want: StageCompleted,
		},
		{
			name: "invoice after appointment date completes",
			erp:  ERPDates{Invoice: datePtr("2024-01-08")},
			want: StageCompleted,
		},
		{
			name: "invoice before appointment date keeps confirmed",
			erp:  ERPDates{Invoice: datePtr("2024-01-02")},
			want: StageConfirmed,
		},
		{
			name: "invoice wins over mismatched service date",
			erp:  ERPDates{LastService: datePtr("2024-01-01"), Invoice: datePtr("2024-01-05")},
			want: StageCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(NewConfirmedState(now), appt, tt.erp, now)
			if got.Stage() != tt.want {
				t.Errorf("Advance() stage = %v, want %v", got.Stage(), tt.want)
			}
		})
	}
}

func TestAdvanceCompletedFlags(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	got := Advance(NewConfirmedState(now), date("2024-01-05"), ERPDates{Invoice: datePtr("2024-01-05")}, now)

	if got.Confirmed.Active || !got.Confirmed.Completed {
		t.Errorf("confirmed = %+v, want closed and completed", got.Confirmed)
	}
	if got.InProgress.Active || !got.InProgress.Completed {
		t.Errorf("in_progress = %+v, want closed and completed", got.InProgress)
	}
	if !got.Completed.Active || !got.Completed.Completed {
		t.Errorf("completed = %+v, want active and completed", got.Completed)
	}
}

func TestAdvanceCompletedJumpLeavesStartUnset(t *testing.T) {
	confirmedAt := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	sweepAt := confirmedAt.Add(12 * time.Hour)

	got := Advance(NewConfirmedState(confirmedAt), date("2024-01-01"),
		ERPDates{Invoice: datePtr("2024-01-01")}, sweepAt)

	if got.Stage() != StageCompleted {
		t.Fatalf("stage = %v, want %v", got.Stage(), StageCompleted)
	}
	if got.InProgress.Timestamp != nil {
		t.Errorf("in_progress timestamp = %v, want unset when work was never observed starting",
			got.InProgress.Timestamp)
	}
}

func TestAdvanceInProgressFlags(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	got := Advance(NewConfirmedState(now), date("2024-01-05"), ERPDates{LastService: datePtr("2024-01-05")}, now)

	if got.Confirmed.Active || !got.Confirmed.Completed {
		t.Errorf("confirmed = %+v, want closed and completed", got.Confirmed)
	}
	if !got.InProgress.Active || got.InProgress.Completed {
		t.Errorf("in_progress = %+v, want active and not completed", got.InProgress)
	}
	if got.InProgress.Timestamp == nil {
		t.Error("in_progress timestamp not set on first transition")
	}
}

func TestAdvanceIsIdempotent(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	appt := date("2024-01-05")
	erp := ERPDates{LastService: datePtr("2024-01-05")}

	once := Advance(NewConfirmedState(now), appt, erp, now)
	twice := Advance(once, appt, erp, now.Add(time.Hour))

	if once != twice {
		t.Errorf("second application changed the state: %+v != %+v", twice, once)
	}
}

func TestAdvanceNeverRegresses(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	appt := date("2024-01-05")

	inProgress := Advance(NewConfirmedState(now), appt, ERPDates{LastService: datePtr("2024-01-05")}, now)

	// ERP later reports no dates at all; the reached stage must hold.
	got := Advance(inProgress, appt, ERPDates{}, now.Add(2*time.Hour))
	if got != inProgress {
		t.Errorf("state regressed to %+v", got)
	}

	completed := Advance(inProgress, appt, ERPDates{Invoice: datePtr("2024-01-05")}, now.Add(3*time.Hour))
	got = Advance(completed, appt, ERPDates{LastService: datePtr("2024-01-05")}, now.Add(4*time.Hour))
	if got != completed {
		t.Errorf("completed state regressed to %+v", got)
	}
}

func TestAdvanceInProgressTimestampIsWriteOnce(t *testing.T) {
	first := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	appt := date("2024-01-05")
	erp := ERPDates{LastService: datePtr("2024-01-05")}

	state := Advance(NewConfirmedState(first), appt, erp, first)
	if state.InProgress.Timestamp == nil || !state.InProgress.Timestamp.Equal(first) {
		t.Fatalf("in_progress timestamp = %v, want %v", state.InProgress.Timestamp, first)
	}

	later := first.Add(3 * time.Hour)
	state = Advance(state, appt, erp, later)
	if !state.InProgress.Timestamp.Equal(first) {
		t.Errorf("in_progress timestamp overwritten to %v", state.InProgress.Timestamp)
	}

	// Moving on to completed must also preserve the original timestamp.
	state = Advance(state, appt, ERPDates{Invoice: datePtr("2024-01-06")}, later)
	if !state.InProgress.Timestamp.Equal(first) {
		t.Errorf("in_progress timestamp lost on completion: %v", state.InProgress.Timestamp)
	}
}

func TestStateJSONRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	state := Advance(NewConfirmedState(now), date("2024-01-05"), ERPDates{LastService: datePtr("2024-01-05")}, now)

	data, err := MarshalState(state)
	if err != nil {
		t.Fatalf("MarshalState() error = %v", err)
	}

	got, err := UnmarshalState(data)
	if err != nil {
		t.Fatalf("UnmarshalState() error = %v", err)
	}
	if got.Stage() != StageInProgress {
		t.Errorf("round-tripped stage = %v, want %v", got.Stage(), StageInProgress)
	}
	if got.InProgress.Timestamp == nil || !got.InProgress.Timestamp.Equal(now) {
		t.Errorf("round-tripped timestamp = %v, want %v", got.InProgress.Timestamp, now)
	}
}

func TestUnmarshalStateEmpty(t *testing.T) {
	got, err := UnmarshalState(nil)
	if err != nil {
		t.Fatalf("UnmarshalState(nil) error = %v", err)
	}
	if got != (FrontendState{}) {
		t.Errorf("UnmarshalState(nil) = %+v, want zero state", got)
	}
}
