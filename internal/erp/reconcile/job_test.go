package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"taller_portal_backend/internal/appointments/domain"
	"taller_portal_backend/internal/erp"
	"taller_portal_backend/platform/config"
	"taller_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLookup struct {
	dates map[string]erp.ServiceDates
	errs  map[string]error
	calls []string
}

func (f *fakeLookup) LookupServiceDates(_ context.Context, plate string) (erp.ServiceDates, error) {
	f.calls = append(f.calls, plate)
	if err, ok := f.errs[plate]; ok {
		return erp.ServiceDates{}, err
	}
	return f.dates[plate], nil
}

type savedSync struct {
	dates domain.ERPDates
	state domain.FrontendState
}

type fakeStore struct {
	candidates []*domain.Appointment
	corrupt    int
	saved      map[uuid.UUID]savedSync
	touched    map[uuid.UUID]time.Time
}

func newFakeStore(candidates ...*domain.Appointment) *fakeStore {
	return &fakeStore{
		candidates: candidates,
		saved:      make(map[uuid.UUID]savedSync),
		touched:    make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeStore) ListForReconciliation(_ context.Context, _ *time.Time, _ int) ([]*domain.Appointment, int, error) {
	return f.candidates, f.corrupt, nil
}

func (f *fakeStore) SaveERPSync(_ context.Context, id uuid.UUID, dates domain.ERPDates, state domain.FrontendState, _ time.Time) error {
	f.saved[id] = savedSync{dates: dates, state: state}
	return nil
}

func (f *fakeStore) TouchERPCheck(_ context.Context, id uuid.UUID, at time.Time) error {
	f.touched[id] = at
	return nil
}

type fakeEnqueuer struct {
	enqueued []uuid.UUID
}

func (f *fakeEnqueuer) EnqueueOfferCreate(_ context.Context, id uuid.UUID) error {
	f.enqueued = append(f.enqueued, id)
	return nil
}

func testCfg() config.ERPConfig {
	return &config.Config{
		ERPEndpoint:         "https://erp.test/ws",
		ERPTimeout:          time.Second,
		ERPThrottleInterval: time.Microsecond,
		ERPJobRetries:       3,
		ERPEnabled:          true,
	}
}

func appt(plate string, date string) *domain.Appointment {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return &domain.Appointment{
		ID:            uuid.New(),
		Status:        domain.StatusConfirmed,
		Date:          d,
		VehiclePlate:  plate,
		FrontendState: domain.NewConfirmedState(d),
	}
}

func datePtr(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestRunAdvancesStateFromERPDates(t *testing.T) {
	a := appt("ABC-123", "2024-01-05")
	store := newFakeStore(a)
	lookup := &fakeLookup{dates: map[string]erp.ServiceDates{
		"ABC-123": {LastService: datePtr("2024-01-05")},
	}}

	job := New(store, lookup, nil, testCfg(), logger.New("test"))
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Updated != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 updated", summary)
	}

	saved, ok := store.saved[a.ID]
	if !ok {
		t.Fatal("sync result not persisted")
	}
	if saved.state.Stage() != domain.StageInProgress {
		t.Errorf("persisted stage = %v, want %v", saved.state.Stage(), domain.StageInProgress)
	}
	if saved.dates.LastService == nil {
		t.Error("last-service date not mirrored")
	}
}

func TestRunIsolatesItemFailures(t *testing.T) {
	bad := appt("BAD-000", "2024-01-05")
	good := appt("XYZ-789", "2024-01-06")
	store := newFakeStore(bad, good)
	lookup := &fakeLookup{
		dates: map[string]erp.ServiceDates{"XYZ-789": {}},
		errs:  map[string]error{"BAD-000": errors.New("soap fault: plate lookup failed")},
	}

	job := New(store, lookup, nil, testCfg(), logger.New("test"))
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Failed != 1 || summary.Updated != 1 {
		t.Fatalf("summary = %+v, want one failure and one update", summary)
	}

	if len(lookup.calls) != 2 {
		t.Errorf("lookup calls = %v, a failing item must not abort the batch", lookup.calls)
	}
	if _, ok := store.touched[bad.ID]; !ok {
		t.Error("last-check not stamped after a faulted lookup")
	}
	if _, ok := store.saved[bad.ID]; ok {
		t.Error("faulted item must not persist a sync result")
	}
}

func TestRunEnqueuesOfferWhenEligible(t *testing.T) {
	eligible := appt("ABC-123", "2024-01-05")
	eligible.ERPTransactionID = "TX-1"
	eligible.PackageID = "M1085-010"

	alreadyTried := appt("DEF-456", "2024-01-05")
	alreadyTried.ERPTransactionID = "TX-2"
	alreadyTried.PackageID = "M1085-010"
	alreadyTried.OfferAttempts = 1
	alreadyTried.OfferFailed = true

	missingIDs := appt("GHI-789", "2024-01-05")

	store := newFakeStore(eligible, alreadyTried, missingIDs)
	lookup := &fakeLookup{dates: map[string]erp.ServiceDates{}}
	offers := &fakeEnqueuer{}

	job := New(store, lookup, offers, testCfg(), logger.New("test"))
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(offers.enqueued) != 1 || offers.enqueued[0] != eligible.ID {
		t.Errorf("enqueued = %v, want exactly the eligible appointment", offers.enqueued)
	}
}

func TestRunProceedsPastCorruptRows(t *testing.T) {
	a := appt("ABC-123", "2024-01-05")
	store := newFakeStore(a)
	store.corrupt = 2
	lookup := &fakeLookup{dates: map[string]erp.ServiceDates{
		"ABC-123": {LastService: datePtr("2024-01-05")},
	}}

	job := New(store, lookup, nil, testCfg(), logger.New("test"))
	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v, readable rows must still be reconciled", summary)
	}
}

func TestRunProcessesSequentially(t *testing.T) {
	a := appt("AAA-111", "2024-01-05")
	b := appt("BBB-222", "2024-01-05")
	store := newFakeStore(a, b)
	lookup := &fakeLookup{dates: map[string]erp.ServiceDates{}}

	job := New(store, lookup, nil, testCfg(), logger.New("test"))
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"AAA-111", "BBB-222"}
	if len(lookup.calls) != 2 || lookup.calls[0] != want[0] || lookup.calls[1] != want[1] {
		t.Errorf("calls = %v, want %v in order", lookup.calls, want)
	}
}
