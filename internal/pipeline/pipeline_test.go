package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/gatesync/internal/attendance"
	"github.com/HerbHall/gatesync/internal/cloud"
	"github.com/HerbHall/gatesync/internal/config"
	"github.com/HerbHall/gatesync/internal/status"
	"github.com/HerbHall/gatesync/internal/store"
	"github.com/HerbHall/gatesync/internal/testutil"
	"github.com/HerbHall/gatesync/pkg/models"
)

type fakeResolver struct {
	result *models.DiscoveryResult
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) (*models.DiscoveryResult, error) {
	return f.result, f.err
}

type fakeSource struct {
	events []models.RawEvent
	err    error
	start  time.Time
	end    time.Time
}

func (f *fakeSource) Events(_ context.Context, start, end time.Time, _ bool) ([]models.RawEvent, error) {
	f.start, f.end = start, end
	return f.events, f.err
}

type fakeSender struct {
	records []models.AttendanceRecord
	date    string
	result  cloud.Result
	err     error
}

func (f *fakeSender) Dispatch(_ context.Context, records []models.AttendanceRecord, date string) (cloud.Result, error) {
	f.records = records
	f.date = date
	return f.result, f.err
}

type fixture struct {
	pipeline *Pipeline
	source   *fakeSource
	sender   *fakeSender
	runs     *store.RunRepository
	history  *store.AddressRepository
	saved    []string
}

func newFixture(t *testing.T, resolver Resolver) *fixture {
	t.Helper()
	db := testutil.NewStore(t)

	f := &fixture{
		source:  &fakeSource{},
		sender:  &fakeSender{result: cloud.Result{Delivered: true, Attempts: 1}},
		runs:    store.NewRunRepository(db.DB()),
		history: store.NewAddressRepository(db.DB()),
	}
	cfg := &config.Config{CheckoutAfter: "14:30"}
	cfg.Terminal.Host = "192.168.1.50"

	f.pipeline = &Pipeline{
		cfg:       cfg,
		resolver:  resolver,
		sender:    f.sender,
		runs:      f.runs,
		addresses: f.history,
		metrics:   status.NewMetrics(),
		logger:    testutil.Logger(),
		threshold: attendance.Threshold{Hour: 14, Minute: 30},
		events:    func(string) EventSource { return f.source },
		saveHost: func(host string) error {
			f.saved = append(f.saved, host)
			return nil
		},
	}
	return f
}

func day(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
}

func TestRunDeliversAggregatedDay(t *testing.T) {
	resolver := &fakeResolver{result: &models.DiscoveryResult{Address: "192.168.1.50"}}
	f := newFixture(t, resolver)
	f.source.events = []models.RawEvent{
		{PersonID: "1001", Time: "2026-03-02T07:58:11"},
		{PersonID: "1001", Time: "2026-03-02T15:04:09"},
		{PersonID: "1002", Time: "2026-03-02T08:01:40"},
	}
	f.sender.result = cloud.Result{Delivered: true, Count: 2, Attempts: 1}

	if err := f.pipeline.Run(context.Background(), day(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if f.sender.date != "2026-03-02" {
		t.Errorf("dispatch date = %q", f.sender.date)
	}
	if len(f.sender.records) != 2 {
		t.Fatalf("dispatched records = %d, want 2", len(f.sender.records))
	}
	if f.sender.records[0].PersonID != "1001" || f.sender.records[0].TimeOut != "15:04:09" {
		t.Errorf("record[0] = %+v", f.sender.records[0])
	}

	// Window covers the whole day.
	if f.source.start.Hour() != 0 || f.source.end.Hour() != 23 {
		t.Errorf("window = %v .. %v, want full day", f.source.start, f.source.end)
	}

	run, err := f.runs.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if run.Status != store.RunStatusCompleted {
		t.Errorf("Status = %q, want completed", run.Status)
	}
	if run.EventsFetched != 3 || run.Records != 2 {
		t.Errorf("counts = (%d, %d), want (3, 2)", run.EventsFetched, run.Records)
	}
	if !run.Delivered || run.Attempts != 1 {
		t.Errorf("delivery = (%v, %d)", run.Delivered, run.Attempts)
	}
	if len(f.saved) != 0 {
		t.Errorf("saveHost called %d times for unchanged address", len(f.saved))
	}
}

func TestRunHealsChangedAddress(t *testing.T) {
	resolver := &fakeResolver{result: &models.DiscoveryResult{
		Address:  "192.168.1.77",
		Changed:  true,
		Identity: models.DeviceIdentity{DeviceName: "Front Gate"},
		Tier:     models.MatchTierField,
	}}
	f := newFixture(t, resolver)

	if err := f.pipeline.Run(context.Background(), day(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(f.saved) != 1 || f.saved[0] != "192.168.1.77" {
		t.Errorf("saveHost calls = %v, want healed address", f.saved)
	}
	history, err := f.history.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	if history[0].Address != "192.168.1.77" || history[0].Previous != "192.168.1.50" {
		t.Errorf("history[0] = %+v", history[0])
	}

	run, err := f.runs.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if run.TerminalAddress != "192.168.1.77" {
		t.Errorf("journaled address = %q, want healed", run.TerminalAddress)
	}
}

func TestRunResolveFailureJournaled(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("no devices responded")}
	f := newFixture(t, resolver)

	err := f.pipeline.Run(context.Background(), day(t))
	if err == nil {
		t.Fatal("Run succeeded, want resolve error")
	}

	run, jerr := f.runs.Latest(context.Background())
	if jerr != nil {
		t.Fatalf("Latest: %v", jerr)
	}
	if run.Status != store.RunStatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.ErrorMsg == "" {
		t.Error("ErrorMsg empty for failed run")
	}
}

func TestRunDispatchFailureRecordsAttempts(t *testing.T) {
	resolver := &fakeResolver{result: &models.DiscoveryResult{Address: "192.168.1.50"}}
	f := newFixture(t, resolver)
	f.source.events = []models.RawEvent{{PersonID: "1001", Time: "2026-03-02T07:58:11"}}
	f.sender.result = cloud.Result{Delivered: false, Attempts: 5}
	f.sender.err = errors.New("status 503 after 5 attempts")

	if err := f.pipeline.Run(context.Background(), day(t)); err == nil {
		t.Fatal("Run succeeded, want dispatch error")
	}

	run, err := f.runs.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if run.Status != store.RunStatusFailed {
		t.Errorf("Status = %q, want failed", run.Status)
	}
	if run.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", run.Attempts)
	}
	if run.EventsFetched != 1 {
		t.Errorf("EventsFetched = %d, want 1", run.EventsFetched)
	}
}

func TestRunFetchFailure(t *testing.T) {
	resolver := &fakeResolver{result: &models.DiscoveryResult{Address: "192.168.1.50"}}
	f := newFixture(t, resolver)
	f.source.err = errors.New("device credentials rejected")

	if err := f.pipeline.Run(context.Background(), day(t)); err == nil {
		t.Fatal("Run succeeded, want fetch error")
	}
	if f.sender.date != "" {
		t.Error("Dispatch called after fetch failure")
	}
}
