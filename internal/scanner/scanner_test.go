package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/gym-booking-assistant/internal/creds"
	"github.com/example/gym-booking-assistant/internal/criteria"
	"github.com/example/gym-booking-assistant/internal/events"
	"github.com/example/gym-booking-assistant/internal/gymapi"
	"github.com/example/gym-booking-assistant/internal/gymtime"
	"github.com/example/gym-booking-assistant/internal/schedule"
)

var cal = gymtime.MustCalendar("Europe/Rome")

type fakePublisher struct {
	mu      sync.Mutex
	entries []events.Entry
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, e events.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, e)
	return p.err
}

type fakeRegistrar struct {
	mu       sync.Mutex
	triggers []schedule.Trigger
	err      error
}

func (r *fakeRegistrar) Create(_ context.Context, t schedule.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, t)
	return r.err
}

func gymServer(t *testing.T, classes []gymapi.Class) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/Application/app-1/Login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"a-mock-token","data":{"userContext":{"id":"user-42"}}}`))
	})
	mux.HandleFunc("/enduser/class/search", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classes)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newScanner(t *testing.T, srv *httptest.Server, pub *fakePublisher, reg *fakeRegistrar) *Scanner {
	t.Helper()
	ranges, err := criteria.ParseHourRanges("18:00:00-21:00:00")
	if err != nil {
		t.Fatalf("parse ranges: %v", err)
	}
	api := gymapi.New(gymapi.Config{
		CoreBaseURL:     srv.URL,
		CalendarBaseURL: srv.URL,
		BookingBaseURL:  srv.URL,
		ApplicationID:   "app-1",
		ClientID:        "client-1",
		LoginDomain:     "it.example",
	}, nil)
	return &Scanner{
		API:      api,
		Calendar: cal,
		Criteria: criteria.Criteria{
			ClassNames: []string{"Cycle Spirit"},
			Days:       []int{1, 2, 3, 4, 5},
			HourRanges: ranges,
		},
		Publisher:  pub,
		Registrar:  reg,
		Creds:      creds.Static{Username: "user@example.com", Password: "pw", GymUserID: "user-42"},
		FacilityID: "fac-1",
	}
}

// 2024-07-03 is a Wednesday inside the evening window.
func testClass(id string, status gymapi.BookingStatus) gymapi.Class {
	return gymapi.Class{
		ID:            id,
		Name:          "Cycle Spirit",
		StartDate:     "2024-07-03T18:45:00",
		PartitionDate: 20240703,
		BookingInfo: gymapi.BookingInfo{
			BookingUserStatus:            status,
			CancellationMinutesInAdvance: 120,
		},
	}
}

func TestScanEmitsAvailableForCanBook(t *testing.T) {
	wrongName := testClass("c-name", gymapi.StatusCanBook)
	wrongName.Name = "Yoga Flow"
	participant := testClass("c-part", gymapi.StatusCanBook)
	participant.IsParticipant = true
	sunday := testClass("c-sun", gymapi.StatusCanBook)
	sunday.StartDate = "2024-07-07T18:45:00"

	classes := []gymapi.Class{
		testClass("c1", gymapi.StatusCanBook),
		wrongName,
		participant,
		sunday,
		testClass("c-closed", gymapi.StatusBookingClosed),
		testClass("c-cannot", gymapi.StatusCannotBook),
	}

	pub := &fakePublisher{}
	reg := &fakeRegistrar{}
	s := newScanner(t, gymServer(t, classes), pub, reg)

	if err := s.Run(context.Background(), Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.entries) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(pub.entries))
	}
	if len(reg.triggers) != 0 {
		t.Fatalf("expected no schedules, got %d", len(reg.triggers))
	}

	e := pub.entries[0]
	if e.Source != events.SourceScan || e.DetailType != events.TypeClassBookingAvailable {
		t.Fatalf("unexpected envelope %+v", e)
	}
	var got events.BookingAvailable
	if err := json.Unmarshal(e.Detail, &got); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if got.ID != "c1" || got.PartitionDate != 20240703 {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.BookingInfo.CancellationMinutesInAdvance != 120 {
		t.Fatalf("payload must carry the cancellation lead time, got %+v", got.BookingInfo)
	}
}

func TestScanSchedulesPremiumClass(t *testing.T) {
	waiting := testClass("c2", gymapi.StatusWaitingBookingOpensPremium)
	waiting.BookingInfo.BookingOpensOn = "2024-07-01T22:00:00"

	pub := &fakePublisher{}
	reg := &fakeRegistrar{}
	s := newScanner(t, gymServer(t, []gymapi.Class{waiting}), pub, reg)

	if err := s.Run(context.Background(), Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.entries) != 0 {
		t.Fatalf("waiting class must not publish immediately, got %d events", len(pub.entries))
	}
	if len(reg.triggers) != 1 {
		t.Fatalf("expected exactly one schedule, got %d", len(reg.triggers))
	}

	trig := reg.triggers[0]
	if trig.Name != "ScheduleBooking_c2" {
		t.Fatalf("unexpected schedule name %q", trig.Name)
	}
	// 22:00 Rome summer time is 20:00 UTC, second precision.
	want := time.Date(2024, 7, 1, 20, 0, 0, 0, time.UTC)
	if !trig.At.Equal(want) {
		t.Fatalf("expected trigger at %v, got %v", want, trig.At)
	}
	var got events.BookingAvailable
	if err := json.Unmarshal(trig.Entry.Detail, &got); err != nil {
		t.Fatalf("decode trigger detail: %v", err)
	}
	if got.ID != "c2" {
		t.Fatalf("unexpected trigger payload %+v", got)
	}
}

func TestScanIgnoresDuplicateSchedule(t *testing.T) {
	waiting := testClass("c2", gymapi.StatusWaitingBookingOpensPremium)
	waiting.BookingInfo.BookingOpensOn = "2024-07-01T22:00:00"

	pub := &fakePublisher{}
	reg := &fakeRegistrar{err: schedule.ErrScheduleExists}
	s := newScanner(t, gymServer(t, []gymapi.Class{waiting}), pub, reg)

	if err := s.Run(context.Background(), Trigger{}); err != nil {
		t.Fatalf("a pre-existing schedule must not fail the scan: %v", err)
	}
}

func TestScanContinuesPastUnexpectedStatus(t *testing.T) {
	classes := []gymapi.Class{
		testClass("c-odd", "MysteryStatus"),
		testClass("c1", gymapi.StatusCanBook),
	}

	pub := &fakePublisher{}
	reg := &fakeRegistrar{}
	s := newScanner(t, gymServer(t, classes), pub, reg)

	if err := s.Run(context.Background(), Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The class after the unexpected status must still be processed.
	if len(pub.entries) != 1 {
		t.Fatalf("expected one event for the CanBook class, got %d", len(pub.entries))
	}
}

func TestScanAbortsOnLoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Application/app-1/Login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"type":"Authentication"}]}`))
	})
	mux.HandleFunc("/enduser/class/search", func(w http.ResponseWriter, r *http.Request) {
		t.Error("search must not be called after a rejected login")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	pub := &fakePublisher{}
	s := newScanner(t, srv, pub, &fakeRegistrar{})
	if err := s.Run(context.Background(), Trigger{}); err == nil {
		t.Fatal("expected scan to abort on login failure")
	}
	if len(pub.entries) != 0 {
		t.Fatalf("no events expected, got %d", len(pub.entries))
	}
}

func TestScanPublishFailureDoesNotAbortPass(t *testing.T) {
	classes := []gymapi.Class{
		testClass("c1", gymapi.StatusCanBook),
		testClass("c2", gymapi.StatusCanBook),
	}

	pub := &fakePublisher{err: errors.New("bus unavailable")}
	s := newScanner(t, gymServer(t, classes), pub, &fakeRegistrar{})

	if err := s.Run(context.Background(), Trigger{}); err != nil {
		t.Fatalf("publish failures must not abort the pass: %v", err)
	}
	if len(pub.entries) != 2 {
		t.Fatalf("both classes must be attempted, got %d", len(pub.entries))
	}
}
