package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"branchbooker/internal/models"
	"branchbooker/pkg/response"
)

var flowNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) // Wednesday

const today = "2026-08-26"

func availableWeek() models.WeekAvailability {
	return models.WeekAvailability{
		today: {
			{Start: 615, End: 630, Status: models.SlotAvailable},
			{Start: 630, End: 645, Status: models.SlotFullyBooked},
		},
	}
}

type stubFetcher struct {
	mu      sync.Mutex
	calls   int
	weeks   map[string]models.WeekAvailability // keyed by week start ISO
	err     error
	started chan struct{}
	release chan struct{}
}

func (s *stubFetcher) Week(_ context.Context, _ int64, win models.WeekWindow) (models.WeekAvailability, error) {
	s.mu.Lock()
	s.calls++
	week := s.weeks[win.StartISO()]
	err := s.err
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	if err != nil {
		return nil, err
	}
	return week, nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSubmitter struct {
	mu     sync.Mutex
	calls  int
	err    error
	booked *models.ConfirmedBooking
}

func (s *stubSubmitter) CreateAppointment(_ context.Context, req models.AppointmentRequest) (*models.ConfirmedBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.booked != nil {
		return s.booked, nil
	}
	return &models.ConfirmedBooking{
		AppointmentID: 42,
		Date:          req.Date,
		Start:         req.Start,
		End:           req.End,
		Email:         req.Email,
		Status:        models.BookingBooked,
	}, nil
}

func (s *stubSubmitter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestFlow(t *testing.T, fetcher *stubFetcher, submitter *stubSubmitter, opts ...Option) *Flow {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return flowNow })}, opts...)
	f := NewFlow(7, flowNow, fetcher, submitter, opts...)
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}
	return f
}

func weekStartISO() string {
	return models.NewWeekWindow(flowNow).StartISO()
}

func TestSelectResetsDraft(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	f := newTestFlow(t, fetcher, &stubSubmitter{})

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if f.State() != StateSlotSelected {
		t.Fatalf("state = %s", f.State())
	}

	if err := f.SetDraft(models.BookingDraft{Name: "Jo", Email: "jo@example.com"}); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	// Selecting again starts a fresh draft.
	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if d := f.Draft(); d.Name != "" || d.Email != "" {
		t.Fatalf("draft not reset: %+v", d)
	}
}

func TestSelectRejectsUnavailable(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	f := newTestFlow(t, fetcher, &stubSubmitter{})

	// Fully booked slot.
	if err := f.Select(today, 630, 645); !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("fully booked: err = %v", err)
	}
	// Slot that is not rendered at all.
	if err := f.Select(today, 700, 715); !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("unknown slot: err = %v", err)
	}
	if f.State() != StateIdle {
		t.Fatalf("state = %s, want idle", f.State())
	}
}

func TestSubmitValidationSkipsNetwork(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	submitter := &stubSubmitter{}
	f := newTestFlow(t, fetcher, submitter)

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}

	cases := []models.BookingDraft{
		{},
		{Name: "Jo"},
		{Name: "Jo", Email: "not-an-email"},
		{Name: "Jo", Email: "jo@nodot"},
		{Name: "   ", Email: "jo@example.com"},
	}

	for _, draft := range cases {
		if err := f.SetDraft(draft); err != nil {
			t.Fatalf("SetDraft: %v", err)
		}
		if _, err := f.Submit(context.Background(), ""); !errors.Is(err, response.ErrValidation) {
			t.Fatalf("draft %+v: err = %v, want ErrValidation", draft, err)
		}
	}

	if submitter.callCount() != 0 {
		t.Fatalf("submitter called %d times for invalid drafts", submitter.callCount())
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("validation failures must not trigger re-fetch, calls = %d", fetcher.callCount())
	}
}

func TestSubmitSuccess(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	f := newTestFlow(t, fetcher, &stubSubmitter{})

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.SetDraft(models.BookingDraft{Name: "Jo", Email: "jo@example.com"}); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	booked, err := f.Submit(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if booked.AppointmentID != 42 {
		t.Fatalf("booking = %+v", booked)
	}
	if f.State() != StateConfirmed {
		t.Fatalf("state = %s", f.State())
	}
	if f.Selection() != nil {
		t.Fatal("selection not discarded after confirm")
	}
}

func TestSubmitConflictRefetchesOnceAndKeepsDraft(t *testing.T) {
	// After the conflict the slot is reported fully booked.
	takenWeek := models.WeekAvailability{
		today: {
			{Start: 615, End: 630, Status: models.SlotFullyBooked},
			{Start: 630, End: 645, Status: models.SlotFullyBooked},
		},
	}

	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	submitter := &stubSubmitter{err: response.ErrSlotNotAvailable}

	var notified int
	f := newTestFlow(t, fetcher, submitter, WithRefetchSubscriber(func(_ context.Context, branchID int64, win models.WeekWindow) {
		notified++
		if branchID != 7 {
			t.Errorf("subscriber branch = %d", branchID)
		}
		if win.StartISO() != weekStartISO() {
			t.Errorf("subscriber week = %s", win.StartISO())
		}
		// The subscriber (the loader, in production) invalidates its
		// cache; the re-fetch then sees the post-conflict state.
		fetcher.mu.Lock()
		fetcher.weeks[weekStartISO()] = takenWeek
		fetcher.mu.Unlock()
	}))

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	draft := models.BookingDraft{Name: "Jo", Email: "jo@example.com", Phone: "555-0101"}
	if err := f.SetDraft(draft); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	callsBefore := fetcher.callCount()
	_, err := f.Submit(context.Background(), "key-1")
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("err = %v, want ErrSlotNotAvailable", err)
	}

	if got := fetcher.callCount() - callsBefore; got != 1 {
		t.Fatalf("re-fetches after conflict = %d, want exactly 1", got)
	}
	if notified != 1 {
		t.Fatalf("refetch subscriber notified %d times, want 1", notified)
	}
	if f.State() != StateFailed {
		t.Fatalf("state = %s", f.State())
	}
	if got := f.Draft(); got != draft {
		t.Fatalf("draft not preserved: %+v", got)
	}
	// The refreshed grid shows the slot as taken, so the selection goes.
	if f.Selection() != nil {
		t.Fatal("selection kept although the slot is gone")
	}
}

func TestSubmitConflictKeepsSelectionWhenSlotStillOffered(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	submitter := &stubSubmitter{err: errors.New("upstream hiccup")}
	f := newTestFlow(t, fetcher, submitter)

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.SetDraft(models.BookingDraft{Name: "Jo", Email: "jo@example.com"}); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	if _, err := f.Submit(context.Background(), ""); err == nil {
		t.Fatal("expected submit error")
	}

	// The re-fetched grid still offers the slot: the user may retry.
	if f.Selection() == nil {
		t.Fatal("selection dropped although the slot is still offered")
	}

	submitter.mu.Lock()
	submitter.err = nil
	submitter.mu.Unlock()

	booked, err := f.Submit(context.Background(), "")
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if booked == nil || f.State() != StateConfirmed {
		t.Fatalf("retry did not confirm: state = %s", f.State())
	}
}

func TestStaleFetchDiscarded(t *testing.T) {
	weekA := weekStartISO()
	weekB := models.NewWeekWindow(flowNow.AddDate(0, 0, 7)).StartISO()

	nextWeekData := models.WeekAvailability{
		"2026-09-02": {{Start: 540, End: 555, Status: models.SlotAvailable}},
	}

	fetcher := &stubFetcher{
		weeks: map[string]models.WeekAvailability{
			weekA: availableWeek(),
			weekB: nextWeekData,
		},
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}

	f := NewFlow(7, flowNow, fetcher, &stubSubmitter{}, WithClock(func() time.Time { return flowNow }))

	done := make(chan error, 1)
	go func() {
		done <- f.Refresh(context.Background())
	}()
	<-fetcher.started

	// The user moves to the next week while the first fetch is in flight.
	f.NextWeek()
	close(fetcher.release)
	if err := <-done; err != nil {
		t.Fatalf("stale Refresh: %v", err)
	}

	// The stale week-A result must not have been applied.
	if f.Grid() != nil {
		t.Fatal("stale fetch populated the grid")
	}

	fetcher.started = nil
	fetcher.release = nil
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	m := f.Grid()
	if m == nil {
		t.Fatal("no grid after refresh")
	}
	if m.Window.StartISO() != weekB {
		t.Fatalf("grid week = %s, want %s", m.Window.StartISO(), weekB)
	}
	if len(m.Days[2].Cells) != 1 {
		t.Fatalf("next week's Wednesday cells = %d, want 1", len(m.Days[2].Cells))
	}
}

func TestFetchFailureClearsData(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	f := newTestFlow(t, fetcher, &stubSubmitter{})

	if f.Grid() == nil {
		t.Fatal("expected initial grid")
	}

	fetcher.mu.Lock()
	fetcher.err = errors.New("network down")
	fetcher.mu.Unlock()

	if err := f.Refresh(context.Background()); !errors.Is(err, response.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
	if f.Grid() != nil {
		t.Fatal("stale data kept after fetch failure")
	}
}

func TestCloseDiscardsSelectionAndDraft(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	f := newTestFlow(t, fetcher, &stubSubmitter{})

	if err := f.Select(today, 615, 630); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := f.SetDraft(models.BookingDraft{Name: "Jo", Email: "jo@example.com"}); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.State() != StateIdle || f.Selection() != nil {
		t.Fatalf("state = %s, selection = %v", f.State(), f.Selection())
	}
	if d := f.Draft(); d != (models.BookingDraft{}) {
		t.Fatalf("draft not discarded: %+v", d)
	}
}

func TestNoSubmitWithoutSelection(t *testing.T) {
	fetcher := &stubFetcher{weeks: map[string]models.WeekAvailability{weekStartISO(): availableWeek()}}
	submitter := &stubSubmitter{}
	f := newTestFlow(t, fetcher, submitter)

	if _, err := f.Submit(context.Background(), ""); !errors.Is(err, response.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	if submitter.callCount() != 0 {
		t.Fatal("submitter called without a selection")
	}
}
