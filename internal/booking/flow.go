package booking

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"branchbooker/internal/grid"
	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
	"branchbooker/pkg/response"
)

type State string

const (
	StateIdle         State = "IDLE"
	StateSlotSelected State = "SLOT_SELECTED"
	StateSubmitting   State = "SUBMITTING"
	StateConfirmed    State = "CONFIRMED"
	StateFailed       State = "FAILED"
)

// Fetcher supplies week availability; in production this is the cached
// availability loader.
type Fetcher interface {
	Week(ctx context.Context, branchID int64, win models.WeekWindow) (models.WeekAvailability, error)
}

// Submitter issues the create-appointment request.
type Submitter interface {
	CreateAppointment(ctx context.Context, req models.AppointmentRequest) (*models.ConfirmedBooking, error)
}

// RefetchFunc is notified before the post-failure availability re-fetch.
// The availability loader subscribes to drop its cached week, keeping the
// flow and the loader decoupled.
type RefetchFunc func(ctx context.Context, branchID int64, win models.WeekWindow)

// Flow is the booking workflow for one visitor: the visible week, the
// grid model built from it, and the dialog state machine
// Idle -> SlotSelected -> Submitting -> Confirmed | Failed.
//
// Methods are safe for concurrent use; network calls run outside the
// lock. Week and branch changes bump a generation counter, and a fetch
// result carrying a stale generation is discarded, so a slow response
// never overwrites a newer selection's data.
type Flow struct {
	fetcher     Fetcher
	submitter   Submitter
	onRefetch   RefetchFunc
	now         func() time.Time
	slotMinutes int

	mu       sync.Mutex
	branchID int64
	window   models.WeekWindow
	gen      uint64

	week    models.WeekAvailability
	model   *grid.WeekModel
	loadErr error

	state     State
	selection *models.SlotSelection
	draft     models.BookingDraft
}

type Option func(*Flow)

// WithRefetchSubscriber registers the callback invoked before the
// availability re-fetch that follows a failed submit.
func WithRefetchSubscriber(fn RefetchFunc) Option {
	return func(f *Flow) { f.onRefetch = fn }
}

func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

func WithSlotMinutes(n int) Option {
	return func(f *Flow) { f.slotMinutes = n }
}

func NewFlow(branchID int64, anchor time.Time, fetcher Fetcher, submitter Submitter, opts ...Option) *Flow {
	f := &Flow{
		fetcher:     fetcher,
		submitter:   submitter,
		now:         time.Now,
		slotMinutes: grid.DefaultSlotMinutes,
		branchID:    branchID,
		window:      models.NewWeekWindow(anchor),
		state:       StateIdle,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Refresh fetches the current week's availability and rebuilds the grid
// model. A result that no longer matches the flow's generation (the user
// switched week or branch while the fetch was in flight) is dropped.
// On fetch failure the previously held data is cleared so stale slots
// are never shown as current.
func (f *Flow) Refresh(ctx context.Context) error {
	const op = "booking.Flow.Refresh"

	f.mu.Lock()
	branchID := f.branchID
	window := f.window
	gen := f.gen
	f.mu.Unlock()

	week, err := f.fetcher.Week(ctx, branchID, window)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gen != gen {
		// Stale result for an abandoned week/branch.
		return nil
	}

	if err != nil {
		f.week = nil
		f.model = nil
		f.loadErr = fmt.Errorf("%s: %w", op, response.ErrFetch)
		return f.loadErr
	}

	model, err := grid.BuildWeek(window, week, f.slotMinutes, f.now())
	if err != nil {
		f.week = nil
		f.model = nil
		f.loadErr = fmt.Errorf("%s: %w", op, err)
		return f.loadErr
	}

	f.week = week
	f.model = model
	f.loadErr = nil
	f.reconcileSelection()

	return nil
}

// SetWeekAnchor moves the window to the week containing anchor. Any
// in-flight fetch for the previous window becomes stale.
func (f *Flow) SetWeekAnchor(anchor time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = models.NewWeekWindow(anchor)
	f.gen++
}

func (f *Flow) NextWeek() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = models.NewWeekWindow(f.window.Start.AddDate(0, 0, 7))
	f.gen++
}

func (f *Flow) PrevWeek() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = models.NewWeekWindow(f.window.Start.AddDate(0, 0, -7))
	f.gen++
}

func (f *Flow) SetBranch(branchID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if branchID == f.branchID {
		return
	}
	f.branchID = branchID
	f.gen++
}

func (f *Flow) BranchID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.branchID
}

func (f *Flow) Window() models.WeekWindow {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window
}

// Grid returns the current week model, nil when no data is loaded.
func (f *Flow) Grid() *grid.WeekModel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Selection() *models.SlotSelection {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.selection == nil {
		return nil
	}
	sel := *f.selection
	return &sel
}

func (f *Flow) Draft() models.BookingDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Select captures a booking candidate and opens the dialog. The slot
// must be rendered and selectable in the current grid. The draft is
// reset for the new selection.
func (f *Flow) Select(date string, start, end timeutil.Minutes) error {
	const op = "booking.Flow.Select"

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateSubmitting {
		return fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	if f.model == nil {
		return fmt.Errorf("%s: no availability loaded: %w", op, response.ErrFetch)
	}

	cell, ok := f.model.Find(date, start, end)
	if !ok || !cell.Selectable {
		return fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	f.selection = &models.SlotSelection{Date: date, Slot: cell.Slot}
	f.draft = models.BookingDraft{}
	f.state = StateSlotSelected

	return nil
}

// SetDraft replaces the contact fields for the current selection.
func (f *Flow) SetDraft(d models.BookingDraft) error {
	const op = "booking.Flow.SetDraft"

	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case StateSubmitting:
		return fmt.Errorf("%s: %w", op, response.ErrLocked)
	case StateSlotSelected, StateFailed:
		f.draft = d
		return nil
	default:
		return fmt.Errorf("%s: no slot selected: %w", op, response.ErrBadRequest)
	}
}

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidateDraft runs the client-side form checks. The upstream server
// remains authoritative and re-validates everything.
func ValidateDraft(d models.BookingDraft) error {
	const op = "booking.ValidateDraft"

	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%s: name is required: %w", op, response.ErrValidation)
	}
	email := strings.TrimSpace(d.Email)
	if email == "" {
		return fmt.Errorf("%s: email is required: %w", op, response.ErrValidation)
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("%s: invalid email address: %w", op, response.ErrValidation)
	}

	return nil
}

// Submit validates the draft and issues the create-appointment request.
//
// On success the selection is discarded and the flow moves to Confirmed.
// On any failure, including a slot conflict won by another booker, the
// flow moves to Failed, keeps the entered draft so the user is not
// forced to retype, notifies the refetch subscriber, and re-fetches the
// week so the grid reflects the now-current state; the selection is
// cleared only if the refreshed grid proves the slot is gone.
func (f *Flow) Submit(ctx context.Context, idempotencyKey string) (*models.ConfirmedBooking, error) {
	const op = "booking.Flow.Submit"

	f.mu.Lock()

	switch f.state {
	case StateSubmitting:
		f.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	case StateSlotSelected, StateFailed:
	default:
		f.mu.Unlock()
		return nil, fmt.Errorf("%s: no slot selected: %w", op, response.ErrBadRequest)
	}

	if f.selection == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%s: no slot selected: %w", op, response.ErrBadRequest)
	}

	draft := f.draft
	if err := ValidateDraft(draft); err != nil {
		f.mu.Unlock()
		return nil, err
	}

	req := models.AppointmentRequest{
		BranchID:       f.branchID,
		Date:           f.selection.Date,
		Start:          f.selection.Slot.Start,
		End:            f.selection.Slot.End,
		Name:           strings.TrimSpace(draft.Name),
		Email:          strings.TrimSpace(draft.Email),
		Phone:          strings.TrimSpace(draft.Phone),
		Reason:         strings.TrimSpace(draft.Reason),
		IdempotencyKey: idempotencyKey,
	}
	branchID := f.branchID
	window := f.window
	f.state = StateSubmitting
	f.mu.Unlock()

	booked, err := f.submitter.CreateAppointment(ctx, req)

	if err != nil {
		f.mu.Lock()
		f.state = StateFailed
		f.mu.Unlock()

		if f.onRefetch != nil {
			f.onRefetch(ctx, branchID, window)
		}
		if refreshErr := f.Refresh(ctx); refreshErr != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f.mu.Lock()
	f.state = StateConfirmed
	f.selection = nil
	f.draft = models.BookingDraft{}
	f.mu.Unlock()

	return booked, nil
}

// Close dismisses the dialog, discarding the selection and draft. Not
// permitted while a submit is in flight.
func (f *Flow) Close() error {
	const op = "booking.Flow.Close"

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == StateSubmitting {
		return fmt.Errorf("%s: %w", op, response.ErrLocked)
	}

	f.selection = nil
	f.draft = models.BookingDraft{}
	f.state = StateIdle

	return nil
}

// reconcileSelection drops the selection when the freshly loaded grid no
// longer offers the selected slot. The draft stays; the dialog remains
// open. Callers must hold f.mu.
func (f *Flow) reconcileSelection() {
	if f.selection == nil {
		return
	}

	cell, ok := f.model.Find(f.selection.Date, f.selection.Slot.Start, f.selection.Slot.End)
	if !ok || !cell.Selectable {
		f.selection = nil
	}
}
