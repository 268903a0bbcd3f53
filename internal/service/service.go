package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"branchbooker/api"
	"branchbooker/internal/availability"
	"branchbooker/internal/booking"
	"branchbooker/internal/grid"
	"branchbooker/internal/models"
	"branchbooker/internal/session"
	"branchbooker/internal/timeutil"
	"branchbooker/internal/upstream"
	"branchbooker/pkg/response"
)

// Directory lists bookable branches.
type Directory interface {
	ListBranches(ctx context.Context) ([]models.Branch, error)
}

// Booker covers the upstream appointment operations.
type Booker interface {
	CreateAppointment(ctx context.Context, req models.AppointmentRequest) (*models.ConfirmedBooking, error)
	CancelAppointment(ctx context.Context, appointmentID int64) error
	ListDayBookings(ctx context.Context, auth upstream.Auth, branchID int64, date string) ([]models.DayBooking, error)
}

// Store persists confirmed bookings for the confirmation view.
type Store interface {
	SaveConfirmation(ctx context.Context, b *models.ConfirmedBooking) error
	GetConfirmation(ctx context.Context, appointmentID int64) (*models.ConfirmedBooking, error)
	MarkCancelled(ctx context.Context, appointmentID int64) error
}

type Service struct {
	directory   Directory
	booker      Booker
	loader      *availability.Loader
	store       Store
	sessions    *session.Registry
	slotMinutes int
	now         func() time.Time
}

func NewService(directory Directory, booker Booker, loader *availability.Loader, store Store, sessions *session.Registry, slotMinutes int) *Service {
	return &Service{
		directory:   directory,
		booker:      booker,
		loader:      loader,
		store:       store,
		sessions:    sessions,
		slotMinutes: slotMinutes,
		now:         time.Now,
	}
}

// Branches returns the branch directory.
func (s *Service) Branches(ctx context.Context) ([]api.Branch, error) {
	const op = "service.Branches"

	branches, err := s.directory.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.Branch, 0, len(branches))
	for _, b := range branches {
		result = append(result, api.Branch{
			BranchID:        b.BranchID,
			Name:            b.Name,
			FriendlyAddress: b.FriendlyAddress,
			City:            b.City,
			Province:        b.Province,
			Country:         b.Country,
			PostalCode:      b.PostalCode,
			Suburb:          b.Suburb,
			Latitude:        b.Latitude,
			Longitude:       b.Longitude,
		})
	}

	return result, nil
}

// WeekGrid builds the grid for a branch week without a session, for the
// read-only browse view. An empty date means the current week.
func (s *Service) WeekGrid(ctx context.Context, branchID int64, date string) (*api.WeekGrid, error) {
	const op = "service.WeekGrid"

	anchor, err := s.parseAnchor(date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	win := models.NewWeekWindow(anchor)

	week, err := s.loader.Week(ctx, branchID, win)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	model, err := grid.BuildWeek(win, week, s.slotMinutes, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return gridToAPI(model), nil
}

// StartSession creates a booking workflow for one visitor and loads its
// first week.
func (s *Service) StartSession(ctx context.Context, req *api.CreateSessionRequest) (*api.Session, error) {
	const op = "service.StartSession"

	if req.BranchID <= 0 {
		return nil, fmt.Errorf("%s: branch_id is required: %w", op, response.ErrBadRequest)
	}

	anchor, err := s.parseAnchor(req.Date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	flow := booking.NewFlow(req.BranchID, anchor, s.loader, s.booker,
		booking.WithSlotMinutes(s.slotMinutes),
		booking.WithClock(s.now),
		booking.WithRefetchSubscriber(func(ctx context.Context, branchID int64, win models.WeekWindow) {
			s.loader.Invalidate(ctx, branchID, win)
		}),
	)

	if err := flow.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id := s.sessions.Put(flow)

	return s.sessionToAPI(id, flow), nil
}

// SessionGrid returns the session's current grid and dialog state.
func (s *Service) SessionGrid(ctx context.Context, sessionID string) (*api.Session, error) {
	const op = "service.SessionGrid"

	flow, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.sessionToAPI(sessionID, flow), nil
}

// ChangeWeek moves the session's visible week and reloads it.
func (s *Service) ChangeWeek(ctx context.Context, sessionID string, req *api.WeekRequest) (*api.Session, error) {
	const op = "service.ChangeWeek"

	flow, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch req.Action {
	case "next":
		flow.NextWeek()
	case "prev":
		flow.PrevWeek()
	case "set":
		anchor, err := time.Parse(models.ISODate, req.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
		}
		flow.SetWeekAnchor(anchor)
	default:
		return nil, fmt.Errorf("%s: unknown action %q: %w", op, req.Action, response.ErrBadRequest)
	}

	if err := flow.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.sessionToAPI(sessionID, flow), nil
}

// SelectSlot marks a slot as the booking candidate.
func (s *Service) SelectSlot(ctx context.Context, sessionID string, req *api.SelectRequest) (*api.Session, error) {
	const op = "service.SelectSlot"

	flow, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start, err := timeutil.Parse(req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := timeutil.Parse(req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := flow.Select(req.Date, start, end); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.sessionToAPI(sessionID, flow), nil
}

// SubmitBooking validates the contact form, books the selected slot and
// persists the confirmation. A missing idempotency key is generated
// here, so one visitor submit maps to exactly one upstream attempt key.
// The session is discarded on success.
func (s *Service) SubmitBooking(ctx context.Context, sessionID string, req *api.SubmitRequest, idempotencyKey string) (*api.Booking, error) {
	const op = "service.SubmitBooking"

	flow, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	draft := models.BookingDraft{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Reason: req.Reason,
	}
	if err := flow.SetDraft(draft); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	booked, err := flow.Submit(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booked.CreatedAt = s.now()
	booked.Branch = s.branchSnapshot(ctx, flow.BranchID())

	if err := s.store.SaveConfirmation(ctx, booked); err != nil {
		// The upstream booking exists either way; losing the local copy
		// only degrades the confirmation view.
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.sessions.Delete(sessionID)

	return bookingToAPI(booked), nil
}

// CloseSession dismisses the booking dialog and drops the session.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	const op = "service.CloseSession"

	flow, err := s.sessions.Get(sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := flow.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.sessions.Delete(sessionID)

	return nil
}

// GetBooking returns the confirmation view for a stored booking.
func (s *Service) GetBooking(ctx context.Context, appointmentID int64) (*api.Booking, error) {
	const op = "service.GetBooking"

	booked, err := s.store.GetConfirmation(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookingToAPI(booked), nil
}

// CancelBooking cancels upstream first, then flips the stored copy. The
// cached availability for the booking's week is dropped so freed slots
// reappear promptly.
func (s *Service) CancelBooking(ctx context.Context, appointmentID int64) (*api.Booking, error) {
	const op = "service.CancelBooking"

	booked, err := s.store.GetConfirmation(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if booked.Status != models.BookingCancelled {
		if err := s.booker.CancelAppointment(ctx, appointmentID); err != nil && !errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.store.MarkCancelled(ctx, appointmentID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		date, err := time.Parse(models.ISODate, booked.Date)
		if err == nil {
			s.loader.Invalidate(ctx, booked.Branch.BranchID, models.NewWeekWindow(date))
		}
	}

	return s.GetBooking(ctx, appointmentID)
}

// DayBookings is the staff view of one branch day, authorized by the
// caller's bearer token.
func (s *Service) DayBookings(ctx context.Context, token string, branchID int64, date string) ([]api.DayBooking, error) {
	const op = "service.DayBookings"

	if _, err := time.Parse(models.ISODate, date); err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrBadRequest)
	}

	bookings, err := s.booker.ListDayBookings(ctx, upstream.Auth{Token: token}, branchID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.DayBooking, 0, len(bookings))
	for _, b := range bookings {
		result = append(result, api.DayBooking{
			AppointmentID: b.AppointmentID,
			Date:          b.Date,
			Start:         b.Start.String(),
			End:           b.End.String(),
			Email:         b.Email,
			Phone:         b.Phone,
			Reason:        b.Reason,
		})
	}

	return result, nil
}

func (s *Service) parseAnchor(date string) (time.Time, error) {
	if date == "" {
		return s.now(), nil
	}

	anchor, err := time.Parse(models.ISODate, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, response.ErrBadRequest)
	}

	return anchor, nil
}

// branchSnapshot resolves the branch metadata echoed on the
// confirmation view. A directory failure leaves only the id filled in
// rather than failing an already-confirmed booking.
func (s *Service) branchSnapshot(ctx context.Context, branchID int64) models.BranchSummary {
	branches, err := s.directory.ListBranches(ctx)
	if err != nil {
		return models.BranchSummary{BranchID: branchID}
	}

	for _, b := range branches {
		if b.BranchID == branchID {
			return b.Summary()
		}
	}

	return models.BranchSummary{BranchID: branchID}
}

func (s *Service) sessionToAPI(id string, flow *booking.Flow) *api.Session {
	out := &api.Session{
		SessionID: id,
		BranchID:  flow.BranchID(),
		WeekStart: flow.Window().StartISO(),
		State:     string(flow.State()),
	}

	if sel := flow.Selection(); sel != nil {
		out.Selection = &api.Selection{
			Date:  sel.Date,
			Start: sel.Slot.Start.String(),
			End:   sel.Slot.End.String(),
		}
	}

	if model := flow.Grid(); model != nil {
		out.Grid = gridToAPI(model)
	}

	return out
}

func gridToAPI(m *grid.WeekModel) *api.WeekGrid {
	out := &api.WeekGrid{
		WeekStart:   m.Window.StartISO(),
		WeekEnd:     m.Window.EndISO(),
		StartHour:   m.Hours.StartHour,
		EndHour:     m.Hours.EndHour,
		SlotMinutes: m.SlotMinutes,
		Rows:        m.Rows,
	}

	out.HourLabels = make([]api.HourLabel, 0, len(m.HourLabels))
	for _, l := range m.HourLabels {
		out.HourLabels = append(out.HourLabels, api.HourLabel{Row: l.Row, Label: l.Label})
	}

	for i, col := range m.Days {
		day := api.DayColumn{
			Date:          col.Date,
			Past:          col.Past,
			ShadeStartRow: col.ShadeStartRow,
			ShadeEndRow:   col.ShadeEndRow,
		}

		for _, cell := range col.Cells {
			day.Cells = append(day.Cells, api.SlotCell{
				Start:      cell.Slot.Start.String(),
				End:        cell.Slot.End.String(),
				Label:      cell.Label,
				StartRow:   cell.StartRow,
				EndRow:     cell.EndRow,
				State:      string(cell.State),
				Selectable: cell.Selectable,
				Tooltip:    cell.Tooltip,
			})
		}

		out.Days[i] = day
	}

	return out
}

func bookingToAPI(b *models.ConfirmedBooking) *api.Booking {
	return &api.Booking{
		AppointmentID: b.AppointmentID,
		Branch: api.BranchSummary{
			BranchID:  b.Branch.BranchID,
			Name:      b.Branch.Name,
			Address:   b.Branch.Address,
			Latitude:  b.Branch.Latitude,
			Longitude: b.Branch.Longitude,
		},
		Date:      b.Date,
		Start:     b.Start.String(),
		End:       b.End.String(),
		Email:     b.Email,
		Phone:     b.Phone,
		Reason:    b.Reason,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
	}
}
