package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
	"branchbooker/pkg/response"
)

// Auth carries the caller's credentials for a single request. Staff-only
// endpoints require a token; customer-facing ones take the zero value.
// There is deliberately no client-global token.
type Auth struct {
	Token string
}

// Client talks to the external branch API: branch directory, week
// availability, appointment create/cancel, staff day bookings.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type branchDTO struct {
	BranchID        int64   `json:"branchId"`
	Name            string  `json:"name"`
	FriendlyAddress string  `json:"friendlyAddress"`
	City            string  `json:"city"`
	Country         string  `json:"country"`
	Province        string  `json:"province"`
	PostalCode      string  `json:"postalCode"`
	Suburb          string  `json:"suburb"`
	Longitude       float64 `json:"longitude"`
	Latitude        float64 `json:"latitude"`
}

type timeslotDTO struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
}

type createAppointmentDTO struct {
	BranchID        int64   `json:"branchId"`
	AppointmentDate string  `json:"appointmentDate"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	PhoneNumber     *string `json:"phoneNumber"`
	Reason          *string `json:"reason"`
}

type bookingDTO struct {
	AppointmentID   int64   `json:"appointmentId"`
	AppointmentDate string  `json:"appointmentDate"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Email           *string `json:"email"`
	PhoneNumber     *string `json:"phoneNumber"`
	Reason          *string `json:"reason"`
}

// ListBranches returns the active branch directory.
func (c *Client) ListBranches(ctx context.Context) ([]models.Branch, error) {
	const op = "upstream.Client.ListBranches"

	var dtos []branchDTO
	if err := c.get(ctx, Auth{}, "/v1/branch/full", &dtos); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	branches := make([]models.Branch, 0, len(dtos))
	for _, d := range dtos {
		branches = append(branches, models.Branch{
			BranchID:        d.BranchID,
			Name:            d.Name,
			FriendlyAddress: d.FriendlyAddress,
			City:            d.City,
			Country:         d.Country,
			Province:        d.Province,
			PostalCode:      d.PostalCode,
			Suburb:          d.Suburb,
			Latitude:        d.Latitude,
			Longitude:       d.Longitude,
		})
	}

	return branches, nil
}

// FetchAvailability loads the bookable slots per day for the inclusive
// date range, both "yyyy-MM-dd". A day carrying a malformed time string
// fails the whole fetch rather than being silently coerced.
func (c *Client) FetchAvailability(ctx context.Context, branchID int64, startDate, endDate string) (models.WeekAvailability, error) {
	const op = "upstream.Client.FetchAvailability"

	path := fmt.Sprintf("/v1/appointment/available/%d?startDate=%s&endDate=%s",
		branchID, url.QueryEscape(startDate), url.QueryEscape(endDate))

	var dtos map[string][]timeslotDTO
	if err := c.get(ctx, Auth{}, path, &dtos); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	week := make(models.WeekAvailability, len(dtos))
	for date, slots := range dtos {
		parsed := make([]models.Timeslot, 0, len(slots))
		for _, s := range slots {
			start, err := timeutil.Parse(s.StartTime)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", op, date, err)
			}
			end, err := timeutil.Parse(s.EndTime)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", op, date, err)
			}
			slot := models.Timeslot{Start: start, End: end, Status: models.SlotStatus(s.Status)}
			if !slot.Valid() {
				return nil, fmt.Errorf("%s: %s: slot %s-%s violates start < end", op, date, start, end)
			}
			parsed = append(parsed, slot)
		}
		week[date] = parsed
	}

	return week, nil
}

// CreateAppointment books a slot. A conflict-class response maps to
// response.ErrSlotNotAvailable so callers can reconcile their grid.
func (c *Client) CreateAppointment(ctx context.Context, req models.AppointmentRequest) (*models.ConfirmedBooking, error) {
	const op = "upstream.Client.CreateAppointment"

	dto := createAppointmentDTO{
		BranchID:        req.BranchID,
		AppointmentDate: req.Date,
		StartTime:       req.Start.String(),
		EndTime:         req.End.String(),
		Name:            req.Name,
		Email:           req.Email,
		PhoneNumber:     nilIfEmpty(req.Phone),
		Reason:          nilIfEmpty(req.Reason),
	}

	body, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/appointment", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusLocked,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%s: upstream status %d", op, resp.StatusCode)
	}

	var booked bookingDTO
	if err := json.NewDecoder(resp.Body).Decode(&booked); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	return c.toConfirmed(op, req.BranchID, booked)
}

// CancelAppointment cancels a booking by upstream identity.
func (c *Client) CancelAppointment(ctx context.Context, appointmentID int64) error {
	const op = "upstream.Client.CancelAppointment"

	path := fmt.Sprintf("/v1/appointment/%d", appointmentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: upstream status %d", op, resp.StatusCode)
	}

	return nil
}

// ListDayBookings is the staff view of one branch day. The caller's
// bearer token is forwarded as-is.
func (c *Client) ListDayBookings(ctx context.Context, auth Auth, branchID int64, date string) ([]models.DayBooking, error) {
	const op = "upstream.Client.ListDayBookings"

	path := fmt.Sprintf("/admin/branch/%d/appointments?date=%s", branchID, url.QueryEscape(date))

	var dtos []bookingDTO
	if err := c.get(ctx, auth, path, &dtos); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings := make([]models.DayBooking, 0, len(dtos))
	for _, d := range dtos {
		start, err := timeutil.Parse(d.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		end, err := timeutil.Parse(d.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		bookings = append(bookings, models.DayBooking{
			AppointmentID: d.AppointmentID,
			Date:          d.AppointmentDate,
			Start:         start,
			End:           end,
			Email:         deref(d.Email),
			Phone:         deref(d.PhoneNumber),
			Reason:        deref(d.Reason),
		})
	}

	return bookings, nil
}

func (c *Client) toConfirmed(op string, branchID int64, dto bookingDTO) (*models.ConfirmedBooking, error) {
	start, err := timeutil.Parse(dto.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	end, err := timeutil.Parse(dto.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.ConfirmedBooking{
		AppointmentID: dto.AppointmentID,
		Branch:        models.BranchSummary{BranchID: branchID},
		Date:          dto.AppointmentDate,
		Start:         start,
		End:           end,
		Email:         deref(dto.Email),
		Phone:         deref(dto.PhoneNumber),
		Reason:        deref(dto.Reason),
		Status:        models.BookingBooked,
	}, nil
}

func (c *Client) get(ctx context.Context, auth Auth, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if auth.Token != "" {
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", response.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return response.ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: upstream status %d", response.ErrFetch, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", response.ErrFetch, err)
	}

	return nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
