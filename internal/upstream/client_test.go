package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"branchbooker/internal/models"
	"branchbooker/pkg/response"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestFetchAvailability(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/appointment/available/7" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("startDate"); got != "2026-08-24" {
			t.Errorf("startDate = %s", got)
		}
		if got := r.URL.Query().Get("endDate"); got != "2026-08-30" {
			t.Errorf("endDate = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"2026-08-26": [
				{"startTime": "10:15:00", "endTime": "10:30:00", "status": "AVAILABLE"},
				{"startTime": "10:30", "endTime": "10:45", "status": "FULLY_BOOKED"}
			]
		}`))
	})

	week, err := c.FetchAvailability(context.Background(), 7, "2026-08-24", "2026-08-30")
	if err != nil {
		t.Fatalf("FetchAvailability: %v", err)
	}

	slots := week.Slots("2026-08-26")
	if len(slots) != 2 {
		t.Fatalf("slots = %d, want 2", len(slots))
	}
	if slots[0].Start != 615 || slots[0].End != 630 {
		t.Fatalf("seconds not discarded: %+v", slots[0])
	}
	if slots[1].Status != models.SlotFullyBooked {
		t.Fatalf("status = %s", slots[1].Status)
	}
}

func TestFetchAvailabilityMalformedTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"2026-08-26": [{"startTime": "25:99", "endTime": "10:30", "status": "AVAILABLE"}]}`))
	})

	_, err := c.FetchAvailability(context.Background(), 7, "2026-08-24", "2026-08-30")
	if !errors.Is(err, response.ErrBadClock) {
		t.Fatalf("err = %v, want ErrBadClock", err)
	}
}

func TestFetchAvailabilityServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.FetchAvailability(context.Background(), 7, "2026-08-24", "2026-08-30")
	if !errors.Is(err, response.ErrFetch) {
		t.Fatalf("err = %v, want ErrFetch", err)
	}
}

func TestCreateAppointment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/appointment" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "key-1" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"appointmentId": 42,
			"appointmentDate": "2026-08-26",
			"startTime": "10:15:00",
			"endTime": "10:30:00",
			"email": "jo@example.com",
			"phoneNumber": null,
			"reason": "check-up"
		}`))
	})

	booked, err := c.CreateAppointment(context.Background(), models.AppointmentRequest{
		BranchID:       7,
		Date:           "2026-08-26",
		Start:          615,
		End:            630,
		Name:           "Jo",
		Email:          "jo@example.com",
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	if booked.AppointmentID != 42 {
		t.Fatalf("id = %d", booked.AppointmentID)
	}
	if booked.Start != 615 || booked.End != 630 {
		t.Fatalf("times = %s-%s", booked.Start, booked.End)
	}
	if booked.Status != models.BookingBooked {
		t.Fatalf("status = %s", booked.Status)
	}
	if booked.Phone != "" {
		t.Fatalf("phone = %q, want empty", booked.Phone)
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	for _, code := range []int{http.StatusConflict, http.StatusLocked, http.StatusUnprocessableEntity} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})

		_, err := c.CreateAppointment(context.Background(), models.AppointmentRequest{BranchID: 7})
		if !errors.Is(err, response.ErrSlotNotAvailable) {
			t.Fatalf("status %d: err = %v, want ErrSlotNotAvailable", code, err)
		}
	}
}

func TestCancelAppointment(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.CancelAppointment(context.Background(), 42); err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if gotPath != "DELETE /v1/appointment/42" {
		t.Fatalf("request = %s", gotPath)
	}
}

func TestCancelAppointmentNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	err := c.CancelAppointment(context.Background(), 42)
	if !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListDayBookingsForwardsToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer staff-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`[{
			"appointmentId": 1,
			"appointmentDate": "2026-08-26",
			"startTime": "09:00:00",
			"endTime": "09:15:00",
			"email": "a@b.c",
			"phoneNumber": "123",
			"reason": null
		}]`))
	})

	bookings, err := c.ListDayBookings(context.Background(), Auth{Token: "staff-token"}, 7, "2026-08-26")
	if err != nil {
		t.Fatalf("ListDayBookings: %v", err)
	}
	if len(bookings) != 1 || bookings[0].Start != 540 {
		t.Fatalf("bookings = %+v", bookings)
	}
}
