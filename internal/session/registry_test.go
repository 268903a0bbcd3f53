package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"branchbooker/internal/booking"
	"branchbooker/internal/models"
	"branchbooker/pkg/response"
)

type noopFetcher struct{}

func (noopFetcher) Week(_ context.Context, _ int64, _ models.WeekWindow) (models.WeekAvailability, error) {
	return models.WeekAvailability{}, nil
}

type noopSubmitter struct{}

func (noopSubmitter) CreateAppointment(_ context.Context, _ models.AppointmentRequest) (*models.ConfirmedBooking, error) {
	return nil, errors.New("not implemented")
}

func newRegistry(t *testing.T, ttl time.Duration) *Registry {
	t.Helper()
	r := NewRegistry(ttl, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(r.Close)
	return r
}

func newFlow() *booking.Flow {
	return booking.NewFlow(1, time.Now(), noopFetcher{}, noopSubmitter{})
}

func TestRegistryPutGetDelete(t *testing.T) {
	r := newRegistry(t, time.Minute)

	flow := newFlow()
	id := r.Put(flow)
	if id == "" {
		t.Fatal("empty session id")
	}

	got, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != flow {
		t.Fatal("Get returned a different flow")
	}

	r.Delete(id)
	if _, err := r.Get(id); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestRegistryUnknownID(t *testing.T) {
	r := newRegistry(t, time.Minute)

	if _, err := r.Get("no-such-session"); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	r := newRegistry(t, time.Minute)

	idle := r.Put(newFlow())
	active := r.Put(newFlow())

	// The active session was touched just now; backdate the idle one.
	r.mu.Lock()
	r.sessions[idle].lastSeen = time.Now().Add(-2 * time.Minute)
	r.mu.Unlock()

	r.expire(time.Now())

	if _, err := r.Get(idle); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("idle session survived: err = %v", err)
	}
	if _, err := r.Get(active); err != nil {
		t.Fatalf("active session expired: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryGetRefreshesIdleTimer(t *testing.T) {
	r := newRegistry(t, time.Minute)

	id := r.Put(newFlow())

	r.mu.Lock()
	r.sessions[id].lastSeen = time.Now().Add(-50 * time.Second)
	r.mu.Unlock()

	if _, err := r.Get(id); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// The Get above reset the timer, so a sweep 55s after creation must
	// keep the session.
	r.expire(time.Now().Add(5 * time.Second))
	if _, err := r.Get(id); err != nil {
		t.Fatalf("refreshed session expired: %v", err)
	}
}
