package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"branchbooker/internal/booking"
	"branchbooker/pkg/response"
)

// Registry keeps one booking flow per visitor session, keyed by an
// opaque id handed to the client. Sessions that stay idle past the TTL
// are swept by a background goroutine.
type Registry struct {
	ttl time.Duration
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*entry

	stop chan struct{}
	done chan struct{}
}

type entry struct {
	flow     *booking.Flow
	lastSeen time.Time
}

func NewRegistry(ttl time.Duration, log *slog.Logger) *Registry {
	r := &Registry{
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go r.sweep()

	return r
}

// Put registers a new flow and returns its session id.
func (r *Registry) Put(flow *booking.Flow) string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &entry{flow: flow, lastSeen: time.Now()}

	return id
}

// Get returns the flow for a session id and marks the session as
// recently used.
func (r *Registry) Get(id string) (*booking.Flow, error) {
	const op = "session.Registry.Get"

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	e.lastSeen = time.Now()

	return e.flow, nil
}

// Delete removes a session. Removing an unknown id is not an error.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the sweeper. Live sessions are dropped.
func (r *Registry) Close() {
	close(r.stop)
	<-r.done
}

func (r *Registry) sweep() {
	defer close(r.done)

	interval := r.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.expire(time.Now())
		}
	}
}

func (r *Registry) expire(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			r.log.Debug("session expired", slog.String("session_id", id))
		}
	}
}

// WithFlow runs fn against the session's flow, refreshing its idle
// timer on the way in.
func (r *Registry) WithFlow(_ context.Context, id string, fn func(*booking.Flow) error) error {
	flow, err := r.Get(id)
	if err != nil {
		return err
	}
	return fn(flow)
}
