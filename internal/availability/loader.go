package availability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"branchbooker/internal/models"
	"branchbooker/pkg/sl"
)

// Fetcher is the upstream availability query.
type Fetcher interface {
	FetchAvailability(ctx context.Context, branchID int64, startDate, endDate string) (models.WeekAvailability, error)
}

// Loader serves week availability through a short-lived cache.
//
// Invalidate bumps a per-key generation, so a fetch that was already in
// flight when the key was invalidated (a booking failure, typically)
// cannot write its now-stale result back into the cache.
type Loader struct {
	upstream Fetcher
	cache    Cache
	ttl      time.Duration
	log      *slog.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

func NewLoader(upstream Fetcher, cache Cache, ttl time.Duration, log *slog.Logger) *Loader {
	return &Loader{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		log:      log,
		gen:      make(map[string]uint64),
	}
}

// Week returns the availability for the given branch and week window,
// cached when possible.
func (l *Loader) Week(ctx context.Context, branchID int64, win models.WeekWindow) (models.WeekAvailability, error) {
	const op = "availability.Loader.Week"

	key := weekKey(branchID, win)

	cached, ok, err := l.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble is not a reason to fail the request.
		l.log.Warn("availability cache read failed", sl.Err(err))
	}
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	gen := l.gen[key]
	l.mu.Unlock()

	week, err := l.upstream.FetchAvailability(ctx, branchID, win.StartISO(), win.EndISO())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	current := l.gen[key] == gen
	l.mu.Unlock()

	if current {
		if err := l.cache.Set(ctx, key, week, l.ttl); err != nil {
			l.log.Warn("availability cache write failed", sl.Err(err))
		}
	}

	return week, nil
}

// Invalidate drops the cached week and marks in-flight fetches for the
// key as stale. Called when a booking submit fails, so the next grid
// load reflects the now-current state.
func (l *Loader) Invalidate(ctx context.Context, branchID int64, win models.WeekWindow) {
	key := weekKey(branchID, win)

	l.mu.Lock()
	l.gen[key]++
	l.mu.Unlock()

	if err := l.cache.Del(ctx, key); err != nil {
		l.log.Warn("availability cache delete failed", sl.Err(err))
	}
}

func weekKey(branchID int64, win models.WeekWindow) string {
	return fmt.Sprintf("%d:%s", branchID, win.StartISO())
}
