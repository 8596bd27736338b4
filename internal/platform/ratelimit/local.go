package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type localEntry struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

// LocalLimiter is a per process token bucket keyed like Limiter.
// Used when RATELIMIT_BACKEND=local or Redis is not reachable at start.
type LocalLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	now     func() time.Time
}

func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{
		entries: make(map[string]*localEntry),
		now:     time.Now,
	}
}

// Allow refills limit tokens per window with a burst of limit. member is ignored.
func (l *LocalLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration, member string) (bool, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	if limit <= 0 || window <= 0 {
		return false, window, nil
	}

	now := l.now()
	lim := l.get(key, limit, window, now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, window, nil
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d, nil
	}
	return true, 0, nil
}

func (l *LocalLimiter) get(key string, limit int, window time.Duration, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || e.limit != limit || e.window != window {
		e = &localEntry{
			limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit),
			limit:   limit,
			window:  window,
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Cleanup drops keys not seen for staleAfter.
func (l *LocalLimiter) Cleanup(staleAfter time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleAfter)
	n := 0
	for k, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// Run evicts stale keys every interval until ctx is done.
func (l *LocalLimiter) Run(ctx context.Context, interval, staleAfter time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Cleanup(staleAfter)
		}
	}
}
