package ratelimit

import (
	"context"
	"sync"
	"time"

	"codeagents/pkg/logger"
)

type windowEntry struct {
	id uint64
	at time.Time
}

// WindowLimiter is a strict sliding-window log: at most limit acquisitions
// fall inside any window-long interval.
type WindowLimiter struct {
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
	log    *logger.Logger

	mu      sync.Mutex
	entries []windowEntry // ascending by at
	nextID  uint64
}

// NewWindowLimiter creates a limiter allowing limit requests per window.
// RPM budgets use window = time.Minute.
func NewWindowLimiter(name string, limit int, window time.Duration) *WindowLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &WindowLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		now:     time.Now,
		log:     logger.Get().With("component", "rate_limiter", "limiter", name),
		entries: make([]windowEntry, 0, limit),
	}
}

// Acquire takes a slot or waits for the oldest entry to leave the window.
func (l *WindowLimiter) Acquire(ctx context.Context, maxWait time.Duration) (func(), error) {
	deadline := l.now().Add(maxWait)

	for {
		if err := ctx.Err(); err != nil {
			return noRelease, err
		}

		id, wait := l.tryAcquire()
		if wait == 0 {
			return l.releaser(id), nil
		}

		if l.now().Add(wait).After(deadline) {
			return noRelease, rejected(l.name, l.Limit(), wait)
		}

		l.log.Debugw("Waiting for rate limit slot", "wait", wait)
		if err := sleep(ctx, wait); err != nil {
			return noRelease, err
		}
	}
}

// tryAcquire records an entry and returns its id, or returns how long until the oldest entry expires
func (l *WindowLimiter) tryAcquire() (uint64, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.entries) < l.limit {
		l.nextID++
		l.entries = append(l.entries, windowEntry{id: l.nextID, at: now})
		return l.nextID, 0
	}

	wait := l.entries[0].at.Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return 0, wait
}

func (l *WindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	drop := 0
	for drop < len(l.entries) && !l.entries[drop].at.After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.entries = append(l.entries[:0], l.entries[drop:]...)
	}
}

func (l *WindowLimiter) releaser(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, e := range l.entries {
				if e.id == id {
					l.entries = append(l.entries[:i], l.entries[i+1:]...)
					return
				}
			}
		})
	}
}

// InFlight returns the number of entries currently inside the window.
func (l *WindowLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.entries)
}

// Limit returns the per-window budget.
func (l *WindowLimiter) Limit() int {
	return l.limit
}
