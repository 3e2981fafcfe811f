package gate

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultWindow is the minimum spacing between two accepted reports.
const DefaultWindow = 60 * time.Second

type Limiter interface {
	Allow() bool
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}

// RateLimiter accepts at most one report per window, process wide.
type RateLimiter struct {
	mu     sync.Mutex
	clock  Clock
	window time.Duration
	last   time.Time
	posted bool
}

func NewRateLimiter(window time.Duration, clock Clock) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = realClock{}
	}
	return &RateLimiter{
		clock:  clock,
		window: window,
	}
}

// Allow reports whether a submission may go out now and, if so, starts a new window.
// Nothing has been posted yet on the first call, so it always passes.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if r.posted && now.Before(r.last.Add(r.window)) {
		slog.Info("Report rate limiting triggered, skipping report", "next", r.last.Add(r.window))
		return false
	}

	r.last = now
	r.posted = true
	return true
}
