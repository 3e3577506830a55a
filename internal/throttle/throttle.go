// Package throttle rate-limits a callback to at most one invocation per
// interval. The first call in a window executes immediately; calls arriving
// before the window elapses are dropped, not queued.
package throttle

import (
	"sync"
	"time"
)

// Throttle gates invocations of a wrapped callback
type Throttle struct {
	interval time.Duration
	now      func() time.Time
	mu       sync.Mutex
	last     time.Time
	armed    bool
}

// New creates a throttle with the given minimum interval between invocations
func New(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		now:      time.Now,
	}
}

// WithClock overrides the clock source, for tests
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.now = now
	return t
}

// Allow reports whether a call at the current instant may proceed,
// consuming the window if so.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now()
	if t.armed && ts.Sub(t.last) < t.interval {
		return false
	}
	t.last = ts
	t.armed = true
	return true
}

// Wrap returns a function with the same signature as fn that forwards its
// argument only when the throttle window allows it.
func Wrap[T any](interval time.Duration, fn func(T)) func(T) {
	t := New(interval)
	return func(v T) {
		if t.Allow() {
			fn(v)
		}
	}
}
