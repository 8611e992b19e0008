package client

import (
	"sync"
	"time"
)

const (
	// DefaultThrottleWindow and DefaultMaxActions cap dispatch to 15
	// actions per sliding second. This is advisory flood protection for
	// the transport only; the server's 250 ms interval is authoritative.
	DefaultThrottleWindow = time.Second
	DefaultMaxActions     = 15
)

// Throttle is a sliding-window action counter.
type Throttle struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	stamps []time.Time
	now    func() time.Time
}

func NewThrottle(window time.Duration, max int) *Throttle {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	if max <= 0 {
		max = DefaultMaxActions
	}
	return &Throttle{window: window, max: max, now: time.Now}
}

// Allow reports whether one more action fits in the current window and
// records it if so.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	cutoff := now.Add(-t.window)

	kept := t.stamps[:0]
	for _, s := range t.stamps {
		if s.After(cutoff) {
			kept = append(kept, s)
		}
	}
	t.stamps = kept

	if len(t.stamps) >= t.max {
		return false
	}
	t.stamps = append(t.stamps, now)
	return true
}
