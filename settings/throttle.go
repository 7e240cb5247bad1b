package settings

import (
	"sync"
	"time"
)

// SaveInterval is the throttle window for location updates.
const SaveInterval = 100 * time.Millisecond

// Timer is the part of *time.Timer the throttle uses.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Throttle runs at most one function per interval. The first call opens a
// window; calls inside the window replace the pending function, and the last
// one runs once when the window closes. Nothing is dropped except superseded
// calls.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	clock    Clock
	pending  func()
	timer    Timer
}

// NewThrottle returns a Throttle. A nil clock uses SystemClock.
func NewThrottle(interval time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = SystemClock
	}
	return &Throttle{interval: interval, clock: clock}
}

// Do schedules f for the end of the current window.
func (t *Throttle) Do(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = f
	if t.timer == nil {
		t.timer = t.clock.AfterFunc(t.interval, t.fire)
	}
}

// Flush runs the pending function now, if any, and closes the window.
func (t *Throttle) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	t.fire()
}

func (t *Throttle) fire() {
	t.mu.Lock()
	f := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()
	if f != nil {
		f()
	}
}
