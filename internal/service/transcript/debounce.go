package transcript

import (
	"sync"
	"time"

	"interview-session-service/internal/clock"
)

// debouncer coalesces bursts of triggers into one trailing call per interval.
type debouncer struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	fn       func()
	timer    clock.Timer
}

func newDebouncer(clk clock.Clock, interval time.Duration, fn func()) *debouncer {
	return &debouncer{clock: clk, interval: interval, fn: fn}
}

// trigger schedules fn unless a call is already pending.
func (d *debouncer) trigger() {
	if d.interval <= 0 {
		d.fn()
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		return
	}
	d.timer = d.clock.AfterFunc(d.interval, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}

// flush runs a pending call immediately.
func (d *debouncer) flush() {
	d.mu.Lock()
	pending := d.timer != nil && d.timer.Stop()
	d.timer = nil
	d.mu.Unlock()
	if pending {
		d.fn()
	}
}
