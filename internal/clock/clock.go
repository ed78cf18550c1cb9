// Package clock abstracts wall-clock time and timers so that timing-driven
// components can be exercised deterministically in tests.
package clock

import "time"

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the timer from firing. Returns false if it already fired
	// or was stopped.
	Stop() bool
}

// Clock provides the current time and scheduled callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the system clock.
type Real struct{}

// New returns the system clock.
func New() Clock {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
