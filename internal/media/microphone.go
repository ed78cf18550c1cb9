// Package media provides local capture devices for a live session.
package media

import (
	"context"
	"errors"
	"fmt"

	"interview-session-service/internal/transport"
)

// PermissionKind classifies capture failures.
type PermissionKind string

const (
	PermissionDenied PermissionKind = "denied"
	DeviceMissing    PermissionKind = "missing"
	DeviceBusy       PermissionKind = "busy"
)

// PermissionError reports why a capture device could not be acquired.
type PermissionError struct {
	Kind   PermissionKind
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Device, describe(e.Kind))
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *PermissionError) Unwrap() error { return e.Err }

func describe(k PermissionKind) string {
	switch k {
	case PermissionDenied:
		return "access denied"
	case DeviceMissing:
		return "not found"
	case DeviceBusy:
		return "in use"
	default:
		return "unavailable"
	}
}

// IsPermissionError reports whether err is a capture failure of kind k.
func IsPermissionError(err error, k PermissionKind) bool {
	var perr *PermissionError
	return errors.As(err, &perr) && perr.Kind == k
}

// Device is a local capture source.
type Device interface {
	// Acquire opens the device and returns its track. Failures are
	// *PermissionError.
	Acquire(ctx context.Context) (transport.Track, error)
	// Release stops capture and closes the track.
	Release() error
}

// Microphone is an audio capture device whose local rendering can be muted
// while the interviewer speaks.
type Microphone interface {
	Device
	SetPlayback(enabled bool)
}
