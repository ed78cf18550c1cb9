package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a used controller.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNotLive is returned for operations that need a live connection.
	ErrNotLive = errors.New("session is not live")
	// ErrOutboxFull is returned when outbound messages back up.
	ErrOutboxFull = errors.New("outbound message queue full")
)

// Phase names the step of connection setup that failed.
type Phase string

const (
	PhaseCredential Phase = "credential"
	PhaseConnect    Phase = "connect"
	PhasePublish    Phase = "publish"
	PhaseDrop       Phase = "drop"
)

// TransportError reports a failure to reach or stay connected to the
// interviewer.
type TransportError struct {
	Phase Phase
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Phase, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
