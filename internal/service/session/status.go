package session

import (
	"errors"
	"fmt"
	"sync"
)

// Status is the lifecycle state of a live session.
type Status int

const (
	StatusIdle Status = iota
	StatusInitializing
	StatusConnecting
	StatusPublishing
	StatusActive
	StatusPaused
	StatusReconnecting
	StatusDisconnected
	StatusError
	StatusTerminated
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusInitializing:
		return "INITIALIZING"
	case StatusConnecting:
		return "CONNECTING"
	case StatusPublishing:
		return "PUBLISHING"
	case StatusActive:
		return "ACTIVE"
	case StatusPaused:
		return "PAUSED"
	case StatusReconnecting:
		return "RECONNECTING"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusError:
		return "ERROR"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once the session can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusTerminated
}

// IsLive returns true while the interviewer connection is up.
func (s Status) IsLive() bool {
	return s == StatusActive || s == StatusPaused
}

// ErrInvalidTransition is returned when the target is not reachable from the
// current status. The status is left unchanged.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the directed status graph.
//
//	IDLE → INITIALIZING → CONNECTING → PUBLISHING → ACTIVE ⇄ PAUSED
//	ACTIVE, PAUSED → RECONNECTING → ACTIVE or PAUSED
//	any non-terminal → ERROR, TERMINATED
//	ERROR → IDLE (explicit retry)
var transitions = map[Status][]Status{
	StatusIdle:         {StatusInitializing, StatusTerminated},
	StatusInitializing: {StatusConnecting, StatusError, StatusTerminated},
	StatusConnecting:   {StatusPublishing, StatusError, StatusTerminated},
	StatusPublishing:   {StatusActive, StatusError, StatusTerminated},
	StatusActive:       {StatusPaused, StatusReconnecting, StatusDisconnected, StatusError, StatusTerminated},
	StatusPaused:       {StatusActive, StatusReconnecting, StatusDisconnected, StatusError, StatusTerminated},
	StatusReconnecting: {StatusActive, StatusPaused, StatusDisconnected, StatusError, StatusTerminated},
	StatusDisconnected: {StatusReconnecting, StatusError, StatusTerminated},
	StatusError:        {StatusIdle, StatusTerminated},
	StatusTerminated:   nil,
}

// CanTransition reports whether from → to is an edge of the graph.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Machine guards the current status. Thread-safe for concurrent access.
type Machine struct {
	mu     sync.RWMutex
	status Status
}

// NewMachine creates a machine in IDLE.
func NewMachine() *Machine {
	return &Machine{status: StatusIdle}
}

// Status returns the current status.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Transition moves to the target status and returns the previous one.
func (m *Machine) Transition(to Status) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.status
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
	}
	m.status = to
	return from, nil
}

// TransitionFrom moves to the target only if the current status is one of
// from. Used where a concurrent change must not be overwritten.
func (m *Machine) TransitionFrom(to Status, from ...Status) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.status
	allowed := false
	for _, s := range from {
		if s == cur {
			allowed = true
			break
		}
	}
	if !allowed || !CanTransition(cur, to) {
		return cur, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, cur, to)
	}
	m.status = to
	return cur, nil
}
