// Package mock provides an in-memory transport with a scripted interviewer,
// used for offline runs and controller tests.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"interview-session-service/internal/transport"
)

// DefaultScript is what the simulated interviewer says, one line per
// candidate message.
var DefaultScript = []string{
	"Hi, I'm your interviewer today. Tell me a little about yourself.",
	"Thanks. What was the most challenging system you've worked on?",
	"Let's move to a coding exercise. Write a function that reverses a linked list. [CODING_CHALLENGE]",
	"Thanks for walking me through that. Do you have any questions for me?",
	"That's all from me. Thank you for your time.",
}

type frame struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker"`
	Transcript string `json:"transcript"`
	IsComplete bool   `json:"isComplete"`
	Timestamp  int64  `json:"timestamp"`
}

// Transport is a scripted in-memory transport. Failure fields are consulted
// on each call, so tests can change them between calls.
type Transport struct {
	mu sync.Mutex

	ConnectErr error
	PublishErr error
	ProbeErr   error
	Latency    time.Duration
	// Script is replayed one line per SendData. Empty disables replies.
	Script []string
	// SpeakLevel is emitted as an audio level around each scripted line.
	SpeakLevel float64

	connects  int
	endpoint  string
	cred      transport.Credential
	tracks    []transport.Track
	frames    int
	sent      [][]byte
	capture   []bool
	line      int
	closed    bool
	connected bool

	events chan transport.Event
}

// New creates a transport replaying script.
func New(script []string) *Transport {
	return &Transport{
		Script:     script,
		SpeakLevel: 0.3,
		Latency:    40 * time.Millisecond,
		events:     make(chan transport.Event, 256),
	}
}

func (t *Transport) Connect(ctx context.Context, endpoint string, cred transport.Credential) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	t.connects++
	if t.ConnectErr != nil {
		return t.ConnectErr
	}
	t.endpoint = endpoint
	t.cred = cred
	t.connected = true
	t.emitLocked(transport.Event{Kind: transport.EventTrackSubscribed, Track: "interviewer-audio"})
	return nil
}

func (t *Transport) Publish(ctx context.Context, track transport.Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PublishErr != nil {
		return t.PublishErr
	}
	if !t.connected {
		return transport.ErrNotConnected
	}
	t.tracks = append(t.tracks, track)
	if track.Frames != nil {
		go func() {
			for range track.Frames {
				t.mu.Lock()
				t.frames++
				t.mu.Unlock()
			}
		}()
	}
	return nil
}

func (t *Transport) SetCaptureEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.capture = append(t.capture, enabled)
}

// SendData records the payload and answers with the next scripted line.
func (t *Transport) SendData(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if !t.connected {
		return transport.ErrNotConnected
	}
	t.sent = append(t.sent, append([]byte(nil), payload...))

	if t.line < len(t.Script) {
		text := t.Script[t.line]
		t.line++
		t.speakLocked(text)
	}
	return nil
}

func (t *Transport) speakLocked(text string) {
	if t.SpeakLevel > 0 {
		t.emitLocked(transport.Event{Kind: transport.EventAudioLevel, Level: t.SpeakLevel})
	}
	data, _ := json.Marshal(frame{
		Type:       "transcript",
		Speaker:    "ai",
		Transcript: text,
		IsComplete: true,
		Timestamp:  time.Now().UnixMilli(),
	})
	t.emitLocked(transport.Event{Kind: transport.EventDataReceived, Payload: data})
	if t.SpeakLevel > 0 {
		t.emitLocked(transport.Event{Kind: transport.EventAudioLevel, Level: 0})
	}
}

func (t *Transport) Events() <-chan transport.Event {
	return t.events
}

func (t *Transport) Probe(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ProbeErr != nil {
		return 0, t.ProbeErr
	}
	if !t.connected {
		return 0, transport.ErrNotConnected
	}
	return t.Latency, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.connected = false
	close(t.events)
	return nil
}

// Emit injects an inbound event.
func (t *Transport) Emit(ev transport.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(ev)
}

// Drop simulates a lost connection.
func (t *Transport) Drop(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.emitLocked(transport.Event{Kind: transport.EventDisconnected, Reason: reason})
}

func (t *Transport) emitLocked(ev transport.Event) {
	if t.closed {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case t.events <- ev:
	default:
	}
}

// Sent returns a copy of every data payload sent.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([][]byte(nil), t.sent...)
}

// Captures returns the sequence of SetCaptureEnabled calls.
func (t *Transport) Captures() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.capture...)
}

// FramesReceived returns how many frames arrived over all published tracks.
func (t *Transport) FramesReceived() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Tracks returns the published tracks.
func (t *Transport) Tracks() []transport.Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transport.Track(nil), t.tracks...)
}

// Connects returns how many times Connect was called.
func (t *Transport) Connects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// Credential returns the credential of the last successful Connect.
func (t *Transport) Credential() transport.Credential {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cred
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("injected failure")
