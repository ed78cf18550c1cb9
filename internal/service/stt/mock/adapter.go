// Package mock provides a scripted recognizer for running sessions without
// cloud credentials. Each audio frame advances the script by one hypothesis.
package mock

import (
	"context"
	"sync"
	"time"

	"interview-session-service/internal/service/stt"
)

// SimulatedUtterance is one scripted candidate answer.
type SimulatedUtterance struct {
	Partials   []string // Progressive hypotheses, each the whole utterance so far
	Final      string
	Confidence float64
}

// DefaultUtterances is a short candidate introduction.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"Hi", "Hi I'm", "Hi I'm a backend"},
		Final:      "Hi I'm a backend engineer with five years of experience",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Most recently", "Most recently I led", "Most recently I led a migration"},
		Final:      "Most recently I led a migration from a monolith to services",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"We used", "We used Kafka"},
		Final:      "We used Kafka to decouple the billing pipeline",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"The hardest part", "The hardest part was"},
		Final:      "The hardest part was keeping both systems consistent during cutover",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you for the question",
		Confidence: 0.97,
	},
}

// Adapter implements stt.Adapter by replaying a script.
type Adapter struct {
	mu        sync.Mutex
	cb        stt.Callback
	script    []SimulatedUtterance
	utterance int // Index into script
	partial   int // Next partial within the current utterance
	finalSent bool
	closed    bool
	latency   time.Duration
	frames    int
}

// New creates a recognizer replaying DefaultUtterances.
func New() *Adapter {
	return NewWithScript(DefaultUtterances, 0)
}

// NewWithScript creates a recognizer replaying script. Callbacks are delivered
// after latency on a separate goroutine, or inline when latency is zero.
func NewWithScript(script []SimulatedUtterance, latency time.Duration) *Adapter {
	return &Adapter{script: script, latency: latency}
}

// Start registers the callback.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script. Once the partials of an utterance are used
// up the next frame emits its final and end-of-utterance, and the frame after
// that starts the next utterance.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil || len(a.script) == 0 {
		a.mu.Unlock()
		return nil
	}
	a.frames++
	cb := a.cb
	utt := a.script[a.utterance%len(a.script)]

	var deliver func()
	switch {
	case a.partial < len(utt.Partials):
		text := utt.Partials[a.partial]
		a.partial++
		deliver = func() { cb.OnPartial(text) }
	case !a.finalSent:
		a.finalSent = true
		deliver = func() {
			cb.OnFinal(utt.Final, utt.Confidence)
			cb.OnEndOfUtterance()
		}
	default:
		a.utterance++
		a.partial = 0
		a.finalSent = false
	}
	a.mu.Unlock()

	if deliver != nil {
		a.deliver(deliver)
	}
	return nil
}

func (a *Adapter) deliver(fn func()) {
	if a.latency <= 0 {
		fn()
		return
	}
	go func() {
		time.Sleep(a.latency)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			fn()
		}
	}()
}

// Close ends the session. An utterance cut off mid-way still gets its final.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cb := a.cb
	pendingFinal := cb != nil && a.partial > 0 && !a.finalSent && len(a.script) > 0
	var utt SimulatedUtterance
	if pendingFinal {
		a.finalSent = true
		utt = a.script[a.utterance%len(a.script)]
	}
	a.mu.Unlock()

	if pendingFinal {
		cb.OnFinal(utt.Final, utt.Confidence)
	}
	return nil
}

// Frames returns how many audio frames were received.
func (a *Adapter) Frames() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames
}
