// Package audio decides who is speaking during a live session and when local
// audio must not be rendered back to the candidate.
package audio

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
)

// Config defines the speaking detection thresholds.
type Config struct {
	Threshold      float64       // Remote amplitude above which the agent is speaking
	Hysteresis     time.Duration // Quiet time before the agent is considered silent
	CandidateDecay time.Duration // Time without candidate fragments before the candidate is silent
}

// DefaultConfig returns the default detection thresholds.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.01,
		Hysteresis:     300 * time.Millisecond,
		CandidateDecay: 2 * time.Second,
	}
}

// State is a snapshot of the speaking flags.
type State struct {
	AgentSpeaking     bool
	CandidateSpeaking bool
	// Suppressed means local audio must not be rendered back. Capture stays on.
	Suppressed bool
}

// ChangeFunc is called after any flag changes, outside the arbiter lock.
type ChangeFunc func(State)

// Arbiter tracks AgentSpeaking and CandidateSpeaking. Safe for concurrent use.
type Arbiter struct {
	mu     sync.Mutex
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger

	agentSpeaking     bool
	candidateSpeaking bool

	// Timer generations guard against a stopped real timer firing late.
	releaseTimer clock.Timer
	releaseGen   uint64
	decayTimer   clock.Timer
	decayGen     uint64

	onChange ChangeFunc
}

// NewArbiter creates an arbiter. onChange may be nil.
func NewArbiter(sessionId string, cfg Config, clk clock.Clock, onChange ChangeFunc) *Arbiter {
	if clk == nil {
		clk = clock.New()
	}
	return &Arbiter{
		cfg:      cfg,
		clock:    clk,
		logger:   logging.WithSessionComponent(sessionId, "audio"),
		onChange: onChange,
	}
}

// OnAudioLevel consumes one remote output amplitude sample.
func (a *Arbiter) OnAudioLevel(level float64) {
	a.mu.Lock()
	changed := false

	if level > a.cfg.Threshold {
		a.stopReleaseLocked()
		if !a.agentSpeaking {
			a.agentSpeaking = true
			changed = true
		}
	} else if a.agentSpeaking && a.releaseTimer == nil {
		a.releaseGen++
		gen := a.releaseGen
		a.releaseTimer = a.clock.AfterFunc(a.cfg.Hysteresis, func() { a.release(gen) })
	}

	state := a.stateLocked()
	a.mu.Unlock()

	if changed {
		a.logger.Debug().Float64("level", level).Msg("Agent speaking")
		a.notify(state)
	}
}

func (a *Arbiter) release(gen uint64) {
	a.mu.Lock()
	if gen != a.releaseGen || a.releaseTimer == nil {
		a.mu.Unlock()
		return
	}
	a.releaseTimer = nil
	a.agentSpeaking = false
	state := a.stateLocked()
	a.mu.Unlock()

	a.logger.Debug().Msg("Agent silent")
	a.notify(state)
}

// OnFragment consumes a transcript arrival. Candidate fragments assert
// CandidateSpeaking and restart its decay; agent fragments clear it.
func (a *Arbiter) OnFragment(speaker models.Speaker) {
	a.mu.Lock()
	changed := false

	switch speaker {
	case models.SpeakerUser:
		a.stopDecayLocked()
		if !a.candidateSpeaking {
			a.candidateSpeaking = true
			changed = true
		}
		a.decayGen++
		gen := a.decayGen
		a.decayTimer = a.clock.AfterFunc(a.cfg.CandidateDecay, func() { a.decay(gen) })
	case models.SpeakerAI:
		a.stopDecayLocked()
		if a.candidateSpeaking {
			a.candidateSpeaking = false
			changed = true
		}
	}

	state := a.stateLocked()
	a.mu.Unlock()

	if changed {
		a.notify(state)
	}
}

func (a *Arbiter) decay(gen uint64) {
	a.mu.Lock()
	if gen != a.decayGen || a.decayTimer == nil {
		a.mu.Unlock()
		return
	}
	a.decayTimer = nil
	a.candidateSpeaking = false
	state := a.stateLocked()
	a.mu.Unlock()

	a.notify(state)
}

// State returns the current flags.
func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Suppressed reports whether local audio rendering is suppressed.
func (a *Arbiter) Suppressed() bool {
	return a.State().Suppressed
}

// Reset clears both flags and cancels pending timers.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	a.stopReleaseLocked()
	a.stopDecayLocked()
	changed := a.agentSpeaking || a.candidateSpeaking
	a.agentSpeaking = false
	a.candidateSpeaking = false
	state := a.stateLocked()
	a.mu.Unlock()

	if changed {
		a.notify(state)
	}
}

func (a *Arbiter) stateLocked() State {
	return State{
		AgentSpeaking:     a.agentSpeaking,
		CandidateSpeaking: a.candidateSpeaking,
		Suppressed:        a.agentSpeaking,
	}
}

func (a *Arbiter) stopReleaseLocked() {
	if a.releaseTimer != nil {
		a.releaseTimer.Stop()
		a.releaseTimer = nil
	}
	a.releaseGen++
}

func (a *Arbiter) stopDecayLocked() {
	if a.decayTimer != nil {
		a.decayTimer.Stop()
		a.decayTimer = nil
	}
	a.decayGen++
}

func (a *Arbiter) notify(state State) {
	if a.onChange != nil {
		a.onChange(state)
	}
}
