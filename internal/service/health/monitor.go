// Package health measures connection latency, classifies link quality and
// paces reconnection attempts.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

// ExhaustedMessage is shown to the candidate once reconnection gives up.
const ExhaustedMessage = "Unable to reconnect. Please refresh the page."

// ErrReconnectExhausted is returned once every reconnect attempt has been used.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Tier is the quality classification of the link.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierPoor      Tier = "poor"
)

// Params are the media and generation settings applied on the next connect.
type Params struct {
	SampleRateHz    int `json:"sampleRateHz"`
	BitrateKbps     int `json:"bitrateKbps"`
	MaxOutputTokens int `json:"maxOutputTokens"`
}

// ParamsFor returns the adaptive parameter set for a tier.
func ParamsFor(t Tier) Params {
	switch t {
	case TierPoor:
		return Params{SampleRateHz: 16000, BitrateKbps: 32, MaxOutputTokens: 400}
	case TierGood:
		return Params{SampleRateHz: 24000, BitrateKbps: 64, MaxOutputTokens: 600}
	default:
		return Params{SampleRateHz: 48000, BitrateKbps: 128, MaxOutputTokens: 800}
	}
}

// Snapshot is the monitor's view of the connection.
type Snapshot struct {
	Latency           time.Duration `json:"latency"`
	Tier              Tier          `json:"tier"`
	ReconnectAttempts int           `json:"reconnectAttempts"`
	Params            Params        `json:"params"`
	MeasuredAt        time.Time     `json:"measuredAt"`
}

// Prober measures one round trip over the transport.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Config holds the probing and backoff settings.
type Config struct {
	ProbeInterval        time.Duration
	GoodLatency          time.Duration // Upper bound of the excellent tier
	PoorLatency          time.Duration // Upper bound of the good tier
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns the default monitor settings.
func DefaultConfig() Config {
	return Config{
		ProbeInterval:        5 * time.Second,
		GoodLatency:          200 * time.Millisecond,
		PoorLatency:          500 * time.Millisecond,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 5,
	}
}

// Monitor tracks link quality and reconnect attempts. Safe for concurrent use.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	clock   clock.Clock
	prober  Prober
	logger  zerolog.Logger
	metrics *metrics.Metrics

	latency    time.Duration
	tier       Tier
	attempts   int
	measuredAt time.Time

	onTierChange func(Snapshot)

	ticker  clock.Timer
	running bool
	cancel  context.CancelFunc
}

// NewMonitor creates a monitor probing through p. The link starts excellent.
func NewMonitor(sessionId string, cfg Config, clk clock.Clock, p Prober) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		cfg:     cfg,
		clock:   clk,
		prober:  p,
		logger:  logging.WithSessionComponent(sessionId, "health"),
		metrics: metrics.DefaultMetrics,
		tier:    TierExcellent,
	}
}

// OnTierChange registers a callback fired only when the tier changes.
func (m *Monitor) OnTierChange(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTierChange = fn
}

// Classify maps a latency onto a tier.
func (m *Monitor) Classify(latency time.Duration) Tier {
	switch {
	case latency <= m.cfg.GoodLatency:
		return TierExcellent
	case latency <= m.cfg.PoorLatency:
		return TierGood
	default:
		return TierPoor
	}
}

// Tick runs one probe and updates the snapshot.
func (m *Monitor) Tick(ctx context.Context) (Snapshot, error) {
	latency, err := m.prober.Probe(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Latency probe failed")
		return m.Snapshot(), fmt.Errorf("probe: %w", err)
	}
	m.metrics.RecordProbe(latency.Seconds())
	return m.Observe(latency), nil
}

// Observe records a latency measurement obtained elsewhere.
func (m *Monitor) Observe(latency time.Duration) Snapshot {
	tier := m.Classify(latency)

	m.mu.Lock()
	changed := tier != m.tier
	m.latency = latency
	m.tier = tier
	m.measuredAt = m.clock.Now()
	snap := m.snapshotLocked()
	cb := m.onTierChange
	m.mu.Unlock()

	if changed {
		m.metrics.RecordTierChange(string(tier))
		m.logger.Info().
			Str("tier", string(tier)).
			Int64("latencyMs", latency.Milliseconds()).
			Msg("Connection quality changed")
		if cb != nil {
			cb(snap)
		}
	}
	return snap
}

// Start probes every ProbeInterval until Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.scheduleLocked(ctx)
}

func (m *Monitor) scheduleLocked(ctx context.Context) {
	m.ticker = m.clock.AfterFunc(m.cfg.ProbeInterval, func() {
		if ctx.Err() != nil {
			return
		}
		_, _ = m.Tick(ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.running && ctx.Err() == nil {
			m.scheduleLocked(ctx)
		}
	})
}

// Stop halts periodic probing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	m.cancel()
}

// NextReconnectDelay consumes one attempt and returns how long to wait before
// it: base * 2^(attempt-1).
func (m *Monitor) NextReconnectDelay() (time.Duration, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		return 0, m.attempts, ErrReconnectExhausted
	}
	m.attempts++
	m.metrics.RecordReconnectAttempt()
	delay := m.cfg.ReconnectBaseDelay << (m.attempts - 1)
	return delay, m.attempts, nil
}

// ResetReconnect clears the attempt counter after a successful reconnect.
func (m *Monitor) ResetReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
}

// NetworkRestored handles a generic connectivity-restored signal. The counter
// is reset even though the transport may not have reconnected yet.
func (m *Monitor) NetworkRestored() {
	m.ResetReconnect()
	m.logger.Debug().Msg("Network restored, reconnect counter reset")
}

// Adaptive returns the parameter set for the current tier.
func (m *Monitor) Adaptive() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ParamsFor(m.tier)
}

// Snapshot returns the current view of the connection.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{
		Latency:           m.latency,
		Tier:              m.tier,
		ReconnectAttempts: m.attempts,
		Params:            ParamsFor(m.tier),
		MeasuredAt:        m.measuredAt,
	}
}
