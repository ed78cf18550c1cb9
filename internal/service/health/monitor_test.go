package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/clock"
)

type stubProber struct {
	mu        sync.Mutex
	latencies []time.Duration
	err       error
	calls     int
}

func (p *stubProber) Probe(ctx context.Context) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	if len(p.latencies) == 0 {
		return 50 * time.Millisecond, nil
	}
	l := p.latencies[0]
	p.latencies = p.latencies[1:]
	return l, nil
}

func newTestMonitor(p Prober) (*Monitor, *clock.Fake) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	return NewMonitor("session-test", DefaultConfig(), clk, p), clk
}

func TestMonitor_Classify(t *testing.T) {
	m, _ := newTestMonitor(&stubProber{})

	assert.Equal(t, TierExcellent, m.Classify(120*time.Millisecond))
	assert.Equal(t, TierExcellent, m.Classify(200*time.Millisecond))
	assert.Equal(t, TierGood, m.Classify(201*time.Millisecond))
	assert.Equal(t, TierGood, m.Classify(500*time.Millisecond))
	assert.Equal(t, TierPoor, m.Classify(501*time.Millisecond))
}

func TestMonitor_TierChangeFiresOnce(t *testing.T) {
	p := &stubProber{latencies: []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		350 * time.Millisecond,
		900 * time.Millisecond,
	}}
	m, _ := newTestMonitor(p)

	var tiers []Tier
	m.OnTierChange(func(s Snapshot) { tiers = append(tiers, s.Tier) })

	for i := 0; i < 4; i++ {
		_, err := m.Tick(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, []Tier{TierGood, TierPoor}, tiers)
	assert.Equal(t, ParamsFor(TierPoor), m.Adaptive())
}

func TestMonitor_ProbeError(t *testing.T) {
	p := &stubProber{err: errors.New("link down")}
	m, _ := newTestMonitor(p)

	snap, err := m.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, TierExcellent, snap.Tier)
}

func TestMonitor_PeriodicProbing(t *testing.T) {
	p := &stubProber{}
	m, clk := newTestMonitor(p)

	m.Start(context.Background())
	clk.Advance(15 * time.Second)
	m.Stop()
	clk.Advance(15 * time.Second)

	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 0, clk.Pending())
}

func TestParamsFor(t *testing.T) {
	assert.Equal(t, Params{SampleRateHz: 48000, BitrateKbps: 128, MaxOutputTokens: 800}, ParamsFor(TierExcellent))
	assert.Equal(t, Params{SampleRateHz: 24000, BitrateKbps: 64, MaxOutputTokens: 600}, ParamsFor(TierGood))
	assert.Equal(t, Params{SampleRateHz: 16000, BitrateKbps: 32, MaxOutputTokens: 400}, ParamsFor(TierPoor))
}

func TestMonitor_ReconnectBackoff(t *testing.T) {
	m, _ := newTestMonitor(&stubProber{})

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, want := range expected {
		delay, attempt, err := m.NextReconnectDelay()
		require.NoError(t, err)
		assert.Equal(t, i+1, attempt)
		assert.Equal(t, want, delay)
	}

	_, _, err := m.NextReconnectDelay()
	assert.ErrorIs(t, err, ErrReconnectExhausted)

	m.ResetReconnect()
	delay, attempt, err := m.NextReconnectDelay()
	require.NoError(t, err)
	assert.Equal(t, 1, attempt)
	assert.Equal(t, time.Second, delay)
}

func TestMonitor_NetworkRestoredResets(t *testing.T) {
	m, _ := newTestMonitor(&stubProber{})

	_, _, _ = m.NextReconnectDelay()
	_, _, _ = m.NextReconnectDelay()
	m.NetworkRestored()

	assert.Equal(t, 0, m.Snapshot().ReconnectAttempts)
}
