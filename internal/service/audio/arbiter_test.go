package audio

import (
	"testing"
	"time"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
)

func newTestArbiter() (*Arbiter, *clock.Fake, *[]State) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	var changes []State
	arb := NewArbiter("session-test", DefaultConfig(), clk, func(s State) {
		changes = append(changes, s)
	})
	return arb, clk, &changes
}

func TestArbiter_AgentAssertsImmediately(t *testing.T) {
	arb, _, changes := newTestArbiter()

	arb.OnAudioLevel(0.2)

	state := arb.State()
	if !state.AgentSpeaking {
		t.Error("expected agent speaking after loud sample")
	}
	if !state.Suppressed {
		t.Error("expected suppression while agent speaks")
	}
	if len(*changes) != 1 {
		t.Errorf("expected 1 change, got %d", len(*changes))
	}
}

func TestArbiter_AgentHysteresis(t *testing.T) {
	arb, clk, _ := newTestArbiter()

	arb.OnAudioLevel(0.2)
	arb.OnAudioLevel(0.001)
	clk.Advance(200 * time.Millisecond)
	if !arb.State().AgentSpeaking {
		t.Fatal("expected agent still speaking inside hysteresis window")
	}

	// A loud sample inside the window restarts it.
	arb.OnAudioLevel(0.05)
	arb.OnAudioLevel(0.0)
	clk.Advance(299 * time.Millisecond)
	if !arb.State().AgentSpeaking {
		t.Fatal("expected agent still speaking after restart")
	}

	clk.Advance(time.Millisecond)
	if arb.State().AgentSpeaking {
		t.Error("expected agent silent after 300ms below threshold")
	}
	if arb.Suppressed() {
		t.Error("expected suppression lifted")
	}
}

func TestArbiter_ThresholdIsExclusive(t *testing.T) {
	arb, _, _ := newTestArbiter()

	arb.OnAudioLevel(0.01)
	if arb.State().AgentSpeaking {
		t.Error("expected a sample at the threshold not to assert")
	}
}

func TestArbiter_CandidateDecay(t *testing.T) {
	arb, clk, _ := newTestArbiter()

	arb.OnFragment(models.SpeakerUser)
	clk.Advance(1500 * time.Millisecond)
	arb.OnFragment(models.SpeakerUser)
	clk.Advance(1500 * time.Millisecond)
	if !arb.State().CandidateSpeaking {
		t.Fatal("expected decay restarted by second fragment")
	}

	clk.Advance(500 * time.Millisecond)
	if arb.State().CandidateSpeaking {
		t.Error("expected candidate silent 2s after last fragment")
	}
}

func TestArbiter_AgentFragmentClearsCandidate(t *testing.T) {
	arb, clk, _ := newTestArbiter()

	arb.OnFragment(models.SpeakerUser)
	arb.OnFragment(models.SpeakerAI)
	if arb.State().CandidateSpeaking {
		t.Error("expected agent fragment to clear candidate speaking")
	}
	if clk.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clk.Pending())
	}
}

func TestArbiter_Reset(t *testing.T) {
	arb, clk, changes := newTestArbiter()

	arb.OnAudioLevel(1)
	arb.OnAudioLevel(0)
	arb.OnFragment(models.SpeakerUser)
	arb.Reset()

	state := arb.State()
	if state.AgentSpeaking || state.CandidateSpeaking {
		t.Errorf("expected all flags cleared, got %+v", state)
	}
	before := len(*changes)
	clk.Advance(5 * time.Second)
	if len(*changes) != before {
		t.Error("expected no notifications from cancelled timers")
	}
}
