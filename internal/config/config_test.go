package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	envVars := []string{
		"SERVICE_PRINCIPAL", "GRPC_PORT", "LOG_LEVEL",
		"SESSION_CREDENTIAL_FRESHNESS", "SESSION_CREDENTIAL_ATTEMPTS",
		"AUDIO_SPEAKING_THRESHOLD", "AUDIO_AGENT_HYSTERESIS", "AUDIO_CANDIDATE_DECAY",
		"TRANSCRIPT_FRESHNESS_WINDOW", "TRANSCRIPT_DEBOUNCE", "TRANSCRIPT_MAX_IN_MEMORY",
		"CHALLENGE_MARKER", "CHALLENGE_MARKER_SETTLE", "CHALLENGE_KEYWORD_SETTLE",
		"HEALTH_PROBE_INTERVAL", "HEALTH_MAX_RECONNECT_ATTEMPTS",
		"FEEDBACK_TEMPERATURE", "FEEDBACK_TOP_K", "FEEDBACK_MINIMUM_TURNS",
		"KAFKA_ENABLED", "KAFKA_BROKERS",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}

	cfg := Load()

	if cfg.Service.Principal != "svc-interview-session" {
		t.Errorf("expected default principal 'svc-interview-session', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "50051" {
		t.Errorf("expected default port '50051', got %s", cfg.Service.GRPCPort)
	}

	if cfg.Session.CredentialFreshness != 5*time.Minute {
		t.Errorf("expected credential freshness 5m, got %v", cfg.Session.CredentialFreshness)
	}
	if cfg.Session.CredentialAttempts != 3 {
		t.Errorf("expected 3 credential attempts, got %d", cfg.Session.CredentialAttempts)
	}

	if cfg.Audio.SpeakingThreshold != 0.01 {
		t.Errorf("expected speaking threshold 0.01, got %v", cfg.Audio.SpeakingThreshold)
	}
	if cfg.Audio.AgentHysteresis != 300*time.Millisecond {
		t.Errorf("expected hysteresis 300ms, got %v", cfg.Audio.AgentHysteresis)
	}
	if cfg.Audio.CandidateDecay != 2*time.Second {
		t.Errorf("expected candidate decay 2s, got %v", cfg.Audio.CandidateDecay)
	}

	if cfg.Transcript.FreshnessWindow != 5*time.Second {
		t.Errorf("expected freshness window 5s, got %v", cfg.Transcript.FreshnessWindow)
	}
	if cfg.Transcript.MaxInMemory != 50 {
		t.Errorf("expected 50 in-memory entries, got %d", cfg.Transcript.MaxInMemory)
	}

	if cfg.Challenge.Marker != "[CODING_CHALLENGE]" {
		t.Errorf("expected marker [CODING_CHALLENGE], got %s", cfg.Challenge.Marker)
	}
	if cfg.Challenge.MarkerSettle != 2*time.Second || cfg.Challenge.KeywordSettle != 3*time.Second {
		t.Errorf("expected settle delays 2s/3s, got %v/%v", cfg.Challenge.MarkerSettle, cfg.Challenge.KeywordSettle)
	}
	if cfg.Challenge.SuppressWhilePending {
		t.Errorf("expected detections while pending to reschedule by default")
	}

	if cfg.Health.ProbeInterval != 5*time.Second {
		t.Errorf("expected probe interval 5s, got %v", cfg.Health.ProbeInterval)
	}
	if cfg.Health.MaxReconnectAttempts != 5 {
		t.Errorf("expected 5 reconnect attempts, got %d", cfg.Health.MaxReconnectAttempts)
	}

	if cfg.Feedback.Temperature != 0.9 || cfg.Feedback.TopK != 35 {
		t.Errorf("expected temperature 0.9 and topK 35, got %v/%v", cfg.Feedback.Temperature, cfg.Feedback.TopK)
	}
	if cfg.Feedback.MinimumTurns != 4 || cfg.Feedback.ShortInterview != 8 ||
		cfg.Feedback.MediumInterview != 15 || cfg.Feedback.LongInterview != 25 {
		t.Errorf("unexpected length thresholds: %+v", cfg.Feedback)
	}

	if cfg.Kafka.Enabled {
		t.Error("expected Kafka disabled by default")
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("expected no brokers by default, got %v", cfg.Kafka.Brokers)
	}

	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	os.Setenv("GRPC_PORT", "9999")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("TRANSCRIPT_FRESHNESS_WINDOW", "8s")
	os.Setenv("HEALTH_MAX_RECONNECT_ATTEMPTS", "7")
	os.Setenv("AUDIO_SPEAKING_THRESHOLD", "0.05")
	os.Setenv("KAFKA_ENABLED", "true")
	os.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	defer func() {
		os.Unsetenv("SERVICE_PRINCIPAL")
		os.Unsetenv("GRPC_PORT")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("TRANSCRIPT_FRESHNESS_WINDOW")
		os.Unsetenv("HEALTH_MAX_RECONNECT_ATTEMPTS")
		os.Unsetenv("AUDIO_SPEAKING_THRESHOLD")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" {
		t.Errorf("expected principal 'custom-principal', got %s", cfg.Service.Principal)
	}
	if cfg.Service.GRPCPort != "9999" {
		t.Errorf("expected port '9999', got %s", cfg.Service.GRPCPort)
	}
	if cfg.Transcript.FreshnessWindow != 8*time.Second {
		t.Errorf("expected freshness window 8s, got %v", cfg.Transcript.FreshnessWindow)
	}
	if cfg.Health.MaxReconnectAttempts != 7 {
		t.Errorf("expected 7 reconnect attempts, got %d", cfg.Health.MaxReconnectAttempts)
	}
	if cfg.Audio.SpeakingThreshold != 0.05 {
		t.Errorf("expected threshold 0.05, got %v", cfg.Audio.SpeakingThreshold)
	}
	if !cfg.Kafka.Enabled {
		t.Error("expected Kafka enabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("expected two trimmed brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	os.Setenv("TRANSCRIPT_MAX_IN_MEMORY", "not-a-number")
	os.Setenv("KAFKA_ENABLED", "invalid")
	os.Setenv("TRANSCRIPT_DEBOUNCE", "invalid")
	os.Setenv("AUDIO_SPEAKING_THRESHOLD", "loud")

	defer func() {
		os.Unsetenv("TRANSCRIPT_MAX_IN_MEMORY")
		os.Unsetenv("KAFKA_ENABLED")
		os.Unsetenv("TRANSCRIPT_DEBOUNCE")
		os.Unsetenv("AUDIO_SPEAKING_THRESHOLD")
	}()

	cfg := Load()

	if cfg.Transcript.MaxInMemory != 50 {
		t.Errorf("expected default max in memory on invalid input, got %d", cfg.Transcript.MaxInMemory)
	}
	if cfg.Kafka.Enabled {
		t.Error("expected default Kafka enabled=false on invalid input")
	}
	if cfg.Transcript.Debounce != 300*time.Millisecond {
		t.Errorf("expected default debounce on invalid input, got %v", cfg.Transcript.Debounce)
	}
	if cfg.Audio.SpeakingThreshold != 0.01 {
		t.Errorf("expected default threshold on invalid input, got %v", cfg.Audio.SpeakingThreshold)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	os.Setenv("SERVICE_PRINCIPAL", "my-service")
	os.Unsetenv("KAFKA_PRINCIPAL")

	defer os.Unsetenv("SERVICE_PRINCIPAL")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.envValue != "" {
				os.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}
			defer os.Unsetenv(key)

			got := envOrDefaultBool(key, tt.def)
			if got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	key := "TEST_LIST_VAR"
	os.Setenv(key, "a, ,b,")
	defer os.Unsetenv(key)

	got := envOrDefaultList(key, nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}
