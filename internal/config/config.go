// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Session       SessionConfig
	Audio         AudioConfig
	Transcript    TranscriptConfig
	Challenge     ChallengeConfig
	Health        HealthConfig
	Feedback      FeedbackConfig
	STT           STTConfig
	Kafka         KafkaConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal   string
	GRPCPort    string
	HTTPPort    string
	Environment string
}

type SessionConfig struct {
	TransportURL         string
	CredentialURL        string
	CredentialFreshness  time.Duration
	CredentialAttempts   int
	CredentialRetryDelay time.Duration
	Greeting             string
	MessageInterval      time.Duration
	SaveAttempts         int
	SaveRetryDelay       time.Duration
}

type AudioConfig struct {
	SpeakingThreshold float64
	AgentHysteresis   time.Duration
	CandidateDecay    time.Duration
}

type TranscriptConfig struct {
	FreshnessWindow time.Duration
	Debounce        time.Duration
	MaxInMemory     int
}

type ChallengeConfig struct {
	Marker               string
	MarkerSettle         time.Duration
	KeywordSettle        time.Duration
	SuppressWhilePending bool
	SideTaskFile         string
}

type HealthConfig struct {
	ProbeInterval        time.Duration
	GoodLatency          time.Duration
	PoorLatency          time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
}

type FeedbackConfig struct {
	APIKey          string
	Model           string
	Temperature     float64
	TopP            float64
	TopK            float64
	MaxOutputTokens int
	SoftTimeout     time.Duration
	MinimumTurns    int
	ShortInterview  int
	MediumInterview int
	LongInterview   int
	InstantCacheTTL time.Duration
}

type STTConfig struct {
	Provider       string
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

type KafkaConfig struct {
	Principal     string
	Enabled       bool
	Brokers       []string
	TopicPartial  string
	TopicFinal    string
	TopicStatus   string
	TopicFeedback string
}

type PostgresConfig struct {
	Enabled bool
	DSN     string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads configuration from the environment. Values that fail to parse
// fall back to their defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-interview-session")

	return &Configuration{
		Service: ServiceConfig{
			Principal:   principal,
			GRPCPort:    envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			Environment: envOrDefault("ENV", "prod"),
		},
		Session: SessionConfig{
			TransportURL:         envOrDefault("SESSION_TRANSPORT_URL", "ws://localhost:7880/session"),
			CredentialURL:        envOrDefault("SESSION_CREDENTIAL_URL", "http://localhost:3000/api/livekit_token"),
			CredentialFreshness:  envOrDefaultDuration("SESSION_CREDENTIAL_FRESHNESS", 5*time.Minute),
			CredentialAttempts:   envOrDefaultInt("SESSION_CREDENTIAL_ATTEMPTS", 3),
			CredentialRetryDelay: envOrDefaultDuration("SESSION_CREDENTIAL_RETRY_DELAY", 500*time.Millisecond),
			Greeting:             envOrDefault("SESSION_GREETING", "Hello, please introduce yourself and start the interview."),
			MessageInterval:      envOrDefaultDuration("SESSION_MESSAGE_INTERVAL", 100*time.Millisecond),
			SaveAttempts:         envOrDefaultInt("SESSION_SAVE_ATTEMPTS", 3),
			SaveRetryDelay:       envOrDefaultDuration("SESSION_SAVE_RETRY_DELAY", time.Second),
		},
		Audio: AudioConfig{
			SpeakingThreshold: envOrDefaultFloat("AUDIO_SPEAKING_THRESHOLD", 0.01),
			AgentHysteresis:   envOrDefaultDuration("AUDIO_AGENT_HYSTERESIS", 300*time.Millisecond),
			CandidateDecay:    envOrDefaultDuration("AUDIO_CANDIDATE_DECAY", 2*time.Second),
		},
		Transcript: TranscriptConfig{
			FreshnessWindow: envOrDefaultDuration("TRANSCRIPT_FRESHNESS_WINDOW", 5*time.Second),
			Debounce:        envOrDefaultDuration("TRANSCRIPT_DEBOUNCE", 300*time.Millisecond),
			MaxInMemory:     envOrDefaultInt("TRANSCRIPT_MAX_IN_MEMORY", 50),
		},
		Challenge: ChallengeConfig{
			Marker:               envOrDefault("CHALLENGE_MARKER", "[CODING_CHALLENGE]"),
			MarkerSettle:         envOrDefaultDuration("CHALLENGE_MARKER_SETTLE", 2*time.Second),
			KeywordSettle:        envOrDefaultDuration("CHALLENGE_KEYWORD_SETTLE", 3*time.Second),
			SuppressWhilePending: envOrDefaultBool("CHALLENGE_SUPPRESS_WHILE_PENDING", false),
			SideTaskFile:         envOrDefault("CHALLENGE_SIDE_TASK_FILE", ""),
		},
		Health: HealthConfig{
			ProbeInterval:        envOrDefaultDuration("HEALTH_PROBE_INTERVAL", 5*time.Second),
			GoodLatency:          envOrDefaultDuration("HEALTH_GOOD_LATENCY", 200*time.Millisecond),
			PoorLatency:          envOrDefaultDuration("HEALTH_POOR_LATENCY", 500*time.Millisecond),
			ReconnectBaseDelay:   envOrDefaultDuration("HEALTH_RECONNECT_BASE_DELAY", time.Second),
			MaxReconnectAttempts: envOrDefaultInt("HEALTH_MAX_RECONNECT_ATTEMPTS", 5),
		},
		Feedback: FeedbackConfig{
			APIKey:          envOrDefault("GEMINI_API_KEY", ""),
			Model:           envOrDefault("FEEDBACK_MODEL", "gemini-2.5-flash"),
			Temperature:     envOrDefaultFloat("FEEDBACK_TEMPERATURE", 0.9),
			TopP:            envOrDefaultFloat("FEEDBACK_TOP_P", 0.95),
			TopK:            envOrDefaultFloat("FEEDBACK_TOP_K", 35),
			MaxOutputTokens: envOrDefaultInt("FEEDBACK_MAX_OUTPUT_TOKENS", 2048),
			SoftTimeout:     envOrDefaultDuration("FEEDBACK_SOFT_TIMEOUT", 60*time.Second),
			MinimumTurns:    envOrDefaultInt("FEEDBACK_MINIMUM_TURNS", 4),
			ShortInterview:  envOrDefaultInt("FEEDBACK_SHORT_INTERVIEW", 8),
			MediumInterview: envOrDefaultInt("FEEDBACK_MEDIUM_INTERVIEW", 15),
			LongInterview:   envOrDefaultInt("FEEDBACK_LONG_INTERVIEW", 25),
			InstantCacheTTL: envOrDefaultDuration("FEEDBACK_INSTANT_CACHE_TTL", 24*time.Hour),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
		},
		Kafka: KafkaConfig{
			Principal:     envOrDefault("KAFKA_PRINCIPAL", principal),
			Enabled:       envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:       envOrDefaultList("KAFKA_BROKERS", nil),
			TopicPartial:  envOrDefault("KAFKA_TOPIC_PARTIAL", "interview.transcript.partial"),
			TopicFinal:    envOrDefault("KAFKA_TOPIC_FINAL", "interview.transcript.final"),
			TopicStatus:   envOrDefault("KAFKA_TOPIC_STATUS", "interview.session.status"),
			TopicFeedback: envOrDefault("KAFKA_TOPIC_FEEDBACK", "interview.feedback.ready"),
		},
		Postgres: PostgresConfig{
			Enabled: envOrDefaultBool("POSTGRES_ENABLED", false),
			DSN:     envOrDefault("POSTGRES_DSN", "postgres://localhost:5432/interviews?sslmode=disable"),
		},
		Redis: RedisConfig{
			Enabled:  envOrDefaultBool("REDIS_ENABLED", false),
			Addr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: envOrDefault("REDIS_PASSWORD", ""),
			DB:       envOrDefaultInt("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
