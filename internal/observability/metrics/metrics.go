// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interview_session"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal     prometheus.Counter
	SessionsActive    prometheus.Gauge
	SessionsFailed    *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
	StatusTransitions *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter

	// Transcript metrics
	TranscriptEntries  *prometheus.CounterVec
	FragmentsDiscarded *prometheus.CounterVec
	DataParseErrors    prometheus.Counter

	// Side-task metrics
	ChallengesTriggered *prometheus.CounterVec
	ChallengesFinished  *prometheus.CounterVec

	// Connection health metrics
	ProbeLatency       prometheus.Histogram
	QualityTierChanges *prometheus.CounterVec

	// Feedback metrics
	FeedbackGenerated *prometheus.CounterVec
	FeedbackLatency   prometheus.Histogram
	FeedbackQuality   prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// RPC metrics
	RPCTotal *prometheus.CounterVec

	// Local recognizer metrics
	STTErrors *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of live sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live sessions currently running",
		}),
		SessionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that ended in error",
		}, []string{"reason"}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of live sessions in seconds",
			Buckets:   []float64{30, 60, 300, 600, 900, 1800, 2700, 3600},
		}),
		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Total number of session status transitions",
		}, []string{"from", "to"}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total number of transport reconnect attempts",
		}),

		TranscriptEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Total number of transcript entries opened",
		}, []string{"speaker"}),
		FragmentsDiscarded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_discarded_total",
			Help:      "Total number of transcript fragments discarded",
		}, []string{"reason"}),
		DataParseErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_parse_errors_total",
			Help:      "Total number of malformed inbound data messages",
		}),

		ChallengesTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_triggered_total",
			Help:      "Total number of coding challenges triggered",
		}, []string{"strategy"}),
		ChallengesFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_finished_total",
			Help:      "Total number of coding challenges submitted or skipped",
		}, []string{"outcome"}),

		ProbeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Transport round trip latency measured by health probes",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2},
		}),
		QualityTierChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quality_tier_changes_total",
			Help:      "Total number of connection quality tier changes",
		}, []string{"tier"}),

		FeedbackGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_generated_total",
			Help:      "Total number of feedback reports produced",
		}, []string{"category", "outcome"}),
		FeedbackLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_latency_seconds",
			Help:      "Feedback generation latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		FeedbackQuality: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feedback_quality_score",
			Help:      "Heuristic quality score of validated feedback",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "Total number of gRPC calls served",
		}, []string{"method", "code"}),

		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of local recognizer errors",
		}, []string{"provider"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a session that reached the error state.
func (m *Metrics) RecordSessionFailed(reason string) {
	m.SessionsFailed.WithLabelValues(reason).Inc()
}

// RecordTransition records a status transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}

// RecordReconnectAttempt records a reconnect attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordEntryOpened records a new transcript entry.
func (m *Metrics) RecordEntryOpened(speaker string) {
	m.TranscriptEntries.WithLabelValues(speaker).Inc()
}

// RecordFragmentDiscarded records a dropped fragment.
func (m *Metrics) RecordFragmentDiscarded(reason string) {
	m.FragmentsDiscarded.WithLabelValues(reason).Inc()
}

// RecordParseError records a malformed data message.
func (m *Metrics) RecordParseError() {
	m.DataParseErrors.Inc()
}

// RecordChallengeTriggered records a detected coding challenge.
func (m *Metrics) RecordChallengeTriggered(strategy string) {
	m.ChallengesTriggered.WithLabelValues(strategy).Inc()
}

// RecordChallengeFinished records a submitted or skipped challenge.
func (m *Metrics) RecordChallengeFinished(outcome string) {
	m.ChallengesFinished.WithLabelValues(outcome).Inc()
}

// RecordProbe records a health probe latency.
func (m *Metrics) RecordProbe(latencySeconds float64) {
	m.ProbeLatency.Observe(latencySeconds)
}

// RecordTierChange records a quality tier change.
func (m *Metrics) RecordTierChange(tier string) {
	m.QualityTierChanges.WithLabelValues(tier).Inc()
}

// RecordFeedback records a produced feedback report.
func (m *Metrics) RecordFeedback(category, outcome string, latencySeconds float64) {
	m.FeedbackGenerated.WithLabelValues(category, outcome).Inc()
	m.FeedbackLatency.Observe(latencySeconds)
}

// RecordFeedbackQuality records the heuristic quality of a validated report.
func (m *Metrics) RecordFeedbackQuality(score int) {
	m.FeedbackQuality.Observe(float64(score))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPC records a served gRPC call.
func (m *Metrics) RecordRPC(method, code string) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
}

// RecordSTTError records a local recognizer error.
func (m *Metrics) RecordSTTError(provider string) {
	m.STTErrors.WithLabelValues(provider).Inc()
}
