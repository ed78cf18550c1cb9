// Package events publishes session, transcript and feedback events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/metrics"
)

// Kind selects the topic an event is written to.
type Kind string

const (
	KindPartial  Kind = "partial"
	KindFinal    Kind = "final"
	KindStatus   Kind = "status"
	KindFeedback Kind = "feedback"
)

// Publisher writes events to one Kafka topic per kind. When Kafka is disabled
// it runs in log-only mode.
type Publisher struct {
	writers   map[Kind]*kafka.Writer
	topics    map[Kind]string
	principal string
	enabled   bool
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicPartial  string
	TopicFinal    string
	TopicStatus   string
	TopicFeedback string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka event publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			topics:  map[Kind]string{},
			enabled: false,
			metrics: m,
		}
	}

	topics := map[Kind]string{
		KindPartial:  cfg.TopicPartial,
		KindFinal:    cfg.TopicFinal,
		KindStatus:   cfg.TopicStatus,
		KindFeedback: cfg.TopicFeedback,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			topics:    topics,
			principal: cfg.Principal,
			enabled:   false,
			metrics:   m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writers := make(map[Kind]*kafka.Writer, len(topics))
	for kind, topic := range topics {
		if topic == "" {
			continue
		}
		writers[kind] = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicPartial", cfg.TopicPartial).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicStatus", cfg.TopicStatus).
		Str("topicFeedback", cfg.TopicFeedback).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writers:   writers,
		topics:    topics,
		principal: cfg.Principal,
		enabled:   true,
		metrics:   m,
	}
}

// PublishTranscript publishes a transcript update to the partial or final
// topic depending on its completeness. Events are keyed by session so that
// a session's updates stay ordered within a partition.
func (p *Publisher) PublishTranscript(ctx context.Context, ev models.TranscriptEvent) error {
	kind := KindPartial
	if ev.Complete {
		kind = KindFinal
	}
	return p.publish(ctx, kind, ev.SessionID, ev)
}

// PublishStatus publishes a session status change.
func (p *Publisher) PublishStatus(ctx context.Context, ev models.StatusEvent) error {
	return p.publish(ctx, KindStatus, ev.SessionID, ev)
}

// PublishFeedback publishes a produced feedback report.
func (p *Publisher) PublishFeedback(ctx context.Context, ev models.FeedbackEvent) error {
	return p.publish(ctx, KindFeedback, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, kind Kind, key string, event any) error {
	start := time.Now()
	topic := p.topics[kind]

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	writer := p.writers[kind]
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, string(kind), nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(kind)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, string(kind), err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, string(kind), nil, time.Since(start).Seconds())
	return nil
}

// Close closes every Kafka writer.
func (p *Publisher) Close() error {
	var err error
	for kind, w := range p.writers {
		if e := w.Close(); e != nil {
			log.Error().Err(e).Str("kind", string(kind)).Msg("Error closing Kafka writer")
			err = e
		}
	}
	return err
}
