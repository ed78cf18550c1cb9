package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// envelopeFrom wraps a consumed message. The kind comes from the eventType
// header, the session from the payload.
func envelopeFrom(msg kafka.Message) (Envelope, error) {
	var head struct {
		SessionID string `json:"sessionId"`
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(msg.Value, &head); err != nil {
		return Envelope{}, err
	}
	kind := head.EventType
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			kind = string(h.Value)
		}
	}
	return Envelope{Topic: msg.Topic, Kind: kind, SessionID: head.SessionID, Event: msg.Value}, nil
}

func consumeKafka(ctx context.Context, hub *Hub, brokers []string, topic string, since time.Duration) {
	logger := log.With().Str("topic", topic).Logger()

	// Partition reader without consumer group (works better through port-forward)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		logger.Warn().Err(err).Msg("Failed to rewind, reading from the current offset")
	}
	logger.Info().Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		env, err := envelopeFrom(msg)
		if err != nil {
			logger.Warn().Err(err).Msg("Skipping malformed event")
			continue
		}
		logger.Debug().Str("kind", env.Kind).Str("session", env.SessionID).Msg("Received event")
		hub.Publish(env)
	}
}
