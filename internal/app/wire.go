package app

import (
	"context"
	"fmt"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/config"
	"interview-session-service/internal/events"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/schema"
	"interview-session-service/internal/service/feedback"
	"interview-session-service/internal/service/feedback/gemini"
	"interview-session-service/internal/store/postgres"
	"interview-session-service/internal/store/redis"
)

// Backends are the external systems opened by Build. Nil fields are disabled.
type Backends struct {
	Postgres  *postgres.Store
	Redis     *redis.Cache
	Publisher *events.Publisher
}

// Close releases every opened backend.
func (b *Backends) Close() {
	if b.Publisher != nil {
		_ = b.Publisher.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
}

// NewCompleter returns the configured completion backend, or Unavailable when
// no API key is set.
func NewCompleter(ctx context.Context, cfg *config.Configuration) (feedback.Completer, error) {
	if cfg.Feedback.APIKey == "" {
		logger := logging.WithComponent("application")
		logger.Warn().Msg("GEMINI_API_KEY not set, feedback falls back for every assessable session")
		return feedback.Unavailable{}, nil
	}
	return gemini.New(ctx, gemini.Config{APIKey: cfg.Feedback.APIKey, Model: cfg.Feedback.Model})
}

// Build opens every enabled backend and assembles the application.
func Build(ctx context.Context, cfg *config.Configuration) (*Application, *Backends, error) {
	b := &Backends{}
	clk := clock.New()
	pipeline, err := newPipeline(ctx, cfg, clk)
	if err != nil {
		return nil, nil, err
	}

	b.Publisher = events.New(&events.Config{
		Brokers:       cfg.Kafka.Brokers,
		TopicPartial:  cfg.Kafka.TopicPartial,
		TopicFinal:    cfg.Kafka.TopicFinal,
		TopicStatus:   cfg.Kafka.TopicStatus,
		TopicFeedback: cfg.Kafka.TopicFeedback,
		Principal:     cfg.Kafka.Principal,
		Enabled:       cfg.Kafka.Enabled,
	})
	deps := Deps{Pipeline: pipeline, Events: b.Publisher, Clock: clk}

	if cfg.Postgres.Enabled {
		store, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			b.Close()
			return nil, nil, err
		}
		b.Postgres = store
		deps.Sessions = store
	}
	if cfg.Redis.Enabled {
		cache := redis.New(cfg.Redis, cfg.Feedback.InstantCacheTTL)
		if err := cache.Ping(ctx); err != nil {
			_ = cache.Close()
			b.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		b.Redis = cache
		deps.Instant = cache
	}

	return New(cfg, deps), b, nil
}

// BuildLocal assembles an application with the feedback pipeline only.
func BuildLocal(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	clk := clock.New()
	pipeline, err := newPipeline(ctx, cfg, clk)
	if err != nil {
		return nil, err
	}
	return New(cfg, Deps{Pipeline: pipeline, Clock: clk}), nil
}

func newPipeline(ctx context.Context, cfg *config.Configuration, clk clock.Clock) (*feedback.Pipeline, error) {
	completer, err := NewCompleter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("completion backend: %w", err)
	}
	validator, err := schema.New()
	if err != nil {
		return nil, err
	}
	return feedback.NewPipeline(feedback.ConfigFrom(cfg), completer, validator, clk), nil
}
