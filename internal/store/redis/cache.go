// Package redis caches the instant copy of a feedback report, the one produced
// right after a session ends and before the persisted copy is confirmed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"interview-session-service/internal/config"
	"interview-session-service/internal/models"
)

const keyPrefix = "interview:feedback:instant:"

// Cache stores instant feedback reports with a TTL.
type Cache struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

// New connects to the configured redis instance.
func New(cfg config.RedisConfig, ttl time.Duration) *Cache {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, ttl)
}

// NewWithClient wraps an existing client.
func NewWithClient(client goredis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key returns the cache key of a session's instant report.
func Key(sessionId string) string {
	return keyPrefix + sessionId
}

// Ping checks that redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Put stores the report, replacing any previous copy.
func (c *Cache) Put(ctx context.Context, sessionId string, report models.FeedbackReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, Key(sessionId), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache feedback %s: %w", sessionId, err)
	}
	return nil
}

// Get returns the cached report, or nil when there is none.
func (c *Cache) Get(ctx context.Context, sessionId string) (*models.FeedbackReport, error) {
	body, err := c.client.Get(ctx, Key(sessionId)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached feedback %s: %w", sessionId, err)
	}
	var report models.FeedbackReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode cached feedback %s: %w", sessionId, err)
	}
	report.Normalize()
	return &report, nil
}

// Delete drops the cached report.
func (c *Cache) Delete(ctx context.Context, sessionId string) error {
	return c.client.Del(ctx, Key(sessionId)).Err()
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
