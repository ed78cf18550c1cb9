package session

import (
	"context"
	"errors"

	"github.com/sethvargo/go-retry"

	"interview-session-service/internal/models"
)

// ErrNoStore is returned by Complete when no store is configured.
var ErrNoStore = errors.New("no session store configured")

// CompletionRecord builds the record saved when the session finishes.
func (c *Controller) CompletionRecord(report models.FeedbackReport) models.CompletionRecord {
	c.mu.Lock()
	entries := c.final
	c.mu.Unlock()
	if entries == nil {
		entries = c.aggregator.Entries()
	}
	report.Normalize()
	return models.CompletionRecord{
		DurationMinutes: c.DurationMinutes(),
		Score:           report.AverageScore(),
		Transcript:      append([]models.TranscriptEntry{}, entries...),
		Feedback:        report,
	}
}

// Complete saves the completion record, retrying with exponential backoff.
func (c *Controller) Complete(ctx context.Context, report models.FeedbackReport) (models.CompletionRecord, error) {
	rec := c.CompletionRecord(report)
	if c.deps.Store == nil {
		return rec, ErrNoStore
	}

	attempts := c.cfg.SaveAttempts
	if attempts < 1 {
		attempts = 1
	}
	id := c.SessionID()
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(c.cfg.SaveRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.deps.Store.Complete(ctx, id, rec); err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Failed to save completed session")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Error().Err(err).Int("attempts", attempt).Msg("Giving up saving completed session")
		return rec, err
	}
	c.logger.Info().
		Int("durationMinutes", rec.DurationMinutes).
		Int("score", rec.Score).
		Int("entries", len(rec.Transcript)).
		Msg("Session saved")
	return rec, nil
}
