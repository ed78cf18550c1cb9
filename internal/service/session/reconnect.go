package session

import (
	"context"
	"errors"
	"time"

	"interview-session-service/internal/service/health"
)

// reconnect recovers an unexpected drop with exponential backoff. Each failed
// attempt passes through DISCONNECTED; running out of attempts ends in ERROR.
func (c *Controller) reconnect(ctx context.Context, reason string) {
	c.logger.Warn().Str("reason", reason).Msg("Connection lost, reconnecting")
	if err := c.transitionFrom(StatusReconnecting, reason, StatusActive, StatusPaused); err != nil {
		return
	}
	c.monitor.Stop()

	for {
		delay, attempt, err := c.monitor.NextReconnectDelay()
		if err != nil {
			if errors.Is(err, health.ErrReconnectExhausted) {
				c.logger.Error().Int("attempts", attempt).Msg("Reconnect attempts exhausted")
				_ = c.fail(&TransportError{Phase: PhaseDrop, Err: err})
			}
			return
		}
		if c.Status() == StatusDisconnected {
			if err := c.transitionFrom(StatusReconnecting, "retry", StatusDisconnected); err != nil {
				return
			}
		}

		c.logger.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Waiting before reconnect")
		if !c.sleep(ctx, delay) || c.intentional.Load() {
			return
		}

		if err := c.redial(ctx); err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Reconnect attempt failed")
			if c.transitionFrom(StatusDisconnected, err.Error(), StatusReconnecting) != nil {
				return
			}
			continue
		}

		c.monitor.ResetReconnect()
		if c.transitionFrom(c.resumeStatus(), "reconnected", StatusReconnecting) != nil {
			return
		}
		c.monitor.Start(ctx)
		c.logger.Info().Int("attempt", attempt).Msg("Reconnected")
		return
	}
}

// redial fetches a fresh credential and connects with the adaptive
// parameters for the last measured tier.
func (c *Controller) redial(ctx context.Context) error {
	cred, err := c.deps.Credentials.Fetch(ctx, c.SessionID())
	if err != nil {
		return &TransportError{Phase: PhaseCredential, Err: err}
	}
	c.applyParams()
	if err := c.deps.Transport.Connect(ctx, c.cfg.TransportURL, cred); err != nil {
		return &TransportError{Phase: PhaseConnect, Err: err}
	}
	if c.Status() == StatusReconnecting && c.resumeStatus() == StatusPaused {
		c.deps.Transport.SetCaptureEnabled(false)
	}
	return nil
}

// sleep waits d on the controller clock. It reports false when ctx ends first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	fired := make(chan struct{})
	t := c.clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}
