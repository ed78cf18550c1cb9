package session

import (
	"context"
	"errors"

	"interview-session-service/internal/models"
	"interview-session-service/internal/service/transcript"
	"interview-session-service/internal/transport"
)

// Handler reacts to one kind of transport event.
type Handler func(ctx context.Context, ev transport.Event)

// Handlers maps event kinds to their handler. Kinds without a handler are
// ignored.
type Handlers map[transport.EventKind]Handler

// SwapHandlers atomically replaces the event handlers and returns the
// previous set.
func (c *Controller) SwapHandlers(h Handlers) Handlers {
	prev := c.handlers.Swap(&h)
	if prev == nil {
		return nil
	}
	return *prev
}

func (c *Controller) defaultHandlers() Handlers {
	return Handlers{
		transport.EventTrackSubscribed: c.onTrackSubscribed,
		transport.EventDataReceived:    c.onData,
		transport.EventAudioLevel:      c.onAudioLevel,
		transport.EventDisconnected:    c.onDisconnected,
		transport.EventReconnecting:    c.onReconnecting,
		transport.EventReconnected:     c.onReconnected,
		transport.EventNetworkRestored: c.onNetworkRestored,
		transport.EventQualityChanged:  c.onQualityChanged,
	}
}

// dispatch delivers transport events until the stream closes or ctx is done.
func (c *Controller) dispatch(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	events := c.deps.Transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev transport.Event) {
	hp := c.handlers.Load()
	if hp == nil {
		return
	}
	if h, ok := (*hp)[ev.Kind]; ok && h != nil {
		h(ctx, ev)
	}
}

func (c *Controller) onTrackSubscribed(_ context.Context, ev transport.Event) {
	c.logger.Info().Str("track", ev.Track).Msg("Subscribed to interviewer track")
}

func (c *Controller) onData(ctx context.Context, ev transport.Event) {
	frag, err := transcript.ParseDataMessage(ev.Payload, c.clock.Now())
	if err != nil {
		if errors.Is(err, transcript.ErrNotTranscript) {
			return
		}
		c.metrics.RecordParseError()
		c.logger.Warn().Err(err).Int("bytes", len(ev.Payload)).Msg("Dropping malformed data message")
		return
	}
	c.ingest(ctx, frag)
}

// ingest routes one fragment through speaking arbitration, side-task
// detection and the transcript.
func (c *Controller) ingest(ctx context.Context, f transcript.Fragment) transcript.Result {
	if f.Source != transcript.SourceSynthesized {
		c.arbiter.OnFragment(f.Speaker)
	}

	if f.Speaker == models.SpeakerAI {
		c.mu.Lock()
		det := c.detector
		c.mu.Unlock()
		if det != nil {
			res := det.Scan(f.Text)
			f.Text = res.Text
			if res.Triggered {
				c.logger.Info().
					Str("strategy", string(res.Strategy)).
					Str("itemId", res.Item.ID).
					Msg("Coding challenge scheduled")
			}
			if f.Text == "" {
				return transcript.Result{Outcome: transcript.OutcomeDiscarded, Reason: transcript.ReasonEmpty}
			}
		}
	}

	res := c.aggregator.Ingest(f)
	if res.Outcome == transcript.OutcomeDiscarded {
		return res
	}
	c.publishTranscript(ctx, f.Source, res.Entry)
	return res
}

func (c *Controller) publishTranscript(ctx context.Context, src transcript.Source, entry models.TranscriptEntry) {
	if c.deps.Events == nil {
		return
	}
	eventType := models.EventTranscriptPartial
	if entry.Complete {
		eventType = models.EventTranscriptFinal
	}
	err := c.deps.Events.PublishTranscript(ctx, models.TranscriptEvent{
		EventType: eventType,
		SessionID: c.SessionID(),
		EntryID:   entry.ID,
		Speaker:   entry.Speaker,
		Source:    src.String(),
		Text:      entry.Text,
		Complete:  entry.Complete,
		Timestamp: entry.Timestamp.UnixMilli(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("entryId", entry.ID).Msg("Failed to publish transcript event")
	}
}

func (c *Controller) onAudioLevel(_ context.Context, ev transport.Event) {
	c.arbiter.OnAudioLevel(ev.Level)
}

func (c *Controller) onDisconnected(ctx context.Context, ev transport.Event) {
	if c.intentional.Load() {
		c.logger.Debug().Str("reason", ev.Reason).Msg("Disconnected after end")
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.reconnecting.Store(false)
		c.reconnect(ctx, ev.Reason)
	}()
}

// onReconnecting reflects a reconnect the transport runs on its own.
func (c *Controller) onReconnecting(_ context.Context, _ transport.Event) {
	if c.reconnecting.Load() {
		return
	}
	_ = c.transitionFrom(StatusReconnecting, "transport reconnecting", StatusActive, StatusPaused)
}

func (c *Controller) onReconnected(_ context.Context, _ transport.Event) {
	if c.reconnecting.Load() {
		return
	}
	c.monitor.ResetReconnect()
	_ = c.transitionFrom(c.resumeStatus(), "transport reconnected", StatusReconnecting)
}

func (c *Controller) onNetworkRestored(_ context.Context, _ transport.Event) {
	c.monitor.NetworkRestored()
}

func (c *Controller) onQualityChanged(_ context.Context, ev transport.Event) {
	c.logger.Debug().Str("quality", ev.Quality).Msg("Transport reported quality change")
}

// transitionFrom is transition guarded by the expected current statuses.
func (c *Controller) transitionFrom(to Status, reason string, from ...Status) error {
	prev, err := c.machine.TransitionFrom(to, from...)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Status transition skipped")
		return err
	}
	c.announce(prev, to, reason)
	return nil
}

// resumeStatus is PAUSED while a side-task is open, ACTIVE otherwise.
func (c *Controller) resumeStatus() Status {
	c.mu.Lock()
	det := c.detector
	c.mu.Unlock()
	if det != nil {
		if _, ok := det.Active(); ok {
			return StatusPaused
		}
	}
	return StatusActive
}
