// Package session runs one live mock interview: it connects to the
// interviewer over the media transport, routes inbound events to the audio,
// transcript and side-task components, and drives the status lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/config"
	"interview-session-service/internal/media"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
	"interview-session-service/internal/service/audio"
	"interview-session-service/internal/service/challenge"
	"interview-session-service/internal/service/health"
	"interview-session-service/internal/service/stt"
	"interview-session-service/internal/service/transcript"
	"interview-session-service/internal/transport"
)

// Config holds controller settings.
type Config struct {
	TransportURL    string
	Greeting        string
	MessageInterval time.Duration
	SaveAttempts    int
	SaveRetryDelay  time.Duration
	Audio           audio.Config
	Transcript      transcript.Config
	Challenge       challenge.Config
	Health          health.Config
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Greeting:        "Hello, please introduce yourself and start the interview.",
		MessageInterval: 100 * time.Millisecond,
		SaveAttempts:    3,
		SaveRetryDelay:  time.Second,
		Audio:           audio.DefaultConfig(),
		Transcript:      transcript.DefaultConfig(),
		Challenge:       challenge.DefaultConfig(),
		Health:          health.DefaultConfig(),
	}
}

// ConfigFrom maps service configuration onto controller settings.
func ConfigFrom(cfg *config.Configuration) Config {
	return Config{
		TransportURL:    cfg.Session.TransportURL,
		Greeting:        cfg.Session.Greeting,
		MessageInterval: cfg.Session.MessageInterval,
		SaveAttempts:    cfg.Session.SaveAttempts,
		SaveRetryDelay:  cfg.Session.SaveRetryDelay,
		Audio: audio.Config{
			Threshold:      cfg.Audio.SpeakingThreshold,
			Hysteresis:     cfg.Audio.AgentHysteresis,
			CandidateDecay: cfg.Audio.CandidateDecay,
		},
		Transcript: transcript.Config{
			FreshnessWindow: cfg.Transcript.FreshnessWindow,
			Debounce:        cfg.Transcript.Debounce,
			MaxInMemory:     cfg.Transcript.MaxInMemory,
		},
		Challenge: challenge.Config{
			Marker:               cfg.Challenge.Marker,
			MarkerSettle:         cfg.Challenge.MarkerSettle,
			KeywordSettle:        cfg.Challenge.KeywordSettle,
			Keywords:             challenge.DefaultKeywords,
			SuppressWhilePending: cfg.Challenge.SuppressWhilePending,
		},
		Health: health.Config{
			ProbeInterval:        cfg.Health.ProbeInterval,
			GoodLatency:          cfg.Health.GoodLatency,
			PoorLatency:          cfg.Health.PoorLatency,
			ReconnectBaseDelay:   cfg.Health.ReconnectBaseDelay,
			MaxReconnectAttempts: cfg.Health.MaxReconnectAttempts,
		},
	}
}

// EventSink receives published session events.
type EventSink interface {
	PublishStatus(ctx context.Context, ev models.StatusEvent) error
	PublishTranscript(ctx context.Context, ev models.TranscriptEvent) error
}

// Store persists session records.
type Store interface {
	Get(ctx context.Context, id string) (models.SessionRecord, error)
	Update(ctx context.Context, id string, fields map[string]any) error
	Complete(ctx context.Context, id string, rec models.CompletionRecord) error
}

// Deps are the collaborators of a controller. Transport, Microphone and
// Credentials are required.
type Deps struct {
	Transport   transport.Transport
	Microphone  media.Microphone
	Camera      media.Device
	Credentials CredentialSource
	Recognizer  stt.Adapter
	Events      EventSink
	Store       Store
	Clock       clock.Clock
	// OnTranscript observes the debounced transcript.
	OnTranscript transcript.Observer
	// OnChallenge is told when a coding side-task opens.
	OnChallenge func(models.SideTaskItem)
}

// StatusChange is delivered on status streams.
type StatusChange struct {
	From   Status
	To     Status
	Reason string
	At     time.Time
}

const statusBuffer = 32

// Controller owns one session. Create with New, then Start once.
type Controller struct {
	cfg     Config
	deps    Deps
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics
	machine *Machine

	arbiter    *audio.Arbiter
	aggregator *transcript.Aggregator
	monitor    *health.Monitor

	mu          sync.Mutex
	sessionCfg  models.SessionConfig
	detector    *challenge.Detector
	startedAt   time.Time
	endedAt     time.Time
	outbox      *outbox
	cancel      context.CancelFunc
	dispatched  chan struct{}
	submissions []models.CodingSubmission
	final       []models.TranscriptEntry
	lastErr     error

	subMu       sync.Mutex
	subscribers []chan StatusChange

	handlers     atomic.Pointer[Handlers]
	intentional  atomic.Bool
	reconnecting atomic.Bool
	endOnce      sync.Once
}

// New creates a controller for the session with the given id.
func New(sessionId string, cfg Config, deps Deps) *Controller {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		clock:   clk,
		logger:  logging.WithSessionComponent(sessionId, "session"),
		metrics: metrics.DefaultMetrics,
		machine: NewMachine(),
	}
	c.sessionCfg.SessionID = sessionId

	c.arbiter = audio.NewArbiter(sessionId, cfg.Audio, clk, c.onSpeaking)
	c.aggregator = transcript.NewAggregator(sessionId, cfg.Transcript, clk, deps.OnTranscript)
	c.monitor = health.NewMonitor(sessionId, cfg.Health, clk, deps.Transport)
	c.monitor.OnTierChange(func(s health.Snapshot) {
		c.logger.Info().
			Str("tier", string(s.Tier)).
			Int("sampleRateHz", s.Params.SampleRateHz).
			Msg("Adaptive parameters will apply on next connect")
	})
	h := c.defaultHandlers()
	c.handlers.Store(&h)
	return c
}

// SessionID returns the session identifier.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionCfg.SessionID
}

// Status returns the current status.
func (c *Controller) Status() Status {
	return c.machine.Status()
}

// Health returns the connection health snapshot.
func (c *Controller) Health() health.Snapshot {
	return c.monitor.Snapshot()
}

// Speaking returns the current speaking flags.
func (c *Controller) Speaking() audio.State {
	return c.arbiter.State()
}

// Transcript returns the transcript so far.
func (c *Controller) Transcript() []models.TranscriptEntry {
	return c.aggregator.Entries()
}

// Submissions returns recorded coding side-task outcomes.
func (c *Controller) Submissions() []models.CodingSubmission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CodingSubmission(nil), c.submissions...)
}

// Err returns the error that moved the session to ERROR, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe returns a new status stream. Slow subscribers lose events rather
// than block the controller. Streams close when the session terminates.
func (c *Controller) Subscribe() <-chan StatusChange {
	ch := make(chan StatusChange, statusBuffer)
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.machine.Status().IsTerminal() {
		close(ch)
		return ch
	}
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Start connects the session and returns its status stream. On failure the
// session is in ERROR and the returned error is a *media.PermissionError or
// a *TransportError.
func (c *Controller) Start(ctx context.Context, sc models.SessionConfig) (<-chan StatusChange, error) {
	if c.Status() != StatusIdle {
		return nil, ErrAlreadyStarted
	}
	stream := c.Subscribe()

	c.mu.Lock()
	if sc.SessionID == "" {
		sc.SessionID = c.sessionCfg.SessionID
	}
	c.sessionCfg = sc
	c.detector = challenge.NewDetector(sc.SessionID, c.cfg.Challenge, c.clock, sc.SideTasks, c.activateChallenge)
	c.mu.Unlock()

	if err := c.transition(StatusInitializing, ""); err != nil {
		return nil, err
	}
	c.metrics.RecordSessionStart()
	c.checkExisting(ctx, sc.SessionID)

	var (
		micTrack transport.Track
		cred     transport.Credential
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		track, err := c.deps.Microphone.Acquire(gctx)
		if err != nil {
			return err
		}
		micTrack = track
		return nil
	})
	g.Go(func() error {
		cr, err := c.deps.Credentials.Fetch(gctx, sc.SessionID)
		if err != nil {
			return &TransportError{Phase: PhaseCredential, Err: err}
		}
		cred = cr
		return nil
	})
	if err := g.Wait(); err != nil {
		if micTrack.Frames != nil {
			_ = c.deps.Microphone.Release()
		}
		return nil, c.fail(err)
	}

	if err := c.transition(StatusConnecting, ""); err != nil {
		return nil, err
	}
	c.applyParams()
	if err := c.deps.Transport.Connect(ctx, c.cfg.TransportURL, cred); err != nil {
		_ = c.deps.Microphone.Release()
		return nil, c.fail(&TransportError{Phase: PhaseConnect, Err: err})
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.dispatched = make(chan struct{})
	c.outbox = newOutbox(c.cfg.MessageInterval, 64, c.deps.Transport.SendData, c.logger)
	ob, done := c.outbox, c.dispatched
	c.mu.Unlock()
	go ob.run(runCtx)
	go c.dispatch(runCtx, done)

	if err := c.transition(StatusPublishing, ""); err != nil {
		return nil, err
	}
	if err := c.publish(runCtx, micTrack, sc.VideoEnabled); err != nil {
		c.stopRun()
		_ = c.deps.Microphone.Release()
		return nil, c.fail(&TransportError{Phase: PhasePublish, Err: err})
	}

	c.mu.Lock()
	c.startedAt = c.clock.Now()
	c.mu.Unlock()

	if err := c.transition(StatusActive, ""); err != nil {
		return nil, err
	}
	c.monitor.Start(runCtx)
	c.markInProgress(ctx, sc.SessionID)
	if err := c.SendText(c.cfg.Greeting); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue greeting")
	}
	return stream, nil
}

// markInProgress records that the interview is live. Failures are logged only.
func (c *Controller) markInProgress(ctx context.Context, id string) {
	if c.deps.Store == nil {
		return
	}
	fields := map[string]any{"status": "in_progress", "startedAt": c.clock.Now()}
	if err := c.deps.Store.Update(ctx, id, fields); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to mark session in progress")
	}
}

// checkExisting warns when the session was already completed.
func (c *Controller) checkExisting(ctx context.Context, id string) {
	if c.deps.Store == nil {
		return
	}
	rec, err := c.deps.Store.Get(ctx, id)
	if err != nil {
		c.logger.Debug().Err(err).Msg("No stored session record")
		return
	}
	if rec.Status == "completed" {
		c.logger.Warn().Str("status", rec.Status).Msg("Session already completed, starting again")
	}
}

// publish attaches the microphone, teeing frames into the local recognizer, and
// the camera when video is enabled.
func (c *Controller) publish(ctx context.Context, mic transport.Track, video bool) error {
	if c.deps.Recognizer != nil {
		if err := c.deps.Recognizer.Start(ctx, &recognizerBridge{c: c}); err != nil {
			c.logger.Warn().Err(err).Msg("Local recognizer unavailable, relying on remote transcription")
		} else {
			mic = c.tee(ctx, mic)
		}
	}
	if err := c.deps.Transport.Publish(ctx, mic); err != nil {
		return err
	}
	if video && c.deps.Camera != nil {
		cam, err := c.deps.Camera.Acquire(ctx)
		if err != nil {
			return err
		}
		if err := c.deps.Transport.Publish(ctx, cam); err != nil {
			return err
		}
	}
	return nil
}

// tee forwards microphone frames to the transport and, while capture is
// enabled, to the local recognizer.
func (c *Controller) tee(ctx context.Context, in transport.Track) transport.Track {
	src := in.Frames
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for frame := range src {
			if c.Status() != StatusPaused {
				if err := c.deps.Recognizer.SendAudio(ctx, frame); err != nil {
					c.logger.Debug().Err(err).Msg("Recognizer rejected frame")
				}
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	in.Frames = out
	return in
}

// applyParams hands the current adaptive parameter set to transports that
// accept one.
func (c *Controller) applyParams() {
	setter, ok := c.deps.Transport.(transport.ParamsSetter)
	if !ok {
		return
	}
	p := c.monitor.Adaptive()
	setter.SetMediaParams(transport.MediaParams{
		SampleRateHz:    p.SampleRateHz,
		BitrateKbps:     p.BitrateKbps,
		MaxOutputTokens: p.MaxOutputTokens,
	})
}

// SendText queues a text message to the interviewer.
func (c *Controller) SendText(text string) error {
	c.mu.Lock()
	ob := c.outbox
	c.mu.Unlock()
	if ob == nil {
		return ErrNotLive
	}
	payload, err := transcript.EncodeDataMessage(models.SpeakerUser, text, true, c.clock.Now())
	if err != nil {
		return err
	}
	return ob.enqueue(payload)
}

// transition moves to the target status, then notifies subscribers and
// publishes the change.
func (c *Controller) transition(to Status, reason string) error {
	from, err := c.machine.Transition(to)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Status transition rejected")
		return err
	}
	c.announce(from, to, reason)
	return nil
}

func (c *Controller) announce(from, to Status, reason string) {
	now := c.clock.Now()
	change := StatusChange{From: from, To: to, Reason: reason, At: now}

	c.metrics.RecordTransition(from.String(), to.String())
	ev := c.logger.Info().Str("from", from.String()).Str("status", to.String())
	if reason != "" {
		ev = ev.Str("reason", reason)
	}
	ev.Msg("Session status changed")

	c.subMu.Lock()
	for _, ch := range c.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
	if to.IsTerminal() {
		for _, ch := range c.subscribers {
			close(ch)
		}
		c.subscribers = nil
	}
	c.subMu.Unlock()

	if c.deps.Events != nil {
		err := c.deps.Events.PublishStatus(context.Background(), models.StatusEvent{
			EventType: models.EventSessionStatus,
			SessionID: c.SessionID(),
			From:      from.String(),
			To:        to.String(),
			Reason:    reason,
			Timestamp: now.UnixMilli(),
		})
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish status event")
		}
	}
}

// fail records err and moves to ERROR.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()

	reason := err.Error()
	var perr *media.PermissionError
	var terr *TransportError
	switch {
	case errors.Is(err, health.ErrReconnectExhausted):
		reason = health.ExhaustedMessage
		c.metrics.RecordSessionFailed("reconnect_exhausted")
	case errors.As(err, &perr):
		c.metrics.RecordSessionFailed("permission_" + string(perr.Kind))
	case errors.As(err, &terr):
		c.metrics.RecordSessionFailed(string(terr.Phase))
	default:
		c.metrics.RecordSessionFailed("other")
	}
	if terr := c.transition(StatusError, reason); terr != nil {
		return fmt.Errorf("%w (status: %v)", err, terr)
	}
	return err
}

// Retry returns a failed session to IDLE so Start can be called again.
func (c *Controller) Retry() error {
	if _, err := c.machine.TransitionFrom(StatusIdle, StatusError); err != nil {
		return err
	}
	c.announce(StatusError, StatusIdle, "retry")
	c.monitor.ResetReconnect()
	return nil
}

// onSpeaking mutes local rendering while the interviewer talks.
func (c *Controller) onSpeaking(s audio.State) {
	c.deps.Microphone.SetPlayback(!s.Suppressed)
}

// End stops the session and returns the finalized transcript. A deliberate
// end is never reported as a failure. Idempotent.
func (c *Controller) End(ctx context.Context) ([]models.TranscriptEntry, error) {
	c.endOnce.Do(func() {
		c.intentional.Store(true)
		c.monitor.Stop()

		c.mu.Lock()
		c.endedAt = c.clock.Now()
		started := c.startedAt
		c.mu.Unlock()

		c.stopRun()
		if c.deps.Recognizer != nil {
			_ = c.deps.Recognizer.Close()
		}
		if err := c.deps.Transport.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Transport close failed")
		}
		_ = c.deps.Microphone.Release()
		if c.deps.Camera != nil {
			_ = c.deps.Camera.Release()
		}
		c.arbiter.Reset()

		_ = c.transition(StatusTerminated, "ended")
		final := c.aggregator.Finalize()

		c.mu.Lock()
		c.final = final
		c.mu.Unlock()

		if !started.IsZero() {
			c.metrics.RecordSessionEnd(c.endedAt.Sub(started).Seconds())
		}
		c.logger.Info().
			Int("entries", len(final)).
			Int("durationMinutes", c.DurationMinutes()).
			Msg("Session ended")
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.TranscriptEntry(nil), c.final...), nil
}

// stopRun drains the outbox and stops event dispatch.
func (c *Controller) stopRun() {
	c.mu.Lock()
	ob, cancel, dispatched := c.outbox, c.cancel, c.dispatched
	c.outbox, c.cancel, c.dispatched = nil, nil, nil
	c.mu.Unlock()

	if ob != nil {
		ob.close()
	}
	if cancel != nil {
		cancel()
		<-dispatched
	}
}

// DurationMinutes is the active time rounded up to whole minutes.
func (c *Controller) DurationMinutes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	end := c.endedAt
	if end.IsZero() {
		end = c.clock.Now()
	}
	return DurationMinutes(end.Sub(c.startedAt))
}

// DurationMinutes converts elapsed time to ceil(seconds/60).
func DurationMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds() / 60))
}
