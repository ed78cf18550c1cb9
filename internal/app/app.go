package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/config"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/service/feedback"
	"interview-session-service/internal/service/session"
	"interview-session-service/internal/store/postgres"
)

var (
	// ErrSessionNotFound is returned when neither the request nor the store
	// know the session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoFeedback is returned when no copy of a report exists.
	ErrNoFeedback = errors.New("no feedback for session")
)

// SessionStore is the persisted side of sessions and their reports.
type SessionStore interface {
	Get(ctx context.Context, id string) (models.SessionRecord, error)
	SaveFeedback(ctx context.Context, id string, report models.FeedbackReport) error
	Feedback(ctx context.Context, id string) (*models.FeedbackReport, error)
}

// SubmissionStore records coding submissions.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, sessionId string, sub models.CodingSubmission) error
}

// InstantCache holds the instant copy of a report.
type InstantCache interface {
	Put(ctx context.Context, sessionId string, report models.FeedbackReport) error
	Get(ctx context.Context, sessionId string) (*models.FeedbackReport, error)
}

// FeedbackPublisher announces produced reports.
type FeedbackPublisher interface {
	PublishFeedback(ctx context.Context, ev models.FeedbackEvent) error
}

// Deps are the optional collaborators of an Application. Only Pipeline is
// required to serve feedback.
type Deps struct {
	Pipeline *feedback.Pipeline
	Sessions SessionStore
	Instant  InstantCache
	Events   FeedbackPublisher
	Clock    clock.Clock
}

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	deps Deps
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration, deps Deps) *Application {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
		deps:   deps,
	}
	a.Logger.Info().
		Bool("sessions", deps.Sessions != nil).
		Bool("instantCache", deps.Instant != nil).
		Bool("events", deps.Events != nil).
		Msg("Interview session service application created")
	return a
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	if a.deps.Pipeline == nil {
		return errors.New("feedback pipeline not configured")
	}
	a.StartupTime = a.deps.Clock.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("environment", a.Cfg.Service.Environment).
		Msg("Interview session service starting")
	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().
		Dur("uptime", a.deps.Clock.Now().Sub(a.StartupTime)).
		Msg("Interview session service shutting down")
}

// GenerateRequest carries a transcript to assess. When Transcript is nil the
// stored session is used.
type GenerateRequest struct {
	Transcript []models.TranscriptEntry `json:"transcript"`
	Config     *models.SessionConfig    `json:"config,omitempty"`
}

// GenerateFeedback produces a report for a session, caches the instant copy,
// persists it and announces it. Storage failures are logged; the report is
// returned regardless.
func (a *Application) GenerateFeedback(ctx context.Context, id string, req GenerateRequest) (feedback.Result, error) {
	logger := logging.WithSessionComponent(id, "application")

	entries := req.Transcript
	var sc models.SessionConfig
	if req.Config != nil {
		sc = *req.Config
	}
	if entries == nil {
		if a.deps.Sessions == nil {
			return feedback.Result{}, fmt.Errorf("%w: no transcript given and no store configured", ErrSessionNotFound)
		}
		rec, err := a.deps.Sessions.Get(ctx, id)
		if errors.Is(err, postgres.ErrNotFound) {
			return feedback.Result{}, ErrSessionNotFound
		}
		if err != nil {
			return feedback.Result{}, err
		}
		entries = rec.Transcript
		if req.Config == nil {
			sc = rec.Config
		}
	}
	sc.SessionID = id

	res := a.deps.Pipeline.Run(ctx, entries, sc)

	if a.deps.Instant != nil {
		if err := a.deps.Instant.Put(ctx, id, res.Report); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache instant feedback")
		}
	}
	if a.deps.Sessions != nil {
		if err := a.deps.Sessions.SaveFeedback(ctx, id, res.Report); err != nil {
			logger.Error().Err(err).Msg("Failed to persist feedback")
		}
	}
	if a.deps.Events != nil {
		ev := models.FeedbackEvent{
			EventType:    "feedback",
			SessionID:    id,
			Category:     string(res.Analysis.Category),
			Fallback:     res.Outcome == feedback.OutcomeFallback,
			QualityScore: res.Quality,
			Report:       res.Report,
			Timestamp:    a.deps.Clock.Now().UnixMilli(),
		}
		if err := a.deps.Events.PublishFeedback(ctx, ev); err != nil {
			logger.Warn().Err(err).Msg("Failed to publish feedback event")
		}
	}

	logger.Info().
		Str("outcome", string(res.Outcome)).
		Str("category", string(res.Analysis.Category)).
		Int("score", res.Report.AverageScore()).
		Msg("Feedback produced")
	return res, nil
}

// Feedback returns the merge of the instant and the persisted copy of a
// session's report.
func (a *Application) Feedback(ctx context.Context, id string) (*models.FeedbackReport, error) {
	logger := logging.WithSessionComponent(id, "application")

	var instant, persisted *models.FeedbackReport
	if a.deps.Instant != nil {
		r, err := a.deps.Instant.Get(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to read instant feedback")
		}
		instant = r
	}
	if a.deps.Sessions != nil {
		r, err := a.deps.Sessions.Feedback(ctx, id)
		switch {
		case errors.Is(err, postgres.ErrNotFound):
		case err != nil:
			if instant == nil {
				return nil, err
			}
			logger.Warn().Err(err).Msg("Failed to read persisted feedback, serving instant copy")
		default:
			persisted = r
		}
	}

	merged := feedback.Merge(persisted, instant)
	if merged == nil {
		return nil, ErrNoFeedback
	}
	return merged, nil
}

// CompleteSession ends a session if it is still running, assesses it and saves
// its completion record and coding submissions.
func (a *Application) CompleteSession(ctx context.Context, ctrl *session.Controller, sc models.SessionConfig, subs SubmissionStore) (models.CompletionRecord, error) {
	id := ctrl.SessionID()
	entries, err := ctrl.End(ctx)
	if err != nil {
		return models.CompletionRecord{}, err
	}
	if entries == nil {
		entries = []models.TranscriptEntry{}
	}
	res, err := a.GenerateFeedback(ctx, id, GenerateRequest{Transcript: entries, Config: &sc})
	if err != nil {
		return models.CompletionRecord{}, err
	}

	rec, err := ctrl.Complete(ctx, res.Report)
	if err != nil && !errors.Is(err, session.ErrNoStore) {
		return rec, err
	}

	if subs != nil {
		for _, sub := range ctrl.Submissions() {
			if err := subs.SaveSubmission(ctx, id, sub); err != nil {
				logger := logging.WithSessionComponent(id, "application")
				logger.Warn().Err(err).Str("taskId", sub.ID).Msg("Failed to save submission")
			}
		}
	}
	return rec, nil
}
