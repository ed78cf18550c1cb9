package feedback

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/config"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
	"interview-session-service/internal/schema"
)

// Request is one text completion call.
type Request struct {
	Prompt          string
	Temperature     float64
	TopP            float64
	TopK            float64
	MaxOutputTokens int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config tunes the pipeline.
type Config struct {
	Thresholds      Thresholds
	Temperature     float64
	TopP            float64
	TopK            float64
	MaxOutputTokens int
	// SoftTimeout only logs that generation is slow. It never cancels.
	SoftTimeout time.Duration
}

// DefaultConfig returns the default generation settings.
func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		Temperature:     0.9,
		TopP:            0.95,
		TopK:            35,
		MaxOutputTokens: 2048,
		SoftTimeout:     60 * time.Second,
	}
}

// ConfigFrom maps service configuration onto pipeline settings.
func ConfigFrom(cfg *config.Configuration) Config {
	f := cfg.Feedback
	return Config{
		Thresholds: Thresholds{
			MinimumTurns:    f.MinimumTurns,
			ShortInterview:  f.ShortInterview,
			MediumInterview: f.MediumInterview,
			LongInterview:   f.LongInterview,
		},
		Temperature:     f.Temperature,
		TopP:            f.TopP,
		TopK:            f.TopK,
		MaxOutputTokens: f.MaxOutputTokens,
		SoftTimeout:     f.SoftTimeout,
	}
}

// Outcome names how a report was produced.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	OutcomeTooShort  Outcome = "too_short"
	OutcomeFallback  Outcome = "fallback"
)

// Result is a report together with how it was produced.
type Result struct {
	Report   models.FeedbackReport
	Analysis Analysis
	Outcome  Outcome
	Quality  int
	// Err is the failure that caused a fallback.
	Err   error
	Class ErrorClass
}

// Pipeline generates feedback reports. Safe for concurrent use.
type Pipeline struct {
	cfg       Config
	completer Completer
	parser    *Parser
	clock     clock.Clock
	metrics   *metrics.Metrics
}

// NewPipeline creates a pipeline calling completer.
func NewPipeline(cfg Config, completer Completer, v *schema.Validator, clk clock.Clock) *Pipeline {
	if clk == nil {
		clk = clock.New()
	}
	return &Pipeline{
		cfg:       cfg,
		completer: completer,
		parser:    NewParser(v),
		clock:     clk,
		metrics:   metrics.DefaultMetrics,
	}
}

// Generate produces a report for the transcript. It never fails: any problem
// with the completion yields the fallback report.
func (p *Pipeline) Generate(ctx context.Context, entries []models.TranscriptEntry, sc models.SessionConfig) models.FeedbackReport {
	return p.Run(ctx, entries, sc).Report
}

// Run is Generate with details about how the report was produced.
func (p *Pipeline) Run(ctx context.Context, entries []models.TranscriptEntry, sc models.SessionConfig) Result {
	logger := logging.WithSessionComponent(sc.SessionID, "feedback")
	start := p.clock.Now()
	analysis := Analyze(entries, p.cfg.Thresholds)

	logger.Info().
		Int("turns", analysis.TotalTurns).
		Int("userTurns", analysis.UserTurns).
		Int("aiTurns", analysis.AITurns).
		Int("words", analysis.TotalWords).
		Str("category", string(analysis.Category)).
		Msg("Analyzing interview transcript")

	if analysis.Category == CategoryTooShort {
		res := Result{
			Report:   TooShortReport(sc.Role, analysis, p.cfg.Thresholds, start),
			Analysis: analysis,
			Outcome:  OutcomeTooShort,
		}
		p.record(res, start)
		return res
	}

	report, err := p.generate(ctx, logger, entries, sc, analysis)
	if err != nil {
		class := Classify(err)
		logger.Error().Err(err).Str("class", string(class)).Msg("Feedback generation failed, returning fallback")
		res := Result{
			Report:   FallbackReport(p.clock.Now()),
			Analysis: analysis,
			Outcome:  OutcomeFallback,
			Err:      err,
			Class:    class,
		}
		p.record(res, start)
		return res
	}

	now := p.clock.Now()
	report.GeneratedAt = &now
	res := Result{
		Report:   report,
		Analysis: analysis,
		Outcome:  OutcomeGenerated,
		Quality:  QualityScore(report, analysis.Category),
	}
	logger.Info().
		Int("quality", res.Quality).
		Int("averageScore", report.AverageScore()).
		Msg("Feedback validated")
	p.metrics.RecordFeedbackQuality(res.Quality)
	p.record(res, start)
	return res
}

func (p *Pipeline) generate(ctx context.Context, logger zerolog.Logger, entries []models.TranscriptEntry, sc models.SessionConfig, a Analysis) (models.FeedbackReport, error) {
	prompt, err := BuildPrompt(entries, sc, a, p.cfg.Thresholds)
	if err != nil {
		return models.FeedbackReport{}, err
	}

	if p.cfg.SoftTimeout > 0 {
		timer := p.clock.AfterFunc(p.cfg.SoftTimeout, func() {
			logger.Warn().Dur("after", p.cfg.SoftTimeout).Msg("Feedback generation delayed")
		})
		defer timer.Stop()
	}

	text, err := p.completer.Complete(ctx, Request{
		Prompt:          prompt,
		Temperature:     p.cfg.Temperature,
		TopP:            p.cfg.TopP,
		TopK:            p.cfg.TopK,
		MaxOutputTokens: p.cfg.MaxOutputTokens,
	})
	if err != nil {
		return models.FeedbackReport{}, err
	}
	return p.parser.Parse(text)
}

func (p *Pipeline) record(res Result, start time.Time) {
	p.metrics.RecordFeedback(string(res.Analysis.Category), string(res.Outcome), p.clock.Now().Sub(start).Seconds())
}
