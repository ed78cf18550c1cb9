// Package transcript merges transcript fragments from concurrent sources into
// an ordered sequence of cleaned utterances.
package transcript

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

// Source identifies where a fragment came from.
type Source int

const (
	// SourceLocal is the low-latency recognizer running next to the candidate.
	SourceLocal Source = iota
	// SourceRemote is the interviewer side's own inference of the candidate's words,
	// plus everything the interviewer itself says.
	SourceRemote
	// SourceSynthesized marks text written on the candidate's behalf by the system.
	SourceSynthesized
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceSynthesized:
		return "synthesized"
	default:
		return "unknown"
	}
}

// Fragment is one unit of transcript text as delivered by a source.
type Fragment struct {
	Source   Source
	Speaker  models.Speaker
	Text     string
	Complete bool
	// Cumulative fragments carry the whole utterance so far and replace the
	// open entry's text instead of extending it.
	Cumulative bool
	// At is when the fragment arrived. Arbitration and entry timestamps use it.
	At time.Time
	// SentAt is the producer's own timestamp, zero when it sent none.
	SentAt time.Time
}

// Outcome describes what Ingest did with a fragment.
type Outcome int

const (
	OutcomeAppended Outcome = iota
	OutcomeOpened
	OutcomeDiscarded
)

// Result is the effect of a single Ingest call.
type Result struct {
	Outcome Outcome
	// Reason is set when the fragment was discarded.
	Reason string
	// Entry is a copy of the entry the fragment landed in.
	Entry models.TranscriptEntry
}

// Discard reasons.
const (
	ReasonEmpty          = "empty"
	ReasonUnknownSpeaker = "unknown_speaker"
	ReasonSuperseded     = "superseded_by_local"
	ReasonDuplicate      = "duplicate"
)

// Config tunes the aggregator.
type Config struct {
	// FreshnessWindow is how long local recognizer activity suppresses remote
	// candidate fragments.
	FreshnessWindow time.Duration
	// Debounce bounds how often observers are notified.
	Debounce time.Duration
	// MaxInMemory caps the live window; older entries move to the archive.
	MaxInMemory int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow: 5 * time.Second,
		Debounce:        300 * time.Millisecond,
		MaxInMemory:     50,
	}
}

// Observer receives the full transcript after a debounced batch of updates.
type Observer func(entries []models.TranscriptEntry)

// Aggregator owns the transcript of one session. Safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	cfg       Config
	clock     clock.Clock
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	archive   []models.TranscriptEntry
	window    []models.TranscriptEntry
	nextID    int64
	lastLocal time.Time
	seenLocal bool

	notifier *debouncer
}

// NewAggregator creates an aggregator for a session.
func NewAggregator(sessionId string, cfg Config, clk clock.Clock, observer Observer) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	a := &Aggregator{
		cfg:     cfg,
		clock:   clk,
		logger:  logging.WithSessionComponent(sessionId, "transcript"),
		metrics: metrics.DefaultMetrics,
	}
	if observer != nil {
		a.notifier = newDebouncer(clk, cfg.Debounce, func() {
			observer(a.Entries())
		})
	}
	return a
}

// Ingest cleans a fragment, applies source precedence and coalesces it into
// the transcript.
func (a *Aggregator) Ingest(f Fragment) Result {
	if f.At.IsZero() {
		f.At = a.clock.Now()
	}

	a.mu.Lock()
	res := a.ingestLocked(f)
	a.mu.Unlock()

	if res.Outcome == OutcomeDiscarded {
		a.metrics.RecordFragmentDiscarded(res.Reason)
		a.logger.Debug().
			Str("source", f.Source.String()).
			Str("speaker", string(f.Speaker)).
			Str("reason", res.Reason).
			Msg("Fragment discarded")
		return res
	}

	if res.Outcome == OutcomeOpened {
		a.metrics.RecordEntryOpened(string(res.Entry.Speaker))
	}
	if a.notifier != nil {
		a.notifier.trigger()
	}
	return res
}

// Touch records recognizer activity from src without adding text. Interim
// hypotheses from the local recognizer use this to hold the freshness window.
func (a *Aggregator) Touch(src Source, at time.Time) {
	if src != SourceLocal {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markLocalLocked(at)
}

func (a *Aggregator) ingestLocked(f Fragment) Result {
	if f.Speaker != models.SpeakerAI && f.Speaker != models.SpeakerUser {
		return Result{Outcome: OutcomeDiscarded, Reason: ReasonUnknownSpeaker}
	}

	if f.Speaker == models.SpeakerUser {
		switch f.Source {
		case SourceLocal:
			a.markLocalLocked(f.At)
		case SourceRemote:
			if a.seenLocal && f.At.Sub(a.lastLocal) < a.cfg.FreshnessWindow {
				return Result{Outcome: OutcomeDiscarded, Reason: ReasonSuperseded}
			}
		}
	}

	text := Clean(f.Text)
	if text == "" {
		return Result{Outcome: OutcomeDiscarded, Reason: ReasonEmpty}
	}
	piece := CleanFragment(f.Text)

	if tail := a.tailLocked(); tail != nil && tail.Speaker == f.Speaker {
		if !tail.Complete {
			if f.Cumulative {
				tail.Text = text
			} else {
				tail.Text += piece
			}
			if f.Complete {
				closeEntry(tail)
			}
			return Result{Outcome: OutcomeAppended, Entry: *tail}
		}
		if f.Complete && tail.Text == text {
			return Result{Outcome: OutcomeDiscarded, Reason: ReasonDuplicate}
		}
	}

	if tail := a.tailLocked(); tail != nil {
		closeEntry(tail)
	}

	entry := models.TranscriptEntry{
		Speaker:   f.Speaker,
		Text:      strings.TrimLeftFunc(piece, unicode.IsSpace),
		Timestamp: f.At,
	}
	if f.Cumulative {
		entry.Text = text
	}
	if f.Complete {
		closeEntry(&entry)
	}
	a.nextID++
	entry.ID = a.nextID
	a.window = append(a.window, entry)
	a.trimLocked()
	return Result{Outcome: OutcomeOpened, Entry: entry}
}

// closeEntry marks an entry complete. Open entries keep the trailing space of
// their last chunk so the next chunk concatenates as sent.
func closeEntry(e *models.TranscriptEntry) {
	e.Complete = true
	e.Text = strings.TrimSpace(e.Text)
}

func (a *Aggregator) markLocalLocked(at time.Time) {
	if !a.seenLocal || at.After(a.lastLocal) {
		a.lastLocal = at
	}
	a.seenLocal = true
}

func (a *Aggregator) tailLocked() *models.TranscriptEntry {
	if len(a.window) == 0 {
		return nil
	}
	return &a.window[len(a.window)-1]
}

func (a *Aggregator) trimLocked() {
	max := a.cfg.MaxInMemory
	if max <= 0 || len(a.window) <= max {
		return
	}
	overflow := len(a.window) - max
	a.archive = append(a.archive, a.window[:overflow]...)
	a.window = append([]models.TranscriptEntry(nil), a.window[overflow:]...)
	a.logger.Debug().
		Int("archived", overflow).
		Int("totalArchived", len(a.archive)).
		Msg("Archived transcript entries")
}

// Entries returns a copy of the full transcript, archive first.
func (a *Aggregator) Entries() []models.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.TranscriptEntry, 0, len(a.archive)+len(a.window))
	out = append(out, a.archive...)
	return append(out, a.window...)
}

// Recent returns a copy of the live window.
func (a *Aggregator) Recent() []models.TranscriptEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.TranscriptEntry(nil), a.window...)
}

// Finalize closes the open tail entry, flushes pending notifications and
// returns the full transcript.
func (a *Aggregator) Finalize() []models.TranscriptEntry {
	a.mu.Lock()
	if tail := a.tailLocked(); tail != nil {
		closeEntry(tail)
	}
	a.mu.Unlock()

	if a.notifier != nil {
		a.notifier.flush()
	}
	return a.Entries()
}
