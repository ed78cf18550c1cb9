// Package challenge detects when the interviewer poses a coding exercise and
// tracks the pause/resume lifecycle of that side-task.
package challenge

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

const (
	// DefaultMarker is the explicit signal the interviewer embeds in its text.
	DefaultMarker = "[CODING_CHALLENGE]"
	// GenericQuestionText is used when no queued item matches.
	GenericQuestionText = "Please solve the coding problem described by the interviewer."
	genericIDPrefix     = "generic-coding-"
)

var (
	// ErrNoActiveChallenge is returned by Submit and Abort outside a side-task.
	ErrNoActiveChallenge = errors.New("no active coding challenge")
)

// Strategy names how a challenge was detected.
type Strategy string

const (
	StrategyMarker  Strategy = "marker"
	StrategyKeyword Strategy = "keyword"
)

// Config tunes detection.
type Config struct {
	Marker        string
	MarkerSettle  time.Duration
	KeywordSettle time.Duration
	Keywords      []string
	// SuppressWhilePending ignores detections while an activation is
	// scheduled. Off, a later detection reschedules: its selection replaces
	// the pending one and the earliest timer opens it.
	SuppressWhilePending bool
}

// DefaultConfig returns the default detection settings.
func DefaultConfig() Config {
	return Config{
		Marker:        DefaultMarker,
		MarkerSettle:  2 * time.Second,
		KeywordSettle: 3 * time.Second,
		Keywords:      DefaultKeywords,
	}
}

// ScanResult is the outcome of scanning one piece of interviewer text.
type ScanResult struct {
	// Text is the input with the marker removed. It is what gets aggregated.
	Text      string
	Triggered bool
	Strategy  Strategy
	Item      models.SideTaskItem
	// Cancel stops the scheduled activation. Nil when nothing was scheduled.
	Cancel func() bool
}

// ActivateFunc is called once the settle delay elapses. Returning an error
// aborts the activation and leaves the queue cursor untouched.
type ActivateFunc func(item models.SideTaskItem) error

type activeTask struct {
	item      models.SideTaskItem
	startedAt time.Time
}

// pendingTask is a scheduled activation. Every detection folded into it
// keeps its timer; first and gen bound the generations it answers to.
type pendingTask struct {
	item   models.SideTaskItem
	timers []clock.Timer
	first  uint64
	gen    uint64
}

func (p *pendingTask) owns(gen uint64) bool {
	return gen >= p.first && gen <= p.gen
}

func (p *pendingTask) stop() bool {
	stopped := false
	for _, t := range p.timers {
		if t.Stop() {
			stopped = true
		}
	}
	return stopped
}

// Detector scans interviewer text and owns the side-task queue cursor.
// Safe for concurrent use.
type Detector struct {
	mu      sync.Mutex
	cfg     Config
	clock   clock.Clock
	logger  zerolog.Logger
	metrics *metrics.Metrics

	queue  []models.SideTaskItem
	cursor int

	pending *pendingTask
	active  *activeTask
	gen     uint64

	onActivate ActivateFunc
}

// NewDetector creates a detector over the given side-task queue.
func NewDetector(sessionId string, cfg Config, clk clock.Clock, queue []models.SideTaskItem, onActivate ActivateFunc) *Detector {
	if clk == nil {
		clk = clock.New()
	}
	if cfg.Marker == "" {
		cfg.Marker = DefaultMarker
	}
	if cfg.Keywords == nil {
		cfg.Keywords = DefaultKeywords
	}
	return &Detector{
		cfg:        cfg,
		clock:      clk,
		logger:     logging.WithSessionComponent(sessionId, "challenge"),
		metrics:    metrics.DefaultMetrics,
		queue:      append([]models.SideTaskItem(nil), queue...),
		onActivate: onActivate,
	}
}

// Scan inspects interviewer text. The marker takes priority over keywords.
// Nothing is scheduled while a side-task is active.
func (d *Detector) Scan(text string) ScanResult {
	if strings.Contains(text, d.cfg.Marker) {
		stripped := strings.TrimSpace(strings.Replace(text, d.cfg.Marker, "", 1))
		res := ScanResult{Text: stripped, Strategy: StrategyMarker}
		d.trigger(&res, stripped, d.cfg.MarkerSettle)
		return res
	}

	res := ScanResult{Text: text}
	d.mu.Lock()
	queued := len(d.queue) > 0
	d.mu.Unlock()
	if queued && ContainsKeyword(text, d.cfg.Keywords) {
		res.Strategy = StrategyKeyword
		d.trigger(&res, text, d.cfg.KeywordSettle)
	}
	return res
}

func (d *Detector) trigger(res *ScanResult, announced string, settle time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		return
	}
	if d.pending != nil && d.cfg.SuppressWhilePending {
		return
	}

	item := d.selectLocked(announced)
	d.gen++
	gen := d.gen
	if d.pending == nil {
		d.pending = &pendingTask{first: gen}
	} else {
		d.logger.Debug().Str("replacedItemId", d.pending.item.ID).Msg("Coding challenge rescheduled")
	}
	p := d.pending
	p.item = item
	p.gen = gen
	p.timers = append(p.timers, d.clock.AfterFunc(settle, func() { d.activate(gen) }))

	res.Triggered = true
	res.Item = item
	res.Cancel = func() bool { return d.cancel(gen) }

	d.metrics.RecordChallengeTriggered(string(res.Strategy))
	d.logger.Info().
		Str("strategy", string(res.Strategy)).
		Str("itemId", item.ID).
		Dur("settle", settle).
		Msg("Coding challenge detected")
}

// selectLocked picks the next coding item at or after the cursor, then from
// the start of the queue, then a generic item built from the announced text.
func (d *Detector) selectLocked(announced string) models.SideTaskItem {
	for i := d.cursor; i < len(d.queue); i++ {
		if d.queue[i].IsCoding() {
			return d.queue[i]
		}
	}
	for i := 0; i < len(d.queue); i++ {
		if d.queue[i].IsCoding() {
			return d.queue[i]
		}
	}

	text := strings.TrimSpace(announced)
	if text == "" {
		text = GenericQuestionText
	}
	return models.SideTaskItem{
		ID:       genericIDPrefix + uuid.NewString(),
		Text:     text,
		Kind:     models.SideTaskKindCoding,
		Position: -1,
	}
}

func (d *Detector) activate(gen uint64) {
	d.mu.Lock()
	p := d.pending
	if p == nil || !p.owns(gen) {
		d.mu.Unlock()
		return
	}
	p.stop()
	d.pending = nil
	if d.active != nil {
		d.mu.Unlock()
		return
	}
	cb := d.onActivate
	d.mu.Unlock()

	if cb != nil {
		if err := cb(p.item); err != nil {
			d.logger.Warn().Err(err).Str("itemId", p.item.ID).Msg("Coding challenge activation rejected")
			return
		}
	}

	d.mu.Lock()
	d.active = &activeTask{item: p.item, startedAt: d.clock.Now()}
	if idx := d.indexLocked(p.item.ID); idx >= 0 && idx >= d.cursor {
		d.cursor = idx + 1
	}
	cursor := d.cursor
	d.mu.Unlock()

	d.logger.Info().Str("itemId", p.item.ID).Int("cursor", cursor).Msg("Coding challenge started")
}

func (d *Detector) indexLocked(id string) int {
	for i, item := range d.queue {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (d *Detector) cancel(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil || !d.pending.owns(gen) {
		return false
	}
	stopped := d.pending.stop()
	d.pending = nil
	return stopped
}

// CancelPending stops a scheduled activation, if any.
func (d *Detector) CancelPending() bool {
	d.mu.Lock()
	p := d.pending
	d.mu.Unlock()
	if p == nil {
		return false
	}
	return d.cancel(p.gen)
}

// Submit finishes the active side-task with a solution and returns the record
// and the message to send to the interviewer.
func (d *Detector) Submit(code, language string) (models.CodingSubmission, string, error) {
	task, spent, err := d.finish()
	if err != nil {
		return models.CodingSubmission{}, "", err
	}
	seconds := int(spent / time.Second)
	d.metrics.RecordChallengeFinished("submitted")
	return models.CodingSubmission{
		ID:          uuid.NewString(),
		Question:    task.item.Text,
		Code:        code,
		Language:    language,
		TimeSpent:   spent,
		SubmittedAt: d.clock.Now(),
	}, ComposeSubmission(code, language, seconds), nil
}

// Abort skips the active side-task.
func (d *Detector) Abort() (models.CodingSubmission, string, error) {
	task, spent, err := d.finish()
	if err != nil {
		return models.CodingSubmission{}, "", err
	}
	d.metrics.RecordChallengeFinished("skipped")
	return models.CodingSubmission{
		ID:          uuid.NewString(),
		Question:    task.item.Text,
		TimeSpent:   spent,
		Skipped:     true,
		SubmittedAt: d.clock.Now(),
	}, AbortMessage, nil
}

func (d *Detector) finish() (activeTask, time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return activeTask{}, 0, ErrNoActiveChallenge
	}
	task := *d.active
	d.active = nil
	return task, d.clock.Now().Sub(task.startedAt), nil
}

// Active returns the side-task in progress.
func (d *Detector) Active() (models.SideTaskItem, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return models.SideTaskItem{}, false
	}
	return d.active.item, true
}

// Pending reports whether an activation is scheduled.
func (d *Detector) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Cursor returns the index of the next unasked queue item.
func (d *Detector) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}
