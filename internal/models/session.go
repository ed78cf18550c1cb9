package models

import "time"

// Difficulty is the declared interview difficulty tier.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

// SideTaskKindCoding is the only side-task kind the live session acts on.
const SideTaskKindCoding = "Coding"

// SideTaskItem is one entry of the externally supplied question queue.
type SideTaskItem struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Kind     string `json:"kind" yaml:"kind"`
	Position int    `json:"position" yaml:"position"`
}

// IsCoding reports whether the item is an actionable coding exercise.
func (s SideTaskItem) IsCoding() bool {
	return s.Kind == SideTaskKindCoding
}

// SessionConfig describes the interview a session runs.
type SessionConfig struct {
	SessionID      string         `json:"sessionId" yaml:"sessionId"`
	Role           string         `json:"role" yaml:"role"`
	InterviewType  string         `json:"interviewType" yaml:"interviewType"`
	Skills         []string       `json:"skills,omitempty" yaml:"skills"`
	Difficulty     Difficulty     `json:"difficulty,omitempty" yaml:"difficulty"`
	Employer       string         `json:"employer,omitempty" yaml:"employer"`
	JobDescription string         `json:"jobDescription,omitempty" yaml:"jobDescription"`
	SideTasks      []SideTaskItem `json:"sideTasks,omitempty" yaml:"sideTasks"`
	VideoEnabled   bool           `json:"videoEnabled" yaml:"videoEnabled"`
}

// SessionRecord is the persisted view of a session.
type SessionRecord struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Config          SessionConfig     `json:"config"`
	StartedAt       time.Time         `json:"startedAt"`
	DurationMinutes int               `json:"durationMinutes"`
	Score           int               `json:"score"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty"`
	Feedback        *FeedbackReport   `json:"feedback,omitempty"`
}

// CompletionRecord is written when a session finishes.
type CompletionRecord struct {
	DurationMinutes int               `json:"durationMinutes"`
	Score           int               `json:"score"`
	Transcript      []TranscriptEntry `json:"transcript"`
	Feedback        FeedbackReport    `json:"feedback"`
}

// CodingSubmission records a finished or skipped side-task.
type CodingSubmission struct {
	ID          string        `json:"id"`
	Question    string        `json:"question"`
	Code        string        `json:"code,omitempty"`
	Language    string        `json:"language,omitempty"`
	TimeSpent   time.Duration `json:"timeSpent"`
	Skipped     bool          `json:"skipped"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

// StatusEvent is published on every session status change.
type StatusEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
