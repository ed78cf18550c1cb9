// Package models defines the data structures shared by the live session,
// the feedback pipeline and the published events.
package models

import "time"

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerAI      Speaker = "ai"
	SpeakerUser    Speaker = "user"
	SpeakerUnknown Speaker = "unknown"
)

// TranscriptEntry is one utterance in the session transcript.
type TranscriptEntry struct {
	ID        int64     `json:"id"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Complete  bool      `json:"isComplete"`
}

// TranscriptEvent is published for every accepted transcript update.
type TranscriptEvent struct {
	EventType string  `json:"eventType"`
	SessionID string  `json:"sessionId"`
	EntryID   int64   `json:"entryId"`
	Speaker   Speaker `json:"speaker"`
	Source    string  `json:"source"`
	Text      string  `json:"text"`
	Complete  bool    `json:"isComplete"`
	Timestamp int64   `json:"timestamp"`
}

const (
	EventTranscriptPartial = "interview.transcript.partial"
	EventTranscriptFinal   = "interview.transcript.final"
	EventSessionStatus     = "interview.session.status"
	EventFeedbackReady     = "interview.feedback.ready"
)
