package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"interview-session-service/internal/models"
)

// ErrNotTranscript is returned for well-formed data messages of another type.
var ErrNotTranscript = errors.New("data message is not a transcript")

// ParseError reports a malformed inbound data message.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed data message: %s: %v", e.Reason, e.Err)
	}
	return "malformed data message: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// DataMessage is the wire shape of a transcript data message. Producers differ
// in the field names they use for the speaker and the text.
type DataMessage struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Role       string `json:"role,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Text       string `json:"text,omitempty"`
	IsComplete bool   `json:"isComplete"`
	Cumulative bool   `json:"cumulative,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
}

// ParseDataMessage decodes a transcript data message into a remote fragment
// arriving at now. The producer's timestamp is kept as SentAt only, since the
// remote clock says nothing about when the local side heard the words.
func ParseDataMessage(payload []byte, now time.Time) (Fragment, error) {
	var msg DataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Fragment{}, &ParseError{Reason: "invalid json", Err: err}
	}
	if msg.Type != "transcript" {
		return Fragment{}, ErrNotTranscript
	}

	text := msg.Transcript
	if text == "" {
		text = msg.Text
	}
	if text == "" {
		return Fragment{}, &ParseError{Reason: "empty text"}
	}

	speaker := SpeakerFrom(msg.Speaker, msg.Sender, msg.Role)
	if speaker == models.SpeakerUnknown {
		return Fragment{}, &ParseError{Reason: fmt.Sprintf("unknown speaker %q", msg.Speaker+msg.Sender+msg.Role)}
	}

	var sentAt time.Time
	if msg.Timestamp > 0 {
		sentAt = time.UnixMilli(msg.Timestamp)
	}

	return Fragment{
		Source:     SourceRemote,
		Speaker:    speaker,
		Text:       text,
		Complete:   msg.IsComplete,
		Cumulative: msg.Cumulative,
		At:         now,
		SentAt:     sentAt,
	}, nil
}

// EncodeDataMessage builds the wire payload for a transcript carried on the
// data channel.
func EncodeDataMessage(speaker models.Speaker, text string, complete bool, at time.Time) ([]byte, error) {
	return json.Marshal(DataMessage{
		Type:       "transcript",
		Speaker:    string(speaker),
		Transcript: text,
		IsComplete: complete,
		Timestamp:  at.UnixMilli(),
	})
}
