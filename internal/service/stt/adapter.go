// Package stt defines the low-latency speech recognizer that transcribes the
// candidate's microphone next to the session.
package stt

import "context"

// Callback receives recognition results. Partial and final hypotheses carry
// the whole utterance so far, not a delta.
type Callback interface {
	// OnPartial is called for each interim hypothesis.
	OnPartial(text string)

	// OnFinal is called once per utterance with the settled text.
	OnFinal(text string, confidence float64)

	// OnEndOfUtterance is called when the recognizer detects the candidate
	// stopped talking.
	OnEndOfUtterance()

	// OnError is called when recognition fails. The stream is unusable after.
	OnError(err error)
}

// Adapter is a streaming recognizer.
type Adapter interface {
	// Start opens a recognition stream delivering results to cb.
	Start(ctx context.Context, cb Callback) error

	// SendAudio forwards raw audio to the recognizer.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the stream.
	Close() error
}
