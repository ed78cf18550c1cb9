package session

import (
	"context"

	"interview-session-service/internal/models"
	"interview-session-service/internal/service/transcript"
)

// recognizerBridge feeds local recognizer results into the transcript as
// candidate fragments. Hypotheses carry the whole utterance so far.
type recognizerBridge struct {
	c *Controller
}

func (b *recognizerBridge) OnPartial(text string) {
	b.c.aggregator.Touch(transcript.SourceLocal, b.c.clock.Now())
	b.c.ingest(context.Background(), b.fragment(text, false))
}

func (b *recognizerBridge) OnFinal(text string, confidence float64) {
	b.c.ingest(context.Background(), b.fragment(text, true))
	b.c.logger.Debug().Float64("confidence", confidence).Msg("Local recognizer final")
}

func (b *recognizerBridge) OnEndOfUtterance() {
	b.c.aggregator.Touch(transcript.SourceLocal, b.c.clock.Now())
}

func (b *recognizerBridge) OnError(err error) {
	b.c.logger.Warn().Err(err).Msg("Local recognizer failed, relying on remote transcription")
}

func (b *recognizerBridge) fragment(text string, complete bool) transcript.Fragment {
	return transcript.Fragment{
		Source:     transcript.SourceLocal,
		Speaker:    models.SpeakerUser,
		Text:       text,
		Complete:   complete,
		Cumulative: true,
		At:         b.c.clock.Now(),
	}
}
