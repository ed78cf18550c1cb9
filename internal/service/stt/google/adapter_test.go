package google

import (
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
)

type recordingCallback struct {
	partials   []string
	finals     []string
	utterances int
}

func (c *recordingCallback) OnPartial(text string) { c.partials = append(c.partials, text) }
func (c *recordingCallback) OnFinal(text string, _ float64) { c.finals = append(c.finals, text) }
func (c *recordingCallback) OnEndOfUtterance() { c.utterances++ }
func (c *recordingCallback) OnError(err error) {}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.SampleRateHz)
	}
	if !cfg.InterimResults {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"ENCODING_UNSPECIFIED", speechpb.RecognitionConfig_LINEAR16},
		{"linear16", speechpb.RecognitionConfig_LINEAR16},
		{"", speechpb.RecognitionConfig_LINEAR16},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestStreamingConfig(t *testing.T) {
	a := &Adapter{cfg: Config{LanguageCode: "de-DE", SampleRateHz: 48000, AudioEncoding: "OGG_OPUS"}}

	sc := a.streamingConfig().GetStreamingConfig()
	if sc.GetConfig().GetLanguageCode() != "de-DE" {
		t.Errorf("expected language 'de-DE', got %s", sc.GetConfig().GetLanguageCode())
	}
	if sc.GetConfig().GetSampleRateHertz() != 48000 {
		t.Errorf("expected sample rate 48000, got %d", sc.GetConfig().GetSampleRateHertz())
	}
	if sc.GetConfig().GetEncoding() != speechpb.RecognitionConfig_OGG_OPUS {
		t.Errorf("expected OGG_OPUS, got %v", sc.GetConfig().GetEncoding())
	}
	if sc.GetInterimResults() {
		t.Error("expected interim results disabled")
	}
}

func TestDispatch(t *testing.T) {
	cb := &recordingCallback{}

	dispatch(&speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "I led"}}},
		},
	}, cb)
	dispatch(&speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{
			{IsFinal: true, Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "I led the migration", Confidence: 0.9}}},
			{Alternatives: nil},
		},
	}, cb)
	dispatch(&speechpb.StreamingRecognizeResponse{
		SpeechEventType: speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE,
	}, cb)

	if len(cb.partials) != 1 || cb.partials[0] != "I led" {
		t.Errorf("expected one partial 'I led', got %v", cb.partials)
	}
	if len(cb.finals) != 1 || cb.finals[0] != "I led the migration" {
		t.Errorf("expected one final, got %v", cb.finals)
	}
	if cb.utterances != 2 {
		t.Errorf("expected 2 end-of-utterance signals, got %d", cb.utterances)
	}
}
