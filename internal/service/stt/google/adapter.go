// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
	"interview-session-service/internal/service/stt"
)

// Config holds recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns settings for 16 kHz mono LINEAR16 microphone audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name onto the API enum. Unknown names
// fall back to LINEAR16.
func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[name]; ok && v != 0 {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
}

// New creates a new Google recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Adapter{client: c, cfg: cfg}, nil
}

// streamingConfig builds the first request of a recognition stream.
func (a *Adapter) streamingConfig() *speechpb.StreamingRecognizeRequest {
	return &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:            int32(a.cfg.SampleRateHz),
					LanguageCode:               a.cfg.LanguageCode,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	}
}

// Start opens a streaming recognition session and starts delivering results.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return fmt.Errorf("open recognize stream: %w", err)
	}
	if err := stream.Send(a.streamingConfig()); err != nil {
		return fmt.Errorf("send streaming config: %w", err)
	}

	a.mu.Lock()
	a.stream = stream
	a.cb = cb
	a.mu.Unlock()

	go a.listen(stream, cb)
	return nil
}

// SendAudio sends audio bytes to the recognizer.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("recognizer not started")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the streaming session and releases the client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream := a.stream
	a.stream = nil
	a.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cerr := a.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// listen receives responses and invokes callbacks until the stream ends.
func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	logger := logging.WithComponent("stt-google")
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			metrics.DefaultMetrics.RecordSTTError("google")
			logger.Warn().Err(err).Msg("Recognition stream failed")
			cb.OnError(err)
			return
		}
		dispatch(resp, cb)
	}
}

// dispatch maps one streaming response onto callbacks.
func dispatch(resp *speechpb.StreamingRecognizeResponse, cb stt.Callback) {
	if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
		cb.OnEndOfUtterance()
		return
	}
	for _, r := range resp.GetResults() {
		if len(r.GetAlternatives()) == 0 {
			continue
		}
		alt := r.GetAlternatives()[0]
		if r.GetIsFinal() {
			cb.OnFinal(alt.GetTranscript(), float64(alt.GetConfidence()))
			cb.OnEndOfUtterance()
		} else {
			cb.OnPartial(alt.GetTranscript())
		}
	}
}
