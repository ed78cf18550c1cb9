package media

import (
	"context"
	"sync"

	"interview-session-service/internal/transport"
)

// Silent is a microphone that produces no frames. Useful when only text is
// exchanged with the interviewer.
type Silent struct {
	mu       sync.Mutex
	acquired bool
	frames   chan []byte
	playback bool
	// Err, when set, is returned by Acquire.
	Err error
}

func (s *Silent) Acquire(ctx context.Context) (transport.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return transport.Track{}, s.Err
	}
	if s.acquired {
		return transport.Track{}, &PermissionError{Kind: DeviceBusy, Device: "microphone"}
	}
	s.acquired = true
	s.frames = make(chan []byte)
	return transport.Track{Kind: transport.TrackAudio, Name: "microphone", Frames: s.frames}, nil
}

func (s *Silent) SetPlayback(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playback = enabled
}

// Playback reports the last SetPlayback value.
func (s *Silent) Playback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

func (s *Silent) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acquired {
		return nil
	}
	s.acquired = false
	close(s.frames)
	return nil
}
