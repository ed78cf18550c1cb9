package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/transport"
)

// WAV header is 44 bytes for standard PCM files.
const wavHeaderSize = 44

// WAVFormat describes a PCM WAV stream.
type WAVFormat struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// BytesPerSecond is the PCM data rate.
func (f WAVFormat) BytesPerSecond() int {
	return int(f.SampleRate) * int(f.Channels) * int(f.BitsPerSample) / 8
}

// ReadWAVHeader validates a canonical PCM header.
func ReadWAVHeader(r io.Reader) (WAVFormat, error) {
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return WAVFormat{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return WAVFormat{}, errors.New("not a valid WAV file")
	}
	if format := binary.LittleEndian.Uint16(header[20:22]); format != 1 {
		return WAVFormat{}, fmt.Errorf("only PCM format supported, got %d", format)
	}
	return WAVFormat{
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}, nil
}

// WAVMicrophone replays a PCM WAV file in real time as if it were a
// microphone, optionally looping at the end.
type WAVMicrophone struct {
	path     string
	chunk    time.Duration
	loop     bool
	listener func([]byte)

	mu       sync.Mutex
	acquired bool
	playback bool
	cancel   context.CancelFunc
	done     chan struct{}
	format   WAVFormat
}

// NewWAVMicrophone creates a file-backed microphone emitting chunk-sized
// frames. listener, if set, sees every frame, e.g. to feed a recognizer.
func NewWAVMicrophone(path string, chunk time.Duration, loop bool, listener func([]byte)) *WAVMicrophone {
	if chunk <= 0 {
		chunk = 100 * time.Millisecond
	}
	return &WAVMicrophone{path: path, chunk: chunk, loop: loop, listener: listener, playback: true}
}

// Acquire opens the file and starts streaming frames.
func (m *WAVMicrophone) Acquire(ctx context.Context) (transport.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquired {
		return transport.Track{}, &PermissionError{Kind: DeviceBusy, Device: "microphone"}
	}

	f, err := os.Open(m.path)
	if err != nil {
		kind := DeviceMissing
		if errors.Is(err, fs.ErrPermission) {
			kind = PermissionDenied
		}
		return transport.Track{}, &PermissionError{Kind: kind, Device: "microphone", Err: err}
	}
	format, err := ReadWAVHeader(f)
	if err != nil {
		f.Close()
		return transport.Track{}, &PermissionError{Kind: DeviceMissing, Device: "microphone", Err: err}
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	frames := make(chan []byte, 16)
	m.acquired = true
	m.cancel = cancel
	m.done = make(chan struct{})
	m.format = format

	logger := logging.WithComponent("media")
	logger.Info().
		Str("path", m.path).
		Uint32("sampleRate", format.SampleRate).
		Uint16("channels", format.Channels).
		Msg("WAV microphone acquired")

	go m.stream(streamCtx, f, format, frames)
	return transport.Track{Kind: transport.TrackAudio, Name: "microphone", Frames: frames}, nil
}

func (m *WAVMicrophone) stream(ctx context.Context, f *os.File, format WAVFormat, frames chan<- []byte) {
	defer close(m.done)
	defer close(frames)
	defer f.Close()

	size := format.BytesPerSecond() * int(m.chunk) / int(time.Second)
	if size <= 0 {
		size = 1600
	}
	ticker := time.NewTicker(m.chunk)
	defer ticker.Stop()

	buf := make([]byte, size)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			frame := append([]byte(nil), buf[:n]...)
			if m.listener != nil {
				m.listener(frame)
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !m.loop {
				return
			}
			if _, serr := f.Seek(wavHeaderSize, io.SeekStart); serr != nil {
				return
			}
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// SetPlayback toggles local rendering. A file source has nothing to render,
// so only the flag is kept.
func (m *WAVMicrophone) SetPlayback(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playback = enabled
}

// Playback reports whether local rendering is enabled.
func (m *WAVMicrophone) Playback() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playback
}

// Release stops streaming. Idempotent.
func (m *WAVMicrophone) Release() error {
	m.mu.Lock()
	if !m.acquired {
		m.mu.Unlock()
		return nil
	}
	m.acquired = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	return nil
}
