package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWAV(t *testing.T, sampleRate uint32, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, sampleRate*2)
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	path := filepath.Join(t.TempDir(), "sample.wav")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestReadWAVHeader(t *testing.T) {
	path := writeWAV(t, 16000, make([]byte, 10))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	format, err := ReadWAVHeader(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), format.SampleRate)
	assert.Equal(t, uint16(1), format.Channels)
	assert.Equal(t, 32000, format.BytesPerSecond())

	_, err = ReadWAVHeader(bytes.NewReader([]byte("nope")))
	assert.Error(t, err)
}

func TestWAVMicrophone_StreamsFrames(t *testing.T) {
	// 16 kHz mono 16-bit: 10ms chunks are 320 bytes, so 800 bytes is 3 frames.
	path := writeWAV(t, 16000, make([]byte, 800))

	var heard int
	mic := NewWAVMicrophone(path, 10*time.Millisecond, false, func(b []byte) { heard += len(b) })
	track, err := mic.Acquire(context.Background())
	require.NoError(t, err)

	var sizes []int
	for frame := range track.Frames {
		sizes = append(sizes, len(frame))
	}
	assert.Equal(t, []int{320, 320, 160}, sizes)
	assert.Equal(t, 800, heard)
	require.NoError(t, mic.Release())
}

func TestWAVMicrophone_Errors(t *testing.T) {
	mic := NewWAVMicrophone(filepath.Join(t.TempDir(), "missing.wav"), 0, false, nil)
	_, err := mic.Acquire(context.Background())
	assert.True(t, IsPermissionError(err, DeviceMissing))

	path := writeWAV(t, 16000, make([]byte, 3200))
	mic = NewWAVMicrophone(path, 10*time.Millisecond, true, nil)
	_, err = mic.Acquire(context.Background())
	require.NoError(t, err)
	_, err = mic.Acquire(context.Background())
	assert.True(t, IsPermissionError(err, DeviceBusy))
	require.NoError(t, mic.Release())
	require.NoError(t, mic.Release())
}

func TestSilent(t *testing.T) {
	s := &Silent{}
	track, err := s.Acquire(context.Background())
	require.NoError(t, err)
	s.SetPlayback(false)
	assert.False(t, s.Playback())

	require.NoError(t, s.Release())
	_, ok := <-track.Frames
	assert.False(t, ok)

	s.Err = &PermissionError{Kind: PermissionDenied, Device: "microphone"}
	_, err = s.Acquire(context.Background())
	assert.True(t, IsPermissionError(err, PermissionDenied))
	assert.EqualError(t, err, "microphone access denied")
}
