// Package transport defines the media transport the live session runs over.
package transport

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("transport closed")

// ErrNotConnected is returned when no connection is established.
var ErrNotConnected = errors.New("transport not connected")

// EventKind classifies transport events.
type EventKind int

const (
	EventTrackSubscribed EventKind = iota
	EventDataReceived
	EventAudioLevel
	EventDisconnected
	EventReconnecting
	EventReconnected
	EventNetworkRestored
	EventQualityChanged
)

func (k EventKind) String() string {
	switch k {
	case EventTrackSubscribed:
		return "track_subscribed"
	case EventDataReceived:
		return "data_received"
	case EventAudioLevel:
		return "audio_level"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventReconnected:
		return "reconnected"
	case EventNetworkRestored:
		return "network_restored"
	case EventQualityChanged:
		return "connection_quality_changed"
	default:
		return "unknown"
	}
}

// Event is one inbound transport notification. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind    EventKind
	Track   string  // EventTrackSubscribed
	Payload []byte  // EventDataReceived
	Level   float64 // EventAudioLevel, normalised 0..1
	Reason  string  // EventDisconnected
	Quality string  // EventQualityChanged
	At      time.Time
}

// Credential authorises a connection.
type Credential struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// TrackKind is the media type of a published track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is a local media source. Frames is closed when the source ends.
type Track struct {
	Kind   TrackKind
	Name   string
	Frames <-chan []byte
}

// Transport carries media and data between the candidate and the interviewer.
type Transport interface {
	// Connect opens the connection. Calling it again reconnects.
	Connect(ctx context.Context, endpoint string, cred Credential) error
	// Publish starts sending a local track.
	Publish(ctx context.Context, track Track) error
	// SetCaptureEnabled gates local audio without unpublishing it.
	SetCaptureEnabled(enabled bool)
	// SendData sends a reliable data message.
	SendData(ctx context.Context, payload []byte) error
	// Events returns the inbound event stream, closed by Close.
	Events() <-chan Event
	// Probe measures one round trip.
	Probe(ctx context.Context) (time.Duration, error)
	Close() error
}

// MediaParams are the adaptive encoding settings requested on connect.
type MediaParams struct {
	SampleRateHz    int `json:"sampleRateHz"`
	BitrateKbps     int `json:"bitrateKbps"`
	MaxOutputTokens int `json:"maxOutputTokens"`
}

// ParamsSetter is implemented by transports that accept adaptive media
// parameters. They take effect on the next Connect.
type ParamsSetter interface {
	SetMediaParams(p MediaParams)
}
