// Package ws implements the media transport over a websocket. Text frames
// carry data messages and control envelopes; binary frames carry 16-bit PCM.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/transport"
)

const (
	defaultConnectTimeout = 15 * time.Second
	writeTimeout          = 5 * time.Second
	eventBuffer           = 256
)

// envelope is the common header of every text frame.
type envelope struct {
	Type    string `json:"type"`
	Track   string `json:"track,omitempty"`
	Name    string `json:"name,omitempty"`
	Quality string `json:"quality,omitempty"`
}

// Client is a websocket media transport. Connect may be called again to
// reconnect; the event stream survives reconnects.
type Client struct {
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	gen    uint64
	pongs  map[string]chan time.Time
	nonce  uint64
	closed bool
	params *transport.MediaParams
	tracks map[string]publication

	writeMu sync.Mutex
	capture atomic.Bool

	eventsMu sync.RWMutex
	events   chan transport.Event
}

// New creates a websocket transport for a session.
func New(sessionId string) *Client {
	c := &Client{
		dialer: websocket.DefaultDialer,
		logger: logging.WithSessionComponent(sessionId, "transport"),
		pongs:  make(map[string]chan time.Time),
		tracks: make(map[string]publication),
		events: make(chan transport.Event, eventBuffer),
	}
	c.capture.Store(true)
	return c
}

// Connect dials the endpoint, or the credential's URL when set.
func (c *Client) Connect(ctx context.Context, endpoint string, cred transport.Credential) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	c.mu.Unlock()

	target := endpoint
	if cred.URL != "" {
		target = cred.URL
	}
	headers := make(http.Header)
	if cred.Token != "" {
		headers.Set("Authorization", "Bearer "+cred.Token)
	}

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(dialCtx, target, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return transport.ErrClosed
	}
	old := c.conn
	c.gen++
	gen := c.gen
	c.conn = conn
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	conn.SetPongHandler(func(data string) error {
		c.mu.Lock()
		ch, ok := c.pongs[data]
		delete(c.pongs, data)
		c.mu.Unlock()
		if ok {
			ch <- time.Now()
		}
		return nil
	})

	go c.readLoop(conn, gen)
	c.logger.Info().Str("endpoint", target).Msg("Transport connected")

	c.mu.Lock()
	params := c.params
	announces := make([][]byte, 0, len(c.tracks))
	for _, p := range c.tracks {
		announces = append(announces, p.announce)
	}
	c.mu.Unlock()
	if params != nil {
		if err := c.sendParams(*params); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to send media parameters")
		}
	}
	for _, announce := range announces {
		if err := c.write(websocket.TextMessage, announce); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to announce track")
		}
	}
	return nil
}

// publication is a live track, announced again on every connect.
type publication struct {
	id       uint64
	announce []byte
}

type paramsEnvelope struct {
	Type string `json:"type"`
	transport.MediaParams
}

// SetMediaParams records the encoding settings announced on every connect.
func (c *Client) SetMediaParams(p transport.MediaParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params = &p
}

func (c *Client) sendParams(p transport.MediaParams) error {
	data, err := json.Marshal(paramsEnvelope{Type: "params", MediaParams: p})
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Client) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, transport.ErrClosed
	}
	if c.conn == nil {
		return nil, transport.ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) write(messageType int, data []byte) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(messageType, data)
}

// Publish announces the track and pumps its frames until the source ends.
// Audio frames are dropped while capture is disabled.
func (c *Client) Publish(ctx context.Context, track transport.Track) error {
	announce, err := json.Marshal(envelope{Type: "publish", Track: string(track.Kind), Name: track.Name})
	if err != nil {
		return err
	}
	if err := c.write(websocket.TextMessage, announce); err != nil {
		return fmt.Errorf("publish %s: %w", track.Kind, err)
	}
	if track.Frames == nil {
		return nil
	}

	c.mu.Lock()
	c.nonce++
	id := c.nonce
	c.tracks[track.Name] = publication{id: id, announce: announce}
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			if p, ok := c.tracks[track.Name]; ok && p.id == id {
				delete(c.tracks, track.Name)
			}
			c.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-track.Frames:
				if !ok {
					return
				}
				if track.Kind == transport.TrackAudio && !c.capture.Load() {
					continue
				}
				if err := c.write(websocket.BinaryMessage, frame); err != nil {
					c.logger.Debug().Err(err).Str("track", track.Name).Msg("Frame dropped")
				}
			}
		}
	}()
	return nil
}

// SetCaptureEnabled gates outgoing audio frames.
func (c *Client) SetCaptureEnabled(enabled bool) {
	c.capture.Store(enabled)
}

// SendData sends a data message as a text frame.
func (c *Client) SendData(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.write(websocket.TextMessage, payload)
}

// Events returns the inbound event stream.
func (c *Client) Events() <-chan transport.Event {
	return c.events
}

// Probe sends a ping and waits for the matching pong.
func (c *Client) Probe(ctx context.Context) (time.Duration, error) {
	conn, err := c.current()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.nonce++
	key := strconv.FormatUint(c.nonce, 10)
	ch := make(chan time.Time, 1)
	c.pongs[key] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pongs, key)
		c.mu.Unlock()
	}()

	sent := time.Now()
	c.writeMu.Lock()
	err = conn.WriteControl(websocket.PingMessage, []byte(key), sent.Add(writeTimeout))
	c.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("send ping: %w", err)
	}

	select {
	case at := <-ch:
		return at.Sub(sent), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close shuts the connection and closes the event stream. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.eventsMu.Lock()
	close(c.events)
	c.events = nil
	c.eventsMu.Unlock()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.closed || gen != c.gen
			if !stale {
				c.conn = nil
			}
			c.mu.Unlock()
			if !stale {
				c.logger.Warn().Err(err).Msg("Transport disconnected")
				c.emit(transport.Event{Kind: transport.EventDisconnected, Reason: err.Error()})
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.emit(transport.Event{Kind: transport.EventAudioLevel, Level: Level(data)})
		case websocket.TextMessage:
			c.emit(decodeText(data))
		}
	}
}

// decodeText maps a text frame onto an event. Frames without a recognised
// control type are data messages.
func decodeText(data []byte) transport.Event {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil {
		switch env.Type {
		case "track":
			return transport.Event{Kind: transport.EventTrackSubscribed, Track: env.Track}
		case "quality":
			return transport.Event{Kind: transport.EventQualityChanged, Quality: env.Quality}
		case "reconnecting":
			return transport.Event{Kind: transport.EventReconnecting}
		case "reconnected":
			return transport.Event{Kind: transport.EventReconnected}
		}
	}
	return transport.Event{Kind: transport.EventDataReceived, Payload: append([]byte(nil), data...)}
}

func (c *Client) emit(ev transport.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.eventsMu.RLock()
	defer c.eventsMu.RUnlock()
	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
	default:
		// Never block the read loop on a stalled consumer.
	}
}
