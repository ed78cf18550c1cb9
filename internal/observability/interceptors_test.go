package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.InitWithWriter(logging.Config{Level: "debug", Format: "json"}, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	return &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestUnaryServerInterceptor_TagsSession(t *testing.T) {
	buf := captureLog(t)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(SessionMetadataKey, "sess-42"))
	ctx = peer.NewContext(ctx, &peer.Peer{Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 5000}})

	intercept := UnaryServerInterceptor(metrics.DefaultMetrics)
	resp, err := intercept(ctx, "req", &grpc.UnaryServerInfo{FullMethod: "/interview.Session/Status"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	if err != nil || resp != "ok" {
		t.Fatalf("expected handler result, got %v, %v", resp, err)
	}

	entry := lastEntry(t, buf)
	if entry["sessionId"] != "sess-42" {
		t.Errorf("expected sessionId sess-42, got %v", entry["sessionId"])
	}
	if entry["component"] != "grpc" {
		t.Errorf("expected component grpc, got %v", entry["component"])
	}
	if entry["peer"] != "10.0.0.7:5000" {
		t.Errorf("expected peer address, got %v", entry["peer"])
	}
	if entry["code"] != "OK" || entry["level"] != "debug" {
		t.Errorf("expected debug OK entry, got %v", entry)
	}
}

func TestUnaryServerInterceptor_FailureLevels(t *testing.T) {
	cases := []struct {
		err   error
		level string
	}{
		{status.Error(codes.NotFound, "no such session"), "warn"},
		{status.Error(codes.Internal, "boom"), "error"},
	}
	for _, tc := range cases {
		buf := captureLog(t)
		intercept := UnaryServerInterceptor(metrics.DefaultMetrics)
		_, err := intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/interview.Session/Status"},
			func(ctx context.Context, req interface{}) (interface{}, error) { return nil, tc.err })
		if err != tc.err {
			t.Fatalf("expected handler error to pass through, got %v", err)
		}
		entry := lastEntry(t, buf)
		if entry["level"] != tc.level {
			t.Errorf("%v: expected level %s, got %v", tc.err, tc.level, entry["level"])
		}
		if _, ok := entry["sessionId"]; ok {
			t.Errorf("expected no sessionId without metadata, got %v", entry["sessionId"])
		}
	}
}

func TestUnaryServerInterceptor_HealthChecksQuiet(t *testing.T) {
	buf := captureLog(t)
	intercept := UnaryServerInterceptor(metrics.DefaultMetrics)
	_, _ = intercept(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: healthCheckPrefix + "Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })
	if buf.Len() != 0 {
		t.Errorf("expected no log at debug level for health checks, got %q", buf.String())
	}
}
