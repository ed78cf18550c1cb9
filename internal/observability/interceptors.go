// Package observability provides gRPC interceptors for metrics and logging.
package observability

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

// SessionMetadataKey carries the interview session a call belongs to.
const SessionMetadataKey = "x-session-id"

const healthCheckPrefix = "/grpc.health.v1.Health/"

// UnaryServerInterceptor returns a gRPC unary interceptor for metrics and logging.
func UnaryServerInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		record(ctx, m, info.FullMethod, start, err, "gRPC unary call")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor for metrics and logging.
func StreamServerInterceptor(m *metrics.Metrics) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		err := handler(srv, ss)
		record(ss.Context(), m, info.FullMethod, start, err, "gRPC stream completed")
		return err
	}
}

func record(ctx context.Context, m *metrics.Metrics, method string, start time.Time, err error, msg string) {
	code := status.Code(err)
	m.RecordRPC(method, code.String())

	logger := callLogger(ctx)
	event := logger.Debug()
	switch {
	case code == codes.Internal || code == codes.Unknown || code == codes.DataLoss:
		event = logger.Error().Err(err)
	case err != nil:
		event = logger.Warn().Err(err)
	case strings.HasPrefix(method, healthCheckPrefix):
		// Health checks are polled; keep them at trace.
		event = logger.Trace()
	}
	event.
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Msg(msg)
}

// callLogger tags the logger with the caller's session and address when known.
func callLogger(ctx context.Context) zerolog.Logger {
	var logger zerolog.Logger
	if md, ok := metadata.FromIncomingContext(ctx); ok && len(md.Get(SessionMetadataKey)) > 0 {
		logger = logging.WithSessionComponent(md.Get(SessionMetadataKey)[0], "grpc")
	} else {
		logger = logging.WithComponent("grpc")
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		logger = logger.With().Str("peer", p.Addr.String()).Logger()
	}
	return logger
}
