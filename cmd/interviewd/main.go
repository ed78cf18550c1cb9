// Command interviewd serves the feedback API, the gRPC health service and the
// observability endpoints.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"interview-session-service/internal/app"
	"interview-session-service/internal/config"
	httpapi "interview-session-service/internal/http"
	"interview-session-service/internal/observability"
	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/observability/metrics"
)

const healthServiceName = "interview.session.FeedbackService"

func main() {
	// A missing .env is fine; the environment is authoritative.
	_ = godotenv.Load()
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	obs := observability.NewServer(cfg.Observability.MetricsAddr)
	obs.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, backends, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}
	defer backends.Close()
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}
	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC health service started")
		if err := server.Serve(lis); err != nil {
			log.Error().Err(err).Msg("gRPC serve failed")
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Feedback API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP serve failed")
			stop()
		}
	}()

	obs.SetReady(true)
	<-ctx.Done()

	log.Info().Msg("Shutting down")
	obs.SetReady(false)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	server.GracefulStop()
	application.Shutdown()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Observability shutdown incomplete")
	}
}
