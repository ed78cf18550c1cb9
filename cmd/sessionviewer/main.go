// Command sessionviewer follows live sessions in the browser. It consumes the
// status, transcript and feedback topics and pushes every event over a
// WebSocket.
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"interview-session-service/internal/config"
	"interview-session-service/internal/observability/logging"
)

//go:embed static/*
var staticFiles embed.FS

func newMux(hub *Hub) (*http.ServeMux, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", wsHandler(hub))
	return mux, nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", strings.Join(cfg.Kafka.Brokers, ","), "Kafka brokers (comma-separated)")
	since := flag.Duration("since", time.Hour, "replay events newer than this on start")
	flag.Parse()

	logging.Init(logging.Config{Level: cfg.Observability.LogLevel, Format: "console"})

	if *brokers == "" {
		*brokers = "localhost:9092"
	}
	brokerList := strings.Split(*brokers, ",")
	topics := []string{cfg.Kafka.TopicStatus, cfg.Kafka.TopicPartial, cfg.Kafka.TopicFinal, cfg.Kafka.TopicFeedback}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx)
	for _, topic := range topics {
		go consumeKafka(ctx, hub, brokerList, topic, *since)
	}

	mux, err := newMux(hub)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load static files")
	}
	server := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("url", "http://localhost:"+*port).
		Strs("brokers", brokerList).
		Strs("topics", topics).
		Msg("Session viewer starting")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}
