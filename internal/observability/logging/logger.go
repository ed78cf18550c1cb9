// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter initializes the global logger writing to out.
func InitWithWriter(cfg Config, out io.Writer) {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := out
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Str("service", "interview-session-service").
		Logger()
}

// Logger returns the global service logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithSession returns a logger with session context.
func WithSession(sessionId string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionId).
		Logger()
}

// WithSessionComponent returns a logger with session and component context.
func WithSessionComponent(sessionId, component string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionId).
		Str("component", component).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}
