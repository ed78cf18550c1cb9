package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "debug", Format: "json"}, &buf)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger := WithSessionComponent("sess-1", "controller")
	logger.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["sessionId"] != "sess-1" {
		t.Errorf("expected sessionId sess-1, got %v", entry["sessionId"])
	}
	if entry["component"] != "controller" {
		t.Errorf("expected component controller, got %v", entry["component"])
	}
	if entry["service"] != "interview-session-service" {
		t.Errorf("expected service field, got %v", entry["service"])
	}
}

func TestInitWithWriter_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(Config{Level: "loud"}, &buf)

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level, got %v", zerolog.GlobalLevel())
	}

	log.Debug().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected debug line to be filtered, got %q", buf.String())
	}
}
