package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/models"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestMergeCommand(t *testing.T) {
	persisted := writeFile(t, "persisted.json", `{"executiveSummary":"persisted","generatedAt":"2026-03-02T09:00:00Z"}`)
	instant := writeFile(t, "instant.json", `{"executiveSummary":"instant","generatedAt":"2026-03-02T09:05:00Z"}`)

	out, err := run(t, "merge", persisted, instant)
	require.NoError(t, err)
	var got models.FeedbackReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "instant", got.ExecutiveSummary)

	out, err = run(t, "merge", "-", persisted)
	require.NoError(t, err)
	assert.Contains(t, out, `"persisted"`)

	_, err = run(t, "merge", "-", "-")
	assert.Error(t, err)
}

func TestFeedbackCommand_TooShort(t *testing.T) {
	path := writeFile(t, "transcript.json", `[
		{"id":1,"speaker":"ai","text":"Tell me about yourself.","isComplete":true},
		{"id":2,"speaker":"user","text":"I write Go.","isComplete":true}
	]`)

	out, err := run(t, "feedback", path, "--role", "SRE")
	require.NoError(t, err)
	var got models.FeedbackReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got.ExecutiveSummary, "too brief (2 exchanges)")
	assert.Contains(t, got.ExecutiveSummary, "SRE position")
}

func TestFeedbackCommand_WritesFile(t *testing.T) {
	entries := make([]models.TranscriptEntry, 10)
	for i := range entries {
		entries[i] = models.TranscriptEntry{ID: int64(i + 1), Speaker: models.SpeakerUser, Text: "answer", Complete: true}
	}
	body, err := json.Marshal(map[string]any{"transcript": entries, "config": models.SessionConfig{Role: "Backend"}})
	require.NoError(t, err)
	path := writeFile(t, "session.json", string(body))
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err = run(t, "feedback", path, "--out", outPath)
	require.NoError(t, err)

	var got models.FeedbackReport
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []string{"Please try again later"}, got.ActionPlan)
}

func TestLoadTranscriptFile(t *testing.T) {
	req, err := loadTranscriptFile(writeFile(t, "a.json", `{"config":{"role":"QA"}}`))
	require.NoError(t, err)
	assert.Equal(t, "QA", req.Config.Role)
	assert.NotNil(t, req.Transcript)

	_, err = loadTranscriptFile(writeFile(t, "b.json", `not json`))
	assert.Error(t, err)
}
