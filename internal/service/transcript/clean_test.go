package transcript

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/models"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Tell me about a project.", "Tell me about a project."},
		{"bold header", "**Assessing the answer** Tell me more.", "Tell me more."},
		{"stray markers", "This is **important", "This is important"},
		{"stage direction", "Great.\n*smiles*\nNext question.", "Great.\nNext question."},
		{"parenthetical", "(pauses)\nOkay.", "Okay."},
		{"blank lines", "\n\nHello\n\n", "Hello"},
		{"only markup", "**Thinking**", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestCleanFragment(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Tell me about inter", "Tell me about inter"},
		{" enjoyed.", " enjoyed."},
		{"Tell me ", "Tell me "},
		{" **Noting** okay\n", " okay "},
		{" **Thinking** ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CleanFragment(tc.in), "input %q", tc.in)
		assert.Equal(t, tc.want, CleanFragment(CleanFragment(tc.in)), "input %q", tc.in)
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"**Header** body",
		"***odd** text",
		"  indented\n* bullet\n(aside) \n tail ",
		"a ** b ** c",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "input %q", in)
	}
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 0, WordCount("   \n\t"))
	assert.Equal(t, 4, WordCount("  one two\nthree\tfour "))
}

func TestNormalizeSpeaker(t *testing.T) {
	cases := map[string]models.Speaker{
		"ai":        models.SpeakerAI,
		"Assistant": models.SpeakerAI,
		"MODEL":     models.SpeakerAI,
		"agent":     models.SpeakerAI,
		"user":      models.SpeakerUser,
		"Candidate": models.SpeakerUser,
		"moderator": models.SpeakerUnknown,
		"":          models.SpeakerUnknown,
	}
	for label, want := range cases {
		assert.Equal(t, want, NormalizeSpeaker(label), "label %q", label)
	}
	assert.Equal(t, models.SpeakerAI, SpeakerFrom("", "assistant", "user"))
}

func TestParseDataMessage(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	f, err := ParseDataMessage([]byte(`{"type":"transcript","role":"assistant","text":"Hi","isComplete":true,"timestamp":1700000001000}`), now)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, f.Source)
	assert.Equal(t, models.SpeakerAI, f.Speaker)
	assert.Equal(t, "Hi", f.Text)
	assert.True(t, f.Complete)
	assert.Equal(t, now, f.At, "arbitration uses arrival time")
	assert.Equal(t, int64(1700000001000), f.SentAt.UnixMilli())

	f, err = ParseDataMessage([]byte(`{"type":"transcript","speaker":"user","transcript":"yes","cumulative":true}`), now)
	require.NoError(t, err)
	assert.True(t, f.Cumulative)
	assert.Equal(t, now, f.At)
	assert.True(t, f.SentAt.IsZero())

	_, err = ParseDataMessage([]byte(`{"type":"ping"}`), now)
	assert.ErrorIs(t, err, ErrNotTranscript)

	_, err = ParseDataMessage([]byte(`{not json`), now)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)

	_, err = ParseDataMessage([]byte(`{"type":"transcript","speaker":"bot","text":"x"}`), now)
	assert.ErrorAs(t, err, &perr)
}

func TestEncodeDataMessage(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	payload, err := EncodeDataMessage(models.SpeakerUser, "hello", true, at)
	require.NoError(t, err)

	f, err := ParseDataMessage(payload, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, models.SpeakerUser, f.Speaker)
	assert.Equal(t, "hello", f.Text)
	assert.Equal(t, at.UnixMilli(), f.SentAt.UnixMilli())
}
