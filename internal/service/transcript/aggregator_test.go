package transcript

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
)

var epoch = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

func newTestAggregator(t *testing.T, cfg Config) (*Aggregator, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	return NewAggregator("session-test", cfg, clk, nil), clk
}

func TestAggregator_RemoteUserSupersededByFreshLocal(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "I built a cache", Complete: true, At: epoch})

	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUser, Text: "I built a cash", Complete: true, At: epoch.Add(2 * time.Second)})
	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.Equal(t, ReasonSuperseded, res.Reason)

	res = agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUser, Text: "and then I shipped it", Complete: true, At: epoch.Add(10 * time.Second)})
	assert.Equal(t, OutcomeOpened, res.Outcome)

	entries := agg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "I built a cache", entries[0].Text)
	assert.Equal(t, "and then I shipped it", entries[1].Text)
}

func TestAggregator_RemoteUserAcceptedWithoutLocal(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUser, Text: "hello", Complete: true, At: epoch})
	assert.Equal(t, OutcomeOpened, res.Outcome)
}

func TestAggregator_TouchHoldsFreshness(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Touch(SourceLocal, epoch.Add(4*time.Second))
	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUser, Text: "hello", At: epoch.Add(8 * time.Second)})
	assert.Equal(t, OutcomeDiscarded, res.Outcome)

	agg.Touch(SourceRemote, epoch.Add(20*time.Second))
	res = agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUser, Text: "hello", At: epoch.Add(9500 * time.Millisecond)})
	assert.Equal(t, OutcomeOpened, res.Outcome)
}

func TestAggregator_AgentAndSynthesizedAlwaysAccepted(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "my answer", Complete: true, At: epoch})

	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Thanks.", Complete: true, At: epoch.Add(time.Second)})
	assert.Equal(t, OutcomeOpened, res.Outcome)

	res = agg.Ingest(Fragment{Source: SourceSynthesized, Speaker: models.SpeakerUser, Text: "I'd like to skip this coding question.", Complete: true, At: epoch.Add(2 * time.Second)})
	assert.Equal(t, OutcomeOpened, res.Outcome)
	assert.Len(t, agg.Entries(), 3)
}

func TestAggregator_Coalescing(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Tell me", At: epoch})
	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: " about yourself.", At: epoch})
	assert.Equal(t, OutcomeAppended, res.Outcome)
	assert.False(t, res.Entry.Complete)

	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "Sure", At: epoch.Add(time.Second)})

	entries := agg.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Tell me about yourself.", entries[0].Text)
	assert.True(t, entries[0].Complete, "switching speaker closes the previous entry")
	assert.False(t, entries[1].Complete)
	assert.Less(t, entries[0].ID, entries[1].ID)
}

func TestAggregator_ChunksConcatenateAsSent(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	for _, chunk := range []string{"Tell me about inter", "views you", " enjoyed. "} {
		agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: chunk, At: epoch})
	}
	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "**Next** Why?", Complete: true, At: epoch})

	assert.Equal(t, OutcomeAppended, res.Outcome)
	assert.Equal(t, "Tell me about interviews you enjoyed. Why?", res.Entry.Text)
	assert.Equal(t, 7, WordCount(res.Entry.Text))
}

func TestAggregator_ClosedEntryIsTrimmed(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Thanks, ", At: epoch})
	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "sure", At: epoch})

	entries := agg.Finalize()
	require.Len(t, entries, 2)
	assert.Equal(t, "Thanks,", entries[0].Text)
	assert.True(t, entries[1].Complete)
}

func TestAggregator_ArbitratesOnArrivalTime(t *testing.T) {
	agg, clk := newTestAggregator(t, DefaultConfig())
	spoken := clk.Now()

	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "I built a cache", Complete: true, At: clk.Now()})
	payload, err := EncodeDataMessage(models.SpeakerUser, "I built a cash", true, spoken)
	require.NoError(t, err)

	// Arrives inside the window: superseded.
	clk.Advance(2 * time.Second)
	f, err := ParseDataMessage(payload, clk.Now())
	require.NoError(t, err)
	res := agg.Ingest(f)
	assert.Equal(t, ReasonSuperseded, res.Reason)

	// Same producer timestamp, but it arrives after the window: accepted.
	clk.Advance(8 * time.Second)
	later, err := EncodeDataMessage(models.SpeakerUser, "and then I shipped it", true, spoken)
	require.NoError(t, err)
	f, err = ParseDataMessage(later, clk.Now())
	require.NoError(t, err)
	res = agg.Ingest(f)
	assert.Equal(t, OutcomeOpened, res.Outcome)
	assert.Equal(t, clk.Now(), res.Entry.Timestamp)
}

func TestAggregator_RemoteClockAheadStillSuperseded(t *testing.T) {
	agg, clk := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceLocal, Speaker: models.SpeakerUser, Text: "yes", Complete: true, At: clk.Now()})
	payload, err := EncodeDataMessage(models.SpeakerUser, "yes.", true, clk.Now().Add(time.Minute))
	require.NoError(t, err)

	clk.Advance(time.Second)
	f, err := ParseDataMessage(payload, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, ReasonSuperseded, agg.Ingest(f).Reason)
}

func TestAggregator_CompleteClosesEntry(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "First question.", Complete: true, At: epoch})
	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Second question.", Complete: true, At: epoch})

	assert.Equal(t, OutcomeOpened, res.Outcome)
	assert.Len(t, agg.Entries(), 2)
}

func TestAggregator_CumulativeReplacesText(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Walk me", Cumulative: true, At: epoch})
	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Walk me through", Cumulative: true, At: epoch})
	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Walk me through your design.", Cumulative: true, Complete: true, At: epoch})

	entries := agg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Walk me through your design.", entries[0].Text)
	assert.True(t, entries[0].Complete)
}

func TestAggregator_DuplicateCompleteDropped(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Welcome!", Complete: true, At: epoch})
	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "Welcome!", Complete: true, At: epoch})

	assert.Equal(t, OutcomeDiscarded, res.Outcome)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Len(t, agg.Entries(), 1)
}

func TestAggregator_DiscardsEmptyAndUnknown(t *testing.T) {
	agg, _ := newTestAggregator(t, DefaultConfig())

	res := agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "**Considering the answer**\n*nods*", At: epoch})
	assert.Equal(t, ReasonEmpty, res.Reason)

	res = agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerUnknown, Text: "hello", At: epoch})
	assert.Equal(t, ReasonUnknownSpeaker, res.Reason)

	assert.Empty(t, agg.Entries())
}

func TestAggregator_ArchivesBeyondWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInMemory = 3
	agg, _ := newTestAggregator(t, cfg)

	speakers := []models.Speaker{models.SpeakerAI, models.SpeakerUser}
	for i := 0; i < 5; i++ {
		agg.Ingest(Fragment{Source: SourceSynthesized, Speaker: speakers[i%2], Text: string(rune('a' + i)), Complete: true, At: epoch})
	}

	assert.Len(t, agg.Recent(), 3)
	entries := agg.Entries()
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.ID)
	}
}

func TestAggregator_DebouncedObserver(t *testing.T) {
	clk := clock.NewFake(epoch)
	var mu sync.Mutex
	var calls [][]models.TranscriptEntry
	agg := NewAggregator("session-test", DefaultConfig(), clk, func(entries []models.TranscriptEntry) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, entries)
	})

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "one", At: epoch})
	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "two", At: epoch})
	clk.Advance(299 * time.Millisecond)
	assert.Empty(t, calls)

	clk.Advance(time.Millisecond)
	require.Len(t, calls, 1)
	assert.Equal(t, "one two", calls[0][0].Text)

	agg.Ingest(Fragment{Source: SourceRemote, Speaker: models.SpeakerAI, Text: "three", At: epoch})
	final := agg.Finalize()
	require.Len(t, calls, 2)
	assert.True(t, final[0].Complete)
}
