package challenge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/clock"
	"interview-session-service/internal/models"
)

var testQueue = []models.SideTaskItem{
	{ID: "q1", Text: "Describe your last project.", Kind: "Behavioral", Position: 0},
	{ID: "q2", Text: "Reverse a linked list.", Kind: models.SideTaskKindCoding, Position: 1},
	{ID: "q3", Text: "Why this company?", Kind: "Behavioral", Position: 2},
	{ID: "q4", Text: "Find the longest palindrome.", Kind: models.SideTaskKindCoding, Position: 3},
}

type activations struct {
	items []models.SideTaskItem
	err   error
}

func (a *activations) fn(item models.SideTaskItem) error {
	if a.err != nil {
		return a.err
	}
	a.items = append(a.items, item)
	return nil
}

func newTestDetector(queue []models.SideTaskItem) (*Detector, *clock.Fake, *activations) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	acts := &activations{}
	return NewDetector("session-test", DefaultConfig(), clk, queue, acts.fn), clk, acts
}

func TestScan_MarkerStrippedAndScheduled(t *testing.T) {
	d, clk, acts := newTestDetector(testQueue)

	res := d.Scan("Let's try a coding exercise. [CODING_CHALLENGE]")
	assert.Equal(t, "Let's try a coding exercise.", res.Text)
	assert.True(t, res.Triggered)
	assert.Equal(t, StrategyMarker, res.Strategy)
	assert.Equal(t, "q2", res.Item.ID)
	assert.True(t, d.Pending())

	clk.Advance(1999 * time.Millisecond)
	assert.Empty(t, acts.items)

	clk.Advance(time.Millisecond)
	require.Len(t, acts.items, 1)
	assert.Equal(t, "q2", acts.items[0].ID)
	assert.Equal(t, 2, d.Cursor())

	item, ok := d.Active()
	assert.True(t, ok)
	assert.Equal(t, "q2", item.ID)
}

func TestScan_MarkerOnlyYieldsEmptyText(t *testing.T) {
	d, _, _ := newTestDetector(testQueue)

	res := d.Scan("  [CODING_CHALLENGE]  ")
	assert.Equal(t, "", res.Text)
	assert.True(t, res.Triggered)
}

func TestScan_SelectionWrapsAround(t *testing.T) {
	d, clk, _ := newTestDetector(testQueue)

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)
	_, _, err := d.Abort()
	require.NoError(t, err)

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)
	item, _ := d.Active()
	assert.Equal(t, "q4", item.ID)
	assert.Equal(t, 4, d.Cursor())
	_, _, _ = d.Abort()

	// Nothing left after the cursor: search restarts from the beginning and
	// the cursor does not move backwards.
	res := d.Scan("[CODING_CHALLENGE]")
	assert.Equal(t, "q2", res.Item.ID)
	clk.Advance(2 * time.Second)
	assert.Equal(t, 4, d.Cursor())
}

func TestScan_GenericItem(t *testing.T) {
	d, _, _ := newTestDetector(nil)

	res := d.Scan("Write a function that merges intervals. [CODING_CHALLENGE]")
	assert.True(t, strings.HasPrefix(res.Item.ID, "generic-coding-"))
	assert.Equal(t, "Write a function that merges intervals.", res.Item.Text)
	assert.True(t, res.Item.IsCoding())

	d2, _, _ := newTestDetector(nil)
	res = d2.Scan("[CODING_CHALLENGE]")
	assert.Equal(t, GenericQuestionText, res.Item.Text)
}

func TestScan_KeywordRequiresQueue(t *testing.T) {
	d, _, _ := newTestDetector(nil)
	res := d.Scan("Can you implement an LRU cache?")
	assert.False(t, res.Triggered)

	d, clk, acts := newTestDetector(testQueue)
	res = d.Scan("Can you IMPLEMENT an LRU cache?")
	assert.True(t, res.Triggered)
	assert.Equal(t, StrategyKeyword, res.Strategy)
	assert.Equal(t, "Can you IMPLEMENT an LRU cache?", res.Text)

	clk.Advance(2 * time.Second)
	assert.Empty(t, acts.items)
	clk.Advance(time.Second)
	assert.Len(t, acts.items, 1)
}

func TestScan_DetectionWhilePendingReschedules(t *testing.T) {
	d, clk, acts := newTestDetector(nil)

	first := d.Scan("[CODING_CHALLENGE] Reverse a string.")
	clk.Advance(time.Second)
	second := d.Scan("[CODING_CHALLENGE] Merge two sorted lists.")
	require.True(t, second.Triggered)
	assert.NotEqual(t, first.Item.ID, second.Item.ID)

	// The first timer fires with the latest selection.
	clk.Advance(time.Second)
	require.Len(t, acts.items, 1)
	assert.Equal(t, "Merge two sorted lists.", acts.items[0].Text)
	assert.False(t, d.Pending())

	// The second timer finds the challenge already open.
	clk.Advance(5 * time.Second)
	assert.Len(t, acts.items, 1)
	assert.False(t, first.Cancel())
}

func TestScan_NoTriggerWhileActive(t *testing.T) {
	d, clk, acts := newTestDetector(testQueue)

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)
	require.Len(t, acts.items, 1)

	res := d.Scan("[CODING_CHALLENGE]")
	assert.False(t, res.Triggered)
	clk.Advance(5 * time.Second)
	assert.Len(t, acts.items, 1)
}

func TestScan_SuppressWhilePending(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC))
	acts := &activations{}
	cfg := DefaultConfig()
	cfg.SuppressWhilePending = true
	d := NewDetector("session-test", cfg, clk, testQueue, acts.fn)

	d.Scan("[CODING_CHALLENGE]")
	res := d.Scan("[CODING_CHALLENGE] again")
	assert.False(t, res.Triggered)

	clk.Advance(2 * time.Second)
	clk.Advance(5 * time.Second)
	assert.Len(t, acts.items, 1)
}

func TestScan_CancelStopsRescheduled(t *testing.T) {
	d, clk, acts := newTestDetector(testQueue)

	d.Scan("[CODING_CHALLENGE]")
	second := d.Scan("[CODING_CHALLENGE]")
	assert.True(t, second.Cancel())

	clk.Advance(5 * time.Second)
	assert.Empty(t, acts.items)
	assert.False(t, d.Pending())
}

func TestScan_CancelHandle(t *testing.T) {
	d, clk, acts := newTestDetector(testQueue)

	res := d.Scan("[CODING_CHALLENGE]")
	require.NotNil(t, res.Cancel)
	assert.True(t, res.Cancel())
	assert.False(t, res.Cancel())

	clk.Advance(5 * time.Second)
	assert.Empty(t, acts.items)
	assert.Equal(t, 0, d.Cursor())

	d.Scan("[CODING_CHALLENGE]")
	assert.True(t, d.CancelPending())
	assert.False(t, d.Pending())
}

func TestActivationRejected(t *testing.T) {
	d, clk, acts := newTestDetector(testQueue)
	acts.err = errors.New("not active")

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)

	_, ok := d.Active()
	assert.False(t, ok)
	assert.Equal(t, 0, d.Cursor())
}

func TestSubmit(t *testing.T) {
	d, clk, _ := newTestDetector(testQueue)

	_, _, err := d.Submit("x", "go")
	assert.ErrorIs(t, err, ErrNoActiveChallenge)

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)
	clk.Advance(125 * time.Second)

	sub, msg, err := d.Submit("func f() {}", "go")
	require.NoError(t, err)
	assert.Equal(t, "Reverse a linked list.", sub.Question)
	assert.Equal(t, 125*time.Second, sub.TimeSpent)
	assert.False(t, sub.Skipped)
	assert.Equal(t, "I've completed the coding challenge. Time spent: 2 minutes and 5 seconds. Here's my go solution:\n```go\nfunc f() {}\n```\n\nPlease review my solution and provide feedback.", msg)

	_, ok := d.Active()
	assert.False(t, ok)
}

func TestAbort(t *testing.T) {
	d, clk, _ := newTestDetector(testQueue)

	d.Scan("[CODING_CHALLENGE]")
	clk.Advance(2 * time.Second)

	sub, msg, err := d.Abort()
	require.NoError(t, err)
	assert.True(t, sub.Skipped)
	assert.Equal(t, AbortMessage, msg)
}

func TestFormatTimeSpent(t *testing.T) {
	cases := map[int]string{
		0:   "0 seconds",
		1:   "1 second",
		45:  "45 seconds",
		60:  "1 minute and 0 seconds",
		61:  "1 minute and 1 second",
		125: "2 minutes and 5 seconds",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatTimeSpent(in), "seconds %d", in)
	}
}

func TestContainsKeyword(t *testing.T) {
	assert.True(t, ContainsKeyword("Have you used LeetCode?", DefaultKeywords))
	assert.False(t, ContainsKeyword("Tell me about your team.", DefaultKeywords))
}
