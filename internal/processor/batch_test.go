package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func TestBatchProcessesEveryJob(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	jobs := []Job{
		{CallID: "a", Input: types.TextInput(sampleText)},
		{CallID: "b", Input: types.TextInput("")},
		{CallID: "c", Input: types.AudioInput([]byte("RIFF"), "wav")},
		{CallID: "d", Input: types.TextInput(sampleText)},
	}
	results := o.Batch(context.Background(), jobs, 2)
	require.Len(t, results, 4)

	assert.Equal(t, "a", results[0].CallID)
	assert.True(t, results[0].Accepted)
	assert.Empty(t, results[0].Error)

	assert.False(t, results[1].Accepted, "empty text is rejected at entry")
	assert.NotEmpty(t, results[1].Error)

	assert.True(t, results[2].Accepted)
	assert.True(t, results[3].Accepted)
	assert.Equal(t, 3, h.recorder.calls)
}

func TestBatchKeepsCallsIndependent(t *testing.T) {
	h := newHarness()
	h.intake.agent = ""
	o := h.orchestrator(t)

	results := o.Batch(context.Background(), []Job{
		{CallID: "x", Input: types.TextInput(sampleText)},
		{CallID: "y", Input: types.TextInput(sampleText)},
	}, 0)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, []string{"MISSING_AGENT_NAME"}, r.ReviewReasons)
		assert.False(t, r.Flagged)
	}
	require.Len(t, h.recorder.records, 2)
	assert.NotSame(t, h.recorder.records[0], h.recorder.records[1])
}
