package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func TestMockCompleterEndToEnd(t *testing.T) {
	ctx := context.Background()
	llm := MockCompleter{}

	res, err := NewIntakeExtractor(llm, nil).Extract(ctx, billingCall)
	require.NoError(t, err)
	agent, ok := res.Metadata.Agent()
	require.True(t, ok)
	assert.Equal(t, "Sarah", agent)

	summary, err := NewSummarizer(llm, nil).Summarize(ctx, res.Turns, res.Metadata)
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Brief)

	q, err := NewScorer(llm, nil).Score(ctx, res.Turns, summary, res.Metadata)
	require.NoError(t, err)
	assert.Equal(t, len(types.Dimensions), q.Count())
	mean, _ := q.Mean()
	assert.InDelta(t, 8.0, mean, 1e-9)
}

func TestMockIntakeWithoutIntroduction(t *testing.T) {
	text := `Agent: Good morning, how may I help you with your account today?
Customer: I would like to update the billing address on my account please.
Agent: Certainly, I can help with that right away.`
	res, err := NewIntakeExtractor(MockCompleter{}, nil).Extract(context.Background(), text)
	require.NoError(t, err)
	_, ok := res.Metadata.Agent()
	assert.False(t, ok)
}
