package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func TestScoreJSONKeepsOnlyScoredDimensions(t *testing.T) {
	llm := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		assert.True(t, strings.HasPrefix(prompt, taskScoring))
		assert.Contains(t, prompt, "Call Summary:\nlost parcel")
		return `{"tone_score": 7.6, "resolution_score": 12, "feedback": "ok", "strengths": ["calm"]}`, nil
	})
	q, err := NewScorer(llm, nil).Score(context.Background(), sampleTurns, &types.Summary{Brief: "lost parcel"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Count())
	tone, _ := q.Score(types.DimensionTone)
	assert.Equal(t, 8, tone)
	res, _ := q.Score(types.DimensionResolution)
	assert.Equal(t, 10, res)
	_, ok := q.Score(types.DimensionProfessionalism)
	assert.False(t, ok, "absent dimensions are not defaulted")
	assert.Equal(t, []string{"calm"}, q.Strengths)
}

func TestScoreFallsBackToText(t *testing.T) {
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		return "Tone and empathy: 6\nProfessionalism: 8/10\nOverall the agent did fine.", nil
	})
	q, err := NewScorer(llm, nil).Score(context.Background(), sampleTurns, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, q.Count())
	assert.False(t, q.Incomplete())
	assert.Equal(t, "partial extraction from unstructured model output", q.Feedback)
}

func TestScoreWithNoScores(t *testing.T) {
	llm := CompleterFunc(func(context.Context, string) (string, error) {
		return `{"feedback": "could not judge"}`, nil
	})
	q, err := NewScorer(llm, nil).Score(context.Background(), sampleTurns, nil, nil)
	assert.Nil(t, q)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestScorePropagatesModelErrors(t *testing.T) {
	llm := CompleterFunc(func(context.Context, string) (string, error) { return "", errors.New("timeout") })
	_, err := NewScorer(llm, nil).Score(context.Background(), sampleTurns, nil, nil)
	assert.EqualError(t, err, "timeout")
}

func TestScoresFromText(t *testing.T) {
	q := ScoresFromText("TONE: 9\nResolution score: 4.4\nResponse appropriateness: 7")
	assert.Equal(t, 3, q.Count())
	v, _ := q.Score(types.DimensionResolution)
	assert.Equal(t, 4, v)
	assert.Zero(t, ScoresFromText("no numbers").Count())
}
