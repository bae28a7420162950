package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/types"
)

func scoredState(t *testing.T, agent string, scores map[types.Dimension]int) *types.CallState {
	t.Helper()
	st, err := types.NewCallState("call-1", types.TextInput("Agent: hello"))
	require.NoError(t, err)
	require.NoError(t, st.SetSafety(types.Safe()))
	if agent != "" {
		st.Metadata = &types.Metadata{AgentName: &agent}
	}
	if scores != nil {
		st.Quality = &types.Quality{}
		for d, v := range scores {
			st.Quality.SetScore(d, v)
		}
	}
	return st
}

func TestGate(t *testing.T) {
	full := map[types.Dimension]int{types.DimensionTone: 8, types.DimensionResolution: 6}

	assert.Equal(t, types.Eligible, Gate(scoredState(t, "Sarah", full)))
	assert.Equal(t, types.Excluded, Gate(nil))
	assert.Equal(t, types.Excluded, Gate(scoredState(t, "", full)), "missing agent")
	assert.Equal(t, types.Excluded, Gate(scoredState(t, "Sarah", map[types.Dimension]int{types.DimensionTone: 9})), "one dimension")
	assert.Equal(t, types.Excluded, Gate(scoredState(t, "Sarah", nil)), "no quality")

	withReason := scoredState(t, "Sarah", full)
	withReason.AddReason(types.ReasonContentUnsafe)
	assert.Equal(t, types.Excluded, Gate(withReason))
}

func TestGateIsPure(t *testing.T) {
	st := scoredState(t, "", map[types.Dimension]int{types.DimensionTone: 8})
	Gate(st)
	Gate(st)
	assert.True(t, st.ReviewReasons.Empty())
	assert.Empty(t, st.StageErrors)
}

func TestScoreRecordFor(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st := scoredState(t, " Sarah ", map[types.Dimension]int{types.DimensionTone: 8, types.DimensionResponse: 5})

	rec, ok := ScoreRecordFor(st, at)
	require.True(t, ok)
	assert.Equal(t, "Sarah", rec.AgentName)
	assert.Equal(t, "call-1", rec.CallID)
	assert.InDelta(t, 6.5, rec.Mean, 1e-9)
	assert.Equal(t, map[types.Dimension]int{types.DimensionTone: 8, types.DimensionResponse: 5}, rec.Scores)
	assert.Equal(t, at, rec.RecordedAt)

	_, ok = ScoreRecordFor(scoredState(t, "", map[types.Dimension]int{types.DimensionTone: 8}), at)
	assert.False(t, ok)

	raw := scoredState(t, "Sarah", nil)
	raw.Quality = &types.Quality{Scores: map[types.Dimension]int{types.DimensionTone: 42, types.DimensionResolution: 8}}
	rec, ok = ScoreRecordFor(raw, at)
	require.True(t, ok)
	assert.Equal(t, map[types.Dimension]int{types.DimensionTone: 10, types.DimensionResolution: 8}, rec.Scores)
	assert.InDelta(t, 9.0, rec.Mean, 1e-9)
}

func TestAggregateAveragesOnlyPresentDimensions(t *testing.T) {
	now := time.Now().UTC()
	records := []types.ScoreRecord{
		{CallID: "a", Scores: map[types.Dimension]int{types.DimensionTone: 8, types.DimensionResolution: 6}, Mean: 7},
		{CallID: "b", Scores: map[types.Dimension]int{types.DimensionTone: 10, types.DimensionResponse: 8}, Mean: 9},
	}
	perf := Aggregate("Sarah", records, now)

	assert.Equal(t, "Sarah", perf.AgentName)
	assert.Equal(t, 2, perf.TotalCalls)
	assert.InDelta(t, 8.0, perf.AverageOverall, 1e-9)
	assert.InDelta(t, 9.0, perf.Averages[types.DimensionTone], 1e-9)
	assert.InDelta(t, 6.0, perf.Averages[types.DimensionResolution], 1e-9)
	assert.InDelta(t, 8.0, perf.Averages[types.DimensionResponse], 1e-9)
	_, ok := perf.Averages[types.DimensionProfessionalism]
	assert.False(t, ok, "unscored dimension must not appear as zero")
	assert.Equal(t, now, perf.LastUpdated)

	empty := Aggregate("Nobody", nil, now)
	assert.Equal(t, 0, empty.TotalCalls)
	assert.Zero(t, empty.AverageOverall)
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, TrendInsufficient, TrendOf([]float64{7}))
	assert.Equal(t, TrendImproving, TrendOf([]float64{5, 5, 8, 8}))
	assert.Equal(t, TrendDeclining, TrendOf([]float64{9, 9, 6, 6}))
	assert.Equal(t, TrendStable, TrendOf([]float64{7, 7.2, 7.1, 7.3}))
}

func TestRating(t *testing.T) {
	assert.Equal(t, "Outstanding", Rating(9.2))
	assert.Equal(t, "Excellent", Rating(8))
	assert.Equal(t, "Good", Rating(7.5))
	assert.Equal(t, "Satisfactory", Rating(6.1))
	assert.Equal(t, "Needs Improvement", Rating(5))
	assert.Equal(t, "Unsatisfactory", Rating(2))
}

func TestBuildReport(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []types.ScoreRecord
	// newest first to check ordering is not assumed
	for i := 5; i >= 0; i-- {
		tone := 9 - i/2
		records = append(records, types.ScoreRecord{
			CallID:     string(rune('a' + i)),
			Scores:     map[types.Dimension]int{types.DimensionTone: tone, types.DimensionResolution: 8},
			Mean:       float64(tone+8) / 2,
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	rep := BuildReport("Sarah", records)
	assert.Equal(t, 6, rep.TotalCalls)
	assert.Equal(t, base, rep.From)
	assert.Equal(t, base.Add(5*time.Hour), rep.To)
	assert.Equal(t, TrendDeclining, rep.Dimensions[types.DimensionTone].Trend)
	assert.Equal(t, TrendStable, rep.Dimensions[types.DimensionResolution].Trend)
	assert.Equal(t, 6, rep.Dimensions[types.DimensionTone].Samples)
	_, ok := rep.Dimensions[types.DimensionResponse]
	assert.False(t, ok)

	assert.InDelta(t, 8.0, rep.Overall.Average, 1e-9)
	assert.InDelta(t, 7.5, rep.Overall.Min, 1e-9)
	assert.InDelta(t, 8.5, rep.Overall.Max, 1e-9)
	assert.InDelta(t, 8.0, rep.Overall.Median, 1e-9)
	assert.Equal(t, "Excellent", rep.Rating)

	require.Len(t, rep.RecentCalls, 5)
	assert.Equal(t, "f", rep.RecentCalls[0].CallID, "most recent first")
}

func TestBuildReportEmpty(t *testing.T) {
	rep := BuildReport("Nobody", nil)
	assert.Zero(t, rep.TotalCalls)
	assert.Equal(t, "Unsatisfactory", rep.Rating)
	assert.Empty(t, rep.RecentCalls)
}
