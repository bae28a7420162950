package aggregator

import (
	"time"

	"call-analytics-go/internal/types"
)

// Gate decides whether a call's scores may move aggregate agent statistics.
// It has no side effects.
func Gate(st *types.CallState) types.Eligibility {
	if st == nil || !st.ReviewReasons.Empty() {
		return types.Excluded
	}
	if _, ok := st.AgentName(); !ok {
		return types.Excluded
	}
	if st.Quality.Incomplete() {
		return types.Excluded
	}
	return types.Eligible
}

// ScoreRecordFor builds the rollup contribution of an eligible call.
func ScoreRecordFor(st *types.CallState, at time.Time) (types.ScoreRecord, bool) {
	agent, ok := st.AgentName()
	if !ok || st.Quality == nil {
		return types.ScoreRecord{}, false
	}
	q := st.Quality.Normalized()
	mean, ok := q.Mean()
	if !ok {
		return types.ScoreRecord{}, false
	}
	scores := make(map[types.Dimension]int, len(q.Scores))
	for _, d := range types.Dimensions {
		if v, ok := q.Score(d); ok {
			scores[d] = v
		}
	}
	return types.ScoreRecord{
		CallID:     st.CallID,
		AgentName:  agent,
		Scores:     scores,
		Mean:       mean,
		RecordedAt: at,
	}, true
}

// Aggregate folds one agent's score records into its performance row.
func Aggregate(agent string, records []types.ScoreRecord, now time.Time) types.AgentPerformance {
	perf := types.AgentPerformance{
		AgentName:   agent,
		Averages:    map[types.Dimension]float64{},
		LastUpdated: now,
	}
	sums := map[types.Dimension]int{}
	counts := map[types.Dimension]int{}
	overall := 0.0
	for _, r := range records {
		perf.TotalCalls++
		overall += r.Mean
		for d, v := range r.Scores {
			sums[d] += v
			counts[d]++
		}
	}
	if perf.TotalCalls > 0 {
		perf.AverageOverall = overall / float64(perf.TotalCalls)
	}
	for _, d := range types.Dimensions {
		if counts[d] > 0 {
			perf.Averages[d] = float64(sums[d]) / float64(counts[d])
		}
	}
	return perf
}
