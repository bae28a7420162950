package aggregator

import (
	"math"
	"sort"
	"time"

	"call-analytics-go/internal/types"
)

type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendDeclining    Trend = "declining"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// trendThreshold is how far the later half must move to count as a trend.
const trendThreshold = 0.5

const recentCalls = 5

type OverallStats struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
}

type DimensionStats struct {
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
	Trend   Trend   `json:"trend"`
}

type Report struct {
	AgentName   string                             `json:"agent_name"`
	TotalCalls  int                                `json:"total_calls"`
	From        time.Time                          `json:"from"`
	To          time.Time                          `json:"to"`
	Overall     OverallStats                       `json:"overall"`
	Dimensions  map[types.Dimension]DimensionStats `json:"dimensions"`
	Rating      string                             `json:"performance_rating"`
	RecentCalls []types.ScoreRecord                `json:"recent_calls"`
}

// BuildReport summarizes an agent's eligible calls. Records may arrive in any
// order.
func BuildReport(agent string, records []types.ScoreRecord) Report {
	rep := Report{
		AgentName:  agent,
		TotalCalls: len(records),
		Dimensions: map[types.Dimension]DimensionStats{},
	}
	if len(records) == 0 {
		rep.Rating = Rating(0)
		return rep
	}

	sorted := append([]types.ScoreRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
	})
	rep.From = sorted[0].RecordedAt
	rep.To = sorted[len(sorted)-1].RecordedAt

	means := make([]float64, len(sorted))
	for i, r := range sorted {
		means[i] = r.Mean
	}
	rep.Overall = overallStats(means)
	rep.Rating = Rating(rep.Overall.Average)

	for _, d := range types.Dimensions {
		var series []float64
		for _, r := range sorted {
			if v, ok := r.Scores[d]; ok {
				series = append(series, float64(v))
			}
		}
		if len(series) == 0 {
			continue
		}
		rep.Dimensions[d] = DimensionStats{
			Average: mean(series),
			Samples: len(series),
			Trend:   TrendOf(series),
		}
	}

	for i := len(sorted) - 1; i >= 0 && len(rep.RecentCalls) < recentCalls; i-- {
		rep.RecentCalls = append(rep.RecentCalls, sorted[i])
	}
	return rep
}

// TrendOf compares the mean of the later half of series with the earlier half.
func TrendOf(series []float64) Trend {
	if len(series) < 2 {
		return TrendInsufficient
	}
	mid := len(series) / 2
	diff := mean(series[mid:]) - mean(series[:mid])
	switch {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func Rating(avg float64) string {
	switch {
	case avg >= 9.0:
		return "Outstanding"
	case avg >= 8.0:
		return "Excellent"
	case avg >= 7.0:
		return "Good"
	case avg >= 6.0:
		return "Satisfactory"
	case avg >= 5.0:
		return "Needs Improvement"
	default:
		return "Unsatisfactory"
	}
}

func overallStats(vals []float64) OverallStats {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	st := OverallStats{
		Average: round2(mean(sorted)),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
	}
	n := len(sorted)
	if n%2 == 1 {
		st.Median = sorted[n/2]
	} else {
		st.Median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	st.Median = round2(st.Median)
	if n > 1 {
		m := mean(sorted)
		ss := 0.0
		for _, v := range sorted {
			ss += (v - m) * (v - m)
		}
		st.StdDev = round2(math.Sqrt(ss / float64(n-1)))
	}
	return st
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
