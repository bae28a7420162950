package dataset

import (
	"sort"

	"call-analytics-go/internal/processor"
)

type BatchSummary struct {
	TotalCalls    int            `json:"total_calls"`
	Accepted      int            `json:"accepted"`
	Rejected      int            `json:"rejected"`
	Flagged       int            `json:"flagged"`
	NeedsReview   int            `json:"needs_review"`
	PersistFailed int            `json:"persist_failed"`
	ByReason      map[string]int `json:"by_review_reason"`
	SlowestCalls  []string       `json:"slowest_calls"`
}

const slowestN = 3

// Summarize folds batch results into counts for the operator.
func Summarize(results []processor.BatchResult) BatchSummary {
	s := BatchSummary{TotalCalls: len(results), ByReason: map[string]int{}}
	for _, r := range results {
		if !r.Accepted {
			s.Rejected++
			continue
		}
		s.Accepted++
		if r.Flagged {
			s.Flagged++
		}
		if len(r.ReviewReasons) > 0 {
			s.NeedsReview++
		}
		for _, reason := range r.ReviewReasons {
			s.ByReason[reason]++
		}
		if r.Error != "" {
			s.PersistFailed++
		}
	}

	accepted := make([]processor.BatchResult, 0, s.Accepted)
	for _, r := range results {
		if r.Accepted {
			accepted = append(accepted, r)
		}
	}
	sort.SliceStable(accepted, func(i, j int) bool { return accepted[i].DurationMs > accepted[j].DurationMs })
	for i := 0; i < len(accepted) && i < slowestN; i++ {
		s.SlowestCalls = append(s.SlowestCalls, accepted[i].CallID)
	}
	return s
}
