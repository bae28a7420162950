package types

import "time"

type Eligibility string

const (
	Eligible Eligibility = "ELIGIBLE"
	Excluded Eligibility = "EXCLUDED"
)

// ScoreRecord is one eligible call's contribution to an agent's rollup.
type ScoreRecord struct {
	CallID     string            `json:"call_id"`
	AgentName  string            `json:"agent_name"`
	Scores     map[Dimension]int `json:"scores"`
	Mean       float64           `json:"mean_score"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// AgentPerformance is the aggregate row kept per agent. Dimension averages
// only cover calls where that dimension was scored.
type AgentPerformance struct {
	AgentName      string                `json:"agent_name"`
	TotalCalls     int                   `json:"total_calls"`
	AverageOverall float64               `json:"average_overall_score"`
	Averages       map[Dimension]float64 `json:"averages"`
	LastUpdated    time.Time             `json:"last_updated"`
}

// IndexEntry is the master index row written for every call.
type IndexEntry struct {
	CallID            string        `json:"call_id"`
	RecordKey         string        `json:"record_key"`
	AgentName         string        `json:"agent_name,omitempty"`
	ReviewReasons     ReviewReasons `json:"manual_review_reasons"`
	NeedsReview       bool          `json:"needs_manual_review"`
	Eligibility       Eligibility   `json:"eligibility"`
	MeanScore         *float64      `json:"overall_score,omitempty"`
	FlaggedCategories []string      `json:"flagged_categories,omitempty"`
	Status            string        `json:"status"`
	RecordedAt        time.Time     `json:"recorded_at"`
}
