// internal/types/quality.go
package types

import "math"

// --------------------------------------------
// Quality scoring dimensions
// --------------------------------------------
type Dimension string

const (
	DimensionTone            Dimension = "tone"
	DimensionProfessionalism Dimension = "professionalism"
	DimensionResolution      Dimension = "resolution"
	DimensionResponse        Dimension = "response"
)

// Dimensions lists every scored dimension in display order.
var Dimensions = []Dimension{
	DimensionTone,
	DimensionProfessionalism,
	DimensionResolution,
	DimensionResponse,
}

const (
	MinScore = 0
	MaxScore = 10

	// MinScoredDimensions is the fewest dimensions a complete score carries.
	MinScoredDimensions = 2
)

// --------------------------------------------
// Quality result as returned by the scorer
// --------------------------------------------
type Quality struct {
	Scores       map[Dimension]int `json:"scores"`
	Feedback     string            `json:"feedback,omitempty"`
	Strengths    []string          `json:"strengths,omitempty"`
	Improvements []string          `json:"areas_for_improvement,omitempty"`
}

// SetScore stores a clamped score for d.
func (q *Quality) SetScore(d Dimension, v int) {
	if q.Scores == nil {
		q.Scores = map[Dimension]int{}
	}
	q.Scores[d] = ClampScore(v)
}

// Normalized returns a copy holding only known dimensions, each clamped
// to 0..10.
func (q *Quality) Normalized() *Quality {
	if q == nil {
		return nil
	}
	out := &Quality{
		Feedback:     q.Feedback,
		Strengths:    q.Strengths,
		Improvements: q.Improvements,
	}
	for _, d := range Dimensions {
		if v, ok := q.Scores[d]; ok {
			out.SetScore(d, v)
		}
	}
	return out
}

func (q *Quality) Score(d Dimension) (int, bool) {
	if q == nil {
		return 0, false
	}
	v, ok := q.Scores[d]
	return v, ok
}

// Count returns how many known dimensions carry a score.
func (q *Quality) Count() int {
	if q == nil {
		return 0
	}
	n := 0
	for _, d := range Dimensions {
		if _, ok := q.Scores[d]; ok {
			n++
		}
	}
	return n
}

// Mean averages only the dimensions that are present. Absent dimensions are
// never counted as zero.
func (q *Quality) Mean() (float64, bool) {
	n := q.Count()
	if n == 0 {
		return 0, false
	}
	sum := 0
	for _, d := range Dimensions {
		if v, ok := q.Scores[d]; ok {
			sum += v
		}
	}
	return float64(sum) / float64(n), true
}

func (q *Quality) Incomplete() bool {
	return q.Count() < MinScoredDimensions
}

func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// RoundScore converts a model-produced float into a 0-10 integer score.
// NaN and infinities report false so the dimension stays absent.
func RoundScore(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return ClampScore(int(math.Round(f))), true
}
