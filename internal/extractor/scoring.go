package extractor

import (
	"context"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

type Scorer struct {
	llm Completer
	log *logrus.Entry
}

func NewScorer(llm Completer, log *logrus.Entry) *Scorer {
	if log == nil {
		log = logger.Discard().Component("scorer")
	}
	return &Scorer{llm: llm, log: log}
}

type scoringResponse struct {
	Tone                *float64 `json:"tone_score"`
	Professionalism     *float64 `json:"professionalism_score"`
	Resolution          *float64 `json:"resolution_score"`
	Response            *float64 `json:"response_time_score"`
	Feedback            string   `json:"feedback"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areas_for_improvement"`
}

// fallbackPatterns match "Tone: 8" style lines when the reply is not JSON.
var fallbackPatterns = map[types.Dimension]*regexp.Regexp{
	types.DimensionTone:            regexp.MustCompile(`(?i)tone[^:\n]*:\s*(\d+(?:\.\d+)?)`),
	types.DimensionProfessionalism: regexp.MustCompile(`(?i)professionalism[^:\n]*:\s*(\d+(?:\.\d+)?)`),
	types.DimensionResolution:      regexp.MustCompile(`(?i)resolution[^:\n]*:\s*(\d+(?:\.\d+)?)`),
	types.DimensionResponse:        regexp.MustCompile(`(?i)response[^:\n]*:\s*(\d+(?:\.\d+)?)`),
}

// Score returns only the dimensions the model actually scored. Nothing is
// padded with defaults; an incomplete result is for the caller to judge.
func (s *Scorer) Score(ctx context.Context, turns []types.Turn, summary *types.Summary, md *types.Metadata) (*types.Quality, error) {
	if len(turns) == 0 {
		return nil, &types.ValidationError{Reason: "no conversation to score"}
	}
	content, err := s.llm.Complete(ctx, buildScoringPrompt(turns, summary, md))
	if err != nil {
		return nil, err
	}

	var parsed scoringResponse
	if err := decodeJSON(content, &parsed); err == nil {
		q := &types.Quality{
			Feedback:     parsed.Feedback,
			Strengths:    parsed.Strengths,
			Improvements: parsed.AreasForImprovement,
		}
		setScore(q, types.DimensionTone, parsed.Tone)
		setScore(q, types.DimensionProfessionalism, parsed.Professionalism)
		setScore(q, types.DimensionResolution, parsed.Resolution)
		setScore(q, types.DimensionResponse, parsed.Response)
		if q.Count() > 0 {
			return q, nil
		}
	} else {
		s.log.WithError(err).Warn("scoring JSON unusable, falling back to pattern match")
	}

	q := ScoresFromText(content)
	if q.Count() == 0 {
		return nil, &types.ValidationError{Reason: "no scores found in model output"}
	}
	q.Feedback = "partial extraction from unstructured model output"
	return q, nil
}

// ScoresFromText pulls whatever dimension scores appear in free text.
func ScoresFromText(raw string) *types.Quality {
	q := &types.Quality{}
	for _, d := range types.Dimensions {
		m := fallbackPatterns[d].FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if score, ok := types.RoundScore(v); ok {
			q.SetScore(d, score)
		}
	}
	return q
}

func setScore(q *types.Quality, d types.Dimension, v *float64) {
	if v == nil {
		return
	}
	if score, ok := types.RoundScore(*v); ok {
		q.SetScore(d, score)
	}
}
