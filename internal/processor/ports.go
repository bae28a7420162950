package processor

import (
	"context"
	"time"

	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/types"
)

// Transcriber converts an audio payload into ordered speaker turns.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) ([]types.Turn, error)
}

// ContentSafetyChecker returns a SAFE or FLAGGED verdict for text.
type ContentSafetyChecker interface {
	Check(ctx context.Context, text string) (types.SafetyVerdict, error)
}

// IntakeResult may be partial: nil Metadata or empty Turns are accepted.
type IntakeResult struct {
	Metadata *types.Metadata
	Turns    []types.Turn
}

type IntakeExtractor interface {
	Extract(ctx context.Context, text string) (IntakeResult, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, turns []types.Turn, md *types.Metadata) (*types.Summary, error)
}

// QualityScorer may return a Quality with fewer than four dimensions.
type QualityScorer interface {
	Score(ctx context.Context, turns []types.Turn, summary *types.Summary, md *types.Metadata) (*types.Quality, error)
}

// Recorder durably stores the final CallState. It must be idempotent per
// call id and must not reject a well-formed state.
type Recorder interface {
	Record(ctx context.Context, st *types.CallState) error
}

// Observer receives pipeline events, typically for metrics.
type Observer interface {
	StageFinished(stage pipeline.Stage, elapsed time.Duration, err error)
	ReasonAdded(reason types.ReviewReason)
	CallFinished(st *types.CallState, err error)
}

type nopObserver struct{}

func (nopObserver) StageFinished(pipeline.Stage, time.Duration, error) {}
func (nopObserver) ReasonAdded(types.ReviewReason)                     {}
func (nopObserver) CallFinished(*types.CallState, error)               {}
