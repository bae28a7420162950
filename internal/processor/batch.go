// internal/processor/batch.go
package processor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"call-analytics-go/internal/types"
)

// Job is one call submitted to a batch run.
type Job struct {
	CallID string
	Input  types.RawInput
}

// BatchResult reports what happened to a single job.
type BatchResult struct {
	CallID        string   `json:"call_id"`
	Accepted      bool     `json:"accepted"`
	ReviewReasons []string `json:"manual_review_reasons,omitempty"`
	StageErrors   int      `json:"stage_errors"`
	Flagged       bool     `json:"flagged"`
	DurationMs    int64    `json:"duration_ms"`
	Error         string   `json:"error,omitempty"`
}

// Batch runs independent calls concurrently, at most concurrency at a time.
// Each call gets its own CallState; a failing call never stops the others.
func (o *Orchestrator) Batch(ctx context.Context, jobs []Job, concurrency int) []BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]BatchResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = o.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) BatchResult {
	start := time.Now()
	res := BatchResult{CallID: job.CallID}

	st, err := types.NewCallState(job.CallID, job.Input)
	if err != nil {
		// rejected before entering the pipeline
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}
	res.CallID = st.CallID
	res.Accepted = true

	if err := o.Process(ctx, st); err != nil {
		res.Error = err.Error()
	}
	res.ReviewReasons = st.ReviewReasons.Strings()
	res.StageErrors = len(st.StageErrors)
	res.Flagged = st.Flagged()
	res.DurationMs = time.Since(start).Milliseconds()
	return res
}
