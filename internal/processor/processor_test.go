package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/types"
)

const sampleText = "Agent: Thanks for calling, this is Sarah.\nCustomer: My order never arrived."

type fakeTranscriber struct {
	turns []types.Turn
	err   error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) ([]types.Turn, error) {
	return f.turns, f.err
}

type fakeSafety struct {
	verdict types.SafetyVerdict
	err     error
}

func (f fakeSafety) Check(context.Context, string) (types.SafetyVerdict, error) {
	return f.verdict, f.err
}

type fakeIntake struct {
	agent string
	err   error
	calls atomic.Int32
}

func (f *fakeIntake) Extract(context.Context, string) (IntakeResult, error) {
	f.calls.Add(1)
	res := IntakeResult{Turns: []types.Turn{{Speaker: "Agent", Text: "normalized"}}}
	if f.agent != "" {
		name := f.agent
		res.Metadata = &types.Metadata{AgentName: &name}
	}
	return res, f.err
}

type fakeSummarizer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeSummarizer) Summarize(context.Context, []types.Turn, *types.Metadata) (*types.Summary, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Summary{Brief: "order missing"}, nil
}

type scorerFunc func(ctx context.Context) (*types.Quality, error)

func (f scorerFunc) Score(ctx context.Context, _ []types.Turn, _ *types.Summary, _ *types.Metadata) (*types.Quality, error) {
	return f(ctx)
}

func fullScores(context.Context) (*types.Quality, error) {
	q := &types.Quality{}
	for _, d := range types.Dimensions {
		q.SetScore(d, 8)
	}
	return q, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	calls   int
	records []*types.CallState
	reasons [][]string
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, st *types.CallState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.records = append(f.records, st)
	f.reasons = append(f.reasons, st.ReviewReasons.Strings())
	return f.err
}

type harness struct {
	deps       Deps
	intake     *fakeIntake
	summarizer *fakeSummarizer
	recorder   *fakeRecorder
}

func newHarness() *harness {
	h := &harness{
		intake:     &fakeIntake{agent: "Sarah"},
		summarizer: &fakeSummarizer{},
		recorder:   &fakeRecorder{},
	}
	h.deps = Deps{
		Transcriber: fakeTranscriber{turns: types.ParseTurns(sampleText)},
		Safety:      fakeSafety{verdict: types.Safe()},
		Intake:      h.intake,
		Summarizer:  h.summarizer,
		Scorer:      scorerFunc(fullScores),
		Recorder:    h.recorder,
	}
	return h
}

func (h *harness) orchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(h.deps, opts...)
	require.NoError(t, err)
	return o
}

func TestNewRequiresAllDeps(t *testing.T) {
	h := newHarness()
	h.deps.Recorder = nil
	_, err := New(h.deps)
	assert.Error(t, err)
}

func TestCleanTextCall(t *testing.T) {
	h := newHarness()
	var path []pipeline.Stage
	o := h.orchestrator(t, WithTransitionHook(func(from, to pipeline.Stage, _ *types.CallState) {
		if len(path) == 0 {
			path = append(path, from)
		}
		path = append(path, to)
	}))

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Stage{
		pipeline.Entry, pipeline.SafetyCheck, pipeline.Intake,
		pipeline.Summarizing, pipeline.Scoring, pipeline.Persisting,
	}, path)

	assert.True(t, st.ReviewReasons.Empty())
	assert.Empty(t, st.StageErrors)
	assert.Equal(t, "normalized", st.Turns()[0].Text)
	assert.Equal(t, "Sarah", *st.Metadata.AgentName)
	assert.Equal(t, 1, h.recorder.calls)
}

func TestAudioCallIsTranscribed(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.AudioInput([]byte("RIFF"), "wav"))
	require.NoError(t, err)
	require.True(t, st.HasTranscript())
	assert.Equal(t, "Agent", st.Transcript[0].Speaker)
	assert.True(t, st.ReviewReasons.Empty())
}

func TestFlaggedCallSkipsAnalysis(t *testing.T) {
	h := newHarness()
	h.deps.Safety = fakeSafety{verdict: types.Flagged("Violence")}
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.True(t, st.Flagged())
	assert.Equal(t, []string{"violence"}, st.Safety.Categories)
	assert.Equal(t, []string{"CONTENT_UNSAFE"}, st.ReviewReasons.Strings())
	assert.Zero(t, h.intake.calls.Load())
	assert.Zero(t, h.summarizer.calls.Load())
	assert.Nil(t, st.Quality)
	assert.Equal(t, 1, h.recorder.calls)
}

func TestSafetyErrorIsTreatedAsFlagged(t *testing.T) {
	h := newHarness()
	h.deps.Safety = fakeSafety{err: errors.New("moderation down")}
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.True(t, st.Flagged())
	assert.Equal(t, []string{types.UnknownCategory}, st.Safety.Categories)
	assert.True(t, st.ReviewReasons.Has(types.ReasonContentUnsafe))
	require.Len(t, st.StageErrors, 1)
	assert.Equal(t, types.KindStageUnavailable, st.StageErrors[0].Kind)
	assert.Zero(t, h.intake.calls.Load())
}

func TestSafetyVerdictWithoutStatusIsFlagged(t *testing.T) {
	h := newHarness()
	h.deps.Safety = fakeSafety{verdict: types.SafetyVerdict{}}
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.True(t, st.Flagged())
}

func TestTranscriptionFailureIsPersisted(t *testing.T) {
	h := newHarness()
	h.deps.Transcriber = fakeTranscriber{err: &types.FatalInputError{Reason: "corrupt audio"}}
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.AudioInput([]byte{0}, "mp3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"UNRECOVERABLE_INPUT"}, st.ReviewReasons.Strings())
	require.Len(t, st.StageErrors, 1)
	assert.Equal(t, types.KindFatalInput, st.StageErrors[0].Kind)
	assert.Equal(t, types.SafetyUnchecked, st.Safety.Status)
	assert.Equal(t, 1, h.recorder.calls)
}

func TestEmptyTranscriptionIsFatal(t *testing.T) {
	h := newHarness()
	h.deps.Transcriber = fakeTranscriber{}
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.AudioInput([]byte{0}, "mp3"))
	require.NoError(t, err)
	assert.True(t, st.ReviewReasons.Has(types.ReasonUnrecoverableInput))
}

func TestMissingAgentAndIncompleteScoring(t *testing.T) {
	h := newHarness()
	h.intake.agent = ""
	h.deps.Scorer = scorerFunc(func(context.Context) (*types.Quality, error) {
		q := &types.Quality{}
		q.SetScore(types.DimensionTone, 7)
		return q, nil
	})
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.Equal(t, []string{"INCOMPLETE_SCORING", "MISSING_AGENT_NAME"}, st.ReviewReasons.Strings())
	assert.EqualValues(t, 1, h.summarizer.calls.Load(), "missing agent does not stop the pipeline")
}

func TestScoresClampedBeforeRecording(t *testing.T) {
	h := newHarness()
	h.deps.Scorer = scorerFunc(func(context.Context) (*types.Quality, error) {
		return &types.Quality{Scores: map[types.Dimension]int{
			types.DimensionTone:       42,
			types.DimensionResolution: 8,
			"empathy":                 3,
		}}, nil
	})
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	require.Len(t, h.recorder.records, 1)
	recorded := h.recorder.records[0].Quality
	assert.Equal(t, map[types.Dimension]int{types.DimensionTone: 10, types.DimensionResolution: 8}, recorded.Scores)
	mean, ok := st.Quality.Mean()
	require.True(t, ok)
	assert.InDelta(t, 9.0, mean, 1e-9)
}

func TestTwoDimensionsAreComplete(t *testing.T) {
	h := newHarness()
	h.deps.Scorer = scorerFunc(func(context.Context) (*types.Quality, error) {
		q := &types.Quality{}
		q.SetScore(types.DimensionTone, 7)
		q.SetScore(types.DimensionProfessionalism, 9)
		return q, nil
	})
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.False(t, st.ReviewReasons.Has(types.ReasonIncompleteScoring))
	assert.Empty(t, st.ReviewReasons.Strings())
	assert.Equal(t, 2, st.Quality.Count())
	mean, ok := st.Quality.Mean()
	require.True(t, ok)
	assert.InDelta(t, 8.0, mean, 1e-9, "absent dimensions are not averaged as zero")
}

func TestEntryKeepsExistingTranscript(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	st, err := types.NewCallState("c1", types.TextInput(sampleText))
	require.NoError(t, err)
	preset := []types.Turn{{Speaker: "Agent", Text: "already transcribed"}}
	require.NoError(t, st.SetTranscript(preset))

	require.NoError(t, o.Process(context.Background(), st))
	assert.Equal(t, preset, st.Transcript)
	assert.Empty(t, st.StageErrors)
}

func TestStageErrorsDoNotStopPipeline(t *testing.T) {
	h := newHarness()
	h.intake.err = &types.ValidationError{Reason: "not a conversation"}
	h.summarizer.err = errors.New("llm 503")
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	require.Len(t, st.StageErrors, 2)
	assert.Equal(t, string(pipeline.Intake), st.StageErrors[0].Stage)
	assert.Equal(t, types.KindValidation, st.StageErrors[0].Kind)
	assert.Equal(t, string(pipeline.Summarizing), st.StageErrors[1].Stage)
	assert.Equal(t, types.KindStageUnavailable, st.StageErrors[1].Kind)
	assert.Nil(t, st.Summary)
	assert.NotNil(t, st.Quality, "scoring still runs")
}

func TestPanickingCapabilityStillPersists(t *testing.T) {
	h := newHarness()
	h.deps.Scorer = scorerFunc(func(context.Context) (*types.Quality, error) {
		panic("scorer exploded")
	})
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.True(t, st.ReviewReasons.Has(types.ReasonIncompleteScoring))
	require.Len(t, st.StageErrors, 1)
	assert.Contains(t, st.StageErrors[0].Message, "scorer exploded")
	assert.Equal(t, 1, h.recorder.calls)
}

func TestStageTimeout(t *testing.T) {
	h := newHarness()
	h.deps.Scorer = scorerFunc(func(ctx context.Context) (*types.Quality, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := h.orchestrator(t, WithStageTimeout(20*time.Millisecond))

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	require.Len(t, st.StageErrors, 1)
	assert.Equal(t, types.KindTimeout, st.StageErrors[0].Kind)
	assert.True(t, st.ReviewReasons.Has(types.ReasonIncompleteScoring))
	assert.Equal(t, 1, h.recorder.calls)
}

func TestCallerCancellationDoesNotAbortCall(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := o.ProcessInput(ctx, "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.NotNil(t, st.Quality)
	assert.Equal(t, 1, h.recorder.calls)
}

func TestReviewReasonsAreMonotonic(t *testing.T) {
	h := newHarness()
	h.intake.agent = ""
	h.deps.Scorer = scorerFunc(func(context.Context) (*types.Quality, error) { return nil, errors.New("down") })

	var snapshots []types.ReviewReasons
	o := h.orchestrator(t, WithTransitionHook(func(_, _ pipeline.Stage, st *types.CallState) {
		snapshots = append(snapshots, types.NewReviewReasons(st.ReviewReasons.List()...))
	}))

	_, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	require.NotEmpty(t, snapshots)
	for i := 1; i < len(snapshots); i++ {
		assert.True(t, snapshots[i].Contains(snapshots[i-1]), "reasons shrank at transition %d", i)
	}
	assert.Equal(t, 2, snapshots[len(snapshots)-1].Len())
}

func TestPersistenceFailure(t *testing.T) {
	h := newHarness()
	h.recorder.err = errors.New("disk full")
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NotNil(t, st)
	var perr *types.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "c1", perr.CallID)
	assert.Equal(t, 1, h.recorder.calls)
}

func TestRejectedInputNeverReachesRecorder(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	st, err := o.ProcessInput(context.Background(), "c1", types.TextInput(""))
	assert.Nil(t, st)
	assert.Error(t, err)
	assert.Zero(t, h.recorder.calls)
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []pipeline.Stage
	reasons  []types.ReviewReason
	finished int
}

func (r *recordingObserver) StageFinished(stage pipeline.Stage, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *recordingObserver) ReasonAdded(reason types.ReviewReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingObserver) CallFinished(*types.CallState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func TestObserverSeesEveryStage(t *testing.T) {
	h := newHarness()
	h.intake.agent = ""
	obs := &recordingObserver{}
	o := h.orchestrator(t, WithObserver(obs))

	_, err := o.ProcessInput(context.Background(), "c1", types.TextInput(sampleText))
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Stage{
		pipeline.SafetyCheck, pipeline.Intake, pipeline.Summarizing, pipeline.Scoring, pipeline.Persisting,
	}, obs.stages)
	assert.Equal(t, []types.ReviewReason{types.ReasonMissingAgentName}, obs.reasons)
	assert.Equal(t, 1, obs.finished)
}
