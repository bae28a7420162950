package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/pipeline"
	"call-analytics-go/internal/types"
)

// Deps are the capabilities the orchestrator drives. All are required.
type Deps struct {
	Transcriber Transcriber
	Safety      ContentSafetyChecker
	Intake      IntakeExtractor
	Summarizer  Summarizer
	Scorer      QualityScorer
	Recorder    Recorder
}

type Option func(*Orchestrator)

func WithLogger(entry *logrus.Entry) Option {
	return func(o *Orchestrator) {
		if entry != nil {
			o.log = entry
		}
	}
}

// WithStageTimeout bounds every capability call. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTransitionHook is called after each routing decision.
func WithTransitionHook(fn func(from, to pipeline.Stage, st *types.CallState)) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// Orchestrator runs one CallState at a time through the fixed stage graph.
// It is safe for concurrent use across independent calls.
type Orchestrator struct {
	deps         Deps
	log          *logrus.Entry
	stageTimeout time.Duration
	observer     Observer
	onTransition func(from, to pipeline.Stage, st *types.CallState)
}

func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Transcriber == nil:
		return nil, errors.New("transcriber is required")
	case deps.Safety == nil:
		return nil, errors.New("content safety checker is required")
	case deps.Intake == nil:
		return nil, errors.New("intake extractor is required")
	case deps.Summarizer == nil:
		return nil, errors.New("summarizer is required")
	case deps.Scorer == nil:
		return nil, errors.New("quality scorer is required")
	case deps.Recorder == nil:
		return nil, errors.New("recorder is required")
	}
	o := &Orchestrator{
		deps:     deps,
		log:      logger.Discard().Component("orchestrator"),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ProcessInput accepts raw input into the pipeline and processes it.
func (o *Orchestrator) ProcessInput(ctx context.Context, callID string, input types.RawInput) (*types.CallState, error) {
	st, err := types.NewCallState(callID, input)
	if err != nil {
		return nil, err
	}
	return st, o.Process(ctx, st)
}

// Process drives st from ENTRY to PERSISTING. The Recorder is invoked exactly
// once, from a deferred block, whatever the stages did. The only error
// returned is a *types.PersistenceError.
func (o *Orchestrator) Process(ctx context.Context, st *types.CallState) (err error) {
	if st == nil {
		return errors.New("nil call state")
	}
	// started work is never cancelled by the caller; stage timeouts still apply
	ctx = context.WithoutCancel(ctx)
	log := logger.WithCall(o.log, st)
	started := time.Now()
	log.Info("call accepted")

	defer func() {
		err = o.persist(ctx, st, log)
		o.observer.CallFinished(st, err)
		log.WithFields(logrus.Fields{
			"duration_ms":    time.Since(started).Milliseconds(),
			"review_reasons": st.ReviewReasons.String(),
			"stage_errors":   len(st.StageErrors),
			"safety":         string(st.Safety.Status),
		}).Info("call finished")
	}()

	stage := pipeline.Entry
	for !pipeline.Terminal(stage) {
		before := st.ReviewReasons.Len()
		o.run(ctx, stage, st, log)
		for _, r := range st.ReviewReasons.List()[before:] {
			o.observer.ReasonAdded(r)
		}

		next, routeErr := pipeline.Next(stage, st)
		if routeErr != nil {
			st.RecordError(string(stage), routeErr)
			next = pipeline.Persisting
		}
		log.WithFields(logrus.Fields{"from": stage, "to": next}).Debug("stage transition")
		if o.onTransition != nil {
			o.onTransition(stage, next, st)
		}
		stage = next
	}
	return nil
}

func (o *Orchestrator) run(ctx context.Context, stage pipeline.Stage, st *types.CallState, log *logrus.Entry) {
	switch stage {
	case pipeline.Entry:
		if st.Input.Kind == types.InputText && !st.HasTranscript() {
			if err := st.SetTranscript(types.ParseTurns(st.Input.Text)); err != nil {
				st.RecordError(string(stage), err)
			}
		}

	case pipeline.Transcribing:
		var turns []types.Turn
		err := o.invoke(ctx, stage, log, func(ctx context.Context) error {
			var err error
			turns, err = o.deps.Transcriber.Transcribe(ctx, st.Input.Audio, st.Input.Format)
			return err
		})
		if err == nil && len(turns) == 0 {
			err = &types.FatalInputError{Reason: "transcription produced no speech"}
		}
		if err == nil {
			err = st.SetTranscript(turns)
		}
		if err != nil {
			st.RecordError(string(stage), err)
			pipeline.ClassifyFatalInput(st)
		}

	case pipeline.SafetyCheck:
		var verdict types.SafetyVerdict
		err := o.invoke(ctx, stage, log, func(ctx context.Context) error {
			var err error
			verdict, err = o.deps.Safety.Check(ctx, st.TranscriptText())
			return err
		})
		if err != nil {
			st.RecordError(string(stage), err)
			verdict = types.Flagged(types.UnknownCategory)
		} else if verdict.Status != types.SafetySafe && !verdict.IsFlagged() {
			verdict = types.Flagged(types.UnknownCategory)
		} else if verdict.IsFlagged() {
			verdict = types.Flagged(verdict.Categories...)
		}
		if err := st.SetSafety(verdict); err != nil {
			st.RecordError(string(stage), err)
		}
		pipeline.ClassifySafety(st)

	case pipeline.FlaggedTerminal:
		log.WithField("categories", st.Safety.Categories).Warn("content flagged, skipping analysis stages")

	case pipeline.Intake:
		var res IntakeResult
		err := o.invoke(ctx, stage, log, func(ctx context.Context) error {
			var err error
			res, err = o.deps.Intake.Extract(ctx, st.TranscriptText())
			return err
		})
		if err != nil {
			st.RecordError(string(stage), err)
		}
		if res.Metadata != nil {
			st.Metadata = res.Metadata
		}
		if len(res.Turns) > 0 {
			st.NormalizedTurns = res.Turns
		}
		pipeline.ClassifyIntake(st)

	case pipeline.Summarizing:
		var summary *types.Summary
		err := o.invoke(ctx, stage, log, func(ctx context.Context) error {
			var err error
			summary, err = o.deps.Summarizer.Summarize(ctx, st.Turns(), st.Metadata)
			return err
		})
		if err != nil {
			st.RecordError(string(stage), err)
		}
		if summary != nil {
			st.Summary = summary
		}

	case pipeline.Scoring:
		var quality *types.Quality
		err := o.invoke(ctx, stage, log, func(ctx context.Context) error {
			var err error
			quality, err = o.deps.Scorer.Score(ctx, st.Turns(), st.Summary, st.Metadata)
			return err
		})
		if err != nil {
			st.RecordError(string(stage), err)
		}
		if quality != nil {
			st.Quality = quality.Normalized()
		}
		pipeline.ClassifyScoring(st)
	}
}

// invoke calls one capability with the stage timeout applied. Panics and
// untyped errors come back as *types.StageUnavailableError.
func (o *Orchestrator) invoke(ctx context.Context, stage pipeline.Stage, log *logrus.Entry, fn func(context.Context) error) (err error) {
	stageCtx := ctx
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
		defer cancel()
	}
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability panicked: %v", r)
		}
		if err != nil {
			err = classify(stage, err)
		}
		elapsed := time.Since(started)
		o.observer.StageFinished(stage, elapsed, err)
		entry := log.WithFields(logrus.Fields{"stage": stage, "elapsed_ms": elapsed.Milliseconds()})
		if err != nil {
			entry.WithField("error", err.Error()).Warn("stage failed")
			return
		}
		entry.Debug("stage completed")
	}()
	return fn(stageCtx)
}

func classify(stage pipeline.Stage, err error) error {
	var (
		fatal      *types.FatalInputError
		validation *types.ValidationError
		stageErr   *types.StageUnavailableError
	)
	if errors.As(err, &fatal) || errors.As(err, &validation) || errors.As(err, &stageErr) {
		return err
	}
	return &types.StageUnavailableError{Stage: string(stage), Err: err}
}

func (o *Orchestrator) persist(ctx context.Context, st *types.CallState, log *logrus.Entry) error {
	started := time.Now()
	err := o.deps.Recorder.Record(ctx, st)
	if err != nil {
		var perr *types.PersistenceError
		if !errors.As(err, &perr) {
			err = &types.PersistenceError{CallID: st.CallID, Attempts: 1, Err: err}
		}
		log.WithField("error", err.Error()).Error("call could not be persisted")
	}
	o.observer.StageFinished(pipeline.Persisting, time.Since(started), err)
	return err
}
