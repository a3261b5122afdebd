// Package sequencer drives one evaluation run through the fixed stage
// order: screening, dimensions, verdict, secondary, synthesis. It owns
// suspension (persist and stop when blocking questions are unanswered),
// resume (re-enter the stage the run suspended in), stage fan-out, and
// final result assembly. Stage logic stays behind the Stages interface.
package sequencer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"llmfit/internal/events"
	"llmfit/internal/executor"
	"llmfit/internal/snapshot"
	"llmfit/internal/state"
)

// Config bounds every stage invocation of a run.
type Config struct {
	// StageTimeout caps a single attempt of one stage call. Zero disables
	// the per-attempt timeout.
	StageTimeout time.Duration
	Retry        executor.RetryOptions
	// SnapshotTTL is handed to the snapshot store on every save; zero means
	// the store default.
	SnapshotTTL time.Duration
}

// Sequencer runs evaluation pipelines. Safe for concurrent use; all
// per-run mutable state lives in the RunState passed to Run.
type Sequencer struct {
	stages Stages
	store  snapshot.Store
	cfg    Config
}

func New(stages Stages, store snapshot.Store, cfg Config) *Sequencer {
	return &Sequencer{stages: stages, store: store, cfg: cfg}
}

// Outcome is how one Run invocation ended. Result is set only for
// StatusCompleted, Pending only for StatusSuspended, Err only for
// StatusFailed and StatusCancelled.
type Outcome struct {
	Status  state.Status
	Result  *state.EvaluationResult
	Pending []state.FollowUpQuestion
	Err     *executor.ExecError
}

// Run advances st from its current stage until the run completes, suspends
// on unanswered blocking questions, fails, or is cancelled through ctx. On
// resume the caller merges answers into st and calls Run again; the loop
// re-enters the stage the run suspended in.
//
// The sink receives stage-progress events. Run lifecycle events that need
// caller context (pipeline:start, pipeline:resumed, answer:received) are
// the caller's to emit.
func (s *Sequencer) Run(ctx context.Context, st *state.RunState, sink EventSink) Outcome {
	emit := EventSink(func(ev events.Event) { safeEmit(sink, ev) })
	st.PendingQuestions = nil

	for {
		if err := ctx.Err(); err != nil {
			execErr := executor.AsExecError(err, string(st.CurrentStage))
			st.RecordError(runErrorFrom(execErr, st.CurrentStage))
			return s.fail(ctx, st, emit, execErr)
		}

		stage := st.CurrentStage
		emit(events.NewPipelineStage(stage))

		var pending []state.FollowUpQuestion
		var execErr *executor.ExecError
		switch stage {
		case state.StageScreening:
			pending, execErr = s.runScreening(ctx, st, emit)
		case state.StageDimensions:
			pending, execErr = s.runDimensions(ctx, st, emit)
		case state.StageVerdict:
			execErr = s.runVerdict(st, emit)
		case state.StageSecondary:
			execErr = s.runSecondary(ctx, st, emit)
		case state.StageSynthesis:
			execErr = s.runSynthesis(ctx, st, emit)
		default:
			execErr = executor.AsExecError(fmt.Errorf("unknown stage %q", stage), string(stage))
			st.RecordError(runErrorFrom(execErr, stage))
		}

		if execErr != nil {
			return s.fail(ctx, st, emit, execErr)
		}
		if len(pending) > 0 {
			return s.suspend(ctx, st, emit, pending)
		}

		if err := st.MarkStageComplete(stage); err != nil {
			execErr := executor.AsExecError(err, string(stage))
			st.RecordError(runErrorFrom(execErr, stage))
			return s.fail(ctx, st, emit, execErr)
		}

		if stage == state.StageSynthesis {
			return s.complete(ctx, st, emit)
		}
		s.persist(ctx, st)
	}
}

func (s *Sequencer) complete(ctx context.Context, st *state.RunState, emit EventSink) Outcome {
	result, err := st.AssembleResult()
	if err != nil {
		execErr := executor.AsExecError(err, string(state.StageSynthesis))
		st.RecordError(runErrorFrom(execErr, state.StageSynthesis))
		return s.fail(ctx, st, emit, execErr)
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), st.RunID); err != nil {
		log.Printf("sequencer: snapshot delete failed for run %s: %v", st.RunID, err)
	}
	emit(events.NewPipelineComplete(st.RunID, result))
	return Outcome{Status: state.StatusCompleted, Result: result}
}

// suspend persists the snapshot and stops. A suspension that cannot be made
// durable is a failure: a run the process cannot get back is worse than a
// failed one.
func (s *Sequencer) suspend(ctx context.Context, st *state.RunState, emit EventSink, pending []state.FollowUpQuestion) Outcome {
	st.PendingQuestions = pending
	if err := s.store.Save(context.WithoutCancel(ctx), st.RunID, st, s.cfg.SnapshotTTL); err != nil {
		execErr := executor.AsExecError(fmt.Errorf("persist suspension snapshot: %w", err), string(st.CurrentStage))
		st.RecordError(runErrorFrom(execErr, st.CurrentStage))
		return s.fail(ctx, st, emit, execErr)
	}
	return Outcome{Status: state.StatusSuspended, Pending: pending}
}

// fail ends the run. The error must already be recorded in st; fail only
// persists and reports. A CANCELLED code maps to the cancelled status and
// emits no error event.
func (s *Sequencer) fail(ctx context.Context, st *state.RunState, emit EventSink, execErr *executor.ExecError) Outcome {
	s.persist(ctx, st)
	if execErr.Code == executor.CodeCancelled {
		return Outcome{Status: state.StatusCancelled, Err: execErr}
	}
	emit(events.NewPipelineError(st.RunID, st.CurrentStage, string(execErr.Code), execErr.Message, execErr.Recoverable))
	return Outcome{Status: state.StatusFailed, Err: execErr}
}

// persist is best-effort mid-run durability; only suspension requires the
// save to succeed.
func (s *Sequencer) persist(ctx context.Context, st *state.RunState) {
	if err := s.store.Save(context.WithoutCancel(ctx), st.RunID, st, s.cfg.SnapshotTTL); err != nil {
		log.Printf("sequencer: snapshot save failed for run %s: %v", st.RunID, err)
	}
}

// execOpts wires a stage invocation into the resilience wrapper. OnError
// may fire from concurrent fan-out branches; mu guards the shared state.
func (s *Sequencer) execOpts(st *state.RunState, stage state.Stage, mu *sync.Mutex) executor.Options {
	return executor.Options{
		Stage:   string(stage),
		Timeout: s.cfg.StageTimeout,
		Retry:   s.cfg.Retry,
		OnRetry: func(attempt int, delay time.Duration, err *executor.ExecError) {
			log.Printf("sequencer: run %s stage %s attempt %d failed (%s), retrying in %s",
				st.RunID, stage, attempt, err.Code, delay)
		},
		OnError: func(err *executor.ExecError) {
			mu.Lock()
			st.RecordError(runErrorFrom(err, stage))
			mu.Unlock()
		},
	}
}

func (s *Sequencer) runScreening(ctx context.Context, st *state.RunState, emit EventSink) ([]state.FollowUpQuestion, *executor.ExecError) {
	emit(events.NewScreeningStart())

	var mu sync.Mutex
	res, err := executor.Execute(ctx, s.execOpts(st, state.StageScreening, &mu), func(ctx context.Context) (*state.ScreeningResult, error) {
		return s.stages.Screen(ctx, st.Input, st.SortedAnswers())
	})
	if err != nil {
		return nil, executor.AsExecError(err, string(state.StageScreening))
	}

	st.Screening = res
	for _, sig := range res.Signals {
		emit(events.NewScreeningSignal(sig))
	}
	for _, insight := range res.Insights {
		emit(events.NewScreeningInsight(insight))
	}
	for _, q := range res.Questions {
		emit(events.NewScreeningQuestion(q))
	}
	emit(events.NewScreeningComplete(res.CanEvaluate, len(res.Questions)))

	pending := st.UnansweredBlocking(res.Questions)
	if !res.CanEvaluate && len(pending) == 0 {
		// canEvaluate=false is not an error: surface every unanswered
		// question as the reason the run cannot proceed yet.
		for _, q := range res.Questions {
			if !st.Answered(q.ID) {
				pending = append(pending, q)
			}
		}
	}
	return pending, nil
}

// runDimensions fans out over the dimensions that have not reached
// complete. A dimension whose analysis raises unanswered blocking questions
// stays preliminary and is re-invoked after resume; everything else is
// locked in as complete and never re-analyzed.
func (s *Sequencer) runDimensions(ctx context.Context, st *state.RunState, emit EventSink) ([]state.FollowUpQuestion, *executor.ExecError) {
	specs := make([]state.DimensionSpec, 0, len(state.DimensionCatalog))
	for _, id := range st.PendingDimensionIDs() {
		spec, ok := state.DimensionSpecByID(id)
		if !ok {
			continue
		}
		specs = append(specs, spec)
		if cur := st.Dimensions[spec.ID]; cur != nil && cur.Status == state.DimensionPending {
			cur.Status = state.DimensionRunning
		}
		emit(events.NewDimensionStart(spec.ID, spec.Name))
	}

	var mu sync.Mutex
	opts := s.execOpts(st, state.StageDimensions, &mu)
	answers := st.SortedAnswers()
	ops := make([]func(context.Context) (*state.DimensionAnalysis, error), len(specs))
	for i, spec := range specs {
		spec := spec
		ops[i] = func(ctx context.Context) (*state.DimensionAnalysis, error) {
			d, err := s.stages.AnalyzeDimension(ctx, spec, st.Input, st.Screening, answers)
			if err != nil {
				return nil, err
			}
			emit(events.NewDimensionPreliminary(d.ID, d.Score, d.Confidence))
			for _, q := range d.InfoGaps {
				emit(events.NewDimensionQuestion(d.ID, q))
			}
			return d, nil
		}
	}
	results := executor.ExecuteParallel(ctx, opts, ops)

	var firstErr *executor.ExecError
	var gaps []state.FollowUpQuestion
	for _, res := range results {
		if !res.Fulfilled() {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		d := res.Value
		blocking := st.UnansweredBlocking(d.InfoGaps)
		if len(blocking) > 0 {
			d.Status = state.DimensionPreliminary
			gaps = append(gaps, blocking...)
		} else {
			d.Status = state.DimensionComplete
		}
		if err := st.SetDimension(d); err != nil {
			execErr := executor.AsExecError(err, string(state.StageDimensions))
			st.RecordError(runErrorFrom(execErr, state.StageDimensions))
			return nil, execErr
		}
		if d.Status == state.DimensionComplete {
			emit(events.NewDimensionComplete(*d))
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return gaps, nil
}

// runVerdict is pure aggregation; no inference call, no retries.
func (s *Sequencer) runVerdict(st *state.RunState, emit EventSink) *executor.ExecError {
	emit(events.NewVerdictComputing())

	dims := make([]state.DimensionAnalysis, 0, len(state.DimensionCatalog))
	for _, spec := range state.DimensionCatalog {
		d, ok := st.Dimensions[spec.ID]
		if !ok || d.Status != state.DimensionComplete {
			execErr := executor.AsExecError(
				fmt.Errorf("verdict requested before dimension %s completed", spec.ID),
				string(state.StageVerdict))
			st.RecordError(runErrorFrom(execErr, state.StageVerdict))
			return execErr
		}
		dims = append(dims, *d)
	}

	verdict := s.stages.ComputeVerdict(dims)
	st.Verdict = &verdict
	emit(events.NewVerdictResult(verdict))
	return nil
}

// runSecondary fans out risks, alternatives and architecture, then derives
// the pre-build checklist. Secondary analyses raise no blocking questions.
func (s *Sequencer) runSecondary(ctx context.Context, st *state.RunState, emit EventSink) *executor.ExecError {
	emit(events.NewRisksStart())
	emit(events.NewAlternativesStart())
	emit(events.NewArchitectureStart())

	var mu sync.Mutex
	opts := s.execOpts(st, state.StageSecondary, &mu)
	results := executor.ExecuteParallel(ctx, opts, []func(context.Context) (any, error){
		func(ctx context.Context) (any, error) { return s.stages.AssessRisks(ctx, st) },
		func(ctx context.Context) (any, error) { return s.stages.ProposeAlternatives(ctx, st) },
		func(ctx context.Context) (any, error) { return s.stages.SketchArchitecture(ctx, st) },
	})
	for _, res := range results {
		if !res.Fulfilled() {
			return res.Err
		}
	}

	st.Risks, _ = results[0].Value.([]state.Risk)
	st.Alternatives, _ = results[1].Value.([]state.Alternative)
	st.Architecture, _ = results[2].Value.(*state.Architecture)
	emit(events.NewRisksComplete(st.Risks))
	emit(events.NewAlternativesComplete(st.Alternatives))
	emit(events.NewArchitectureComplete(st.Architecture))

	st.PreBuildQuestions = s.stages.PreBuild(st)
	emit(events.NewPrebuildComplete(st.PreBuildQuestions))
	return nil
}

func (s *Sequencer) runSynthesis(ctx context.Context, st *state.RunState, emit EventSink) *executor.ExecError {
	emit(events.NewReasoningStart())

	var mu sync.Mutex
	reasoning, err := executor.Execute(ctx, s.execOpts(st, state.StageSynthesis, &mu), func(ctx context.Context) (string, error) {
		return s.stages.Synthesize(ctx, st, func(chunk string) {
			emit(events.NewReasoningChunk(chunk))
		})
	})
	if err != nil {
		return executor.AsExecError(err, string(state.StageSynthesis))
	}

	st.FinalReasoning = reasoning
	now := time.Now().UTC()
	st.CompletedAt = &now
	emit(events.NewReasoningComplete(reasoning))
	return nil
}

func runErrorFrom(e *executor.ExecError, stage state.Stage) state.RunError {
	return state.RunError{
		Stage:       stage,
		Code:        string(e.Code),
		Message:     e.Message,
		Recoverable: e.Recoverable,
		Timestamp:   e.Timestamp,
	}
}

func safeEmit(sink EventSink, ev events.Event) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sequencer: event sink panicked on %s: %v", ev.EventType(), r)
		}
	}()
	sink(ev)
}
