package sequencer

import (
	"context"

	"llmfit/internal/events"
	"llmfit/internal/state"
)

// Stages is the contract the analysis logic implements. Stage functions are
// pure with respect to orchestration: they receive input, prior outputs and
// answers, and return typed output (including any newly raised follow-up
// questions). Suspension, persistence and retries never leak into them.
type Stages interface {
	Screen(ctx context.Context, input state.RunInput, answers []state.Answer) (*state.ScreeningResult, error)

	AnalyzeDimension(ctx context.Context, spec state.DimensionSpec, input state.RunInput, screening *state.ScreeningResult, answers []state.Answer) (*state.DimensionAnalysis, error)

	// ComputeVerdict is pure aggregation over completed dimension records.
	ComputeVerdict(dims []state.DimensionAnalysis) state.VerdictResult

	AssessRisks(ctx context.Context, st *state.RunState) ([]state.Risk, error)
	ProposeAlternatives(ctx context.Context, st *state.RunState) ([]state.Alternative, error)

	// SketchArchitecture may return (nil, nil); a missing architecture is a
	// valid result, not an error.
	SketchArchitecture(ctx context.Context, st *state.RunState) (*state.Architecture, error)

	// PreBuild derives the pre-build checklist from the run state. Pure.
	PreBuild(st *state.RunState) []state.FollowUpQuestion

	Synthesize(ctx context.Context, st *state.RunState, onChunk func(chunk string)) (string, error)
}

// EventSink receives every event synchronously as it is produced. A sink
// must not block for long; it may be invoked from concurrent fan-out
// branches. Sinks that panic are recovered and logged, never propagated.
type EventSink func(ev events.Event)
