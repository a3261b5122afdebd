package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"llmfit/internal/events"
	"llmfit/internal/executor"
	"llmfit/internal/snapshot"
	"llmfit/internal/stages"
	"llmfit/internal/state"
	"llmfit/internal/tester"
)

// scriptedStages is a deterministic Stages implementation for driving the
// sequencer through specific paths without an inference client.
type scriptedStages struct {
	mu        sync.Mutex
	screening *state.ScreeningResult
	screenErr error
	dimErr    map[string]error
	// gapDim raises a blocking info gap on this dimension until the
	// question is answered.
	gapDim string

	screenCalls int
	dimCalls    map[string]int
}

func newScriptedStages() *scriptedStages {
	return &scriptedStages{
		screening: &state.ScreeningResult{CanEvaluate: true},
		dimCalls:  map[string]int{},
	}
}

func (s *scriptedStages) Screen(_ context.Context, _ state.RunInput, _ []state.Answer) (*state.ScreeningResult, error) {
	s.mu.Lock()
	s.screenCalls++
	s.mu.Unlock()
	if s.screenErr != nil {
		return nil, s.screenErr
	}
	res := *s.screening
	return &res, nil
}

func (s *scriptedStages) AnalyzeDimension(_ context.Context, spec state.DimensionSpec, _ state.RunInput, _ *state.ScreeningResult, _ []state.Answer) (*state.DimensionAnalysis, error) {
	s.mu.Lock()
	s.dimCalls[spec.ID]++
	s.mu.Unlock()
	if err := s.dimErr[spec.ID]; err != nil {
		return nil, err
	}
	d := &state.DimensionAnalysis{
		ID: spec.ID, Name: spec.Name, Weight: spec.Weight,
		Score: state.ScoreFavorable, Confidence: 0.9,
		Status: state.DimensionPreliminary,
	}
	if spec.ID == s.gapDim {
		d.InfoGaps = []state.FollowUpQuestion{{
			ID:              "dimensions-" + spec.ID + "-q1",
			Question:        "Need more detail.",
			Priority:        state.PriorityBlocking,
			OriginStage:     state.StageDimensions,
			OriginDimension: spec.ID,
		}}
	}
	return d, nil
}

func (s *scriptedStages) ComputeVerdict(dims []state.DimensionAnalysis) state.VerdictResult {
	return stages.ComputeVerdict(dims)
}

func (s *scriptedStages) AssessRisks(_ context.Context, _ *state.RunState) ([]state.Risk, error) {
	return []state.Risk{{Title: "drift", Severity: "medium"}}, nil
}

func (s *scriptedStages) ProposeAlternatives(_ context.Context, _ *state.RunState) ([]state.Alternative, error) {
	return []state.Alternative{{Title: "rules"}}, nil
}

func (s *scriptedStages) SketchArchitecture(_ context.Context, st *state.RunState) (*state.Architecture, error) {
	if st.Verdict != nil && st.Verdict.Verdict == state.VerdictNotRecommended {
		return nil, nil
	}
	return &state.Architecture{Pattern: "single-model pipeline"}, nil
}

func (s *scriptedStages) PreBuild(st *state.RunState) []state.FollowUpQuestion {
	return stages.PreBuildChecklist(st)
}

func (s *scriptedStages) Synthesize(_ context.Context, _ *state.RunState, onChunk func(string)) (string, error) {
	if onChunk != nil {
		onChunk("final ")
		onChunk("reasoning")
	}
	return "final reasoning", nil
}

// eventLog is a concurrency-safe sink: dimension fan-out branches emit from
// their own goroutines.
type eventLog struct {
	mu  sync.Mutex
	evs []events.Event
}

func (l *eventLog) sink(ev events.Event) {
	l.mu.Lock()
	l.evs = append(l.evs, ev)
	l.mu.Unlock()
}

func (l *eventLog) types() []events.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Type, 0, len(l.evs))
	for _, ev := range l.evs {
		out = append(out, ev.EventType())
	}
	return out
}

func (l *eventLog) count(t events.Type) int {
	n := 0
	for _, typ := range l.types() {
		if typ == t {
			n++
		}
	}
	return n
}

func testConfig() Config {
	return Config{
		StageTimeout: time.Second,
		Retry:        executor.RetryOptions{MaxAttempts: 1, InitialDelay: time.Millisecond},
	}
}

func newTestRun() *state.RunState {
	return state.NewRunState("run-test", state.RunInput{
		Problem: "Route inbound support emails to the right team automatically.",
	})
}

func TestRun_CompletesThroughAllStages(t *testing.T) {
	script := newScriptedStages()
	store := snapshot.NewMemoryStore()
	seq := New(script, store, testConfig())
	log := &eventLog{}
	st := newTestRun()

	outcome := seq.Run(context.Background(), st, log.sink)

	tester.Eq(t, outcome.Status, state.StatusCompleted)
	tester.True(t, outcome.Result != nil)
	tester.Eq(t, len(outcome.Result.Dimensions), len(state.DimensionCatalog))
	tester.Eq(t, outcome.Result.Verdict.Verdict, state.VerdictStrongFit)
	tester.Eq(t, outcome.Result.Reasoning, "final reasoning")
	tester.True(t, outcome.Result.Architecture != nil)

	tester.Eq(t, log.count(events.TypePipelineStage), len(state.StageOrder))
	tester.Eq(t, log.count(events.TypeDimensionStart), len(state.DimensionCatalog))
	tester.Eq(t, log.count(events.TypeDimensionComplete), len(state.DimensionCatalog))
	tester.Eq(t, log.count(events.TypeReasoningChunk), 2)
	tester.Eq(t, log.count(events.TypePipelineComplete), 1)

	// The snapshot is gone once the run completed.
	exists, err := store.Exists(context.Background(), st.RunID)
	tester.NoErr(t, err)
	tester.False(t, exists)
}

func TestRun_SuspendsOnBlockingScreeningQuestion(t *testing.T) {
	script := newScriptedStages()
	script.screening = &state.ScreeningResult{
		CanEvaluate: true,
		Questions: []state.FollowUpQuestion{{
			ID: "screening-q1", Question: "What volume?", Priority: state.PriorityBlocking,
			OriginStage: state.StageScreening,
		}},
	}
	store := snapshot.NewMemoryStore()
	seq := New(script, store, testConfig())
	st := newTestRun()

	outcome := seq.Run(context.Background(), st, nil)
	tester.Eq(t, outcome.Status, state.StatusSuspended)
	tester.Eq(t, len(outcome.Pending), 1)
	tester.Eq(t, outcome.Pending[0].ID, "screening-q1")
	tester.Eq(t, st.CurrentStage, state.StageScreening)

	// Suspension persisted a durable snapshot.
	exists, err := store.Exists(context.Background(), st.RunID)
	tester.NoErr(t, err)
	tester.True(t, exists)

	// Resume re-enters screening with the answer merged.
	st.MergeAnswer(state.Answer{QuestionID: "screening-q1", AnswerText: "200 per day"})
	outcome = seq.Run(context.Background(), st, nil)
	tester.Eq(t, outcome.Status, state.StatusCompleted)
	tester.Eq(t, script.screenCalls, 2)
}

func TestRun_CanEvaluateFalseSurfacesAllQuestions(t *testing.T) {
	script := newScriptedStages()
	script.screening = &state.ScreeningResult{
		CanEvaluate: false,
		Questions: []state.FollowUpQuestion{{
			ID: "screening-q1", Question: "What is the actual problem?", Priority: state.PriorityHelpful,
			OriginStage: state.StageScreening,
		}},
	}
	seq := New(script, snapshot.NewMemoryStore(), testConfig())

	outcome := seq.Run(context.Background(), newTestRun(), nil)
	tester.Eq(t, outcome.Status, state.StatusSuspended)
	tester.Eq(t, len(outcome.Pending), 1)
}

func TestRun_ResumeReinvokesOnlyPendingDimensions(t *testing.T) {
	script := newScriptedStages()
	script.gapDim = "error_tolerance"
	seq := New(script, snapshot.NewMemoryStore(), testConfig())
	st := newTestRun()

	outcome := seq.Run(context.Background(), st, nil)
	tester.Eq(t, outcome.Status, state.StatusSuspended)
	tester.Eq(t, st.CurrentStage, state.StageDimensions)
	tester.Eq(t, outcome.Pending[0].ID, "dimensions-error_tolerance-q1")
	tester.Eq(t, st.Dimensions["error_tolerance"].Status, state.DimensionPreliminary)
	tester.Eq(t, st.Dimensions["task_clarity"].Status, state.DimensionComplete)

	st.MergeAnswer(state.Answer{QuestionID: "dimensions-error_tolerance-q1", AnswerText: "mistakes are reviewable"})
	outcome = seq.Run(context.Background(), st, nil)
	tester.Eq(t, outcome.Status, state.StatusCompleted)

	// Completed dimensions are final: only the gapped one ran twice.
	for _, spec := range state.DimensionCatalog {
		want := 1
		if spec.ID == "error_tolerance" {
			want = 2
		}
		tester.Eq(t, script.dimCalls[spec.ID], want, spec.ID)
	}
}

func TestRun_DimensionFailureFailsRunButSiblingsFinish(t *testing.T) {
	script := newScriptedStages()
	script.dimErr = map[string]error{"reasoning_depth": errors.New("401 unauthorized")}
	seq := New(script, snapshot.NewMemoryStore(), testConfig())
	log := &eventLog{}
	st := newTestRun()

	outcome := seq.Run(context.Background(), st, log.sink)
	tester.Eq(t, outcome.Status, state.StatusFailed)
	tester.Eq(t, outcome.Err.Code, executor.CodeAuthentication)
	tester.Eq(t, log.count(events.TypePipelineError), 1)

	// Sibling results were still recorded before the stage failed.
	tester.Eq(t, st.Dimensions["task_clarity"].Status, state.DimensionComplete)
	tester.True(t, len(st.Errors) > 0)
}

func TestRun_NotRecommendedCompletesWithNilArchitecture(t *testing.T) {
	script := &unfavorableStages{scriptedStages: newScriptedStages()}
	seq := New(script, snapshot.NewMemoryStore(), testConfig())
	st := newTestRun()

	outcome := seq.Run(context.Background(), st, nil)
	tester.Eq(t, outcome.Status, state.StatusCompleted)
	tester.Eq(t, outcome.Result.Verdict.Verdict, state.VerdictNotRecommended)
	tester.True(t, outcome.Result.Architecture == nil)
}

// unfavorableStages flips every dimension score to unfavorable.
type unfavorableStages struct {
	*scriptedStages
}

func (s *unfavorableStages) AnalyzeDimension(ctx context.Context, spec state.DimensionSpec, input state.RunInput, screening *state.ScreeningResult, answers []state.Answer) (*state.DimensionAnalysis, error) {
	d, err := s.scriptedStages.AnalyzeDimension(ctx, spec, input, screening, answers)
	if err != nil {
		return nil, err
	}
	d.Score = state.ScoreUnfavorable
	return d, nil
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq := New(newScriptedStages(), snapshot.NewMemoryStore(), testConfig())
	outcome := seq.Run(ctx, newTestRun(), nil)
	tester.Eq(t, outcome.Status, state.StatusCancelled)
	tester.Eq(t, outcome.Err.Code, executor.CodeCancelled)
}

func TestRun_SinkPanicDoesNotKillRun(t *testing.T) {
	seq := New(newScriptedStages(), snapshot.NewMemoryStore(), testConfig())
	outcome := seq.Run(context.Background(), newTestRun(), func(events.Event) {
		panic("subscriber bug")
	})
	tester.Eq(t, outcome.Status, state.StatusCompleted)
}
