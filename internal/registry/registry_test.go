package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"llmfit/internal/llm"
	"llmfit/internal/sequencer"
	"llmfit/internal/snapshot"
	"llmfit/internal/stages"
	"llmfit/internal/state"
	"llmfit/internal/tester"
)

func fastSequencer(store snapshot.Store, script map[string]string) *sequencer.Sequencer {
	analyzer := stages.NewAnalyzer(llm.NewFakeClient(script))
	return sequencer.New(analyzer, store, sequencer.Config{StageTimeout: 5 * time.Second})
}

// blockingScript makes screening raise a blocking question so runs suspend
// until "screening-volume" is answered.
func blockingScript() map[string]string {
	script := stages.FakeScript()
	script["[TASK screening]"] = `{
		"canEvaluate": true,
		"signals": [],
		"insights": [],
		"questions": [{"id": "screening-volume", "question": "How many requests per day?", "priority": "blocking"}]
	}`
	return script
}

func testOptions() Options {
	return Options{Retention: time.Hour}
}

func validRunInput() state.RunInput {
	return state.RunInput{Problem: "Triage inbound bug reports and route them to the owning team."}
}

func waitStatus(t *testing.T, r *Registry, runID string, want state.Status) state.RunStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := r.Status(runID); ok && st.Status == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := r.Status(runID)
	t.Fatalf("run %s never reached %s, last status %+v", runID, want, st)
	return state.RunStatus{}
}

func TestValidateInput_Bounds(t *testing.T) {
	short := state.RunInput{Problem: "  too short  "}
	tester.Err(t, ValidateInput(&short))

	long := state.RunInput{Problem: strings.Repeat("x", maxProblemRunes+1)}
	tester.Err(t, ValidateInput(&long))

	ok := state.RunInput{Problem: "  classify support tickets by product area  "}
	tester.NoErr(t, ValidateInput(&ok))
	tester.Eq(t, ok.Problem, "classify support tickets by product area")
}

func TestStartRun_RejectsInvalidInput(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, stages.FakeScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	_, err = r.StartRun(context.Background(), state.RunInput{Problem: "short"})
	tester.Err(t, err)
}

func TestStartRun_DrivesToCompletion(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, stages.FakeScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	runID, err := r.StartRun(context.Background(), validRunInput())
	tester.NoErr(t, err)
	tester.True(t, strings.HasPrefix(runID, "eval-"), runID)

	ch, unsubscribe, err := r.Subscribe(runID)
	tester.NoErr(t, err)
	defer unsubscribe()

	// The channel closes when the run finalizes.
	for range ch {
	}

	status := waitStatus(t, r, runID, state.StatusCompleted)
	tester.Eq(t, status.Progress, 100)
	tester.True(t, status.CompletedAt != nil)

	result, ok := r.Result(runID)
	tester.True(t, ok)
	tester.Eq(t, result.RunID, runID)
	tester.Eq(t, len(result.Dimensions), len(state.DimensionCatalog))

	// Unsubscribing after finalize already closed the channel is a no-op.
	unsubscribe()
}

func TestSubmitAnswers_SuspendAndResume(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, blockingScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	runID, err := r.StartRun(context.Background(), validRunInput())
	tester.NoErr(t, err)

	status := waitStatus(t, r, runID, state.StatusSuspended)
	tester.Eq(t, status.PendingQuestionIDs, []string{"screening-volume"})

	err = r.SubmitAnswers(context.Background(), runID, []state.Answer{
		{QuestionID: "screening-volume", AnswerText: "about 500 per day"},
	})
	tester.NoErr(t, err)

	waitStatus(t, r, runID, state.StatusCompleted)

	// Answering a terminal run is a precondition failure.
	err = r.SubmitAnswers(context.Background(), runID, []state.Answer{
		{QuestionID: "screening-volume", AnswerText: "again"},
	})
	tester.True(t, errors.Is(err, ErrNotSuspended))
}

func TestSubmitAnswers_UnknownRun(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, stages.FakeScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	err = r.SubmitAnswers(context.Background(), "eval-missing", nil)
	tester.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelRun_SuspendedRunIsIdempotent(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, blockingScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	runID, err := r.StartRun(context.Background(), validRunInput())
	tester.NoErr(t, err)
	waitStatus(t, r, runID, state.StatusSuspended)

	tester.True(t, r.CancelRun(runID))
	waitStatus(t, r, runID, state.StatusCancelled)
	tester.False(t, r.CancelRun(runID), "second cancel is a no-op")
	tester.False(t, r.CancelRun("eval-unknown"))
}

func TestSubmitAnswers_ReloadsFromSnapshotStore(t *testing.T) {
	store := snapshot.NewMemoryStore()

	// A run suspended by a previous process: only the snapshot survives.
	st := state.NewRunState("eval-prior", validRunInput())
	question := state.FollowUpQuestion{
		ID: "screening-volume", Question: "How many requests per day?",
		Priority: state.PriorityBlocking, OriginStage: state.StageScreening,
	}
	st.Screening = &state.ScreeningResult{CanEvaluate: true, Questions: []state.FollowUpQuestion{question}}
	st.PendingQuestions = []state.FollowUpQuestion{question}
	tester.NoErr(t, store.Save(context.Background(), st.RunID, st, 0))

	r, err := New(fastSequencer(store, blockingScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	_, ok := r.Status("eval-prior")
	tester.False(t, ok, "not in the table before reload")

	err = r.SubmitAnswers(context.Background(), "eval-prior", []state.Answer{
		{QuestionID: "screening-volume", AnswerText: "about 500 per day"},
	})
	tester.NoErr(t, err)

	waitStatus(t, r, "eval-prior", state.StatusCompleted)
}

func TestRetention_StatusOutlivesTableEviction(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, stages.FakeScript()), store, Options{Retention: 10 * time.Millisecond})
	tester.NoErr(t, err)
	defer r.Close()

	runID, err := r.StartRun(context.Background(), validRunInput())
	tester.NoErr(t, err)
	waitStatus(t, r, runID, state.StatusCompleted)

	// After retention the full run record is gone but the status survives
	// in the done-cache.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok := r.Result(runID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run was never evicted from the table")
		}
		time.Sleep(5 * time.Millisecond)
	}
	status, ok := r.Status(runID)
	tester.True(t, ok)
	tester.Eq(t, status.Status, state.StatusCompleted)
}

func TestSubscribe_TerminalRunGetsClosedChannel(t *testing.T) {
	store := snapshot.NewMemoryStore()
	r, err := New(fastSequencer(store, stages.FakeScript()), store, testOptions())
	tester.NoErr(t, err)
	defer r.Close()

	runID, err := r.StartRun(context.Background(), validRunInput())
	tester.NoErr(t, err)
	waitStatus(t, r, runID, state.StatusCompleted)

	ch, unsubscribe, err := r.Subscribe(runID)
	tester.NoErr(t, err)
	defer unsubscribe()
	_, open := <-ch
	tester.False(t, open)

	_, _, err = r.Subscribe("eval-unknown")
	tester.True(t, errors.Is(err, ErrNotFound))
}
