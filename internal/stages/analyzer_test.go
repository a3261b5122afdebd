package stages

import (
	"context"
	"errors"
	"testing"

	"llmfit/internal/llm"
	"llmfit/internal/state"
	"llmfit/internal/tester"
)

func testInput() state.RunInput {
	return state.RunInput{Problem: "Summarize weekly incident reports for the on-call rotation."}
}

func TestScreen_NormalizesQuestions(t *testing.T) {
	client := llm.NewFakeClient(map[string]string{
		"[TASK screening]": `{
			"canEvaluate": true,
			"signals": [{"name": "textual-io", "favorable": true}],
			"insights": ["clear input format"],
			"questions": [
				{"question": "How many reports per week?", "priority": "blocking"},
				{"id": "fmt", "question": "What output format?", "priority": "bogus"}
			]
		}`,
	})
	a := NewAnalyzer(client)

	res, err := a.Screen(context.Background(), testInput(), nil)
	tester.NoErr(t, err)
	tester.True(t, res.CanEvaluate)
	tester.Eq(t, len(res.Questions), 2)

	// Missing id gets a stable fallback, bogus priority falls back to helpful.
	tester.Eq(t, res.Questions[0].ID, "screening-q1")
	tester.Eq(t, res.Questions[0].Priority, state.PriorityBlocking)
	tester.Eq(t, res.Questions[0].OriginStage, state.StageScreening)
	tester.Eq(t, res.Questions[1].ID, "fmt")
	tester.Eq(t, res.Questions[1].Priority, state.PriorityHelpful)
}

func TestScreen_MalformedJSONIsSchemaValidation(t *testing.T) {
	client := llm.NewFakeClient(map[string]string{"[TASK screening]": `not json at all`})
	a := NewAnalyzer(client)

	_, err := a.Screen(context.Background(), testInput(), nil)
	tester.Err(t, err)
	var perm *llm.PermanentError
	tester.True(t, errors.As(err, &perm), "malformed output must be permanent")
}

func TestAnalyzeDimension_ValidatesScoreAndConfidence(t *testing.T) {
	spec, _ := state.DimensionSpecByID("task_clarity")

	for _, bad := range []string{
		`{"score": "amazing", "confidence": 0.5, "reasoning": "x"}`,
		`{"score": "favorable", "confidence": 1.5, "reasoning": "x"}`,
	} {
		client := llm.NewFakeClient(map[string]string{"[TASK dimension]": bad})
		a := NewAnalyzer(client)
		_, err := a.AnalyzeDimension(context.Background(), spec, testInput(), nil, nil)
		tester.Err(t, err, bad)
	}

	client := llm.NewFakeClient(map[string]string{"[TASK dimension]": `{
		"score": "neutral", "confidence": 0.6, "reasoning": "mixed evidence",
		"infoGaps": [{"question": "Is ground truth available?", "priority": "blocking"}]
	}`})
	a := NewAnalyzer(client)
	d, err := a.AnalyzeDimension(context.Background(), spec, testInput(), nil, nil)
	tester.NoErr(t, err)
	tester.Eq(t, d.ID, "task_clarity")
	tester.Eq(t, d.Weight, spec.Weight)
	tester.Eq(t, d.Status, state.DimensionPreliminary)
	tester.Eq(t, d.InfoGaps[0].ID, "dimensions-task_clarity-q1")
	tester.Eq(t, d.InfoGaps[0].OriginDimension, "task_clarity")
}

func TestSketchArchitecture_SkipsWhenNotRecommended(t *testing.T) {
	// No scripted architecture response: a model call would fail loudly.
	client := llm.NewFakeClient(map[string]string{})
	a := NewAnalyzer(client)

	st := state.NewRunState("run-1", testInput())
	st.Verdict = &state.VerdictResult{Verdict: state.VerdictNotRecommended}

	arch, err := a.SketchArchitecture(context.Background(), st)
	tester.NoErr(t, err)
	tester.True(t, arch == nil)
	tester.Eq(t, len(client.Calls()), 0)
}

func TestPreBuildChecklist_UnansweredNonBlockingOnly(t *testing.T) {
	st := state.NewRunState("run-1", testInput())
	st.Screening = &state.ScreeningResult{Questions: []state.FollowUpQuestion{
		{ID: "q-blocking", Priority: state.PriorityBlocking},
		{ID: "q-helpful", Priority: state.PriorityHelpful},
		{ID: "q-answered", Priority: state.PriorityOptional},
	}}
	st.MergeAnswer(state.Answer{QuestionID: "q-answered", AnswerText: "done"})
	tester.NoErr(t, st.SetDimension(&state.DimensionAnalysis{
		ID: "task_clarity", Status: state.DimensionComplete,
		InfoGaps: []state.FollowUpQuestion{
			{ID: "q-helpful", Priority: state.PriorityHelpful}, // duplicate across stages
			{ID: "q-dim", Priority: state.PriorityOptional},
		},
	}))

	got := PreBuildChecklist(st)
	ids := make([]string, 0, len(got))
	for _, q := range got {
		ids = append(ids, q.ID)
	}
	tester.Eq(t, ids, []string{"q-helpful", "q-dim"})
}

func TestSynthesize_RejectsEmptyReasoning(t *testing.T) {
	client := llm.NewFakeClient(map[string]string{"[TASK synthesis]": `{"reasoning": "  "}`})
	a := NewAnalyzer(client)

	_, err := a.Synthesize(context.Background(), state.NewRunState("run-1", testInput()), nil)
	tester.Err(t, err)
}

func TestSynthesize_StreamsChunks(t *testing.T) {
	client := llm.NewFakeClient(map[string]string{"[TASK synthesis]": `{"reasoning": "verdict holds"}`})
	a := NewAnalyzer(client)

	var chunks []string
	got, err := a.Synthesize(context.Background(), state.NewRunState("run-1", testInput()), func(c string) {
		chunks = append(chunks, c)
	})
	tester.NoErr(t, err)
	tester.Eq(t, got, "verdict holds")
	tester.True(t, len(chunks) >= 2, "fake client streams in two chunks")
}
