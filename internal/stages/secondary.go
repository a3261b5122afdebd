package stages

import (
	"context"

	"llmfit/internal/state"
)

func (a *Analyzer) secondaryInput(st *state.RunState) stageInput {
	prior := map[string]any{}
	if st.Screening != nil {
		prior["screening"] = st.Screening
	}
	if st.Verdict != nil {
		prior["verdict"] = st.Verdict
	}
	dims := make([]state.DimensionAnalysis, 0, len(st.Dimensions))
	for _, spec := range state.DimensionCatalog {
		if d, ok := st.Dimensions[spec.ID]; ok {
			dims = append(dims, *d)
		}
	}
	prior["dimensions"] = dims
	return stageInput{
		Problem: st.Input.Problem,
		Context: st.Input.Context,
		Answers: answersPayload(st.SortedAnswers()),
		Prior:   prior,
	}
}

// AssessRisks lists deployment risks for the proposed automation.
func (a *Analyzer) AssessRisks(ctx context.Context, st *state.RunState) ([]state.Risk, error) {
	raw, err := a.llm.GenerateJSON(ctx, risksPrompt, a.secondaryInput(st))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Risks []state.Risk `json:"risks"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Risks, nil
}

// ProposeAlternatives lists non-LLM or hybrid approaches.
func (a *Analyzer) ProposeAlternatives(ctx context.Context, st *state.RunState) ([]state.Alternative, error) {
	raw, err := a.llm.GenerateJSON(ctx, alternativesPrompt, a.secondaryInput(st))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Alternatives []state.Alternative `json:"alternatives"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Alternatives, nil
}

// SketchArchitecture outlines an LLM-backed solution. It returns nil (and
// skips the inference call) when the verdict is NOT_RECOMMENDED: there is
// nothing worth sketching, and a nil architecture is a valid result.
func (a *Analyzer) SketchArchitecture(ctx context.Context, st *state.RunState) (*state.Architecture, error) {
	if st.Verdict != nil && st.Verdict.Verdict == state.VerdictNotRecommended {
		return nil, nil
	}
	raw, err := a.llm.GenerateJSON(ctx, architecturePrompt, a.secondaryInput(st))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Architecture *state.Architecture `json:"architecture"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	return payload.Architecture, nil
}

// PreBuild on the analyzer defers to the package-level projection.
func (a *Analyzer) PreBuild(st *state.RunState) []state.FollowUpQuestion {
	return PreBuildChecklist(st)
}

// PreBuildChecklist derives the pre-build question list from what remains
// unanswered: helpful/optional questions from every stage that the user
// never addressed. Pure projection over the run state.
func PreBuildChecklist(st *state.RunState) []state.FollowUpQuestion {
	var out []state.FollowUpQuestion
	seen := map[string]bool{}
	add := func(qs []state.FollowUpQuestion) {
		for _, q := range qs {
			if q.Blocking() || st.Answered(q.ID) || seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			out = append(out, q)
		}
	}
	if st.Screening != nil {
		add(st.Screening.Questions)
	}
	for _, spec := range state.DimensionCatalog {
		if d, ok := st.Dimensions[spec.ID]; ok {
			add(d.InfoGaps)
		}
	}
	return out
}
