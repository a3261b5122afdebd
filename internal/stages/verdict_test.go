package stages

import (
	"testing"

	"llmfit/internal/state"
	"llmfit/internal/tester"
)

func dims(score state.DimensionScore) []state.DimensionAnalysis {
	out := make([]state.DimensionAnalysis, 0, len(state.DimensionCatalog))
	for _, spec := range state.DimensionCatalog {
		out = append(out, state.DimensionAnalysis{
			ID: spec.ID, Name: spec.Name, Weight: spec.Weight,
			Score: score, Confidence: 0.9, Status: state.DimensionComplete,
		})
	}
	return out
}

func TestComputeVerdict_AllFavorableIsStrongFit(t *testing.T) {
	v := ComputeVerdict(dims(state.ScoreFavorable))
	tester.Eq(t, v.Verdict, state.VerdictStrongFit)
	if v.Confidence < 0.89 || v.Confidence > 0.91 {
		t.Fatalf("confidence = %v, want ~0.9", v.Confidence)
	}
}

func TestComputeVerdict_AllUnfavorableIsNotRecommended(t *testing.T) {
	v := ComputeVerdict(dims(state.ScoreUnfavorable))
	tester.Eq(t, v.Verdict, state.VerdictNotRecommended)
}

func TestComputeVerdict_AllNeutralIsWeakFit(t *testing.T) {
	// All neutral lands at fit 0.5.
	v := ComputeVerdict(dims(state.ScoreNeutral))
	tester.Eq(t, v.Verdict, state.VerdictWeakFit)
}

func TestComputeVerdict_HeavyUnfavorableCapsStrongFit(t *testing.T) {
	records := dims(state.ScoreFavorable)
	// Flip error_tolerance (weight 0.20): fit drops to 0.80, still in
	// STRONG_FIT territory, but the cap demotes it.
	for i := range records {
		if records[i].ID == "error_tolerance" {
			records[i].Score = state.ScoreUnfavorable
		}
	}
	v := ComputeVerdict(records)
	tester.Eq(t, v.Verdict, state.VerdictConditional)
}

func TestComputeVerdict_NoDimensions(t *testing.T) {
	v := ComputeVerdict(nil)
	tester.Eq(t, v.Verdict, state.VerdictNotRecommended)
}

func TestKeyFactors_HeaviestNonNeutralFirst(t *testing.T) {
	records := dims(state.ScoreNeutral)
	for i := range records {
		switch records[i].ID {
		case "task_clarity": // weight 0.20
			records[i].Score = state.ScoreFavorable
		case "cost_sensitivity": // weight 0.10
			records[i].Score = state.ScoreUnfavorable
		}
	}
	factors := keyFactors(records)
	tester.Eq(t, factors, []string{
		"Task Clarity: favorable",
		"Cost Sensitivity: unfavorable",
	})
}
