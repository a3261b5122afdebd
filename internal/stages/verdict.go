package stages

import (
	"fmt"
	"sort"

	"llmfit/internal/state"
)

// scoreValue maps a dimension score onto [0,1] for aggregation.
func scoreValue(s state.DimensionScore) float64 {
	switch s {
	case state.ScoreFavorable:
		return 1
	case state.ScoreUnfavorable:
		return 0
	default:
		return 0.5
	}
}

// ComputeVerdict aggregates completed dimension records into the overall
// verdict. Pure arithmetic, no inference call: the dimensions carry all the
// judgment, this only weighs it.
func ComputeVerdict(dims []state.DimensionAnalysis) state.VerdictResult {
	var weightSum, scoreSum, confSum float64
	var unfavorableWeight float64
	for _, d := range dims {
		weightSum += d.Weight
		scoreSum += scoreValue(d.Score) * d.Weight
		confSum += d.Confidence * d.Weight
		if d.Score == state.ScoreUnfavorable {
			unfavorableWeight += d.Weight
		}
	}
	if weightSum == 0 {
		return state.VerdictResult{Verdict: state.VerdictNotRecommended, Summary: "No dimensions were scored."}
	}

	fit := scoreSum / weightSum
	confidence := confSum / weightSum

	verdict := state.VerdictNotRecommended
	switch {
	case fit >= 0.75:
		verdict = state.VerdictStrongFit
	case fit >= 0.55:
		verdict = state.VerdictConditional
	case fit >= 0.35:
		verdict = state.VerdictWeakFit
	}
	// A heavily weighted unfavorable dimension caps the verdict: one hard
	// blocker should not be averaged away by six mild positives.
	if unfavorableWeight >= 0.2 && verdict == state.VerdictStrongFit {
		verdict = state.VerdictConditional
	}

	return state.VerdictResult{
		Verdict:    verdict,
		Confidence: confidence,
		Summary:    verdictSummary(verdict, fit),
		Reasoning:  fmt.Sprintf("Weighted fit score %.2f across %d dimensions.", fit, len(dims)),
		KeyFactors: keyFactors(dims),
	}
}

// ComputeVerdict on the analyzer defers to the package-level aggregation.
func (a *Analyzer) ComputeVerdict(dims []state.DimensionAnalysis) state.VerdictResult {
	return ComputeVerdict(dims)
}

func verdictSummary(v state.Verdict, fit float64) string {
	switch v {
	case state.VerdictStrongFit:
		return fmt.Sprintf("The problem is a strong fit for LLM automation (fit %.2f).", fit)
	case state.VerdictConditional:
		return fmt.Sprintf("The problem can suit LLM automation under conditions (fit %.2f).", fit)
	case state.VerdictWeakFit:
		return fmt.Sprintf("The problem is a weak fit for LLM automation (fit %.2f).", fit)
	default:
		return fmt.Sprintf("LLM automation is not recommended for this problem (fit %.2f).", fit)
	}
}

// keyFactors names the most influential dimensions: the heaviest
// non-neutral scores, extremes first.
func keyFactors(dims []state.DimensionAnalysis) []string {
	ranked := make([]state.DimensionAnalysis, 0, len(dims))
	for _, d := range dims {
		if d.Score != state.ScoreNeutral {
			ranked = append(ranked, d)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Weight > ranked[j].Weight })
	if len(ranked) > 4 {
		ranked = ranked[:4]
	}
	out := make([]string, 0, len(ranked))
	for _, d := range ranked {
		out = append(out, fmt.Sprintf("%s: %s", d.Name, d.Score))
	}
	return out
}
