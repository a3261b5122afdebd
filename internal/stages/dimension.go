package stages

import (
	"context"
	"fmt"

	"llmfit/internal/llm"
	"llmfit/internal/state"
)

type dimensionPayload struct {
	Score      state.DimensionScore     `json:"score"`
	Confidence float64                  `json:"confidence"`
	Reasoning  string                   `json:"reasoning"`
	Evidence   []string                 `json:"evidence"`
	InfoGaps   []state.FollowUpQuestion `json:"infoGaps"`
}

// AnalyzeDimension scores one evaluation dimension. The returned record is
// preliminary: the score is known but the sequencer owns corroboration and
// the final status transition.
func (a *Analyzer) AnalyzeDimension(ctx context.Context, spec state.DimensionSpec, input state.RunInput, screening *state.ScreeningResult, answers []state.Answer) (*state.DimensionAnalysis, error) {
	prior := map[string]any{}
	if screening != nil {
		prior["screening"] = screening
	}
	raw, err := a.llm.GenerateJSON(ctx, dimensionPrompt+"\n\n[DIMENSION] "+spec.ID, stageInput{
		Problem:   input.Problem,
		Context:   input.Context,
		Answers:   answersPayload(answers),
		Dimension: &dimensionContext{ID: spec.ID, Name: spec.Name},
		Prior:     prior,
	})
	if err != nil {
		return nil, err
	}

	var payload dimensionPayload
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	switch payload.Score {
	case state.ScoreFavorable, state.ScoreNeutral, state.ScoreUnfavorable:
	default:
		return nil, llm.NewPermanentError(fmt.Errorf("schema validation: dimension %s has invalid score %q", spec.ID, payload.Score))
	}
	if payload.Confidence < 0 || payload.Confidence > 1 {
		return nil, llm.NewPermanentError(fmt.Errorf("schema validation: dimension %s has confidence %v outside [0,1]", spec.ID, payload.Confidence))
	}

	analysis := &state.DimensionAnalysis{
		ID:         spec.ID,
		Name:       spec.Name,
		Score:      payload.Score,
		Confidence: payload.Confidence,
		Weight:     spec.Weight,
		Reasoning:  payload.Reasoning,
		Evidence:   payload.Evidence,
		Status:     state.DimensionPreliminary,
	}
	for i, q := range payload.InfoGaps {
		analysis.InfoGaps = append(analysis.InfoGaps, normalizeQuestion(q, state.StageDimensions, spec.ID, i+1))
	}
	return analysis, nil
}
