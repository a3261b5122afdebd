package stages

import (
	"context"

	"llmfit/internal/state"
)

type screeningPayload struct {
	CanEvaluate bool                     `json:"canEvaluate"`
	Signals     []state.Signal           `json:"signals"`
	Insights    []string                 `json:"insights"`
	Questions   []state.FollowUpQuestion `json:"questions"`
}

// Screen performs the quick viability check. canEvaluate=false is not an
// error: the result carries the questions that explain what is missing.
func (a *Analyzer) Screen(ctx context.Context, input state.RunInput, answers []state.Answer) (*state.ScreeningResult, error) {
	raw, err := a.llm.GenerateJSON(ctx, screeningPrompt, stageInput{
		Problem: input.Problem,
		Context: input.Context,
		Answers: answersPayload(answers),
	})
	if err != nil {
		return nil, err
	}

	var payload screeningPayload
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}

	result := &state.ScreeningResult{
		CanEvaluate: payload.CanEvaluate,
		Signals:     payload.Signals,
		Insights:    payload.Insights,
	}
	for i, q := range payload.Questions {
		result.Questions = append(result.Questions, normalizeQuestion(q, state.StageScreening, "", i+1))
	}
	return result, nil
}
