// Package stages implements the five analysis stages as prompt+parse
// workers over the inference client. From the sequencer's perspective each
// stage is an opaque function with a typed contract: stages know nothing
// about suspension, persistence, or retries.
package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"llmfit/internal/llm"
	"llmfit/internal/state"
)

// Analyzer runs the analysis stages against an inference client.
type Analyzer struct {
	llm llm.Client
}

func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{llm: client}
}

// stageInput is the JSON payload sent alongside every prompt.
type stageInput struct {
	Problem   string            `json:"problem"`
	Context   string            `json:"context,omitempty"`
	Answers   []answeredItem    `json:"answers,omitempty"`
	Dimension *dimensionContext `json:"dimension,omitempty"`
	Prior     map[string]any    `json:"prior,omitempty"`
}

type answeredItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type dimensionContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func answersPayload(answers []state.Answer) []answeredItem {
	out := make([]answeredItem, 0, len(answers))
	for _, a := range answers {
		out = append(out, answeredItem{Question: a.QuestionID, Answer: a.AnswerText})
	}
	return out
}

// decodeInto parses the model's JSON, tagging malformed output so the error
// classifier lands it in the schema-validation family.
func decodeInto(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return llm.NewPermanentError(fmt.Errorf("schema validation: cannot parse model output: %w", err))
	}
	return nil
}

// normalizeQuestion fills defaults for model-supplied follow-up questions:
// a stable fallback id, a valid priority, and the origin fields the model
// does not know about.
func normalizeQuestion(q state.FollowUpQuestion, origin state.Stage, originDim string, seq int) state.FollowUpQuestion {
	if strings.TrimSpace(q.ID) == "" {
		if originDim != "" {
			q.ID = fmt.Sprintf("%s-%s-q%d", origin, originDim, seq)
		} else {
			q.ID = fmt.Sprintf("%s-q%d", origin, seq)
		}
	}
	switch q.Priority {
	case state.PriorityBlocking, state.PriorityHelpful, state.PriorityOptional:
	default:
		q.Priority = state.PriorityHelpful
	}
	q.OriginStage = origin
	q.OriginDimension = originDim
	return q
}
