package stages

import (
	"context"
	"fmt"
	"strings"

	"llmfit/internal/llm"
	"llmfit/internal/state"
)

// Synthesize writes the final narrative, streaming raw text chunks to
// onChunk as the model produces them. Returns the complete reasoning text.
func (a *Analyzer) Synthesize(ctx context.Context, st *state.RunState, onChunk func(chunk string)) (string, error) {
	input := a.secondaryInput(st)
	if len(st.Risks) > 0 {
		input.Prior["risks"] = st.Risks
	}
	if len(st.Alternatives) > 0 {
		input.Prior["alternatives"] = st.Alternatives
	}
	if st.Architecture != nil {
		input.Prior["architecture"] = st.Architecture
	}

	raw, err := a.llm.GenerateJSONStream(ctx, synthesisPrompt, input, onChunk)
	if err != nil {
		return "", err
	}
	var payload struct {
		Reasoning string `json:"reasoning"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.Reasoning) == "" {
		return "", llm.NewPermanentError(fmt.Errorf("schema validation: synthesis returned empty reasoning"))
	}
	return payload.Reasoning, nil
}
