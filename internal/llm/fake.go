package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// FakeClient returns scripted responses keyed by a substring of the prompt.
// It backs the CLI's --fake mode and the stage tests: deterministic, no
// network, no credentials.
type FakeClient struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	calls     []string
}

// NewFakeClient builds a client from prompt-substring -> JSON response.
func NewFakeClient(responses map[string]string) *FakeClient {
	out := make(map[string]json.RawMessage, len(responses))
	for k, v := range responses {
		out[k] = json.RawMessage(v)
	}
	return &FakeClient{responses: out}
}

func (f *FakeClient) Name() string { return "fake" }
func (f *FakeClient) Close() error { return nil }

// Calls returns the prompts seen so far, for test assertions.
func (f *FakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	for key, resp := range f.responses {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	return nil, NewPermanentError(fmt.Errorf("fake client has no response for prompt"))
}

func (f *FakeClient) GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error) {
	resp, err := f.GenerateJSON(ctx, prompt, input)
	if err != nil {
		return nil, err
	}
	if onChunk != nil {
		// Stream in two chunks so consumers exercise reassembly.
		text := string(resp)
		half := len(text) / 2
		onChunk(text[:half])
		onChunk(text[half:])
	}
	return resp, nil
}
