// Package llm holds the inference client used by the analysis stages. The
// client only covers the API call itself; retry, timeout and cancellation
// are applied by the executor wrapper around each stage invocation.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrInvalidJSON = errors.New("invalid json from LLM")

// Client is the minimal inference surface the stages need.
type Client interface {
	Name() string
	Close() error

	// GenerateJSON sends prompt plus a JSON-encoded input and returns the
	// model's JSON response.
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)

	// GenerateJSONStream is GenerateJSON with partial text chunks delivered
	// to onChunk as they arrive. onChunk may be nil.
	GenerateJSONStream(ctx context.Context, prompt string, input any, onChunk func(chunk string)) (json.RawMessage, error)
}

// PermanentError marks a failure that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
