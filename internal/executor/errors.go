package executor

import (
	"fmt"
	"time"
)

// ErrorCode is the closed taxonomy of classified stage-call failures.
type ErrorCode string

const (
	CodeRateLimit          ErrorCode = "RATE_LIMIT"
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeAuthentication     ErrorCode = "AUTHENTICATION"
	CodeContentFilter      ErrorCode = "CONTENT_FILTER"
	CodeSchemaValidation   ErrorCode = "SCHEMA_VALIDATION"
	CodeCancelled          ErrorCode = "CANCELLED"
	CodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	CodeUnknown            ErrorCode = "UNKNOWN"
)

// Recoverable reports whether a failure with this code may be retried.
// Recoverability is a function of the code alone.
func (c ErrorCode) Recoverable() bool {
	switch c {
	case CodeRateLimit, CodeNetworkError, CodeServiceUnavailable, CodeTimeout:
		return true
	default:
		return false
	}
}

// ExecError is the classified form of a failure raised by a stage call.
// Instances are created by Classify (or the resilience wrapper) and are not
// mutated afterwards.
type ExecError struct {
	Code        ErrorCode
	Message     string
	Stage       string
	Recoverable bool
	Timestamp   time.Time
	Attempt     int
	Cause       error
}

func (e *ExecError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExecError) Unwrap() error { return e.Cause }

func newExecError(code ErrorCode, message, stage string, attempt int, cause error) *ExecError {
	return &ExecError{
		Code:        code,
		Message:     message,
		Stage:       stage,
		Recoverable: code.Recoverable(),
		Timestamp:   time.Now().UTC(),
		Attempt:     attempt,
		Cause:       cause,
	}
}

// wrapMaxRetries wraps the final recoverable error once attempts are
// exhausted.
func wrapMaxRetries(last *ExecError, stage string, attempts int) *ExecError {
	return newExecError(
		CodeMaxRetriesExceeded,
		fmt.Sprintf("giving up after %d attempts: %s", attempts, last.Message),
		stage,
		attempts,
		last,
	)
}
