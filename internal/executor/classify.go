package executor

import (
	"errors"
	"strings"
)

// classificationRule maps message fragments to an error code. Rules are
// checked in order; the first fragment match wins.
type classificationRule struct {
	code      ErrorCode
	fragments []string
}

// Precedence matters: rate-limit phrasing often also mentions the service,
// and timeout phrasing often mentions the network, so the more specific
// families come first.
var classificationRules = []classificationRule{
	{CodeRateLimit, []string{
		"rate limit", "rate_limit", "ratelimit", "429", "too many requests",
		"quota", "resource exhausted", "resource_exhausted",
	}},
	{CodeNetworkError, []string{
		"network", "connection refused", "connection reset", "connection closed",
		"dial tcp", "no such host", "broken pipe", "econnrefused", "econnreset",
		"dns", "unreachable",
	}},
	{CodeServiceUnavailable, []string{
		"503", "502", "500", "service unavailable", "service_unavailable",
		"internal server error", "bad gateway", "overloaded", "server error",
	}},
	{CodeTimeout, []string{
		"timeout", "timed out", "deadline exceeded", "deadline_exceeded",
	}},
	{CodeAuthentication, []string{
		"401", "403", "unauthorized", "forbidden", "authentication",
		"api key", "permission denied", "permission_denied", "invalid key",
	}},
	{CodeContentFilter, []string{
		"content filter", "content_filter", "safety", "blocked by", "prohibited",
		"harm category",
	}},
	{CodeSchemaValidation, []string{
		"schema", "invalid json", "unmarshal", "validation failed",
		"structured output", "malformed response", "cannot parse",
	}},
	{CodeCancelled, []string{
		"cancel", "abort",
	}},
}

// ClassifyMessage maps a raw failure message to an error code. The match is
// case-insensitive and depends only on the message content.
func ClassifyMessage(message string) ErrorCode {
	lower := strings.ToLower(message)
	for _, rule := range classificationRules {
		for _, frag := range rule.fragments {
			if strings.Contains(lower, frag) {
				return rule.code
			}
		}
	}
	return CodeUnknown
}

// Classify converts a raw failure into an ExecError for the given stage and
// attempt. An error that is already classified passes through unchanged.
func Classify(err error, stage string, attempt int) *ExecError {
	if err == nil {
		return nil
	}
	var already *ExecError
	if errors.As(err, &already) {
		return already
	}
	return newExecError(ClassifyMessage(err.Error()), err.Error(), stage, attempt, err)
}

// AsExecError extracts the classified error from err, classifying on the
// fly when err came from outside the wrapper.
func AsExecError(err error, stage string) *ExecError {
	if err == nil {
		return nil
	}
	var classified *ExecError
	if errors.As(err, &classified) {
		return classified
	}
	return Classify(err, stage, 0)
}
