package state

import "time"

// Status is the process-local lifecycle of a run handle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// RunStatus is the mutable, process-local view of a run. It is not part of
// the persisted snapshot; the registry rebuilds it from events.
type RunStatus struct {
	RunID              string     `json:"runId"`
	Stage              Stage      `json:"stage"`
	Status             Status     `json:"status"`
	PendingQuestionIDs []string   `json:"pendingQuestionIds,omitempty"`
	Errors             []RunError `json:"errors,omitempty"`
	StartedAt          time.Time  `json:"startedAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	Progress           int        `json:"progress"`
}

// Clone returns a copy safe to hand to callers while the original keeps
// being mutated.
func (s *RunStatus) Clone() RunStatus {
	out := *s
	out.PendingQuestionIDs = append([]string(nil), s.PendingQuestionIDs...)
	out.Errors = append([]RunError(nil), s.Errors...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
