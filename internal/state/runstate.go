package state

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RunState is the canonical serializable snapshot of one evaluation run.
// It is the unit of suspend/resume persistence: everything needed to
// re-enter the current stage after answers arrive lives here.
type RunState struct {
	RunID             string                        `json:"runId"`
	Input             RunInput                      `json:"input"`
	Answers           map[string]Answer             `json:"answers"`
	Screening         *ScreeningResult              `json:"screening,omitempty"`
	Dimensions        map[string]*DimensionAnalysis `json:"dimensions"`
	PendingQuestions  []FollowUpQuestion            `json:"pendingQuestions,omitempty"`
	Verdict           *VerdictResult                `json:"verdict,omitempty"`
	Risks             []Risk                        `json:"risks,omitempty"`
	Alternatives      []Alternative                 `json:"alternatives,omitempty"`
	Architecture      *Architecture                 `json:"architecture,omitempty"`
	PreBuildQuestions []FollowUpQuestion            `json:"preBuildQuestions,omitempty"`
	FinalReasoning    string                        `json:"finalReasoning,omitempty"`
	CurrentStage      Stage                         `json:"currentStage"`
	CompletedStages   []Stage                       `json:"completedStages"`
	StartedAt         time.Time                     `json:"startedAt"`
	CompletedAt       *time.Time                    `json:"completedAt,omitempty"`
	Errors            []RunError                    `json:"errors,omitempty"`
}

// NewRunState creates the initial snapshot for a run.
func NewRunState(runID string, input RunInput) *RunState {
	return &RunState{
		RunID:        strings.TrimSpace(runID),
		Input:        input,
		Answers:      make(map[string]Answer),
		Dimensions:   NewDimensionAnalyses(),
		CurrentStage: StageScreening,
		StartedAt:    time.Now().UTC(),
	}
}

// MergeAnswer records an answer with last-write-wins semantics. Answers are
// never deleted for the lifetime of a run.
func (s *RunState) MergeAnswer(a Answer) {
	id := strings.TrimSpace(a.QuestionID)
	if id == "" {
		return
	}
	if s.Answers == nil {
		s.Answers = make(map[string]Answer)
	}
	a.QuestionID = id
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	s.Answers[id] = a
}

// Answered reports whether a question id has an answer.
func (s *RunState) Answered(questionID string) bool {
	_, ok := s.Answers[strings.TrimSpace(questionID)]
	return ok
}

// UnansweredBlocking filters questions down to blocking ones that have no
// matching entry in the answer map.
func (s *RunState) UnansweredBlocking(questions []FollowUpQuestion) []FollowUpQuestion {
	var out []FollowUpQuestion
	for _, q := range questions {
		if q.Blocking() && !s.Answered(q.ID) {
			out = append(out, q)
		}
	}
	return out
}

// StageCompleted reports whether stage is in CompletedStages.
func (s *RunState) StageCompleted(stage Stage) bool {
	for _, done := range s.CompletedStages {
		if done == stage {
			return true
		}
	}
	return false
}

// MarkStageComplete appends the current stage to CompletedStages and
// advances CurrentStage. It enforces that stages complete strictly in order.
func (s *RunState) MarkStageComplete(stage Stage) error {
	if stage != s.CurrentStage {
		return fmt.Errorf("stage %s is not the current stage (%s)", stage, s.CurrentStage)
	}
	if len(s.CompletedStages) != StageIndex(stage) {
		return fmt.Errorf("stage %s completed out of order", stage)
	}
	s.CompletedStages = append(s.CompletedStages, stage)
	if next, ok := NextStage(stage); ok {
		s.CurrentStage = next
	}
	return nil
}

// SetDimension replaces the record for one dimension, enforcing status
// monotonicity. A dimension that already reached complete is immutable.
func (s *RunState) SetDimension(d *DimensionAnalysis) error {
	if d == nil || strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("dimension record is missing an id")
	}
	if s.Dimensions == nil {
		s.Dimensions = NewDimensionAnalyses()
	}
	cur, ok := s.Dimensions[d.ID]
	if !ok {
		return fmt.Errorf("unknown dimension %s", d.ID)
	}
	if cur.Status == DimensionComplete {
		return fmt.Errorf("dimension %s is already complete", d.ID)
	}
	if !cur.Status.CanAdvanceTo(d.Status) {
		return fmt.Errorf("dimension %s status cannot regress from %s to %s", d.ID, cur.Status, d.Status)
	}
	s.Dimensions[d.ID] = d
	return nil
}

// PendingDimensionIDs lists dimensions that have not reached complete, in
// catalog order. On resume only these are re-invoked; completed dimensions
// are treated as final.
func (s *RunState) PendingDimensionIDs() []string {
	var out []string
	for _, spec := range DimensionCatalog {
		if d, ok := s.Dimensions[spec.ID]; !ok || d.Status != DimensionComplete {
			out = append(out, spec.ID)
		}
	}
	return out
}

// DimensionsComplete reports whether all seven dimensions reached complete.
func (s *RunState) DimensionsComplete() bool {
	return len(s.PendingDimensionIDs()) == 0
}

// RecordError appends a classified error to the run's diagnostics. The list
// is preserved whether the run ultimately succeeds, suspends, or fails.
func (s *RunState) RecordError(e RunError) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.Errors = append(s.Errors, e)
}

// PendingQuestionIDs lists the ids of the currently pending questions.
func (s *RunState) PendingQuestionIDs() []string {
	out := make([]string, 0, len(s.PendingQuestions))
	for _, q := range s.PendingQuestions {
		out = append(out, q.ID)
	}
	return out
}

// Validate checks the snapshot invariants: CompletedStages must be a prefix
// of the fixed stage order, and a later-stage field may be non-nil only if
// all earlier stages completed.
func (s *RunState) Validate() error {
	if strings.TrimSpace(s.RunID) == "" {
		return fmt.Errorf("run state is missing a run id")
	}
	for i, stage := range s.CompletedStages {
		if i >= len(StageOrder) || StageOrder[i] != stage {
			return fmt.Errorf("completedStages is not a prefix of the stage order at %d (%s)", i, stage)
		}
	}
	if !KnownStage(s.CurrentStage) {
		return fmt.Errorf("unknown current stage %q", s.CurrentStage)
	}
	if s.Verdict != nil && !s.StageCompleted(StageDimensions) {
		return fmt.Errorf("verdict set before dimensions completed")
	}
	if (len(s.Risks) > 0 || len(s.Alternatives) > 0 || s.Architecture != nil) && !s.StageCompleted(StageVerdict) {
		return fmt.Errorf("secondary artifacts set before verdict completed")
	}
	if s.CompletedAt != nil && !s.StageCompleted(StageSynthesis) {
		return fmt.Errorf("completedAt set before synthesis completed")
	}
	return nil
}

// Progress maps run progress onto [0,100]: completed stages count evenly,
// with partial credit for completed dimensions inside the dimensions stage.
func (s *RunState) Progress() int {
	per := 100 / len(StageOrder)
	p := len(s.CompletedStages) * per
	if s.CurrentStage == StageDimensions && !s.StageCompleted(StageDimensions) {
		total := len(DimensionCatalog)
		done := total - len(s.PendingDimensionIDs())
		p += done * per / total
	}
	if p > 100 {
		p = 100
	}
	return p
}

// SortedAnswers returns the answer map as a slice ordered by question id,
// for deterministic serialization in reports.
func (s *RunState) SortedAnswers() []Answer {
	out := make([]Answer, 0, len(s.Answers))
	for _, a := range s.Answers {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
