package state

import (
	"fmt"
	"time"
)

// EvaluationResult is the terminal projection of a completed run.
type EvaluationResult struct {
	RunID             string              `json:"runId"`
	Verdict           VerdictResult       `json:"verdict"`
	Dimensions        []DimensionAnalysis `json:"dimensions"`
	Screening         *ScreeningResult    `json:"screening,omitempty"`
	Risks             []Risk              `json:"risks,omitempty"`
	Alternatives      []Alternative       `json:"alternatives,omitempty"`
	Architecture      *Architecture       `json:"architecture,omitempty"`
	PreBuildQuestions []FollowUpQuestion  `json:"preBuildQuestions,omitempty"`
	Answers           []Answer            `json:"answers,omitempty"`
	Reasoning         string              `json:"reasoning,omitempty"`
	StartedAt         time.Time           `json:"startedAt"`
	CompletedAt       time.Time           `json:"completedAt"`
}

// AssembleResult projects the run state into the terminal result record.
// It requires all five stages to have completed.
func (s *RunState) AssembleResult() (*EvaluationResult, error) {
	if len(s.CompletedStages) != len(StageOrder) {
		return nil, fmt.Errorf("run %s has not completed all stages", s.RunID)
	}
	if s.Verdict == nil {
		return nil, fmt.Errorf("run %s has no verdict", s.RunID)
	}
	if s.CompletedAt == nil {
		return nil, fmt.Errorf("run %s has no completion timestamp", s.RunID)
	}

	dims := make([]DimensionAnalysis, 0, len(DimensionCatalog))
	for _, spec := range DimensionCatalog {
		d, ok := s.Dimensions[spec.ID]
		if !ok || d.Status != DimensionComplete {
			return nil, fmt.Errorf("run %s dimension %s is not complete", s.RunID, spec.ID)
		}
		dims = append(dims, *d)
	}

	return &EvaluationResult{
		RunID:             s.RunID,
		Verdict:           *s.Verdict,
		Dimensions:        dims,
		Screening:         s.Screening,
		Risks:             s.Risks,
		Alternatives:      s.Alternatives,
		Architecture:      s.Architecture,
		PreBuildQuestions: s.PreBuildQuestions,
		Answers:           s.SortedAnswers(),
		Reasoning:         s.FinalReasoning,
		StartedAt:         s.StartedAt,
		CompletedAt:       *s.CompletedAt,
	}, nil
}
