package state

import "time"

// RunInput is the immutable input of one evaluation run.
type RunInput struct {
	Problem string `json:"problem"`
	Context string `json:"context,omitempty"`
}

// Answer is one user-supplied answer to a follow-up question. Answers are
// keyed by QuestionID in the run's answer map; a later answer for the same
// id overwrites the earlier one.
type Answer struct {
	QuestionID  string    `json:"questionId"`
	AnswerText  string    `json:"answerText"`
	SourceStage Stage     `json:"sourceStage"`
	Timestamp   time.Time `json:"timestamp"`
}

// QuestionPriority controls whether an unanswered question gates stage
// completion.
type QuestionPriority string

const (
	PriorityBlocking QuestionPriority = "blocking"
	PriorityHelpful  QuestionPriority = "helpful"
	PriorityOptional QuestionPriority = "optional"
)

// FollowUpQuestion is a question a stage raised about the problem input.
// Only blocking questions suspend a run; helpful and optional questions are
// informational.
type FollowUpQuestion struct {
	ID              string           `json:"id"`
	Question        string           `json:"question"`
	Rationale       string           `json:"rationale,omitempty"`
	Priority        QuestionPriority `json:"priority"`
	OriginStage     Stage            `json:"originStage"`
	OriginDimension string           `json:"originDimension,omitempty"`
	AssumedDefault  string           `json:"assumedDefaultIfUnanswered,omitempty"`
}

// Blocking reports whether the question must be answered before its origin
// stage can complete.
func (q FollowUpQuestion) Blocking() bool { return q.Priority == PriorityBlocking }

// DimensionScore is the per-dimension outcome of the analysis.
type DimensionScore string

const (
	ScoreFavorable   DimensionScore = "favorable"
	ScoreNeutral     DimensionScore = "neutral"
	ScoreUnfavorable DimensionScore = "unfavorable"
)

// DimensionStatus tracks per-dimension progress. Status is monotonic:
// pending -> running -> (preliminary)? -> complete, and never regresses.
type DimensionStatus string

const (
	DimensionPending     DimensionStatus = "pending"
	DimensionRunning     DimensionStatus = "running"
	DimensionPreliminary DimensionStatus = "preliminary"
	DimensionComplete    DimensionStatus = "complete"
)

var dimensionStatusRank = map[DimensionStatus]int{
	DimensionPending:     0,
	DimensionRunning:     1,
	DimensionPreliminary: 2,
	DimensionComplete:    3,
}

// CanAdvanceTo reports whether moving from s to next respects monotonicity.
func (s DimensionStatus) CanAdvanceTo(next DimensionStatus) bool {
	return dimensionStatusRank[next] >= dimensionStatusRank[s]
}

// DimensionAnalysis is the record for one evaluation dimension.
type DimensionAnalysis struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Score      DimensionScore     `json:"score,omitempty"`
	Confidence float64            `json:"confidence"`
	Weight     float64            `json:"weight"`
	Reasoning  string             `json:"reasoning,omitempty"`
	Evidence   []string           `json:"evidence,omitempty"`
	InfoGaps   []FollowUpQuestion `json:"infoGaps,omitempty"`
	Status     DimensionStatus    `json:"status"`
}

// Verdict is the overall suitability call for the evaluated problem.
type Verdict string

const (
	VerdictStrongFit      Verdict = "STRONG_FIT"
	VerdictConditional    Verdict = "CONDITIONAL"
	VerdictWeakFit        Verdict = "WEAK_FIT"
	VerdictNotRecommended Verdict = "NOT_RECOMMENDED"
)

// VerdictResult is produced exactly once per run, after all dimensions
// reach complete.
type VerdictResult struct {
	Verdict    Verdict  `json:"verdict"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
	Reasoning  string   `json:"reasoning,omitempty"`
	KeyFactors []string `json:"keyFactors,omitempty"`
}

// Signal is one quick screening observation about the problem.
type Signal struct {
	Name      string `json:"name"`
	Favorable bool   `json:"favorable"`
	Note      string `json:"note,omitempty"`
}

// ScreeningResult is the output of the screening stage. CanEvaluate=false is
// not a failure; it surfaces as questions like any other suspension.
type ScreeningResult struct {
	CanEvaluate bool               `json:"canEvaluate"`
	Signals     []Signal           `json:"signals,omitempty"`
	Insights    []string           `json:"insights,omitempty"`
	Questions   []FollowUpQuestion `json:"questions,omitempty"`
}

// Risk is one identified deployment risk.
type Risk struct {
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Detail     string `json:"detail,omitempty"`
	Mitigation string `json:"mitigation,omitempty"`
}

// Alternative is a non-LLM (or partially automated) approach worth
// considering instead.
type Alternative struct {
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Complexity string `json:"complexity,omitempty"`
}

// Architecture sketches how an LLM-backed solution would be wired. A nil
// Architecture on a run is valid (e.g. when the verdict is NOT_RECOMMENDED).
type Architecture struct {
	Pattern    string   `json:"pattern"`
	Components []string `json:"components,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// RunError is one classified error accumulated on a run. It mirrors the
// executor error shape without depending on it so snapshots stay
// self-contained.
type RunError struct {
	Stage       Stage     `json:"stage"`
	Code        string    `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}
