// Package events defines the closed set of typed progress events a run
// emits. Events are immutable once constructed; constructors take only the
// data the event carries and never read ambient state.
package events

import (
	"time"

	"llmfit/internal/state"
)

// SchemaVersion tags the wire envelope so consumers can reject payloads
// from an incompatible producer.
const SchemaVersion = 1

// Type names one event shape. The set is closed: Decode rejects anything
// not registered here.
type Type string

const (
	TypePipelineStart    Type = "pipeline:start"
	TypePipelineResumed  Type = "pipeline:resumed"
	TypePipelineStage    Type = "pipeline:stage"
	TypePipelineComplete Type = "pipeline:complete"
	TypePipelineError    Type = "pipeline:error"

	TypeScreeningStart    Type = "screening:start"
	TypeScreeningSignal   Type = "screening:signal"
	TypeScreeningQuestion Type = "screening:question"
	TypeScreeningInsight  Type = "screening:insight"
	TypeScreeningComplete Type = "screening:complete"

	TypeDimensionStart       Type = "dimension:start"
	TypeDimensionPreliminary Type = "dimension:preliminary"
	TypeDimensionQuestion    Type = "dimension:question"
	TypeDimensionComplete    Type = "dimension:complete"
	TypeDimensionToolCall    Type = "dimension:tool_call"
	TypeDimensionToolResult  Type = "dimension:tool_result"

	TypeVerdictComputing Type = "verdict:computing"
	TypeVerdictResult    Type = "verdict:result"

	TypeRisksStart           Type = "risks:start"
	TypeRisksComplete        Type = "risks:complete"
	TypeAlternativesStart    Type = "alternatives:start"
	TypeAlternativesComplete Type = "alternatives:complete"
	TypeArchitectureStart    Type = "architecture:start"
	TypeArchitectureComplete Type = "architecture:complete"
	TypePrebuildComplete     Type = "prebuild:complete"

	TypeReasoningStart    Type = "reasoning:start"
	TypeReasoningChunk    Type = "reasoning:chunk"
	TypeReasoningComplete Type = "reasoning:complete"

	TypeAnswerReceived Type = "answer:received"
)

// Event is one immutable progress record.
type Event interface {
	EventType() Type
}

// ---------------------------------------------------------------------------
// pipeline lifecycle
// ---------------------------------------------------------------------------

type PipelineStart struct {
	RunID     string    `json:"runId"`
	StartedAt time.Time `json:"startedAt"`
}

type PipelineResumed struct {
	RunID       string      `json:"runId"`
	Stage       state.Stage `json:"stage"`
	AnsweredIDs []string    `json:"answeredIds,omitempty"`
}

type PipelineStage struct {
	Stage state.Stage `json:"stage"`
	Index int         `json:"index"`
	Total int         `json:"total"`
}

type PipelineComplete struct {
	RunID  string                  `json:"runId"`
	Result *state.EvaluationResult `json:"result"`
}

type PipelineError struct {
	RunID       string      `json:"runId"`
	Stage       state.Stage `json:"stage"`
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Recoverable bool        `json:"recoverable"`
}

func (PipelineStart) EventType() Type    { return TypePipelineStart }
func (PipelineResumed) EventType() Type  { return TypePipelineResumed }
func (PipelineStage) EventType() Type    { return TypePipelineStage }
func (PipelineComplete) EventType() Type { return TypePipelineComplete }
func (PipelineError) EventType() Type    { return TypePipelineError }

func NewPipelineStart(runID string, startedAt time.Time) PipelineStart {
	return PipelineStart{RunID: runID, StartedAt: startedAt}
}

func NewPipelineResumed(runID string, stage state.Stage, answeredIDs []string) PipelineResumed {
	return PipelineResumed{RunID: runID, Stage: stage, AnsweredIDs: append([]string(nil), answeredIDs...)}
}

func NewPipelineStage(stage state.Stage) PipelineStage {
	return PipelineStage{Stage: stage, Index: state.StageIndex(stage), Total: len(state.StageOrder)}
}

func NewPipelineComplete(runID string, result *state.EvaluationResult) PipelineComplete {
	return PipelineComplete{RunID: runID, Result: result}
}

func NewPipelineError(runID string, stage state.Stage, code, message string, recoverable bool) PipelineError {
	return PipelineError{RunID: runID, Stage: stage, Code: code, Message: message, Recoverable: recoverable}
}

// ---------------------------------------------------------------------------
// screening
// ---------------------------------------------------------------------------

type ScreeningStart struct{}

type ScreeningSignal struct {
	Signal state.Signal `json:"signal"`
}

type ScreeningQuestion struct {
	Question state.FollowUpQuestion `json:"question"`
}

type ScreeningInsight struct {
	Insight string `json:"insight"`
}

type ScreeningComplete struct {
	CanEvaluate   bool `json:"canEvaluate"`
	QuestionCount int  `json:"questionCount"`
}

func (ScreeningStart) EventType() Type    { return TypeScreeningStart }
func (ScreeningSignal) EventType() Type   { return TypeScreeningSignal }
func (ScreeningQuestion) EventType() Type { return TypeScreeningQuestion }
func (ScreeningInsight) EventType() Type  { return TypeScreeningInsight }
func (ScreeningComplete) EventType() Type { return TypeScreeningComplete }

func NewScreeningStart() ScreeningStart { return ScreeningStart{} }

func NewScreeningSignal(sig state.Signal) ScreeningSignal { return ScreeningSignal{Signal: sig} }

func NewScreeningQuestion(q state.FollowUpQuestion) ScreeningQuestion {
	return ScreeningQuestion{Question: q}
}

func NewScreeningInsight(insight string) ScreeningInsight {
	return ScreeningInsight{Insight: insight}
}

func NewScreeningComplete(canEvaluate bool, questionCount int) ScreeningComplete {
	return ScreeningComplete{CanEvaluate: canEvaluate, QuestionCount: questionCount}
}

// ---------------------------------------------------------------------------
// dimensions
// ---------------------------------------------------------------------------

type DimensionStart struct {
	DimensionID string `json:"dimensionId"`
	Name        string `json:"name"`
}

type DimensionPreliminary struct {
	DimensionID string               `json:"dimensionId"`
	Score       state.DimensionScore `json:"score"`
	Confidence  float64              `json:"confidence"`
}

type DimensionQuestion struct {
	DimensionID string                 `json:"dimensionId"`
	Question    state.FollowUpQuestion `json:"question"`
}

type DimensionComplete struct {
	Analysis state.DimensionAnalysis `json:"analysis"`
}

// DimensionToolCall and DimensionToolResult are diagnostics for tool-using
// dimension analyses; consumers may ignore them.
type DimensionToolCall struct {
	DimensionID string `json:"dimensionId"`
	Tool        string `json:"tool"`
	Arguments   string `json:"arguments,omitempty"`
}

type DimensionToolResult struct {
	DimensionID string `json:"dimensionId"`
	Tool        string `json:"tool"`
	Result      string `json:"result,omitempty"`
}

func (DimensionStart) EventType() Type       { return TypeDimensionStart }
func (DimensionPreliminary) EventType() Type { return TypeDimensionPreliminary }
func (DimensionQuestion) EventType() Type    { return TypeDimensionQuestion }
func (DimensionComplete) EventType() Type    { return TypeDimensionComplete }
func (DimensionToolCall) EventType() Type    { return TypeDimensionToolCall }
func (DimensionToolResult) EventType() Type  { return TypeDimensionToolResult }

func NewDimensionStart(id, name string) DimensionStart {
	return DimensionStart{DimensionID: id, Name: name}
}

func NewDimensionPreliminary(id string, score state.DimensionScore, confidence float64) DimensionPreliminary {
	return DimensionPreliminary{DimensionID: id, Score: score, Confidence: confidence}
}

func NewDimensionQuestion(id string, q state.FollowUpQuestion) DimensionQuestion {
	return DimensionQuestion{DimensionID: id, Question: q}
}

func NewDimensionComplete(analysis state.DimensionAnalysis) DimensionComplete {
	return DimensionComplete{Analysis: analysis}
}

func NewDimensionToolCall(id, tool, arguments string) DimensionToolCall {
	return DimensionToolCall{DimensionID: id, Tool: tool, Arguments: arguments}
}

func NewDimensionToolResult(id, tool, result string) DimensionToolResult {
	return DimensionToolResult{DimensionID: id, Tool: tool, Result: result}
}

// ---------------------------------------------------------------------------
// verdict
// ---------------------------------------------------------------------------

type VerdictComputing struct{}

type VerdictResult struct {
	Verdict state.VerdictResult `json:"verdict"`
}

func (VerdictComputing) EventType() Type { return TypeVerdictComputing }
func (VerdictResult) EventType() Type    { return TypeVerdictResult }

func NewVerdictComputing() VerdictComputing { return VerdictComputing{} }

func NewVerdictResult(v state.VerdictResult) VerdictResult { return VerdictResult{Verdict: v} }

// ---------------------------------------------------------------------------
// secondary analyses
// ---------------------------------------------------------------------------

type RisksStart struct{}

type RisksComplete struct {
	Risks []state.Risk `json:"risks,omitempty"`
}

type AlternativesStart struct{}

type AlternativesComplete struct {
	Alternatives []state.Alternative `json:"alternatives,omitempty"`
}

type ArchitectureStart struct{}

// ArchitectureComplete with a nil Architecture is valid: the architecture
// sub-analysis may decline to sketch one.
type ArchitectureComplete struct {
	Architecture *state.Architecture `json:"architecture,omitempty"`
}

type PrebuildComplete struct {
	Questions []state.FollowUpQuestion `json:"questions,omitempty"`
}

func (RisksStart) EventType() Type           { return TypeRisksStart }
func (RisksComplete) EventType() Type        { return TypeRisksComplete }
func (AlternativesStart) EventType() Type    { return TypeAlternativesStart }
func (AlternativesComplete) EventType() Type { return TypeAlternativesComplete }
func (ArchitectureStart) EventType() Type    { return TypeArchitectureStart }
func (ArchitectureComplete) EventType() Type { return TypeArchitectureComplete }
func (PrebuildComplete) EventType() Type     { return TypePrebuildComplete }

func NewRisksStart() RisksStart { return RisksStart{} }

func NewRisksComplete(risks []state.Risk) RisksComplete {
	return RisksComplete{Risks: append([]state.Risk(nil), risks...)}
}

func NewAlternativesStart() AlternativesStart { return AlternativesStart{} }

func NewAlternativesComplete(alts []state.Alternative) AlternativesComplete {
	return AlternativesComplete{Alternatives: append([]state.Alternative(nil), alts...)}
}

func NewArchitectureStart() ArchitectureStart { return ArchitectureStart{} }

func NewArchitectureComplete(arch *state.Architecture) ArchitectureComplete {
	return ArchitectureComplete{Architecture: arch}
}

func NewPrebuildComplete(questions []state.FollowUpQuestion) PrebuildComplete {
	return PrebuildComplete{Questions: append([]state.FollowUpQuestion(nil), questions...)}
}

// ---------------------------------------------------------------------------
// synthesis
// ---------------------------------------------------------------------------

type ReasoningStart struct{}

type ReasoningChunk struct {
	Chunk string `json:"chunk"`
}

type ReasoningComplete struct {
	Reasoning string `json:"reasoning"`
}

func (ReasoningStart) EventType() Type    { return TypeReasoningStart }
func (ReasoningChunk) EventType() Type    { return TypeReasoningChunk }
func (ReasoningComplete) EventType() Type { return TypeReasoningComplete }

func NewReasoningStart() ReasoningStart { return ReasoningStart{} }

func NewReasoningChunk(chunk string) ReasoningChunk { return ReasoningChunk{Chunk: chunk} }

func NewReasoningComplete(reasoning string) ReasoningComplete {
	return ReasoningComplete{Reasoning: reasoning}
}

// ---------------------------------------------------------------------------
// answers
// ---------------------------------------------------------------------------

type AnswerReceived struct {
	QuestionID  string      `json:"questionId"`
	SourceStage state.Stage `json:"sourceStage"`
}

func (AnswerReceived) EventType() Type { return TypeAnswerReceived }

func NewAnswerReceived(questionID string, sourceStage state.Stage) AnswerReceived {
	return AnswerReceived{QuestionID: questionID, SourceStage: sourceStage}
}
