package stages

// Prompt texts for the analysis workers. Each prompt carries a [TASK ...]
// tag so scripted clients can dispatch on it; production models ignore the
// tag.

const screeningPrompt = `[TASK screening]
You are screening a problem description to judge whether it can be evaluated
for LLM-automation suitability at all.

Look for: a recognizable task, an input/output shape, and enough context to
reason about data and error tolerance. When something essential is missing,
raise a follow-up question instead of guessing; mark it "blocking" only if
the evaluation truly cannot proceed without the answer.

Respond with JSON:
{
  "canEvaluate": bool,
  "signals": [{"name": string, "favorable": bool, "note": string}],
  "insights": [string],
  "questions": [{
    "id": string,
    "question": string,
    "rationale": string,
    "priority": "blocking" | "helpful" | "optional",
    "assumedDefaultIfUnanswered": string
  }]
}`

const dimensionPrompt = `[TASK dimension]
You are analyzing one evaluation dimension of a problem description that is
being assessed for LLM-automation suitability. Judge only the named
dimension; other dimensions are analyzed separately.

Score "favorable" when the dimension supports automating with an LLM,
"unfavorable" when it argues against, "neutral" otherwise. Cite concrete
phrases from the problem as evidence. When the description leaves a gap
that materially affects this dimension, add it to infoGaps; mark it
"blocking" only if no defensible score is possible without the answer.

Respond with JSON:
{
  "score": "favorable" | "neutral" | "unfavorable",
  "confidence": number between 0 and 1,
  "reasoning": string,
  "evidence": [string],
  "infoGaps": [{
    "id": string,
    "question": string,
    "rationale": string,
    "priority": "blocking" | "helpful" | "optional",
    "assumedDefaultIfUnanswered": string
  }]
}`

const risksPrompt = `[TASK risks]
Given the problem description, the dimension analyses and the verdict,
list the main risks of building this as an LLM-backed system. Severity is
one of "high", "medium", "low".

Respond with JSON:
{"risks": [{"title": string, "severity": string, "detail": string, "mitigation": string}]}`

const alternativesPrompt = `[TASK alternatives]
Given the problem description and the verdict, list alternative approaches
(rule-based, classical ML, human workflow, hybrid) that could solve the
problem without, or with less, LLM involvement. Complexity is one of
"low", "medium", "high".

Respond with JSON:
{"alternatives": [{"title": string, "detail": string, "complexity": string}]}`

const architecturePrompt = `[TASK architecture]
Sketch how an LLM-backed solution to this problem would be structured:
the overall pattern (e.g. single-shot, RAG, agent loop, human-in-the-loop
review) and its main components.

Respond with JSON:
{"architecture": {"pattern": string, "components": [string], "notes": string}}`

const synthesisPrompt = `[TASK synthesis]
Write the final narrative for this evaluation: a plain-language explanation
of the verdict that walks through the decisive dimensions, the main risks,
and what the reader should verify before building. Address the reader
directly; do not repeat the raw scores.

Respond with JSON:
{"reasoning": string}`
