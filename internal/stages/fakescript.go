package stages

// FakeScript returns a canned response per stage prompt, keyed by the task
// tag each prompt carries. It drives offline runs: the CLI's --fake mode
// and end-to-end tests that should not touch a model endpoint.
func FakeScript() map[string]string {
	return map[string]string{
		"[TASK screening]": `{
			"canEvaluate": true,
			"signals": [{"name": "textual-io", "favorable": true, "note": "The task has a clear textual input and output."}],
			"insights": ["The problem resembles document triage, a common LLM workload."],
			"questions": [
				{"id": "screening-volume", "question": "Roughly how many items per day need processing?", "priority": "helpful"}
			]
		}`,
		"[TASK dimension]": `{
			"score": "favorable",
			"confidence": 0.8,
			"reasoning": "The available description suggests this dimension poses no blocker.",
			"evidence": ["Stated workflow matches established automation patterns."],
			"infoGaps": []
		}`,
		"[TASK risks]": `{
			"risks": [
				{"title": "Silent quality drift", "severity": "medium", "detail": "Model output quality can degrade without monitoring.", "mitigation": "Sample and review outputs weekly."}
			]
		}`,
		"[TASK alternatives]": `{
			"alternatives": [
				{"title": "Rule-based triage", "detail": "Keyword and pattern rules over the same inputs.", "complexity": "low"}
			]
		}`,
		"[TASK architecture]": `{
			"architecture": {
				"pattern": "single-model pipeline with human review",
				"components": ["ingestion queue", "LLM classifier", "review UI"],
				"notes": "Start with a narrow category set and widen gradually."
			}
		}`,
		"[TASK synthesis]": `{
			"reasoning": "The problem is well suited to LLM automation: inputs are textual, errors are reviewable, and a narrow initial scope keeps risk contained. Begin with a pilot on a representative sample and add monitoring before scaling."
		}`,
	}
}
