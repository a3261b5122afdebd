package state

// Stage identifies one of the five fixed evaluation phases.
type Stage string

const (
	StageScreening  Stage = "screening"
	StageDimensions Stage = "dimensions"
	StageVerdict    Stage = "verdict"
	StageSecondary  Stage = "secondary"
	StageSynthesis  Stage = "synthesis"
)

// StageOrder is the fixed execution order. Runs never skip or reorder stages.
var StageOrder = []Stage{
	StageScreening,
	StageDimensions,
	StageVerdict,
	StageSecondary,
	StageSynthesis,
}

// StageIndex returns the position of s in StageOrder, or -1 if unknown.
func StageIndex(s Stage) int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// NextStage returns the stage after s. ok is false when s is the last stage
// or not a known stage.
func NextStage(s Stage) (Stage, bool) {
	idx := StageIndex(s)
	if idx < 0 || idx+1 >= len(StageOrder) {
		return "", false
	}
	return StageOrder[idx+1], true
}

// KnownStage reports whether s is one of the five fixed stages.
func KnownStage(s Stage) bool { return StageIndex(s) >= 0 }
