package state

// DimensionSpec fixes the identity and weight of one evaluation dimension.
// The seven dimensions are set by the evaluation rubric, not by the
// orchestrator.
type DimensionSpec struct {
	ID     string
	Name   string
	Weight float64
}

// DimensionCatalog lists the seven fixed dimensions in presentation order.
var DimensionCatalog = []DimensionSpec{
	{ID: "task_clarity", Name: "Task Clarity", Weight: 0.20},
	{ID: "data_availability", Name: "Data Availability", Weight: 0.15},
	{ID: "error_tolerance", Name: "Error Tolerance", Weight: 0.20},
	{ID: "reasoning_depth", Name: "Reasoning Depth", Weight: 0.15},
	{ID: "integration_surface", Name: "Integration Surface", Weight: 0.10},
	{ID: "cost_sensitivity", Name: "Cost Sensitivity", Weight: 0.10},
	{ID: "human_oversight", Name: "Human Oversight", Weight: 0.10},
}

// DimensionSpecByID returns the catalog entry for id.
func DimensionSpecByID(id string) (DimensionSpec, bool) {
	for _, spec := range DimensionCatalog {
		if spec.ID == id {
			return spec, true
		}
	}
	return DimensionSpec{}, false
}

// NewDimensionAnalyses builds the initial pending record set for a run.
func NewDimensionAnalyses() map[string]*DimensionAnalysis {
	out := make(map[string]*DimensionAnalysis, len(DimensionCatalog))
	for _, spec := range DimensionCatalog {
		out[spec.ID] = &DimensionAnalysis{
			ID:     spec.ID,
			Name:   spec.Name,
			Weight: spec.Weight,
			Status: DimensionPending,
		}
	}
	return out
}
