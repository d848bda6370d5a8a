package decision

import (
	"github.com/hexstrike/hexstrike/internal/types"
)

// PlanStep is one scheduled tool invocation with fully resolved parameters.
// DependsOn names an earlier step's tool id; the coordinator must not
// dispatch a dependent step until its dependency has a result.
type PlanStep struct {
	ToolID     string         `json:"tool_id"`
	Parameters map[string]any `json:"parameters"`
	Rationale  string         `json:"rationale"`
	DependsOn  string         `json:"depends_on,omitempty"`
}

// ExecutionPlan is the ordered attack-chain plan for one run. It is built
// per request, consumed once by the coordinator, and never persisted.
type ExecutionPlan struct {
	Target    *types.TargetProfile `json:"target"`
	Objective string               `json:"objective"`
	Steps     []PlanStep           `json:"steps"`
}

// Step returns the plan step for the given tool id, or nil.
func (p *ExecutionPlan) Step(toolID string) *PlanStep {
	for i := range p.Steps {
		if p.Steps[i].ToolID == toolID {
			return &p.Steps[i]
		}
	}
	return nil
}
