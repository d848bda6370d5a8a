package coordinator

import (
	"time"

	"github.com/hexstrike/hexstrike/internal/types"
)

// StepStatus is the terminal outcome of one plan step.
type StepStatus string

const (
	StepOK                StepStatus = "ok"
	StepFailed            StepStatus = "failed"
	StepTimedOut          StepStatus = "timed_out"
	StepSkippedDependency StepStatus = "skipped_dependency_failed"
)

// Provenance records where a step's result came from.
type Provenance string

const (
	ProvenanceCached   Provenance = "cached"
	ProvenanceExecuted Provenance = "executed"
)

// StepResult is the outcome of one plan step within a run.
type StepResult struct {
	ToolID     string        `json:"tool_id"`
	Status     StepStatus    `json:"status"`
	Provenance Provenance    `json:"provenance,omitempty"`
	Output     string        `json:"output,omitempty"`
	ProcessID  types.ID      `json:"process_id,omitempty"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration"`
	FellBack   bool          `json:"fell_back,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RunResult aggregates a full run, keyed by tool id. Per-step failures
// live inside their StepResult; only pre-execution failures abort a run.
type RunResult struct {
	RunID      types.ID               `json:"run_id"`
	Profile    *types.TargetProfile   `json:"profile"`
	Objective  string                 `json:"objective"`
	Steps      map[string]*StepResult `json:"steps"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Succeeded reports whether every step finished ok.
func (r *RunResult) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status != StepOK {
			return false
		}
	}
	return true
}

// EventType tags a streamed run update.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventStepStarted  EventType = "step_started"
	EventStepFinished EventType = "step_finished"
	EventRunFinished  EventType = "run_finished"
)

// StepUpdate is one streamed event from RunStream. Step is set on
// step_finished, Result on run_finished.
type StepUpdate struct {
	Event  EventType   `json:"event"`
	ToolID string      `json:"tool_id,omitempty"`
	Step   *StepResult `json:"step,omitempty"`
	Result *RunResult  `json:"result,omitempty"`
}
