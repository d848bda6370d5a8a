package orchestrator

import (
	"time"

	"github.com/hexstrike/hexstrike/internal/types"
)

// ProcessState is the lifecycle state of one managed subprocess.
//
// Transitions: pending -> running -> {completed | failed | timed_out |
// terminated}. timed_out (deadline exceeded, forcibly killed) is distinct
// from failed (non-zero exit) and terminated (explicit caller kill).
type ProcessState string

const (
	StatePending    ProcessState = "pending"
	StateRunning    ProcessState = "running"
	StateCompleted  ProcessState = "completed"
	StateFailed     ProcessState = "failed"
	StateTimedOut   ProcessState = "timed_out"
	StateTerminated ProcessState = "terminated"
)

// String returns the string representation of ProcessState.
func (s ProcessState) String() string {
	return string(s)
}

// IsTerminal reports whether the state is a terminal one.
func (s ProcessState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateTerminated:
		return true
	default:
		return false
	}
}

// ProcessHandle is a point-in-time snapshot of a managed subprocess.
// Handles returned by the orchestrator are copies; only the orchestrator's
// monitor loop mutates the underlying process record.
type ProcessHandle struct {
	ID              types.ID     `json:"id"`
	ToolID          string       `json:"tool_id"`
	CommandLine     string       `json:"command_line"`
	State           ProcessState `json:"state"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      time.Time    `json:"finished_at,omitempty"`
	ExitCode        int          `json:"exit_code"`
	ProgressPercent float64      `json:"progress_percent"`
	Output          []byte       `json:"-"`
	Error           string       `json:"error,omitempty"`

	// FellBack is set when the terminal state is the outcome of the
	// reduced-scope retry rather than the first attempt.
	FellBack bool `json:"fell_back,omitempty"`
}
