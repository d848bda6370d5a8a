package orchestrator

import (
	"sync"
	"time"
)

// ToolStats tracks execution outcomes for one tool. The decision engine
// consumes the success rate as its historical-reliability signal.
type ToolStats struct {
	TotalRuns     int64         `json:"total_runs"`
	SuccessRuns   int64         `json:"success_runs"`
	FailedRuns    int64         `json:"failed_runs"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
}

// SuccessRate returns the success fraction in [0,1]; 0 with no runs.
func (s *ToolStats) SuccessRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessRuns) / float64(s.TotalRuns)
}

// StatsTable is the thread-safe per-tool stats registry.
type StatsTable struct {
	mu    sync.RWMutex
	tools map[string]*ToolStats
}

func newStatsTable() *StatsTable {
	return &StatsTable{tools: make(map[string]*ToolStats)}
}

func (t *StatsTable) record(toolID string, success bool, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.tools[toolID]
	if !ok {
		s = &ToolStats{}
		t.tools[toolID] = s
	}
	s.TotalRuns++
	if success {
		s.SuccessRuns++
	} else {
		s.FailedRuns++
	}
	s.TotalDuration += duration
	s.AvgDuration = s.TotalDuration / time.Duration(s.TotalRuns)
}

// SuccessRate implements decision.StatsProvider. ok is false for tools
// with no recorded executions.
func (t *StatsTable) SuccessRate(toolID string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.tools[toolID]
	if !ok {
		return 0, false
	}
	return s.SuccessRate(), true
}

// snapshot returns a copy of all per-tool stats.
func (t *StatsTable) snapshot() map[string]ToolStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]ToolStats, len(t.tools))
	for id, s := range t.tools {
		out[id] = *s
	}
	return out
}
