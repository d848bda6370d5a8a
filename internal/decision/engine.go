// Package decision implements the target-driven tool selection, parameter
// optimization, and attack-chain planning engine. The engine only plans;
// execution belongs to the orchestrator.
package decision

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/types"
)

// ScoringWeights control the selection score blend. The original system
// never documented its heuristic numerically; these weights are an explicit
// choice: objective fit dominates, runtime cost matters, and observed
// reliability nudges the ordering without overruling relevance.
type ScoringWeights struct {
	KeywordMatch float64
	InverseCost  float64
	SuccessRate  float64
}

// DefaultWeights is the documented default blend.
func DefaultWeights() ScoringWeights {
	return ScoringWeights{
		KeywordMatch: 0.5,
		InverseCost:  0.3,
		SuccessRate:  0.2,
	}
}

// StatsProvider supplies historical per-tool success rates, typically
// backed by the orchestrator's execution metrics. ok is false when a tool
// has no history yet.
type StatsProvider interface {
	SuccessRate(toolID string) (rate float64, ok bool)
}

// neutralSuccessPrior is used for tools with no execution history so that
// unknown tools are neither favored nor punished.
const neutralSuccessPrior = 0.5

// Engine is the decision engine. It is safe for concurrent use: the
// catalog is immutable and the stats provider handles its own locking.
type Engine struct {
	catalog *catalog.Catalog
	stats   StatsProvider
	weights ScoringWeights
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStats attaches a historical success-rate source.
func WithStats(s StatsProvider) Option {
	return func(e *Engine) { e.stats = s }
}

// WithWeights overrides the default scoring weights.
func WithWeights(w ScoringWeights) Option {
	return func(e *Engine) { e.weights = w }
}

// NewEngine creates a decision engine over the given catalog.
func NewEngine(cat *catalog.Catalog, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		weights: DefaultWeights(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// scoredTool pairs a descriptor with its selection score.
type scoredTool struct {
	desc  catalog.ToolDescriptor
	score float64
}

// SelectTools returns tool ids applicable to the profile's target type,
// ranked by score. budget, when positive, caps the summed base cost of the
// selection using a greedy take-in-score-order pass; this is a bounded
// knapsack approximation, not an optimal solver. An empty result is a
// valid outcome, not an error: some target types simply have no tools.
func (e *Engine) SelectTools(profile *types.TargetProfile, objective string, budget int) []string {
	candidates := e.catalog.ListApplicable(profile.TargetType)
	if len(candidates) == 0 {
		e.logger.Info("no applicable tools", "target_type", profile.TargetType)
		return []string{}
	}

	scored := make([]scoredTool, 0, len(candidates))
	for _, d := range candidates {
		scored = append(scored, scoredTool{desc: d, score: e.score(d, objective)})
	}

	// Stable sort plus declaration-order tie break keeps the ordering
	// deterministic across runs.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return e.catalog.DeclarationIndex(scored[i].desc.ID) < e.catalog.DeclarationIndex(scored[j].desc.ID)
	})

	selected := make([]string, 0, len(scored))
	remaining := budget
	for _, st := range scored {
		if budget > 0 {
			if st.desc.BaseCost > remaining {
				continue
			}
			remaining -= st.desc.BaseCost
		}
		selected = append(selected, st.desc.ID)
	}

	e.logger.Debug("tools selected",
		"target_type", profile.TargetType,
		"objective", objective,
		"budget", budget,
		"selected", selected,
	)
	return selected
}

// score blends keyword relevance, inverse cost, and historical success
// into a single ranking value.
func (e *Engine) score(d catalog.ToolDescriptor, objective string) float64 {
	keyword := keywordMatch(d, objective)

	// BaseCost >= 1 is guaranteed by catalog validation, so the inverse is
	// already in (0, 1].
	invCost := 1.0 / float64(d.BaseCost)

	success := neutralSuccessPrior
	if e.stats != nil {
		if rate, ok := e.stats.SuccessRate(d.ID); ok {
			success = rate
		}
	}

	return e.weights.KeywordMatch*keyword + e.weights.InverseCost*invCost + e.weights.SuccessRate*success
}

// keywordMatch returns the fraction of objective tokens found among the
// descriptor's keywords, id, and description.
func keywordMatch(d catalog.ToolDescriptor, objective string) float64 {
	tokens := tokenize(objective)
	if len(tokens) == 0 {
		return 0
	}

	haystack := make(map[string]struct{}, len(d.Keywords)+8)
	for _, k := range d.Keywords {
		haystack[strings.ToLower(k)] = struct{}{}
	}
	haystack[strings.ToLower(d.ID)] = struct{}{}
	for _, w := range tokenize(d.Description) {
		haystack[w] = struct{}{}
	}

	matched := 0
	for _, tok := range tokens {
		if _, ok := haystack[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// tokenize splits an objective like "port_discovery" or "quick web check"
// into lower-case words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case '_', '-', ' ', ',', '.', '/', ':':
			return true
		}
		return false
	})
}

// BuildPlan produces the attack-chain plan for a profile and objective:
// tool selection, per-tool parameter optimization, and dependency edges
// that feed discovery results into later scans. Tools whose parameters
// cannot be fully resolved are dropped from the plan with a log entry;
// an incomplete parameter set is fatal only for that one step.
func (e *Engine) BuildPlan(profile *types.TargetProfile, objective string) (*ExecutionPlan, error) {
	if profile == nil {
		return nil, types.NewError(types.PLAN_FAILED, "profile cannot be nil")
	}

	plan := &ExecutionPlan{
		Target:    profile,
		Objective: objective,
		Steps:     []PlanStep{},
	}

	var (
		enumStepID string
		portStepID string
	)
	for _, toolID := range e.SelectTools(profile, objective, 0) {
		desc, err := e.catalog.Get(toolID)
		if err != nil {
			return nil, err
		}

		params, err := e.OptimizeParameters(toolID, profile, nil)
		if err != nil {
			e.logger.Warn("dropping tool from plan, parameters unresolvable",
				"tool", toolID, "error", err)
			continue
		}

		step := PlanStep{
			ToolID:     toolID,
			Parameters: params,
			Rationale:  fmt.Sprintf("%s applies to %s targets for objective %q", toolID, profile.TargetType, objective),
		}

		switch {
		case hasCapability(desc, catalog.CapabilitySubdomainEnum):
			if enumStepID == "" {
				enumStepID = toolID
				step.Rationale = fmt.Sprintf("%s enumerates the attack surface before deeper scans", toolID)
			}
		case hasCapability(desc, catalog.CapabilityPortScan):
			if portStepID == "" {
				portStepID = toolID
			}
			// Port scans on a freshly enumerated domain wait for the
			// subdomain list.
			if enumStepID != "" {
				step.DependsOn = enumStepID
			}
		case hasCapability(desc, catalog.CapabilityVulnScan), hasCapability(desc, catalog.CapabilityWebScan):
			if enumStepID != "" {
				step.DependsOn = enumStepID
			} else if portStepID != "" {
				step.DependsOn = portStepID
				step.Rationale = fmt.Sprintf("%s scans services surfaced by %s", toolID, portStepID)
			}
		}

		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

func hasCapability(d catalog.ToolDescriptor, cap catalog.Capability) bool {
	for _, c := range d.RequiredCapabilities {
		if c == cap {
			return true
		}
	}
	return false
}
