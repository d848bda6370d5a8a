// Package coordinator drives the full execution pipeline for one run:
// profile the target, build the plan, satisfy each step from the cache or
// the orchestrator, and aggregate the results. Independent steps run
// concurrently; dependent steps wait for their dependency and are skipped
// when it fails.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hexstrike/hexstrike/internal/cache"
	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/decision"
	"github.com/hexstrike/hexstrike/internal/orchestrator"
	"github.com/hexstrike/hexstrike/internal/profiler"
	"github.com/hexstrike/hexstrike/internal/types"
)

// Coordinator wires the profiler, decision engine, cache, and
// orchestrator into the Run pipeline. It is safe for concurrent runs.
type Coordinator struct {
	profiler *profiler.Profiler
	engine   *decision.Engine
	catalog  *catalog.Catalog
	cache    *cache.Cache
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
}

// New creates a Coordinator.
func New(
	p *profiler.Profiler,
	e *decision.Engine,
	cat *catalog.Catalog,
	c *cache.Cache,
	o *orchestrator.Orchestrator,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		profiler: p,
		engine:   e,
		catalog:  cat,
		cache:    c,
		orch:     o,
		logger:   logger,
	}
}

// Run executes the full pipeline for a target and objective and blocks
// until every step has a terminal result. A plan with zero steps yields a
// successful empty result. Pre-execution failures (profiling, planning)
// abort the run; per-step failures are recorded in the result and never
// abort siblings. Cancelling ctx terminates this run's subprocesses only
// and returns RUN_ABORTED.
func (c *Coordinator) Run(ctx context.Context, target, objective string) (*RunResult, error) {
	return c.run(ctx, target, objective, nil)
}

// RunStream behaves like Run but emits step-level events as they happen.
// The returned channel carries run_started, step_started, step_finished
// per step, then a final run_finished holding the aggregate, and is
// closed. Pre-execution failures are returned synchronously instead.
func (c *Coordinator) RunStream(ctx context.Context, target, objective string) (<-chan StepUpdate, error) {
	profile, plan, err := c.prepare(ctx, target, objective)
	if err != nil {
		return nil, err
	}

	updates := make(chan StepUpdate, len(plan.Steps)*2+2)
	go func() {
		defer close(updates)
		emit := func(u StepUpdate) {
			select {
			case updates <- u:
			case <-ctx.Done():
			}
		}
		result, err := c.execute(ctx, profile, plan, emit)
		if err != nil {
			// The aggregate still carries whatever finished before the
			// abort; stream consumers read the step statuses.
			c.logger.Warn("streamed run aborted", "target", target, "error", err)
		}
		emit(StepUpdate{Event: EventRunFinished, Result: result})
	}()
	return updates, nil
}

func (c *Coordinator) run(ctx context.Context, target, objective string, emit func(StepUpdate)) (*RunResult, error) {
	profile, plan, err := c.prepare(ctx, target, objective)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, profile, plan, emit)
}

// prepare runs the pre-execution phase: profile and plan.
func (c *Coordinator) prepare(ctx context.Context, target, objective string) (*types.TargetProfile, *decision.ExecutionPlan, error) {
	profile, err := c.profiler.Analyze(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	plan, err := c.engine.BuildPlan(profile, objective)
	if err != nil {
		return nil, nil, err
	}

	c.logger.Info("run planned",
		"target", target,
		"target_type", profile.TargetType,
		"objective", objective,
		"steps", len(plan.Steps),
	)
	return profile, plan, nil
}

// stepExec tracks one in-flight step so dependents can await it.
type stepExec struct {
	step   decision.PlanStep
	result *StepResult
	done   chan struct{}
}

// execute dispatches every plan step and aggregates the results. emit may
// be nil.
func (c *Coordinator) execute(ctx context.Context, profile *types.TargetProfile, plan *decision.ExecutionPlan, emit func(StepUpdate)) (*RunResult, error) {
	result := &RunResult{
		RunID:     types.NewID(),
		Profile:   profile,
		Objective: plan.Objective,
		Steps:     make(map[string]*StepResult, len(plan.Steps)),
		StartedAt: time.Now(),
	}
	if emit == nil {
		emit = func(StepUpdate) {}
	}
	emit(StepUpdate{Event: EventRunStarted})

	execs := make(map[string]*stepExec, len(plan.Steps))
	for _, step := range plan.Steps {
		execs[step.ToolID] = &stepExec{step: step, done: make(chan struct{})}
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, se := range execs {
		se := se
		g.Go(func() error {
			defer close(se.done)

			sr := c.runStep(ctx, profile, se, execs, emit)
			se.result = sr

			mu.Lock()
			result.Steps[sr.ToolID] = sr
			mu.Unlock()

			emit(StepUpdate{Event: EventStepFinished, ToolID: sr.ToolID, Step: sr})
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = time.Now()
	if err := ctx.Err(); err != nil {
		return result, types.WrapError(types.RUN_ABORTED, "run cancelled by caller", err)
	}
	return result, nil
}

// runStep resolves one step: dependency gate, cache lookup, live
// execution.
func (c *Coordinator) runStep(ctx context.Context, profile *types.TargetProfile, se *stepExec, execs map[string]*stepExec, emit func(StepUpdate)) *StepResult {
	step := se.step
	sr := &StepResult{ToolID: step.ToolID}
	start := time.Now()
	defer func() { sr.Duration = time.Since(start) }()

	if dep, ok := execs[step.DependsOn]; ok {
		select {
		case <-dep.done:
		case <-ctx.Done():
			sr.Status = StepFailed
			sr.Error = "run cancelled before dependency finished"
			return sr
		}
		// A skipped dependency cascades: the whole downstream branch is
		// skipped, siblings are untouched.
		if dep.result == nil || dep.result.Status != StepOK {
			sr.Status = StepSkippedDependency
			sr.Error = fmt.Sprintf("dependency %s did not succeed", step.DependsOn)
			c.logger.Info("step skipped", "tool", step.ToolID, "dependency", step.DependsOn)
			return sr
		}
	}

	emit(StepUpdate{Event: EventStepStarted, ToolID: step.ToolID})

	if value, ok := c.cache.Get(ctx, step.ToolID, profile.RawTarget, step.Parameters); ok {
		c.logger.Debug("step served from cache", "tool", step.ToolID)
		sr.Status = StepOK
		sr.Provenance = ProvenanceCached
		sr.Output = string(value)
		return sr
	}

	desc, err := c.catalog.Get(step.ToolID)
	if err != nil {
		sr.Status = StepFailed
		sr.Error = err.Error()
		return sr
	}

	handle, err := c.orch.Launch(ctx, orchestrator.CommandSpec{
		ToolID:          step.ToolID,
		Binary:          desc.Binary,
		Params:          step.Parameters,
		ProgressPattern: desc.ProgressPattern,
	}, desc.BaseCost)
	if err != nil {
		sr.Status = StepFailed
		sr.Error = err.Error()
		return sr
	}
	sr.ProcessID = handle.ID
	sr.Provenance = ProvenanceExecuted

	final, err := c.orch.Wait(ctx, handle.ID)
	if err != nil {
		// Wait only errors on cancellation; the orchestrator is killing
		// the subprocess via the same ctx.
		sr.Status = StepFailed
		sr.Error = "run cancelled"
		return sr
	}
	// The aggregate owns the output now; drop the terminal record so the
	// process table does not grow without bound.
	defer c.orch.Reap(handle.ID)

	sr.Output = string(final.Output)
	sr.ExitCode = final.ExitCode
	sr.FellBack = final.FellBack

	switch final.State {
	case orchestrator.StateCompleted:
		sr.Status = StepOK
		c.cache.Put(ctx, step.ToolID, profile.RawTarget, step.Parameters, final.Output, 0)
	case orchestrator.StateTimedOut:
		sr.Status = StepTimedOut
		sr.Error = final.Error
	default:
		sr.Status = StepFailed
		sr.Error = final.Error
	}
	return sr
}

// Health rolls up the coordinator's dependencies.
func (c *Coordinator) Health(ctx context.Context) types.HealthStatus {
	cacheHealth := c.cache.Health(ctx)
	orchHealth := c.orch.Health(ctx)

	switch {
	case orchHealth.State == types.HealthStateUnhealthy:
		return orchHealth
	case orchHealth.State == types.HealthStateDegraded:
		return orchHealth
	case cacheHealth.State != types.HealthStateHealthy:
		return types.Degraded("cache degraded, runs execute live")
	default:
		return types.Healthy("pipeline operational")
	}
}
