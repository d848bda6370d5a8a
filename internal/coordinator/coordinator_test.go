package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexstrike/hexstrike/internal/cache"
	"github.com/hexstrike/hexstrike/internal/catalog"
	"github.com/hexstrike/hexstrike/internal/decision"
	"github.com/hexstrike/hexstrike/internal/orchestrator"
	"github.com/hexstrike/hexstrike/internal/profiler"
	"github.com/hexstrike/hexstrike/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offlineResolver fails every lookup so hostname targets classify as
// unresolved hosts without touching the network.
type offlineResolver struct{}

func (offlineResolver) LookupHost(context.Context, string) ([]string, error) {
	return nil, errors.New("offline")
}

func (offlineResolver) LookupNS(context.Context, string) ([]string, error) {
	return nil, errors.New("offline")
}

// harness bundles a fully wired coordinator over a test catalog.
type harness struct {
	coord *Coordinator
	orch  *orchestrator.Orchestrator
	cache *cache.Cache
}

func newHarness(t *testing.T, tools []catalog.ToolDescriptor) *harness {
	t.Helper()
	logger := testLogger()

	cat, err := catalog.New(tools)
	require.NoError(t, err)

	c := cache.New(cache.NewMemoryStore(128), time.Hour, logger)
	t.Cleanup(func() { c.Close() })

	engine := decision.NewEngine(cat, logger)
	orch := orchestrator.New(orchestrator.Config{BaseTimeout: 5 * time.Second}, engine, logger)
	t.Cleanup(func() { orch.Shutdown(context.Background()) })

	prof := profiler.New(logger, profiler.WithResolver(offlineResolver{}))

	return &harness{
		coord: New(prof, engine, cat, c, orch, logger),
		orch:  orch,
		cache: c,
	}
}

// echoTool succeeds instantly and prints its arguments.
func echoTool(id string, keywords ...string) catalog.ToolDescriptor {
	return catalog.ToolDescriptor{
		ID:              id,
		Description:     "echoes arguments",
		Binary:          "echo",
		ApplicableTypes: []types.TargetType{types.TargetTypeHost},
		BaseCost:        1,
		Keywords:        keywords,
	}
}

func TestRun_ExecutesThenServesFromCache(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{echoTool("scanner", "scan")})

	first, err := h.coord.Run(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)
	require.Len(t, first.Steps, 1)

	step := first.Steps["scanner"]
	require.NotNil(t, step)
	assert.Equal(t, StepOK, step.Status)
	assert.Equal(t, ProvenanceExecuted, step.Provenance)
	assert.Contains(t, step.Output, "192.0.2.1")
	assert.True(t, first.Succeeded())

	second, err := h.coord.Run(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)
	cached := second.Steps["scanner"]
	require.NotNil(t, cached)
	assert.Equal(t, StepOK, cached.Status)
	assert.Equal(t, ProvenanceCached, cached.Provenance)
	assert.Equal(t, step.Output, cached.Output)
}

func TestRun_ZeroApplicableToolsIsSuccessfulAndEmpty(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{{
		ID:              "webonly",
		Binary:          "echo",
		ApplicableTypes: []types.TargetType{types.TargetTypeWebApplication},
		BaseCost:        1,
	}})

	result, err := h.coord.Run(context.Background(), "192.0.2.1", "anything")
	require.NoError(t, err)
	assert.Empty(t, result.Steps)
	assert.True(t, result.Succeeded())
}

func TestRun_EmptyTargetAborts(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{echoTool("scanner")})

	_, err := h.coord.Run(context.Background(), "   ", "scan")
	require.Error(t, err)
	assert.Equal(t, types.PROFILE_INVALID_TARGET, types.CodeOf(err))
}

func TestRun_DependencyFailureSkipsDependentsOnly(t *testing.T) {
	// The port scanner matches the objective and fails; the dependent
	// vulnerability scanner must be skipped while the independent sibling
	// still runs.
	h := newHarness(t, []catalog.ToolDescriptor{
		{
			ID: "portfail", Description: "port scanner", Binary: "false",
			ApplicableTypes:      []types.TargetType{types.TargetTypeHost},
			BaseCost:             1,
			RequiredCapabilities: []catalog.Capability{catalog.CapabilityPortScan},
			Keywords:             []string{"port", "scan"},
		},
		{
			ID: "vulncheck", Description: "vulnerability scanner", Binary: "echo",
			ApplicableTypes:      []types.TargetType{types.TargetTypeHost},
			BaseCost:             2,
			RequiredCapabilities: []catalog.Capability{catalog.CapabilityVulnScan},
		},
		{
			ID: "sibling", Description: "independent check", Binary: "echo",
			ApplicableTypes: []types.TargetType{types.TargetTypeHost},
			BaseCost:        2,
		},
	})

	result, err := h.coord.Run(context.Background(), "192.0.2.1", "port scan")
	require.NoError(t, err)
	require.Len(t, result.Steps, 3)

	assert.Equal(t, StepFailed, result.Steps["portfail"].Status)
	assert.Equal(t, StepSkippedDependency, result.Steps["vulncheck"].Status)
	assert.Contains(t, result.Steps["vulncheck"].Error, "portfail")
	assert.Equal(t, StepOK, result.Steps["sibling"].Status)
	assert.False(t, result.Succeeded())
}

func TestRun_FailedStepRetriesWithReducedScope(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{{
		ID: "flaky", Description: "always fails", Binary: "false",
		ApplicableTypes: []types.TargetType{types.TargetTypeHost},
		BaseCost:        1,
		DefaultParams:   map[string]any{"threads": 8},
	}})

	result, err := h.coord.Run(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)

	step := result.Steps["flaky"]
	require.NotNil(t, step)
	assert.Equal(t, StepFailed, step.Status)
	assert.True(t, step.FellBack, "reduced-scope retry should have been attempted")
}

func TestRun_FailedResultsAreNotCached(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{{
		ID: "faily", Description: "always fails", Binary: "false",
		ApplicableTypes: []types.TargetType{types.TargetTypeHost},
		BaseCost:        1,
	}})

	_, err := h.coord.Run(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)

	second, err := h.coord.Run(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)
	assert.Equal(t, ProvenanceExecuted, second.Steps["faily"].Provenance)
}

func TestRun_CancellationTerminatesOwnProcesses(t *testing.T) {
	// "yes 192.0.2.1" runs until killed, so the run is mid-execution when
	// the context is cancelled.
	h := newHarness(t, []catalog.ToolDescriptor{{
		ID: "chatty", Description: "long runner", Binary: "yes",
		ApplicableTypes: []types.TargetType{types.TargetTypeHost},
		BaseCost:        1,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *RunResult, 1)
	go func() {
		result, err := h.coord.Run(ctx, "192.0.2.1", "run")
		assert.Error(t, err)
		assert.Equal(t, types.RUN_ABORTED, types.CodeOf(err))
		done <- result
	}()

	// Give the subprocess time to start, then pull the plug.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(h.orch.ListActive()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case result := <-done:
		require.NotNil(t, result)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled run did not return")
	}

	// No subprocess survives its run's cancellation.
	deadline = time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && len(h.orch.ListActive()) > 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Empty(t, h.orch.ListActive())
}

func TestRunStream_EmitsLifecycleEvents(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{echoTool("scanner", "scan")})

	updates, err := h.coord.RunStream(context.Background(), "192.0.2.1", "scan")
	require.NoError(t, err)

	var events []EventType
	var final *RunResult
	for u := range updates {
		events = append(events, u.Event)
		if u.Event == EventRunFinished {
			final = u.Result
		}
	}

	assert.Equal(t, []EventType{EventRunStarted, EventStepStarted, EventStepFinished, EventRunFinished}, events)
	require.NotNil(t, final)
	assert.Equal(t, StepOK, final.Steps["scanner"].Status)
}

func TestRunStream_PreExecutionFailureIsSynchronous(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{echoTool("scanner")})

	_, err := h.coord.RunStream(context.Background(), "", "scan")
	require.Error(t, err)
	assert.Equal(t, types.PROFILE_INVALID_TARGET, types.CodeOf(err))
}

func TestHealth_RollsUpComponents(t *testing.T) {
	h := newHarness(t, []catalog.ToolDescriptor{echoTool("scanner")})

	status := h.coord.Health(context.Background())
	assert.Equal(t, types.HealthStateHealthy, status.State)
}
