// Package orchestrator owns the lifecycle of every external tool
// subprocess: launching, monitoring, throttling, timing out, and
// terminating. Each subprocess moves through an explicit state machine;
// cancellation and timeout are first-class transitions, not error
// side effects.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/hexstrike/hexstrike/internal/types"
)

// FallbackProvider supplies the reduced-scope parameter variant used for
// the single automatic retry after a timeout or failure. The decision
// engine implements this.
type FallbackProvider interface {
	FallbackParameters(toolID string, params map[string]any) (map[string]any, bool)
}

// Config controls orchestrator limits.
type Config struct {
	// MaxConcurrent bounds simultaneously running subprocesses. Launches
	// beyond the ceiling queue in FIFO order.
	MaxConcurrent int

	// BaseTimeout is multiplied by a tool's base cost to derive its
	// allowed runtime.
	BaseTimeout time.Duration

	// OutputLimit caps each process's captured output in bytes.
	OutputLimit int

	// LaunchesPerSecond throttles subprocess spawn rate. Zero disables
	// throttling.
	LaunchesPerSecond float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:     8,
		BaseTimeout:       30 * time.Second,
		OutputLimit:       1 << 20,
		LaunchesPerSecond: 0,
	}
}

// process is the orchestrator-private record behind a ProcessHandle.
type process struct {
	mu       sync.Mutex
	handle   ProcessHandle
	spec     CommandSpec
	baseCost int
	cmd      *exec.Cmd
	buf      *outputBuffer

	// killRequested distinguishes an explicit Terminate from a timeout
	// kill when the subprocess dies.
	killRequested bool

	done chan struct{}
}

// snapshot copies the current handle state, including captured output.
func (p *process) snapshot() *ProcessHandle {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.handle
	h.Output = p.buf.Bytes()
	h.ProgressPercent = p.buf.Progress()
	if h.State == StateCompleted {
		h.ProgressPercent = 100
	}
	return &h
}

// finish records a terminal transition on the handle.
func (p *process) finish(state ProcessState, exitCode int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handle.State = state
	p.handle.FinishedAt = time.Now()
	p.handle.ExitCode = exitCode
	p.handle.Error = message
}

// Orchestrator manages the active-process table and the concurrency
// ceiling. All exported methods are safe for concurrent use.
type Orchestrator struct {
	cfg      Config
	slots    chan struct{}
	limiter  *rate.Limiter
	fallback FallbackProvider
	stats    *StatsTable
	logger   *slog.Logger

	mu     sync.Mutex
	procs  map[types.ID]*process
	closed bool
	wg     sync.WaitGroup
}

// New creates an Orchestrator. fallback may be nil to disable the
// reduced-scope retry.
func New(cfg Config, fallback FallbackProvider, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.BaseTimeout <= 0 {
		cfg.BaseTimeout = def.BaseTimeout
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = def.OutputLimit
	}

	var limiter *rate.Limiter
	if cfg.LaunchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.LaunchesPerSecond), 1)
	}

	return &Orchestrator{
		cfg:      cfg,
		slots:    make(chan struct{}, cfg.MaxConcurrent),
		limiter:  limiter,
		fallback: fallback,
		stats:    newStatsTable(),
		procs:    make(map[types.ID]*process),
		logger:   logger,
	}
}

// Stats exposes the per-tool statistics table. It satisfies the decision
// engine's StatsProvider.
func (o *Orchestrator) Stats() *StatsTable {
	return o.stats
}

// SetFallback installs the fallback provider after construction. The
// engine and orchestrator reference each other (stats one way, fallback
// parameters the other), so one side has to be wired late.
func (o *Orchestrator) SetFallback(f FallbackProvider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fallback = f
}

func (o *Orchestrator) fallbackProvider() FallbackProvider {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fallback
}

// StatsSnapshot returns a copy of all per-tool execution statistics.
func (o *Orchestrator) StatsSnapshot() map[string]ToolStats {
	return o.stats.snapshot()
}

// Launch registers a subprocess for the given spec and starts it as soon
// as a concurrency slot frees up. The returned handle is a pending
// snapshot; poll Status or call Wait for progress and the terminal state.
// Cancelling ctx terminates this process (or dequeues it if still
// pending) without affecting other launches.
func (o *Orchestrator) Launch(ctx context.Context, spec CommandSpec, baseCost int) (*ProcessHandle, error) {
	if spec.Binary == "" {
		return nil, types.NewError(types.PROCESS_LAUNCH_FAILED, "command spec has no binary")
	}
	if baseCost <= 0 {
		baseCost = 1
	}

	args, err := renderArgs(spec)
	if err != nil {
		return nil, types.WrapError(types.PROCESS_LAUNCH_FAILED, "invalid command arguments", err)
	}

	p := &process{
		handle: ProcessHandle{
			ID:          types.NewID(),
			ToolID:      spec.ToolID,
			CommandLine: commandLine(spec.Binary, args),
			State:       StatePending,
		},
		spec:     spec,
		baseCost: baseCost,
		buf:      newOutputBuffer(o.cfg.OutputLimit, spec.ProgressPattern),
		done:     make(chan struct{}),
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, types.NewError(types.ORCHESTRATOR_CLOSED, "orchestrator is shutting down")
	}
	o.procs[p.handle.ID] = p
	o.wg.Add(1)
	o.mu.Unlock()

	o.logger.Debug("process queued", "tool", spec.ToolID, "process", p.handle.ID)
	go o.run(ctx, p)

	return p.snapshot(), nil
}

// run drives one process through its state machine: queue, execute,
// optional fallback retry, record stats.
func (o *Orchestrator) run(ctx context.Context, p *process) {
	defer o.wg.Done()
	defer close(p.done)

	// FIFO queue on the concurrency ceiling: blocked senders on a
	// buffered channel are served in arrival order.
	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-ctx.Done():
		p.finish(StateTerminated, -1, "cancelled while queued")
		return
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			p.finish(StateTerminated, -1, "cancelled while throttled")
			return
		}
	}

	// A Terminate issued while the process was queued wins before start.
	p.mu.Lock()
	if p.killRequested {
		p.mu.Unlock()
		p.finish(StateTerminated, -1, "terminated before start")
		return
	}
	p.mu.Unlock()

	start := time.Now()
	state := o.execute(ctx, p, p.spec)

	// One reduced-scope retry for failures and timeouts, when the
	// decision engine can shrink the parameter set. Raw-args specs have
	// no parameters to shrink.
	fallback := o.fallbackProvider()
	if (state == StateFailed || state == StateTimedOut) && fallback != nil &&
		ctx.Err() == nil && p.spec.Args == nil {
		if reduced, ok := fallback.FallbackParameters(p.spec.ToolID, p.spec.Params); ok {
			o.logger.Info("retrying with reduced scope",
				"tool", p.spec.ToolID, "process", p.handle.ID, "first_state", state)

			retrySpec := p.spec
			retrySpec.Params = reduced

			p.mu.Lock()
			p.handle.FellBack = true
			p.buf.Reset()
			p.mu.Unlock()

			state = o.execute(ctx, p, retrySpec)
		}
	}

	o.stats.record(p.spec.ToolID, state == StateCompleted, time.Since(start))
	o.logger.Info("process finished",
		"tool", p.spec.ToolID, "process", p.handle.ID,
		"state", state, "duration", time.Since(start).Round(time.Millisecond))
}

// execute runs a single attempt and returns its terminal state.
func (o *Orchestrator) execute(ctx context.Context, p *process, spec CommandSpec) ProcessState {
	args, err := renderArgs(spec)
	if err != nil {
		p.finish(StateFailed, -1, err.Error())
		return StateFailed
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = o.cfg.BaseTimeout * time.Duration(p.baseCost)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Argument vector, never a shell: target strings cannot smuggle in
	// extra commands.
	cmd := exec.CommandContext(attemptCtx, spec.Binary, args...)
	cmd.Stdout = p.buf
	cmd.Stderr = p.buf

	// Each tool gets its own process group so timeout and terminate
	// kills reach forked descendants, not just the direct child. Real
	// scanners fork; a SIGKILL to the child alone leaves grandchildren
	// running and Wait blocked on their inherited pipes.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	p.mu.Lock()
	p.cmd = cmd
	p.handle.CommandLine = commandLine(spec.Binary, args)
	p.handle.Error = ""
	p.mu.Unlock()

	if err := cmd.Start(); err != nil {
		p.finish(StateFailed, -1, fmt.Sprintf("launch failed: %v", err))
		return StateFailed
	}

	// running only after the spawn is confirmed. A Terminate that landed
	// between Start and here saw no live process, so honor it now.
	p.mu.Lock()
	p.handle.State = StateRunning
	p.handle.StartedAt = time.Now()
	killRequested := p.killRequested
	p.mu.Unlock()
	if killRequested {
		_ = killProcessGroup(cmd)
	}

	waitErr := cmd.Wait()

	p.mu.Lock()
	killRequested = p.killRequested
	p.mu.Unlock()

	switch {
	case killRequested:
		p.finish(StateTerminated, exitCode(cmd, waitErr), "terminated by caller")
		return StateTerminated
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		p.finish(StateTimedOut, exitCode(cmd, waitErr),
			fmt.Sprintf("exceeded %s timeout", timeout))
		return StateTimedOut
	case ctx.Err() != nil:
		p.finish(StateTerminated, exitCode(cmd, waitErr), "invocation cancelled")
		return StateTerminated
	case waitErr != nil:
		p.finish(StateFailed, exitCode(cmd, waitErr), waitErr.Error())
		return StateFailed
	default:
		p.finish(StateCompleted, 0, "")
		return StateCompleted
	}
}

// killProcessGroup SIGKILLs the command's whole process group, falling
// back to the direct child when the group is already gone. Kill, not a
// polite signal: external scanners routinely ignore SIGTERM mid-probe.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

// Status returns a refreshed snapshot for the given process id.
func (o *Orchestrator) Status(id types.ID) (*ProcessHandle, error) {
	p, err := o.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.snapshot(), nil
}

// Wait blocks until the process reaches a terminal state or ctx is done,
// then returns the final snapshot.
func (o *Orchestrator) Wait(ctx context.Context, id types.ID) (*ProcessHandle, error) {
	p, err := o.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-p.done:
		return p.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Terminate requests an explicit kill of the given process. Queued
// processes are dequeued; running ones are killed. The resulting terminal
// state is terminated, distinct from failed and timed_out. Terminating an
// already-terminal process is a no-op.
func (o *Orchestrator) Terminate(id types.ID) error {
	p, err := o.lookup(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle.State.IsTerminal() {
		return nil
	}
	p.killRequested = true
	if p.cmd != nil && p.cmd.Process != nil {
		_ = killProcessGroup(p.cmd)
	}
	return nil
}

// ListActive returns snapshots of all non-terminal processes.
func (o *Orchestrator) ListActive() []*ProcessHandle {
	o.mu.Lock()
	procs := make([]*process, 0, len(o.procs))
	for _, p := range o.procs {
		procs = append(procs, p)
	}
	o.mu.Unlock()

	active := make([]*ProcessHandle, 0, len(procs))
	for _, p := range procs {
		if h := p.snapshot(); !h.State.IsTerminal() {
			active = append(active, h)
		}
	}
	return active
}

// Reap removes a terminal process record from the table so the table does
// not grow without bound. Non-terminal processes are left untouched.
func (o *Orchestrator) Reap(id types.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.procs[id]
	if !ok {
		return
	}
	p.mu.Lock()
	terminal := p.handle.State.IsTerminal()
	p.mu.Unlock()
	if terminal {
		delete(o.procs, id)
	}
}

func (o *Orchestrator) lookup(id types.ID) (*process, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.procs[id]
	if !ok {
		return nil, types.NewError(types.PROCESS_NOT_FOUND, fmt.Sprintf("process %s not found", id))
	}
	return p, nil
}

// Shutdown refuses new launches, terminates every active process, and
// waits for all monitor goroutines to drain. No subprocess outlives the
// orchestrator.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	ids := make([]types.ID, 0, len(o.procs))
	for id := range o.procs {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		_ = o.Terminate(id)
	}

	drained := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		o.logger.Info("orchestrator shut down", "processes", len(ids))
		return nil
	case <-ctx.Done():
		return types.WrapError(types.ORCHESTRATOR_CLOSED,
			"shutdown timed out with processes still draining", ctx.Err())
	}
}

// Health reports orchestrator capacity state.
func (o *Orchestrator) Health(_ context.Context) types.HealthStatus {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()

	if closed {
		return types.Unhealthy("orchestrator is shut down")
	}
	if len(o.slots) >= o.cfg.MaxConcurrent {
		return types.Degraded(fmt.Sprintf("all %d execution slots busy, launches queueing", o.cfg.MaxConcurrent))
	}
	return types.Healthy("execution slots available")
}
