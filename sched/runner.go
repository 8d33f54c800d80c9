package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/id"
	"github.com/seqra/cascade/workflow"
)

// execHandle tracks one in-flight execution for cooperative
// cancellation.
type execHandle struct {
	cancelled atomic.Bool
}

// Runner owns the execution lifecycle: it validates parameters, creates
// the execution record, hands it to the scheduler, and tracks in-flight
// executions so they can be cancelled.
type Runner struct {
	registry  *workflow.Registry
	store     workflow.Store
	emitter   workflow.ExecutionEmitter
	scheduler *Scheduler
	target    any
	logger    *slog.Logger

	mu     sync.Mutex
	active map[id.ExecutionID]*execHandle
}

// NewRunner creates a Runner. target is the opaque external-system
// handle passed to every step handler through the execution context.
func NewRunner(
	registry *workflow.Registry,
	store workflow.Store,
	emitter workflow.ExecutionEmitter,
	scheduler *Scheduler,
	target any,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		registry:  registry,
		store:     store,
		emitter:   emitter,
		scheduler: scheduler,
		target:    target,
		logger:    logger,
		active:    make(map[id.ExecutionID]*execHandle),
	}
}

// Start runs a workflow synchronously and returns its terminal
// execution record. The returned error is nil for completed and
// cancelled executions; failures return the aggregated step cause.
// Parameter validation errors are returned before any execution record
// is created.
func (r *Runner) Start(ctx context.Context, name string, params map[string]any) (*workflow.Execution, error) {
	def, exec, wf, handle, err := r.prepare(ctx, name, params)
	if err != nil {
		return nil, err
	}

	runErr := r.run(ctx, def, exec, wf, handle)
	return exec, runErr
}

// StartAsync validates, persists, and returns the execution record
// immediately, then drives the execution on a background goroutine. The
// background run detaches from the caller's cancellation but keeps its
// values.
func (r *Runner) StartAsync(ctx context.Context, name string, params map[string]any) (*workflow.Execution, error) {
	def, exec, wf, handle, err := r.prepare(ctx, name, params)
	if err != nil {
		return nil, err
	}

	snapshot := exec.Clone()
	go func() {
		bg := context.WithoutCancel(ctx)
		if runErr := r.run(bg, def, exec, wf, handle); runErr != nil {
			r.logger.Error("async execution failed",
				slog.String("execution_id", exec.ID.String()),
				slog.String("workflow", name),
				slog.String("error", runErr.Error()),
			)
		}
	}()

	return snapshot, nil
}

// prepare resolves the definition, validates parameters, persists the
// pending execution, and registers the cancellation handle.
func (r *Runner) prepare(ctx context.Context, name string, params map[string]any) (*workflow.Definition, *workflow.Execution, *workflow.Context, *execHandle, error) {
	def, err := r.registry.Get(name)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	bound, err := workflow.ValidateParams(def, params)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("workflow %q: %w", name, err)
	}

	exec := workflow.NewExecution(def, bound, time.Now().UTC())
	if err := r.store.CreateExecution(ctx, exec); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("create execution for workflow %q: %w", name, err)
	}

	handle := &execHandle{}
	r.mu.Lock()
	r.active[exec.ID] = handle
	r.mu.Unlock()

	wf := workflow.NewContext(exec.ID, def.Name, r.target, bound)
	return def, exec, wf, handle, nil
}

// run transitions the execution to running and hands it to the
// scheduler, deregistering the cancellation handle when done.
func (r *Runner) run(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context, handle *execHandle) error {
	defer func() {
		r.mu.Lock()
		delete(r.active, exec.ID)
		r.mu.Unlock()
	}()

	if err := exec.Transition(workflow.StatusRunning); err != nil {
		return err
	}
	if err := r.store.UpdateExecution(ctx, exec); err != nil {
		r.logger.Error("failed to persist running execution",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	r.emitter.EmitExecutionStarted(ctx, exec)

	r.logger.Info("execution started",
		slog.String("execution_id", exec.ID.String()),
		slog.String("workflow", exec.WorkflowName),
	)

	return r.scheduler.Run(ctx, def, exec, wf, handle.cancelled.Load)
}

// Get retrieves an execution record from the store.
func (r *Runner) Get(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	return r.store.GetExecution(ctx, execID)
}

// List returns execution records matching the filter, most recent
// first.
func (r *Runner) List(ctx context.Context, filter workflow.ListFilter) ([]*workflow.Execution, error) {
	return r.store.ListExecutions(ctx, filter)
}

// Cancel requests cooperative cancellation of a running execution. The
// scheduler observes the request between batches: in-flight steps run
// to their own terminal outcome first. Cancelling an execution that is
// not currently running returns ErrNotCancellable.
func (r *Runner) Cancel(ctx context.Context, execID id.ExecutionID) error {
	r.mu.Lock()
	handle, ok := r.active[execID]
	r.mu.Unlock()
	if ok {
		handle.cancelled.Store(true)
		r.logger.Info("cancellation requested",
			slog.String("execution_id", execID.String()),
		)
		return nil
	}

	exec, err := r.store.GetExecution(ctx, execID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: execution %s is %s", cascade.ErrNotCancellable, execID, exec.Status)
}
