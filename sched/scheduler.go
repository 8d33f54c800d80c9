package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/workflow"
)

// Scheduler drives an execution through dependency-resolved batches: at
// each round it collects the ready steps, fans the parallel subset out
// across bounded goroutines, then runs the sequential subset one at a
// time in definition order. A batch always drains fully before the
// execution aborts, so sibling outcomes are recorded even when one of
// them fails.
type Scheduler struct {
	store    workflow.Store
	emitter  workflow.ExecutionEmitter
	executor *Executor
	rollback *Rollback
	cfg      cascade.Config
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	store workflow.Store,
	emitter workflow.ExecutionEmitter,
	executor *Executor,
	rollback *Rollback,
	cfg cascade.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		store:    store,
		emitter:  emitter,
		executor: executor,
		rollback: rollback,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run drives a StatusRunning execution to a terminal status. cancelled
// is polled between batches; a cooperative cancellation lets the
// current batch drain and then stops without starting new steps.
//
// The returned error is the aggregated cause when the execution fails;
// completion and cancellation return nil.
func (s *Scheduler) Run(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context, cancelled func() bool) error {
	completed := make(map[string]struct{}, len(def.Steps))
	finished := make(map[string]struct{}, len(def.Steps))

	for len(finished) < len(def.Steps) {
		if cancelled != nil && cancelled() {
			return s.finishCancelled(ctx, def, exec, wf)
		}

		ready := def.ReadySteps(completed, finished)
		if len(ready) == 0 {
			// Remaining steps depend (directly or transitively) on a
			// failed step. Nothing external succeeded that the pending
			// steps could have depended on, so there is nothing to
			// compensate beyond what already failed the batch.
			err := fmt.Errorf("%w: %d step(s) blocked on failed dependencies",
				cascade.ErrUnresolvableGraph, len(def.Steps)-len(finished))
			return s.finishFailed(ctx, def, exec, wf, err, false)
		}

		var parallel, sequential []*workflow.Step
		for _, st := range ready {
			if st.Sequential {
				sequential = append(sequential, st)
			} else {
				parallel = append(parallel, st)
			}
		}

		var required []error

		// Parallel fan-out. A plain errgroup (not WithContext) so a
		// failing sibling never cancels the rest of the batch; every
		// started step runs to its own terminal outcome.
		stepErrs := make([]error, len(parallel))
		var g errgroup.Group
		if s.cfg.MaxBatchConcurrency > 0 {
			g.SetLimit(s.cfg.MaxBatchConcurrency)
		}
		for i, st := range parallel {
			g.Go(func() error {
				stepErrs[i] = s.executor.Execute(ctx, exec, st, wf)
				return nil
			})
		}
		_ = g.Wait()

		for i, st := range parallel {
			finished[st.ID] = struct{}{}
			switch {
			case stepErrs[i] == nil:
				completed[st.ID] = struct{}{}
			case !st.Optional:
				required = append(required, stepErrs[i])
			}
		}

		// Sequential steps run one at a time after the parallel subset
		// has drained. Once a required failure is on record, no further
		// sequential step is started.
		for _, st := range sequential {
			if len(required) > 0 {
				break
			}
			exec.CurrentStepID = st.ID
			err := s.executor.Execute(ctx, exec, st, wf)
			exec.CurrentStepID = ""
			finished[st.ID] = struct{}{}
			switch {
			case err == nil:
				completed[st.ID] = struct{}{}
			case !st.Optional:
				required = append(required, err)
			}
		}

		s.persist(ctx, exec)

		if len(required) > 0 {
			return s.finishFailed(ctx, def, exec, wf, errors.Join(required...), true)
		}
	}

	now := time.Now().UTC()
	if err := exec.Transition(workflow.StatusCompleted); err != nil {
		return err
	}
	exec.CompletedAt = &now
	s.persist(ctx, exec)
	s.emitter.EmitExecutionCompleted(ctx, exec, now.Sub(exec.StartedAt))

	s.logger.Info("execution completed",
		slog.String("execution_id", exec.ID.String()),
		slog.String("workflow", exec.WorkflowName),
		slog.Duration("elapsed", now.Sub(exec.StartedAt)),
	)
	return nil
}

// finishFailed moves the execution to StatusFailed and, when permitted,
// runs compensations for the completed steps.
func (s *Scheduler) finishFailed(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context, cause error, rollbackAllowed bool) error {
	exec.Error = cause.Error()
	if err := exec.Transition(workflow.StatusFailed); err != nil {
		return errors.Join(cause, err)
	}
	s.persist(ctx, exec)
	s.emitter.EmitExecutionFailed(ctx, exec, cause)

	s.logger.Error("execution failed",
		slog.String("execution_id", exec.ID.String()),
		slog.String("workflow", exec.WorkflowName),
		slog.String("error", cause.Error()),
	)

	if rollbackAllowed && s.rollback.HasCandidates(def, exec) {
		s.runRollback(ctx, def, exec, wf)
	}

	now := time.Now().UTC()
	exec.CompletedAt = &now
	s.persist(ctx, exec)
	return cause
}

// finishCancelled records a cooperative cancellation. Completed work is
// left in place unless RollbackOnCancel is set.
func (s *Scheduler) finishCancelled(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context) error {
	s.logger.Info("execution cancelled",
		slog.String("execution_id", exec.ID.String()),
		slog.String("workflow", exec.WorkflowName),
	)

	if s.cfg.RollbackOnCancel && s.rollback.HasCandidates(def, exec) {
		s.emitter.EmitExecutionCancelled(ctx, exec)
		s.runRollback(ctx, def, exec, wf)
	} else {
		if err := exec.Transition(workflow.StatusPartiallyCompleted); err != nil {
			return err
		}
		s.emitter.EmitExecutionCancelled(ctx, exec)
	}

	now := time.Now().UTC()
	exec.CompletedAt = &now
	s.persist(ctx, exec)
	return nil
}

// runRollback transitions through RollingBack/RolledBack around the
// compensation pass.
func (s *Scheduler) runRollback(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context) {
	if err := exec.Transition(workflow.StatusRollingBack); err != nil {
		s.logger.Error("rollback transition rejected",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	s.persist(ctx, exec)
	s.emitter.EmitRollbackStarted(ctx, exec)

	failures := s.rollback.Run(ctx, def, exec, wf)

	if err := exec.Transition(workflow.StatusRolledBack); err != nil {
		s.logger.Error("rollback transition rejected",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	s.emitter.EmitRollbackFinished(ctx, exec, failures)
}

// persist flushes the execution record to the store. Store failures are
// logged, not fatal: the in-memory execution remains authoritative.
func (s *Scheduler) persist(ctx context.Context, exec *workflow.Execution) {
	if err := s.store.UpdateExecution(ctx, exec); err != nil {
		s.logger.Error("failed to persist execution",
			slog.String("execution_id", exec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
