// Package sched drives workflow executions — an Executor that runs a
// single step through middleware with retry and backoff, a Scheduler
// that dispatches dependency-resolved batches, a Rollback coordinator
// for compensations, and a Runner that owns the execution lifecycle.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seqra/cascade/backoff"
	"github.com/seqra/cascade/middleware"
	"github.com/seqra/cascade/workflow"
)

// Executor runs a single step to a terminal per-step outcome: the
// handler is invoked through the middleware chain up to Attempts times,
// sleeping the backoff delay between attempts.
type Executor struct {
	emitter workflow.StepEmitter
	backoff backoff.Strategy
	mw      middleware.Middleware
	logger  *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	emitter workflow.StepEmitter,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		emitter: emitter,
		backoff: bo,
		mw:      middleware.Chain(mws...),
		logger:  logger,
	}
}

// Execute runs one step until it completes or exhausts its attempts.
// On success the handler's return value is recorded in the execution
// context under the step id and the record is marked completed. On
// terminal failure the record is marked failed and the last handler
// error is returned. The step record's RetryCount counts failed
// attempts.
func (x *Executor) Execute(ctx context.Context, exec *workflow.Execution, step *workflow.Step, wf *workflow.Context) error {
	rec, ok := exec.StepRecord(step.ID)
	if !ok {
		return fmt.Errorf("no run record for step %q in execution %s", step.ID, exec.ID)
	}

	rec.MarkRunning(time.Now().UTC())
	x.emitter.EmitStepStarted(ctx, exec, step.ID)

	start := time.Now()
	attempts := step.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var result any
		terminal := func(ctx context.Context) error {
			var err error
			result, err = step.Handler(ctx, wf)
			return err
		}

		err := x.mw(ctx, step, rec, terminal)
		if err == nil {
			now := time.Now().UTC()
			if recErr := wf.RecordResult(step.ID, result); recErr != nil {
				x.logger.Warn("step result not recorded",
					slog.String("execution_id", exec.ID.String()),
					slog.String("step_id", step.ID),
					slog.String("error", recErr.Error()),
				)
			}
			rec.MarkCompleted(now, result)
			x.emitter.EmitStepCompleted(ctx, exec, step.ID, time.Since(start))
			return nil
		}

		lastErr = err
		rec.RetryCount++

		if attempt == attempts {
			break
		}

		delay := x.backoff.Delay(attempt)
		x.emitter.EmitStepRetrying(ctx, exec, step.ID, attempt, delay)
		x.logger.Info("step scheduled for retry",
			slog.String("execution_id", exec.ID.String()),
			slog.String("step_id", step.ID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = fmt.Errorf("step %s: %w", step.ID, ctx.Err())
			attempt = attempts
		}
	}

	rec.MarkFailed(time.Now().UTC(), lastErr)
	x.emitter.EmitStepFailed(ctx, exec, step.ID, lastErr)

	return fmt.Errorf("step %s failed after %d attempt(s): %w", step.ID, attempts, lastErr)
}
