// Package hook defines the extension system for Cascade.
// Extensions are notified of lifecycle events (execution started,
// step completed, rollback finished, etc.) and can react to them —
// logging, metrics, alerting, audit.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/seqra/cascade/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Execution lifecycle hooks
// ──────────────────────────────────────────────────

// ExecutionStarted is called after an execution record is persisted and
// scheduling begins.
type ExecutionStarted interface {
	OnExecutionStarted(ctx context.Context, e *workflow.Execution) error
}

// ExecutionCompleted is called when all steps finish successfully.
type ExecutionCompleted interface {
	OnExecutionCompleted(ctx context.Context, e *workflow.Execution, elapsed time.Duration) error
}

// ExecutionFailed is called when an execution fails terminally.
type ExecutionFailed interface {
	OnExecutionFailed(ctx context.Context, e *workflow.Execution, execErr error) error
}

// ExecutionCancelled is called when a cancellation request takes effect.
type ExecutionCancelled interface {
	OnExecutionCancelled(ctx context.Context, e *workflow.Execution) error
}

// RollbackStarted is called before compensating handlers run.
type RollbackStarted interface {
	OnRollbackStarted(ctx context.Context, e *workflow.Execution) error
}

// RollbackFinished is called after compensation finishes. failures is
// the number of compensating handlers that returned an error.
type RollbackFinished interface {
	OnRollbackFinished(ctx context.Context, e *workflow.Execution, failures int) error
}

// ──────────────────────────────────────────────────
// Step lifecycle hooks
// ──────────────────────────────────────────────────

// StepStarted is called when a step's first attempt begins.
type StepStarted interface {
	OnStepStarted(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution) error
}

// StepCompleted is called after a step finishes successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, elapsed time.Duration) error
}

// StepFailed is called when a step fails terminally (no more retries).
type StepFailed interface {
	OnStepFailed(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, stepErr error) error
}

// StepRetrying is called when a step attempt fails but another attempt
// is scheduled after the backoff delay.
type StepRetrying interface {
	OnStepRetrying(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, attempt int, delay time.Duration) error
}

// StepRolledBack is called after a step's compensating handler runs.
// rollbackErr is non-nil when compensation itself failed.
type StepRolledBack interface {
	OnStepRolledBack(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, rollbackErr error) error
}
