package workflow

import (
	"context"
	"time"
)

// StepEmitter receives step lifecycle notifications from the executor.
// It is satisfied by hook.Registry via an adapter in the engine package,
// which breaks the import cycle between workflow and hook.
type StepEmitter interface {
	EmitStepStarted(ctx context.Context, e *Execution, stepID string)
	EmitStepCompleted(ctx context.Context, e *Execution, stepID string, elapsed time.Duration)
	EmitStepFailed(ctx context.Context, e *Execution, stepID string, err error)
	EmitStepRetrying(ctx context.Context, e *Execution, stepID string, attempt int, delay time.Duration)
	EmitStepRolledBack(ctx context.Context, e *Execution, stepID string, rollbackErr error)
}

// ExecutionEmitter receives execution-level lifecycle notifications from
// the scheduler and runner.
type ExecutionEmitter interface {
	StepEmitter
	EmitExecutionStarted(ctx context.Context, e *Execution)
	EmitExecutionCompleted(ctx context.Context, e *Execution, elapsed time.Duration)
	EmitExecutionFailed(ctx context.Context, e *Execution, err error)
	EmitExecutionCancelled(ctx context.Context, e *Execution)
	EmitRollbackStarted(ctx context.Context, e *Execution)
	EmitRollbackFinished(ctx context.Context, e *Execution, failures int)
}

// NopEmitter discards all lifecycle notifications. Used when no hooks
// are registered and in tests.
type NopEmitter struct{}

func (NopEmitter) EmitStepStarted(context.Context, *Execution, string)                      {}
func (NopEmitter) EmitStepCompleted(context.Context, *Execution, string, time.Duration)     {}
func (NopEmitter) EmitStepFailed(context.Context, *Execution, string, error)                {}
func (NopEmitter) EmitStepRetrying(context.Context, *Execution, string, int, time.Duration) {}
func (NopEmitter) EmitStepRolledBack(context.Context, *Execution, string, error)            {}
func (NopEmitter) EmitExecutionStarted(context.Context, *Execution)                         {}
func (NopEmitter) EmitExecutionCompleted(context.Context, *Execution, time.Duration)        {}
func (NopEmitter) EmitExecutionFailed(context.Context, *Execution, error)                   {}
func (NopEmitter) EmitExecutionCancelled(context.Context, *Execution)                       {}
func (NopEmitter) EmitRollbackStarted(context.Context, *Execution)                          {}
func (NopEmitter) EmitRollbackFinished(context.Context, *Execution, int)                    {}
