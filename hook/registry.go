package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/seqra/cascade/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type executionStartedEntry struct {
	name string
	hook ExecutionStarted
}

type executionCompletedEntry struct {
	name string
	hook ExecutionCompleted
}

type executionFailedEntry struct {
	name string
	hook ExecutionFailed
}

type executionCancelledEntry struct {
	name string
	hook ExecutionCancelled
}

type rollbackStartedEntry struct {
	name string
	hook RollbackStarted
}

type rollbackFinishedEntry struct {
	name string
	hook RollbackFinished
}

type stepStartedEntry struct {
	name string
	hook StepStarted
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepFailedEntry struct {
	name string
	hook StepFailed
}

type stepRetryingEntry struct {
	name string
	hook StepRetrying
}

type stepRolledBackEntry struct {
	name string
	hook StepRolledBack
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	executionStarted   []executionStartedEntry
	executionCompleted []executionCompletedEntry
	executionFailed    []executionFailedEntry
	executionCancelled []executionCancelledEntry
	rollbackStarted    []rollbackStartedEntry
	rollbackFinished   []rollbackFinishedEntry
	stepStarted        []stepStartedEntry
	stepCompleted      []stepCompletedEntry
	stepFailed         []stepFailedEntry
	stepRetrying       []stepRetryingEntry
	stepRolledBack     []stepRolledBackEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ExecutionStarted); ok {
		r.executionStarted = append(r.executionStarted, executionStartedEntry{name, h})
	}
	if h, ok := e.(ExecutionCompleted); ok {
		r.executionCompleted = append(r.executionCompleted, executionCompletedEntry{name, h})
	}
	if h, ok := e.(ExecutionFailed); ok {
		r.executionFailed = append(r.executionFailed, executionFailedEntry{name, h})
	}
	if h, ok := e.(ExecutionCancelled); ok {
		r.executionCancelled = append(r.executionCancelled, executionCancelledEntry{name, h})
	}
	if h, ok := e.(RollbackStarted); ok {
		r.rollbackStarted = append(r.rollbackStarted, rollbackStartedEntry{name, h})
	}
	if h, ok := e.(RollbackFinished); ok {
		r.rollbackFinished = append(r.rollbackFinished, rollbackFinishedEntry{name, h})
	}
	if h, ok := e.(StepStarted); ok {
		r.stepStarted = append(r.stepStarted, stepStartedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepFailed); ok {
		r.stepFailed = append(r.stepFailed, stepFailedEntry{name, h})
	}
	if h, ok := e.(StepRetrying); ok {
		r.stepRetrying = append(r.stepRetrying, stepRetryingEntry{name, h})
	}
	if h, ok := e.(StepRolledBack); ok {
		r.stepRolledBack = append(r.stepRolledBack, stepRolledBackEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Execution event emitters
// ──────────────────────────────────────────────────

// EmitExecutionStarted notifies all extensions that implement ExecutionStarted.
func (r *Registry) EmitExecutionStarted(ctx context.Context, e *workflow.Execution) {
	for _, entry := range r.executionStarted {
		if err := entry.hook.OnExecutionStarted(ctx, e); err != nil {
			r.logHookError("OnExecutionStarted", entry.name, err)
		}
	}
}

// EmitExecutionCompleted notifies all extensions that implement ExecutionCompleted.
func (r *Registry) EmitExecutionCompleted(ctx context.Context, e *workflow.Execution, elapsed time.Duration) {
	for _, entry := range r.executionCompleted {
		if err := entry.hook.OnExecutionCompleted(ctx, e, elapsed); err != nil {
			r.logHookError("OnExecutionCompleted", entry.name, err)
		}
	}
}

// EmitExecutionFailed notifies all extensions that implement ExecutionFailed.
func (r *Registry) EmitExecutionFailed(ctx context.Context, e *workflow.Execution, execErr error) {
	for _, entry := range r.executionFailed {
		if err := entry.hook.OnExecutionFailed(ctx, e, execErr); err != nil {
			r.logHookError("OnExecutionFailed", entry.name, err)
		}
	}
}

// EmitExecutionCancelled notifies all extensions that implement ExecutionCancelled.
func (r *Registry) EmitExecutionCancelled(ctx context.Context, e *workflow.Execution) {
	for _, entry := range r.executionCancelled {
		if err := entry.hook.OnExecutionCancelled(ctx, e); err != nil {
			r.logHookError("OnExecutionCancelled", entry.name, err)
		}
	}
}

// EmitRollbackStarted notifies all extensions that implement RollbackStarted.
func (r *Registry) EmitRollbackStarted(ctx context.Context, e *workflow.Execution) {
	for _, entry := range r.rollbackStarted {
		if err := entry.hook.OnRollbackStarted(ctx, e); err != nil {
			r.logHookError("OnRollbackStarted", entry.name, err)
		}
	}
}

// EmitRollbackFinished notifies all extensions that implement RollbackFinished.
func (r *Registry) EmitRollbackFinished(ctx context.Context, e *workflow.Execution, failures int) {
	for _, entry := range r.rollbackFinished {
		if err := entry.hook.OnRollbackFinished(ctx, e, failures); err != nil {
			r.logHookError("OnRollbackFinished", entry.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step event emitters
// ──────────────────────────────────────────────────

// EmitStepStarted notifies all extensions that implement StepStarted.
func (r *Registry) EmitStepStarted(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution) {
	for _, entry := range r.stepStarted {
		if err := entry.hook.OnStepStarted(ctx, e, step); err != nil {
			r.logHookError("OnStepStarted", entry.name, err)
		}
	}
}

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, elapsed time.Duration) {
	for _, entry := range r.stepCompleted {
		if err := entry.hook.OnStepCompleted(ctx, e, step, elapsed); err != nil {
			r.logHookError("OnStepCompleted", entry.name, err)
		}
	}
}

// EmitStepFailed notifies all extensions that implement StepFailed.
func (r *Registry) EmitStepFailed(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, stepErr error) {
	for _, entry := range r.stepFailed {
		if err := entry.hook.OnStepFailed(ctx, e, step, stepErr); err != nil {
			r.logHookError("OnStepFailed", entry.name, err)
		}
	}
}

// EmitStepRetrying notifies all extensions that implement StepRetrying.
func (r *Registry) EmitStepRetrying(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, attempt int, delay time.Duration) {
	for _, entry := range r.stepRetrying {
		if err := entry.hook.OnStepRetrying(ctx, e, step, attempt, delay); err != nil {
			r.logHookError("OnStepRetrying", entry.name, err)
		}
	}
}

// EmitStepRolledBack notifies all extensions that implement StepRolledBack.
func (r *Registry) EmitStepRolledBack(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, rollbackErr error) {
	for _, entry := range r.stepRolledBack {
		if err := entry.hook.OnStepRolledBack(ctx, e, step, rollbackErr); err != nil {
			r.logHookError("OnStepRolledBack", entry.name, err)
		}
	}
}

// logHookError logs a hook error. Hook failures never affect the
// execution they observe.
func (r *Registry) logHookError(hookName, extName string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Error("extension hook failed",
		slog.String("hook", hookName),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
