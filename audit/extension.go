// Package audit bridges Cascade lifecycle events to an audit trail
// backend. Each lifecycle hook emits a structured audit event through a
// caller-provided Recorder, so change-management systems can answer who
// provisioned what, when, and whether it was undone.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seqra/cascade/hook"
	"github.com/seqra/cascade/workflow"
)

// Compile-time interface checks.
var (
	_ hook.Extension          = (*Extension)(nil)
	_ hook.ExecutionStarted   = (*Extension)(nil)
	_ hook.ExecutionCompleted = (*Extension)(nil)
	_ hook.ExecutionFailed    = (*Extension)(nil)
	_ hook.ExecutionCancelled = (*Extension)(nil)
	_ hook.RollbackStarted    = (*Extension)(nil)
	_ hook.RollbackFinished   = (*Extension)(nil)
	_ hook.StepCompleted      = (*Extension)(nil)
	_ hook.StepFailed         = (*Extension)(nil)
	_ hook.StepRetrying       = (*Extension)(nil)
	_ hook.StepRolledBack     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package does not import any particular audit
// system — callers inject the concrete backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is a structured audit record.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension emits one audit event per lifecycle hook.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Execution lifecycle hooks ───────────────────────

// OnExecutionStarted implements hook.ExecutionStarted.
func (e *Extension) OnExecutionStarted(ctx context.Context, ex *workflow.Execution) error {
	return e.record(ctx, ActionExecutionStarted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, ex.ID.String(), CategoryExecution, nil,
		"workflow_name", ex.WorkflowName,
	)
}

// OnExecutionCompleted implements hook.ExecutionCompleted.
func (e *Extension) OnExecutionCompleted(ctx context.Context, ex *workflow.Execution, elapsed time.Duration) error {
	return e.record(ctx, ActionExecutionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceExecution, ex.ID.String(), CategoryExecution, nil,
		"workflow_name", ex.WorkflowName,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnExecutionFailed implements hook.ExecutionFailed.
func (e *Extension) OnExecutionFailed(ctx context.Context, ex *workflow.Execution, execErr error) error {
	return e.record(ctx, ActionExecutionFailed, SeverityCritical, OutcomeFailure,
		ResourceExecution, ex.ID.String(), CategoryExecution, execErr,
		"workflow_name", ex.WorkflowName,
	)
}

// OnExecutionCancelled implements hook.ExecutionCancelled.
func (e *Extension) OnExecutionCancelled(ctx context.Context, ex *workflow.Execution) error {
	return e.record(ctx, ActionExecutionCancelled, SeverityWarning, OutcomeSuccess,
		ResourceExecution, ex.ID.String(), CategoryExecution, nil,
		"workflow_name", ex.WorkflowName,
	)
}

// ── Rollback lifecycle hooks ────────────────────────

// OnRollbackStarted implements hook.RollbackStarted.
func (e *Extension) OnRollbackStarted(ctx context.Context, ex *workflow.Execution) error {
	return e.record(ctx, ActionRollbackStarted, SeverityWarning, OutcomeSuccess,
		ResourceExecution, ex.ID.String(), CategoryRollback, nil,
		"workflow_name", ex.WorkflowName,
	)
}

// OnRollbackFinished implements hook.RollbackFinished.
func (e *Extension) OnRollbackFinished(ctx context.Context, ex *workflow.Execution, failures int) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if failures > 0 {
		severity = SeverityCritical
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionRollbackFinished, severity, outcome,
		ResourceExecution, ex.ID.String(), CategoryRollback, nil,
		"workflow_name", ex.WorkflowName,
		"failures", failures,
	)
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements hook.StepCompleted.
func (e *Extension) OnStepCompleted(ctx context.Context, ex *workflow.Execution, step *workflow.StepExecution, elapsed time.Duration) error {
	return e.record(ctx, ActionStepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceStep, step.ID.String(), CategoryStep, nil,
		"workflow_name", ex.WorkflowName,
		"step_id", step.StepID,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnStepFailed implements hook.StepFailed.
func (e *Extension) OnStepFailed(ctx context.Context, ex *workflow.Execution, step *workflow.StepExecution, stepErr error) error {
	return e.record(ctx, ActionStepFailed, SeverityCritical, OutcomeFailure,
		ResourceStep, step.ID.String(), CategoryStep, stepErr,
		"workflow_name", ex.WorkflowName,
		"step_id", step.StepID,
		"retry_count", step.RetryCount,
	)
}

// OnStepRetrying implements hook.StepRetrying.
func (e *Extension) OnStepRetrying(ctx context.Context, ex *workflow.Execution, step *workflow.StepExecution, attempt int, delay time.Duration) error {
	return e.record(ctx, ActionStepRetrying, SeverityWarning, OutcomeFailure,
		ResourceStep, step.ID.String(), CategoryStep, nil,
		"workflow_name", ex.WorkflowName,
		"step_id", step.StepID,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
	)
}

// OnStepRolledBack implements hook.StepRolledBack.
func (e *Extension) OnStepRolledBack(ctx context.Context, ex *workflow.Execution, step *workflow.StepExecution, rollbackErr error) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if rollbackErr != nil {
		severity = SeverityCritical
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionStepRolledBack, severity, outcome,
		ResourceStep, step.ID.String(), CategoryStep, rollbackErr,
		"workflow_name", ex.WorkflowName,
		"step_id", step.StepID,
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
