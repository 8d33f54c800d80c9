// Package observability provides a hook extension that records
// execution and step lifecycle metrics through OpenTelemetry. Register
// it with the engine to automatically track start/completion/failure
// counts, rollback activity, and duration distributions.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seqra/cascade/hook"
	"github.com/seqra/cascade/workflow"
)

const meterName = "github.com/seqra/cascade/observability"

// Compile-time interface checks.
var (
	_ hook.Extension          = (*MetricsExtension)(nil)
	_ hook.ExecutionStarted   = (*MetricsExtension)(nil)
	_ hook.ExecutionCompleted = (*MetricsExtension)(nil)
	_ hook.ExecutionFailed    = (*MetricsExtension)(nil)
	_ hook.ExecutionCancelled = (*MetricsExtension)(nil)
	_ hook.RollbackFinished   = (*MetricsExtension)(nil)
	_ hook.StepCompleted      = (*MetricsExtension)(nil)
	_ hook.StepFailed         = (*MetricsExtension)(nil)
	_ hook.StepRetrying       = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics for executions and steps.
type MetricsExtension struct {
	executionsStarted   metric.Int64Counter
	executionsCompleted metric.Int64Counter
	executionsFailed    metric.Int64Counter
	executionsCancelled metric.Int64Counter
	rollbacks           metric.Int64Counter
	rollbackFailures    metric.Int64Counter
	stepsCompleted      metric.Int64Counter
	stepsFailed         metric.Int64Counter
	stepRetries         metric.Int64Counter
	executionDuration   metric.Float64Histogram
	stepDuration        metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// OpenTelemetry meter provider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithMeter(otel.GetMeterProvider().Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) (*MetricsExtension, error) {
	m := &MetricsExtension{}
	var err error

	if m.executionsStarted, err = meter.Int64Counter("cascade.execution.started"); err != nil {
		return nil, err
	}
	if m.executionsCompleted, err = meter.Int64Counter("cascade.execution.completed"); err != nil {
		return nil, err
	}
	if m.executionsFailed, err = meter.Int64Counter("cascade.execution.failed"); err != nil {
		return nil, err
	}
	if m.executionsCancelled, err = meter.Int64Counter("cascade.execution.cancelled"); err != nil {
		return nil, err
	}
	if m.rollbacks, err = meter.Int64Counter("cascade.rollback.finished"); err != nil {
		return nil, err
	}
	if m.rollbackFailures, err = meter.Int64Counter("cascade.rollback.failures"); err != nil {
		return nil, err
	}
	if m.stepsCompleted, err = meter.Int64Counter("cascade.step.completed"); err != nil {
		return nil, err
	}
	if m.stepsFailed, err = meter.Int64Counter("cascade.step.failed"); err != nil {
		return nil, err
	}
	if m.stepRetries, err = meter.Int64Counter("cascade.step.retried"); err != nil {
		return nil, err
	}
	if m.executionDuration, err = meter.Float64Histogram("cascade.execution.duration",
		metric.WithDescription("Duration of workflow executions"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.stepDuration, err = meter.Float64Histogram("cascade.step.duration",
		metric.WithDescription("Duration of completed steps"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func workflowAttrs(e *workflow.Execution) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("workflow_name", e.WorkflowName))
}

func stepAttrs(e *workflow.Execution, step *workflow.StepExecution) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("workflow_name", e.WorkflowName),
		attribute.String("step_id", step.StepID),
	)
}

// ── Execution lifecycle hooks ───────────────────────

// OnExecutionStarted implements hook.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, e *workflow.Execution) error {
	m.executionsStarted.Add(ctx, 1, workflowAttrs(e))
	return nil
}

// OnExecutionCompleted implements hook.ExecutionCompleted.
func (m *MetricsExtension) OnExecutionCompleted(ctx context.Context, e *workflow.Execution, elapsed time.Duration) error {
	m.executionsCompleted.Add(ctx, 1, workflowAttrs(e))
	m.executionDuration.Record(ctx, elapsed.Seconds(), workflowAttrs(e))
	return nil
}

// OnExecutionFailed implements hook.ExecutionFailed.
func (m *MetricsExtension) OnExecutionFailed(ctx context.Context, e *workflow.Execution, _ error) error {
	m.executionsFailed.Add(ctx, 1, workflowAttrs(e))
	return nil
}

// OnExecutionCancelled implements hook.ExecutionCancelled.
func (m *MetricsExtension) OnExecutionCancelled(ctx context.Context, e *workflow.Execution) error {
	m.executionsCancelled.Add(ctx, 1, workflowAttrs(e))
	return nil
}

// OnRollbackFinished implements hook.RollbackFinished.
func (m *MetricsExtension) OnRollbackFinished(ctx context.Context, e *workflow.Execution, failures int) error {
	m.rollbacks.Add(ctx, 1, workflowAttrs(e))
	if failures > 0 {
		m.rollbackFailures.Add(ctx, int64(failures), workflowAttrs(e))
	}
	return nil
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements hook.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, elapsed time.Duration) error {
	m.stepsCompleted.Add(ctx, 1, stepAttrs(e, step))
	m.stepDuration.Record(ctx, elapsed.Seconds(), stepAttrs(e, step))
	return nil
}

// OnStepFailed implements hook.StepFailed.
func (m *MetricsExtension) OnStepFailed(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, _ error) error {
	m.stepsFailed.Add(ctx, 1, stepAttrs(e, step))
	return nil
}

// OnStepRetrying implements hook.StepRetrying.
func (m *MetricsExtension) OnStepRetrying(ctx context.Context, e *workflow.Execution, step *workflow.StepExecution, _ int, _ time.Duration) error {
	m.stepRetries.Add(ctx, 1, stepAttrs(e, step))
	return nil
}
