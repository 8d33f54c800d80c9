package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqra/cascade/workflow"
)

const tracerName = "github.com/seqra/cascade"

// Tracing returns middleware that creates a span per step attempt using
// the global OpenTelemetry tracer provider.
func Tracing() Middleware {
	return TracingWithTracer(otel.GetTracerProvider().Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware bound to an explicit
// tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, step *workflow.Step, rec *workflow.StepExecution, next Handler) error {
		ctx, span := tracer.Start(ctx, "cascade.step "+step.ID,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("cascade.execution_id", rec.ExecutionID.String()),
				attribute.String("cascade.step_id", step.ID),
				attribute.Int("cascade.attempt", rec.RetryCount+1),
			),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
