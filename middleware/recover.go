package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/seqra/cascade/workflow"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so one misbehaving handler cannot take down the scheduling loop.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, step *workflow.Step, rec *workflow.StepExecution, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("step handler panicked",
					slog.String("execution_id", rec.ExecutionID.String()),
					slog.String("step_id", step.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in step %s: %v", step.ID, r)
			}
		}()
		return next(ctx)
	}
}
