package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/seqra/cascade/workflow"
)

// Logging returns middleware that logs each step attempt's start and
// outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, step *workflow.Step, rec *workflow.StepExecution, next Handler) error {
		logger.Info("step started",
			slog.String("execution_id", rec.ExecutionID.String()),
			slog.String("step_id", step.ID),
			slog.Int("attempt", rec.RetryCount+1),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("step failed",
				slog.String("execution_id", rec.ExecutionID.String()),
				slog.String("step_id", step.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("step completed",
				slog.String("execution_id", rec.ExecutionID.String()),
				slog.String("step_id", step.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
