package middleware

import (
	"context"
	"time"

	"github.com/seqra/cascade/workflow"
)

// Timeout returns middleware that enforces a per-attempt deadline. A
// step's own Timeout takes precedence; otherwise defaultTimeout applies.
// When both are zero the middleware is a pass-through. On deadline the
// context is cancelled and the handler is expected to return
// context.DeadlineExceeded.
func Timeout(defaultTimeout time.Duration) Middleware {
	return func(ctx context.Context, step *workflow.Step, _ *workflow.StepExecution, next Handler) error {
		d := step.Timeout
		if d <= 0 {
			d = defaultTimeout
		}
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
