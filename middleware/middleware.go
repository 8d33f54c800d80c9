// Package middleware provides composable middleware for step execution.
// Middleware wraps each handler attempt synchronously and can modify
// execution (recover from panics, enforce deadlines, log, record metrics
// and traces).
package middleware

import (
	"context"

	"github.com/seqra/cascade/workflow"
)

// Handler is the terminal function that executes the step logic for one
// attempt.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// step definition, the step's run record, and the next handler to call.
// Middleware MUST call next to continue the chain (unless
// short-circuiting on error).
type Middleware func(ctx context.Context, step *workflow.Step, rec *workflow.StepExecution, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recovery, timeout) executes as:
//
//	logging → recovery → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, step *workflow.Step, rec *workflow.StepExecution, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, step, rec, prev)
			}
		}
		return h(ctx)
	}
}
