package hook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/seqra/cascade/hook"
	"github.com/seqra/cascade/id"
	"github.com/seqra/cascade/workflow"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnExecutionStarted(_ context.Context, _ *workflow.Execution) error {
	e.calls = append(e.calls, "OnExecutionStarted")
	return nil
}

func (e *allHooksExt) OnExecutionCompleted(_ context.Context, _ *workflow.Execution, _ time.Duration) error {
	e.calls = append(e.calls, "OnExecutionCompleted")
	return nil
}

func (e *allHooksExt) OnExecutionFailed(_ context.Context, _ *workflow.Execution, _ error) error {
	e.calls = append(e.calls, "OnExecutionFailed")
	return nil
}

func (e *allHooksExt) OnExecutionCancelled(_ context.Context, _ *workflow.Execution) error {
	e.calls = append(e.calls, "OnExecutionCancelled")
	return nil
}

func (e *allHooksExt) OnRollbackStarted(_ context.Context, _ *workflow.Execution) error {
	e.calls = append(e.calls, "OnRollbackStarted")
	return nil
}

func (e *allHooksExt) OnRollbackFinished(_ context.Context, _ *workflow.Execution, _ int) error {
	e.calls = append(e.calls, "OnRollbackFinished")
	return nil
}

func (e *allHooksExt) OnStepStarted(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution) error {
	e.calls = append(e.calls, "OnStepStarted")
	return nil
}

func (e *allHooksExt) OnStepCompleted(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution, _ time.Duration) error {
	e.calls = append(e.calls, "OnStepCompleted")
	return nil
}

func (e *allHooksExt) OnStepFailed(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution, _ error) error {
	e.calls = append(e.calls, "OnStepFailed")
	return nil
}

func (e *allHooksExt) OnStepRetrying(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution, _ int, _ time.Duration) error {
	e.calls = append(e.calls, "OnStepRetrying")
	return nil
}

func (e *allHooksExt) OnStepRolledBack(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution, _ error) error {
	e.calls = append(e.calls, "OnStepRolledBack")
	return nil
}

// startedOnlyExt implements a single hook.
type startedOnlyExt struct {
	started int
}

func (e *startedOnlyExt) Name() string { return "started-only" }

func (e *startedOnlyExt) OnExecutionStarted(_ context.Context, _ *workflow.Execution) error {
	e.started++
	return nil
}

// failingExt always returns an error from its hook.
type failingExt struct{}

func (failingExt) Name() string { return "failing" }

func (failingExt) OnStepCompleted(_ context.Context, _ *workflow.Execution, _ *workflow.StepExecution, _ time.Duration) error {
	return errors.New("hook broke")
}

func newRegistry() *hook.Registry {
	return hook.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testExecution() (*workflow.Execution, *workflow.StepExecution) {
	exec := &workflow.Execution{
		ID:           id.NewExecutionID(),
		WorkflowName: "test",
	}
	rec := &workflow.StepExecution{
		ID:          id.NewStepRunID(),
		ExecutionID: exec.ID,
		StepID:      "a",
	}
	return exec, rec
}

func TestRegistryDispatchesAllEvents(t *testing.T) {
	t.Parallel()

	ext := &allHooksExt{}
	reg := newRegistry()
	reg.Register(ext)

	ctx := context.Background()
	exec, rec := testExecution()

	reg.EmitExecutionStarted(ctx, exec)
	reg.EmitStepStarted(ctx, exec, rec)
	reg.EmitStepRetrying(ctx, exec, rec, 1, time.Second)
	reg.EmitStepCompleted(ctx, exec, rec, time.Millisecond)
	reg.EmitStepFailed(ctx, exec, rec, errors.New("x"))
	reg.EmitRollbackStarted(ctx, exec)
	reg.EmitStepRolledBack(ctx, exec, rec, nil)
	reg.EmitRollbackFinished(ctx, exec, 0)
	reg.EmitExecutionFailed(ctx, exec, errors.New("x"))
	reg.EmitExecutionCancelled(ctx, exec)
	reg.EmitExecutionCompleted(ctx, exec, time.Second)

	want := []string{
		"OnExecutionStarted",
		"OnStepStarted",
		"OnStepRetrying",
		"OnStepCompleted",
		"OnStepFailed",
		"OnRollbackStarted",
		"OnStepRolledBack",
		"OnRollbackFinished",
		"OnExecutionFailed",
		"OnExecutionCancelled",
		"OnExecutionCompleted",
	}
	if len(ext.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", ext.calls, want)
	}
	for i := range want {
		if ext.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %q, want %q", i, ext.calls[i], want[i])
		}
	}
}

func TestRegistryPartialExtension(t *testing.T) {
	t.Parallel()

	ext := &startedOnlyExt{}
	reg := newRegistry()
	reg.Register(ext)

	ctx := context.Background()
	exec, rec := testExecution()

	// Events the extension doesn't implement must be no-ops.
	reg.EmitExecutionStarted(ctx, exec)
	reg.EmitStepCompleted(ctx, exec, rec, time.Millisecond)
	reg.EmitExecutionCompleted(ctx, exec, time.Second)

	if ext.started != 1 {
		t.Errorf("started = %d, want 1", ext.started)
	}
}

func TestRegistryHookErrorsAreIsolated(t *testing.T) {
	t.Parallel()

	failing := failingExt{}
	ok := &allHooksExt{}
	reg := newRegistry()
	reg.Register(failing)
	reg.Register(ok)

	exec, rec := testExecution()
	reg.EmitStepCompleted(context.Background(), exec, rec, time.Millisecond)

	// The failing extension must not prevent later extensions from
	// being notified.
	if len(ok.calls) != 1 || ok.calls[0] != "OnStepCompleted" {
		t.Fatalf("calls = %v", ok.calls)
	}
}

func TestRegistryExtensions(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	reg.Register(&allHooksExt{})
	reg.Register(&startedOnlyExt{})

	if got := len(reg.Extensions()); got != 2 {
		t.Errorf("extensions = %d, want 2", got)
	}
}
