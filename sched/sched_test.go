package sched_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/backoff"
	"github.com/seqra/cascade/id"
	"github.com/seqra/cascade/sched"
	"github.com/seqra/cascade/store/memory"
	"github.com/seqra/cascade/workflow"
)

// ──────────────────────────────────────────────────
// Test harness
// ──────────────────────────────────────────────────

type harness struct {
	runner *sched.Runner
	store  *memory.Store
	reg    *workflow.Registry
}

func newHarness(t *testing.T, cfg cascade.Config, bo backoff.Strategy) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := workflow.NopEmitter{}
	executor := sched.NewExecutor(emitter, bo, logger)
	rollback := sched.NewRollback(emitter, cfg.RollbackOrder, logger)
	store := memory.New()
	scheduler := sched.NewScheduler(store, emitter, executor, rollback, cfg, logger)
	reg := workflow.NewRegistry(workflow.NewHandlerRegistry())
	runner := sched.NewRunner(reg, store, emitter, scheduler, nil, logger)
	return &harness{runner: runner, store: store, reg: reg}
}

func defaultHarness(t *testing.T) *harness {
	return newHarness(t, cascade.DefaultConfig(), backoff.NewConstant(time.Millisecond))
}

func ok(stepID string) workflow.Handler {
	return func(_ context.Context, wf *workflow.Context) (any, error) {
		return stepID + "-done", nil
	}
}

func fail(msg string) workflow.Handler {
	return func(_ context.Context, _ *workflow.Context) (any, error) {
		return nil, errors.New(msg)
	}
}

func stepStatus(t *testing.T, exec *workflow.Execution, stepID string) workflow.StepStatus {
	t.Helper()
	rec, found := exec.StepRecord(stepID)
	if !found {
		t.Fatalf("no record for step %q", stepID)
	}
	return rec.Status
}

// ──────────────────────────────────────────────────
// Completion and ordering
// ──────────────────────────────────────────────────

func TestDiamondCompletes(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var mu sync.Mutex
	var order []string
	record := func(stepID string) workflow.Handler {
		return func(_ context.Context, _ *workflow.Context) (any, error) {
			mu.Lock()
			order = append(order, stepID)
			mu.Unlock()
			return stepID, nil
		}
	}

	def := &workflow.Definition{
		Name: "diamond",
		Steps: []workflow.Step{
			{ID: "a", Handler: record("a")},
			{ID: "b", Handler: record("b"), DependsOn: []string{"a"}},
			{ID: "c", Handler: record("c"), DependsOn: []string{"a"}},
			{ID: "d", Handler: record("d"), DependsOn: []string{"b", "c"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "diamond", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed", exec.Status)
	}
	for _, stepID := range []string{"a", "b", "c", "d"} {
		if got := stepStatus(t, exec, stepID); got != workflow.StepCompleted {
			t.Errorf("step %s = %q, want completed", stepID, got)
		}
	}

	// A step never starts before all of its dependencies completed.
	pos := make(map[string]int, len(order))
	for i, stepID := range order {
		pos[stepID] = i
	}
	if pos["a"] > pos["b"] || pos["a"] > pos["c"] {
		t.Errorf("a must run before b and c: %v", order)
	}
	if pos["d"] < pos["b"] || pos["d"] < pos["c"] {
		t.Errorf("d must run after b and c: %v", order)
	}

	// The terminal record is persisted.
	stored, err := h.store.GetExecution(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != workflow.StatusCompleted || stored.CompletedAt == nil {
		t.Errorf("stored status = %q completedAt = %v", stored.Status, stored.CompletedAt)
	}
}

func TestResultsFlowToDependents(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name: "pipeline",
		Params: []workflow.ParamSpec{
			{Name: "base", Type: workflow.TypeInt, Required: true},
		},
		Steps: []workflow.Step{
			{ID: "double", Handler: func(_ context.Context, wf *workflow.Context) (any, error) {
				v, _ := wf.Param("base")
				return v.(int64) * 2, nil
			}},
			{ID: "stringify", DependsOn: []string{"double"}, Handler: func(_ context.Context, wf *workflow.Context) (any, error) {
				v, found := wf.Result("double")
				if !found {
					return nil, errors.New("dependency result missing")
				}
				return fmt.Sprintf("%d", v.(int64)), nil
			}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "pipeline", map[string]any{"base": 21})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	rec, _ := exec.StepRecord("stringify")
	if rec.Result != "42" {
		t.Errorf("result = %v, want %q", rec.Result, "42")
	}
}

func TestSequentialRunsOneAtATimeInOrder(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var running atomic.Int32
	var mu sync.Mutex
	var order []string
	seq := func(stepID string) workflow.Handler {
		return func(_ context.Context, _ *workflow.Context) (any, error) {
			if running.Add(1) > 1 {
				t.Error("sequential steps overlapped")
			}
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			order = append(order, stepID)
			mu.Unlock()
			running.Add(-1)
			return nil, nil
		}
	}

	def := &workflow.Definition{
		Name: "ordered",
		Steps: []workflow.Step{
			{ID: "s1", Handler: seq("s1"), Sequential: true},
			{ID: "s2", Handler: seq("s2"), Sequential: true},
			{ID: "s3", Handler: seq("s3"), Sequential: true},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "ordered", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q", exec.Status)
	}
	want := []string{"s1", "s2", "s3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestBoundedBatchConcurrency(t *testing.T) {
	t.Parallel()

	cfg := cascade.DefaultConfig()
	cfg.MaxBatchConcurrency = 2
	h := newHarness(t, cfg, backoff.NewConstant(time.Millisecond))

	var running, peak atomic.Int32
	track := func(_ context.Context, _ *workflow.Context) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}

	steps := make([]workflow.Step, 6)
	for i := range steps {
		steps[i] = workflow.Step{ID: fmt.Sprintf("p%d", i), Handler: track}
	}
	def := &workflow.Definition{Name: "wide", Steps: steps}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "wide", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q", exec.Status)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

// ──────────────────────────────────────────────────
// Failure, rollback, optional steps
// ──────────────────────────────────────────────────

func TestRequiredFailureRollsBackCompletedSteps(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var mu sync.Mutex
	var rolledBack []string
	compensate := func(stepID string) workflow.RollbackHandler {
		return func(_ context.Context, _ *workflow.Context) error {
			mu.Lock()
			rolledBack = append(rolledBack, stepID)
			mu.Unlock()
			return nil
		}
	}

	def := &workflow.Definition{
		Name: "provision",
		Steps: []workflow.Step{
			{ID: "a", Handler: ok("a"), Rollback: compensate("a")},
			{ID: "b", Handler: ok("b"), DependsOn: []string{"a"}, Rollback: compensate("b")},
			{ID: "c", Handler: fail("certificate rejected"), DependsOn: []string{"a"}},
			{ID: "d", Handler: ok("d"), DependsOn: []string{"b", "c"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "provision", nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "certificate rejected") {
		t.Errorf("err = %v", err)
	}
	if exec.Status != workflow.StatusRolledBack {
		t.Fatalf("status = %q, want rolled_back", exec.Status)
	}

	// Sibling b drained to completion before the abort, then both
	// completed steps were compensated in reverse definition order.
	mu.Lock()
	defer mu.Unlock()
	if len(rolledBack) != 2 || rolledBack[0] != "b" || rolledBack[1] != "a" {
		t.Fatalf("rolledBack = %v, want [b a]", rolledBack)
	}

	if got := stepStatus(t, exec, "a"); got != workflow.StepRolledBack {
		t.Errorf("a = %q", got)
	}
	if got := stepStatus(t, exec, "b"); got != workflow.StepRolledBack {
		t.Errorf("b = %q", got)
	}
	if got := stepStatus(t, exec, "c"); got != workflow.StepFailed {
		t.Errorf("c = %q", got)
	}
	if got := stepStatus(t, exec, "d"); got != workflow.StepPending {
		t.Errorf("d = %q, want pending (never started)", got)
	}
}

func TestRollbackCompletionOrderPolicy(t *testing.T) {
	t.Parallel()

	cfg := cascade.DefaultConfig()
	cfg.RollbackOrder = cascade.RollbackCompletionOrder
	h := newHarness(t, cfg, backoff.NewConstant(time.Millisecond))

	var mu sync.Mutex
	var rolledBack []string
	compensate := func(stepID string) workflow.RollbackHandler {
		return func(_ context.Context, _ *workflow.Context) error {
			mu.Lock()
			rolledBack = append(rolledBack, stepID)
			mu.Unlock()
			return nil
		}
	}

	// slow finishes after fast even though it comes first in the
	// definition, so completion order compensates fast before slow.
	def := &workflow.Definition{
		Name: "timing",
		Steps: []workflow.Step{
			{ID: "slow", Rollback: compensate("slow"), Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				time.Sleep(30 * time.Millisecond)
				return nil, nil
			}},
			{ID: "fast", Rollback: compensate("fast"), Handler: ok("fast")},
			{ID: "boom", Handler: fail("nope"), DependsOn: []string{"slow", "fast"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := h.runner.Start(context.Background(), "timing", nil); err == nil {
		t.Fatal("expected failure")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(rolledBack) != 2 || rolledBack[0] != "slow" || rolledBack[1] != "fast" {
		t.Fatalf("rolledBack = %v, want [slow fast] (latest completion first)", rolledBack)
	}
}

func TestFailedCompensationIsRecordedAndPassContinues(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var aCompensated atomic.Bool
	def := &workflow.Definition{
		Name: "bad-compensation",
		Steps: []workflow.Step{
			{ID: "a", Handler: ok("a"), Rollback: func(_ context.Context, _ *workflow.Context) error {
				aCompensated.Store(true)
				return nil
			}},
			{ID: "b", Handler: ok("b"), DependsOn: []string{"a"}, Rollback: func(_ context.Context, _ *workflow.Context) error {
				return errors.New("upstream gone")
			}},
			{ID: "c", Handler: fail("nope"), DependsOn: []string{"b"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "bad-compensation", nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if exec.Status != workflow.StatusRolledBack {
		t.Fatalf("status = %q", exec.Status)
	}

	// b's compensation failed: the step keeps its completed status with
	// the rollback error on record, and a is still compensated.
	recB, _ := exec.StepRecord("b")
	if recB.Status != workflow.StepCompleted || recB.RollbackError == "" {
		t.Errorf("b status = %q rollbackError = %q", recB.Status, recB.RollbackError)
	}
	if !aCompensated.Load() {
		t.Error("a was not compensated")
	}
	if got := stepStatus(t, exec, "a"); got != workflow.StepRolledBack {
		t.Errorf("a = %q", got)
	}
}

func TestOptionalFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name: "tolerant",
		Steps: []workflow.Step{
			{ID: "core", Handler: ok("core")},
			{ID: "extra", Handler: fail("no capacity"), Optional: true},
			{ID: "final", Handler: ok("final"), DependsOn: []string{"core"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "tolerant", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q, want completed", exec.Status)
	}
	if got := stepStatus(t, exec, "extra"); got != workflow.StepFailed {
		t.Errorf("extra = %q, want failed", got)
	}
}

func TestOptionalFailureBlocksDependents(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name: "blocked",
		Steps: []workflow.Step{
			{ID: "flaky", Handler: fail("down"), Optional: true},
			{ID: "needs-flaky", Handler: ok("needs-flaky"), DependsOn: []string{"flaky"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "blocked", nil)
	if !errors.Is(err, cascade.ErrUnresolvableGraph) {
		t.Fatalf("err = %v, want ErrUnresolvableGraph", err)
	}
	// No required step failed and no rollback runs; the execution is
	// terminally failed with the dependent still pending.
	if exec.Status != workflow.StatusFailed {
		t.Fatalf("status = %q, want failed", exec.Status)
	}
	if got := stepStatus(t, exec, "needs-flaky"); got != workflow.StepPending {
		t.Errorf("needs-flaky = %q, want pending", got)
	}
}

func TestSiblingFailuresAreAggregated(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name: "double-fault",
		Steps: []workflow.Step{
			{ID: "x", Handler: fail("x exploded")},
			{ID: "y", Handler: fail("y exploded")},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "double-fault", nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"x exploded", "y exploded"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("err %v missing %q", err, want)
		}
		if !strings.Contains(exec.Error, want) {
			t.Errorf("exec.Error %q missing %q", exec.Error, want)
		}
	}
}

// ──────────────────────────────────────────────────
// Retry
// ──────────────────────────────────────────────────

func TestRetryableStepRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	const delay = 20 * time.Millisecond
	h := newHarness(t, cascade.DefaultConfig(), backoff.NewConstant(delay))

	var calls atomic.Int32
	def := &workflow.Definition{
		Name: "flaky",
		Steps: []workflow.Step{
			{ID: "eventually", Retryable: true, MaxAttempts: 3, Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("transient")
				}
				return "made it", nil
			}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	start := time.Now()
	exec, err := h.runner.Start(context.Background(), "flaky", nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if exec.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q", exec.Status)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	rec, _ := exec.StepRecord("eventually")
	if rec.RetryCount != 2 {
		t.Errorf("retryCount = %d, want 2", rec.RetryCount)
	}
	// Two backoff sleeps happened between the three attempts.
	if elapsed < 2*delay {
		t.Errorf("elapsed = %v, want >= %v", elapsed, 2*delay)
	}
}

func TestRetryExhaustionFails(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var calls atomic.Int32
	def := &workflow.Definition{
		Name: "hopeless",
		Steps: []workflow.Step{
			{ID: "never", Retryable: true, MaxAttempts: 2, Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				calls.Add(1)
				return nil, errors.New("permanent")
			}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "hopeless", nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	rec, _ := exec.StepRecord("never")
	if rec.RetryCount != 2 {
		t.Errorf("retryCount = %d, want 2", rec.RetryCount)
	}
	if exec.Status != workflow.StatusFailed {
		t.Fatalf("status = %q, want failed (no compensations declared)", exec.Status)
	}
}

func TestNonRetryableStepRunsOnce(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	var calls atomic.Int32
	def := &workflow.Definition{
		Name: "single-shot",
		Steps: []workflow.Step{
			// MaxAttempts is ignored without Retryable.
			{ID: "once", MaxAttempts: 5, Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				calls.Add(1)
				return nil, errors.New("bad")
			}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := h.runner.Start(context.Background(), "single-shot", nil); err == nil {
		t.Fatal("expected failure")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

// ──────────────────────────────────────────────────
// Cancellation
// ──────────────────────────────────────────────────

func TestCancelLeavesPartiallyCompleted(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	var compensated atomic.Bool

	def := &workflow.Definition{
		Name: "long",
		Steps: []workflow.Step{
			{ID: "first", Rollback: func(_ context.Context, _ *workflow.Context) error {
				compensated.Store(true)
				return nil
			}, Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				close(inFlight)
				<-release
				return nil, nil
			}},
			{ID: "second", Handler: ok("second"), DependsOn: []string{"first"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	pending, err := h.runner.StartAsync(ctx, "long", nil)
	if err != nil {
		t.Fatalf("start async: %v", err)
	}

	<-inFlight
	if err := h.runner.Cancel(ctx, pending.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(release)

	final := waitTerminal(t, h, pending.ID)
	if final.Status != workflow.StatusPartiallyCompleted {
		t.Fatalf("status = %q, want partially_completed", final.Status)
	}
	// The in-flight step drained to its own terminal outcome; the next
	// batch never started and nothing was rolled back.
	if got := stepStatus(t, final, "first"); got != workflow.StepCompleted {
		t.Errorf("first = %q, want completed", got)
	}
	if got := stepStatus(t, final, "second"); got != workflow.StepPending {
		t.Errorf("second = %q, want pending", got)
	}
	if compensated.Load() {
		t.Error("completed work must be left in place on cancel")
	}
}

func TestCancelWithRollbackOnCancel(t *testing.T) {
	t.Parallel()

	cfg := cascade.DefaultConfig()
	cfg.RollbackOnCancel = true
	h := newHarness(t, cfg, backoff.NewConstant(time.Millisecond))

	inFlight := make(chan struct{})
	release := make(chan struct{})
	var compensated atomic.Bool

	def := &workflow.Definition{
		Name: "undoable",
		Steps: []workflow.Step{
			{ID: "first", Rollback: func(_ context.Context, _ *workflow.Context) error {
				compensated.Store(true)
				return nil
			}, Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				close(inFlight)
				<-release
				return nil, nil
			}},
			{ID: "second", Handler: ok("second"), DependsOn: []string{"first"}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	pending, err := h.runner.StartAsync(ctx, "undoable", nil)
	if err != nil {
		t.Fatalf("start async: %v", err)
	}

	<-inFlight
	if err := h.runner.Cancel(ctx, pending.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	close(release)

	final := waitTerminal(t, h, pending.ID)
	if final.Status != workflow.StatusRolledBack {
		t.Fatalf("status = %q, want rolled_back", final.Status)
	}
	if !compensated.Load() {
		t.Error("completed step should be compensated with RollbackOnCancel")
	}
}

func TestCancelTerminalExecution(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name:  "quick",
		Steps: []workflow.Step{{ID: "a", Handler: ok("a")}},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	exec, err := h.runner.Start(context.Background(), "quick", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.runner.Cancel(context.Background(), exec.ID); !errors.Is(err, cascade.ErrNotCancellable) {
		t.Fatalf("err = %v, want ErrNotCancellable", err)
	}
}

func TestCancelUnknownExecution(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)
	if err := h.runner.Cancel(context.Background(), id.NewExecutionID()); !errors.Is(err, cascade.ErrExecutionNotFound) {
		t.Fatalf("err = %v, want ErrExecutionNotFound", err)
	}
}

// ──────────────────────────────────────────────────
// Start-time validation
// ──────────────────────────────────────────────────

func TestStartUnknownWorkflow(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)
	if _, err := h.runner.Start(context.Background(), "nope", nil); !errors.Is(err, cascade.ErrWorkflowNotFound) {
		t.Fatalf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestStartRejectsInvalidParamsBeforeCreating(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	def := &workflow.Definition{
		Name: "strict",
		Params: []workflow.ParamSpec{
			{Name: "domain", Type: workflow.TypeString, Required: true},
		},
		Steps: []workflow.Step{{ID: "a", Handler: ok("a")}},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := h.runner.Start(context.Background(), "strict", nil)
	var verr *workflow.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}

	// Rejected starts leave no execution record behind.
	list, listErr := h.runner.List(context.Background(), workflow.ListFilter{})
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(list) != 0 {
		t.Errorf("list = %d, want 0", len(list))
	}
}

func TestStartAsyncReturnsImmediately(t *testing.T) {
	t.Parallel()

	h := defaultHarness(t)

	release := make(chan struct{})
	def := &workflow.Definition{
		Name: "slow",
		Steps: []workflow.Step{
			{ID: "a", Handler: func(_ context.Context, _ *workflow.Context) (any, error) {
				<-release
				return nil, nil
			}},
		},
	}
	if err := h.reg.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	pending, err := h.runner.StartAsync(context.Background(), "slow", nil)
	if err != nil {
		t.Fatalf("start async: %v", err)
	}
	if pending.Status.Terminal() {
		t.Fatalf("status = %q, want non-terminal snapshot", pending.Status)
	}
	close(release)

	final := waitTerminal(t, h, pending.ID)
	if final.Status != workflow.StatusCompleted {
		t.Fatalf("status = %q", final.Status)
	}
}

func waitTerminal(t *testing.T, h *harness, execID id.ExecutionID) *workflow.Execution {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("execution did not reach a terminal status")
		case <-time.After(5 * time.Millisecond):
		}
		exec, err := h.runner.Get(context.Background(), execID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if exec.Status.Terminal() {
			return exec
		}
	}
}
