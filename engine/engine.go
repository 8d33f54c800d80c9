// Package engine wires all Cascade subsystems together and provides the
// primary application-level API for registering and running workflows.
//
// The engine package sits above all subsystem packages and below the
// application layer: it plugs the hook registry into the emitter
// interfaces the workflow package defines, builds the default middleware
// chain, and owns the scheduler wiring.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/backoff"
	"github.com/seqra/cascade/hook"
	"github.com/seqra/cascade/id"
	mw "github.com/seqra/cascade/middleware"
	"github.com/seqra/cascade/observability"
	"github.com/seqra/cascade/sched"
	"github.com/seqra/cascade/store/memory"
	"github.com/seqra/cascade/workflow"
)

const scopeName = "github.com/seqra/cascade"

// hookEmitter adapts *hook.Registry to satisfy workflow.ExecutionEmitter.
// This breaks the import cycle: workflow defines the interface,
// hook.Registry provides the implementation, and the engine layer plugs
// them together.
type hookEmitter struct {
	r *hook.Registry
}

func (a *hookEmitter) rec(e *workflow.Execution, stepID string) *workflow.StepExecution {
	rec, ok := e.StepRecord(stepID)
	if !ok {
		return &workflow.StepExecution{ExecutionID: e.ID, StepID: stepID}
	}
	return rec
}

func (a *hookEmitter) EmitStepStarted(ctx context.Context, e *workflow.Execution, stepID string) {
	a.r.EmitStepStarted(ctx, e, a.rec(e, stepID))
}

func (a *hookEmitter) EmitStepCompleted(ctx context.Context, e *workflow.Execution, stepID string, elapsed time.Duration) {
	a.r.EmitStepCompleted(ctx, e, a.rec(e, stepID), elapsed)
}

func (a *hookEmitter) EmitStepFailed(ctx context.Context, e *workflow.Execution, stepID string, err error) {
	a.r.EmitStepFailed(ctx, e, a.rec(e, stepID), err)
}

func (a *hookEmitter) EmitStepRetrying(ctx context.Context, e *workflow.Execution, stepID string, attempt int, delay time.Duration) {
	a.r.EmitStepRetrying(ctx, e, a.rec(e, stepID), attempt, delay)
}

func (a *hookEmitter) EmitStepRolledBack(ctx context.Context, e *workflow.Execution, stepID string, rollbackErr error) {
	a.r.EmitStepRolledBack(ctx, e, a.rec(e, stepID), rollbackErr)
}

func (a *hookEmitter) EmitExecutionStarted(ctx context.Context, e *workflow.Execution) {
	a.r.EmitExecutionStarted(ctx, e)
}

func (a *hookEmitter) EmitExecutionCompleted(ctx context.Context, e *workflow.Execution, elapsed time.Duration) {
	a.r.EmitExecutionCompleted(ctx, e, elapsed)
}

func (a *hookEmitter) EmitExecutionFailed(ctx context.Context, e *workflow.Execution, err error) {
	a.r.EmitExecutionFailed(ctx, e, err)
}

func (a *hookEmitter) EmitExecutionCancelled(ctx context.Context, e *workflow.Execution) {
	a.r.EmitExecutionCancelled(ctx, e)
}

func (a *hookEmitter) EmitRollbackStarted(ctx context.Context, e *workflow.Execution) {
	a.r.EmitRollbackStarted(ctx, e)
}

func (a *hookEmitter) EmitRollbackFinished(ctx context.Context, e *workflow.Execution, failures int) {
	a.r.EmitRollbackFinished(ctx, e, failures)
}

// Engine is the top-level facade: workflow registration, execution
// lifecycle, and the execution registry.
type Engine struct {
	cfg      cascade.Config
	logger   *slog.Logger
	store    workflow.Store
	target   any
	bo       backoff.Strategy
	mws      []mw.Middleware
	hooks    *hook.Registry
	pending  []hook.Extension
	handlers *workflow.HandlerRegistry
	registry *workflow.Registry
	runner   *sched.Runner

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	noMetricsExt   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore sets the execution store. Defaults to an in-memory store.
func WithStore(s workflow.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithConfig replaces the whole engine configuration.
func WithConfig(cfg cascade.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithBatchConcurrency bounds the number of parallel steps dispatched
// concurrently within one batch.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) { e.cfg.MaxBatchConcurrency = n }
}

// WithStepTimeout sets the default per-attempt deadline for steps that
// don't declare their own.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) { e.cfg.StepTimeout = d }
}

// WithRollbackOrder selects how compensations are ordered.
func WithRollbackOrder(order cascade.RollbackOrder) Option {
	return func(e *Engine) { e.cfg.RollbackOrder = order }
}

// WithRollbackOnCancel makes cancellation compensate completed steps
// instead of leaving them in place.
func WithRollbackOnCancel(enabled bool) Option {
	return func(e *Engine) { e.cfg.RollbackOnCancel = enabled }
}

// WithBackoff sets the retry backoff strategy. If not set,
// backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithMiddleware appends middleware to the engine's chain, after the
// default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithExtension registers a lifecycle hook extension.
func WithExtension(ext hook.Extension) Option {
	return func(e *Engine) { e.pending = append(e.pending, ext) }
}

// WithTarget sets the opaque external-system handle passed to every
// step handler (e.g. an authenticated API client).
func WithTarget(target any) Option {
	return func(e *Engine) { e.target = target }
}

// WithTracerProvider sets a custom OTel TracerProvider. When set, the
// tracing middleware uses this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider. When set, both
// the metrics middleware and the observability extension use this
// provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// WithoutMetricsExtension disables the built-in observability metrics
// extension.
func WithoutMetricsExtension() Option {
	return func(e *Engine) { e.noMetricsExt = true }
}

// New builds an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:      cascade.DefaultConfig(),
		logger:   slog.Default(),
		store:    memory.New(),
		handlers: workflow.NewHandlerRegistry(),
	}

	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		return nil, cascade.ErrNoStore
	}
	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	eng.hooks = hook.NewRegistry(eng.logger)
	eng.registry = workflow.NewRegistry(eng.handlers)

	// Register the observability metrics extension first so it observes
	// every event, then user extensions in option order.
	if !eng.noMetricsExt {
		var obsExt *observability.MetricsExtension
		var err error
		if eng.meterProvider != nil {
			obsExt, err = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(scopeName + "/observability"))
		} else {
			obsExt, err = observability.NewMetricsExtension()
		}
		if err != nil {
			return nil, fmt.Errorf("cascade: build metrics extension: %w", err)
		}
		eng.hooks.Register(obsExt)
	}
	for _, ext := range eng.pending {
		eng.hooks.Register(ext)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(scopeName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(scopeName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.cfg.StepTimeout),
	}
	allMws = append(allMws, eng.mws...)

	emitter := &hookEmitter{r: eng.hooks}
	executor := sched.NewExecutor(emitter, eng.bo, eng.logger, allMws...)
	rollback := sched.NewRollback(emitter, eng.cfg.RollbackOrder, eng.logger)
	scheduler := sched.NewScheduler(eng.store, emitter, executor, rollback, eng.cfg, eng.logger)
	eng.runner = sched.NewRunner(eng.registry, eng.store, emitter, scheduler, eng.target, eng.logger)

	return eng, nil
}

// ──────────────────────────────────────────────────
// Registration
// ──────────────────────────────────────────────────

// RegisterWorkflow validates and registers a workflow definition.
func (e *Engine) RegisterWorkflow(def *workflow.Definition) error {
	return e.registry.Register(def)
}

// RegisterHandler registers a named step handler for declarative
// definitions.
func (e *Engine) RegisterHandler(name string, h workflow.Handler) {
	e.handlers.RegisterHandler(name, h)
}

// RegisterRollbackHandler registers a named compensating handler.
func (e *Engine) RegisterRollbackHandler(name string, h workflow.RollbackHandler) {
	e.handlers.RegisterRollback(name, h)
}

// LoadWorkflow parses a YAML definition and registers it. Handlers
// referenced by name must already be registered.
func (e *Engine) LoadWorkflow(r io.Reader) (*workflow.Definition, error) {
	def, err := workflow.LoadDefinition(r)
	if err != nil {
		return nil, err
	}
	if err := e.registry.Register(def); err != nil {
		return nil, err
	}
	return def, nil
}

// ListWorkflows returns registered definitions sorted by name,
// optionally restricted to one category.
func (e *Engine) ListWorkflows(category string) []*workflow.Definition {
	return e.registry.List(category)
}

// WorkflowNames returns all registered workflow names, sorted.
func (e *Engine) WorkflowNames() []string {
	return e.registry.Names()
}

// Hooks returns the extension registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

// StartWorkflow runs a workflow synchronously and returns its terminal
// execution record.
func (e *Engine) StartWorkflow(ctx context.Context, name string, params map[string]any) (*workflow.Execution, error) {
	return e.runner.Start(ctx, name, params)
}

// StartWorkflowAsync validates and persists the execution, then drives
// it in the background. The returned record is a pending snapshot; poll
// GetExecution for progress.
func (e *Engine) StartWorkflowAsync(ctx context.Context, name string, params map[string]any) (*workflow.Execution, error) {
	return e.runner.StartAsync(ctx, name, params)
}

// GetExecution retrieves an execution by id.
func (e *Engine) GetExecution(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	return e.runner.Get(ctx, execID)
}

// ListExecutions returns executions matching the filter, most recent
// first.
func (e *Engine) ListExecutions(ctx context.Context, filter workflow.ListFilter) ([]*workflow.Execution, error) {
	return e.runner.List(ctx, filter)
}

// CancelExecution requests cooperative cancellation of a running
// execution.
func (e *Engine) CancelExecution(ctx context.Context, execID id.ExecutionID) error {
	return e.runner.Cancel(ctx, execID)
}
