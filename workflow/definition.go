package workflow

import (
	"context"
	"sync"
	"time"
)

// Handler executes one step against the external system. It receives the
// per-execution Context carrying the opaque target handle, the bound
// parameters, and the results of completed dependency steps. The returned
// value is recorded under the step's id in the context's results map.
//
// Handlers are invoked with at-least-once semantics: a retryable step's
// handler runs again after a failure, so handlers must be safe to
// re-invoke.
type Handler func(ctx context.Context, wf *Context) (any, error)

// RollbackHandler compensates a completed step's external side effects.
type RollbackHandler func(ctx context.Context, wf *Context) error

// Step is one unit of work inside a Definition.
type Step struct {
	// ID uniquely identifies the step within its definition.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name is a short human-readable label.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Description explains what the step does.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Handler executes the step. Either Handler or HandlerName must be
	// set; named handlers are resolved through the HandlerRegistry when
	// the definition is registered.
	Handler Handler `json:"-" yaml:"-"`

	// Rollback compensates the step after a later required-step failure.
	// Optional; steps without one are skipped during rollback.
	Rollback RollbackHandler `json:"-" yaml:"-"`

	// HandlerName references a handler registered by name.
	HandlerName string `json:"handler,omitempty" yaml:"handler,omitempty"`

	// RollbackName references a rollback handler registered by name.
	RollbackName string `json:"rollback,omitempty" yaml:"rollback,omitempty"`

	// DependsOn lists step ids that must be completed before this step
	// becomes ready. Every id must exist in the same definition and the
	// resulting graph must be acyclic.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`

	// Sequential excludes the step from parallel fan-out. Ready
	// sequential steps run one at a time, in definition order, after the
	// parallel portion of their batch has drained.
	Sequential bool `json:"sequential,omitempty" yaml:"sequential,omitempty"`

	// Optional means a terminal failure of this step is recorded but does
	// not abort the workflow or trigger rollback.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// Retryable enables retry with backoff up to MaxAttempts.
	Retryable bool `json:"retryable,omitempty" yaml:"retryable,omitempty"`

	// MaxAttempts caps handler invocations for a retryable step.
	// Ignored unless Retryable is set; values below 1 mean a single attempt.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"gte=0"`

	// Timeout is the per-attempt deadline for the handler. Zero falls
	// back to the engine-wide Config.StepTimeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Attempts returns the number of handler invocations the step allows.
func (s *Step) Attempts() int {
	if !s.Retryable || s.MaxAttempts < 1 {
		return 1
	}
	return s.MaxAttempts
}

// Definition is an immutable workflow template: a named, acyclic graph of
// steps plus a parameter schema. Definitions are registered once at
// startup and never mutated afterward.
type Definition struct {
	// Name is the unique key the workflow is started by.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description explains what the workflow provisions or changes.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Category groups related workflows for listing.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Tags are free-form labels copied onto each execution.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// EstimatedDuration is advisory and copied onto each execution.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"`

	// Steps is the ordered step list. Order matters: it fixes the
	// sequential run order within a batch and the definition-order
	// rollback policy.
	Steps []Step `json:"steps" yaml:"steps" validate:"min=1,dive"`

	// Params declares the accepted input parameters.
	Params []ParamSpec `json:"params,omitempty" yaml:"params,omitempty" validate:"dive"`

	// Results optionally documents the outputs the workflow produces.
	// Informational only; not enforced.
	Results []ParamSpec `json:"results,omitempty" yaml:"results,omitempty"`
}

// Step returns the step with the given id.
func (d *Definition) Step(stepID string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// HandlerRegistry maps handler names to step handlers so that purely
// declarative definitions (e.g. loaded from YAML) can reference
// executable code by name. Safe for concurrent use.
type HandlerRegistry struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	rollbacks map[string]RollbackHandler
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers:  make(map[string]Handler),
		rollbacks: make(map[string]RollbackHandler),
	}
}

// RegisterHandler registers a step handler under a name, replacing any
// previous registration.
func (r *HandlerRegistry) RegisterHandler(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterRollback registers a rollback handler under a name, replacing
// any previous registration.
func (r *HandlerRegistry) RegisterRollback(name string, h RollbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollbacks[name] = h
}

// Handler returns the handler registered under name.
func (r *HandlerRegistry) Handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Rollback returns the rollback handler registered under name.
func (r *HandlerRegistry) Rollback(name string) (RollbackHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.rollbacks[name]
	return h, ok
}
