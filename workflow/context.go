package workflow

import (
	"fmt"
	"sync"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/id"
)

// Context is the per-execution state shared by all step handlers of one
// execution. It carries the opaque handle to the external system, the
// validated parameters, a write-once results map keyed by step id, and
// free-form metadata.
//
// Steps in the same parallel batch run concurrently, so the results and
// metadata maps are mutex-guarded. A step writes exactly one results key
// (its own id); attempting to overwrite another step's entry is rejected.
type Context struct {
	executionID  id.ExecutionID
	workflowName string
	target       any
	params       map[string]any

	mu       sync.RWMutex
	results  map[string]any
	metadata map[string]any
}

// NewContext creates the execution context. The target is the handle to
// the external system (e.g. an authenticated API client); the engine
// never inspects it.
func NewContext(executionID id.ExecutionID, workflowName string, target any, params map[string]any) *Context {
	return &Context{
		executionID:  executionID,
		workflowName: workflowName,
		target:       target,
		params:       params,
		results:      make(map[string]any),
		metadata:     make(map[string]any),
	}
}

// ExecutionID returns the id of the owning execution.
func (c *Context) ExecutionID() id.ExecutionID { return c.executionID }

// WorkflowName returns the name of the workflow being executed.
func (c *Context) WorkflowName() string { return c.workflowName }

// Target returns the opaque external-system handle.
func (c *Context) Target() any { return c.target }

// Param returns the bound parameter with the given name.
func (c *Context) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok
}

// Params returns a copy of the bound parameters.
func (c *Context) Params() map[string]any {
	out := make(map[string]any, len(c.params))
	for k, v := range c.params {
		out[k] = v
	}
	return out
}

// Result returns the recorded output of a completed step.
func (c *Context) Result(stepID string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.results[stepID]
	return v, ok
}

// Results returns a copy of the results map.
func (c *Context) Results() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// RecordResult stores a step's output under its id. The map is
// append-only: recording a second value for the same id fails.
func (c *Context) RecordResult(stepID string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.results[stepID]; exists {
		return fmt.Errorf("%w: step %q", cascade.ErrResultExists, stepID)
	}
	c.results[stepID] = value
	return nil
}

// SetMeta stores a free-form metadata value.
func (c *Context) SetMeta(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// Meta returns a metadata value.
func (c *Context) Meta(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.metadata[key]
	return v, ok
}
