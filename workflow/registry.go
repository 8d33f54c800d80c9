package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/seqra/cascade"
)

// Registry stores named workflow definitions. Registration validates the
// definition eagerly — structure, parameter schema, and the dependency
// graph — so execution never encounters a malformed template. Safe for
// concurrent use; definitions are read-only after Register returns.
type Registry struct {
	mu       sync.RWMutex
	defs     map[string]*Definition
	handlers *HandlerRegistry
	validate *validator.Validate
}

// NewRegistry creates a definition registry. The handler registry is used
// to resolve steps that reference handlers by name; it may be nil when
// every step carries its handler directly.
func NewRegistry(handlers *HandlerRegistry) *Registry {
	return &Registry{
		defs:     make(map[string]*Definition),
		handlers: handlers,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register validates and stores a definition. It rejects duplicate names,
// structural problems (missing name, empty step list, steps without ids),
// invalid dependency graphs, and unresolvable handler references.
func (r *Registry) Register(def *Definition) error {
	if err := r.validate.Struct(def); err != nil {
		return fmt.Errorf("workflow %q: %w", def.Name, err)
	}

	if err := ValidateGraph(def.Steps); err != nil {
		return fmt.Errorf("workflow %q: %w", def.Name, err)
	}

	if err := r.bindHandlers(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %q", cascade.ErrDuplicateWorkflow, def.Name)
	}
	r.defs[def.Name] = def

	return nil
}

// bindHandlers resolves named handler references so every step ends up
// with an executable Handler before the definition is accepted.
func (r *Registry) bindHandlers(def *Definition) error {
	for i := range def.Steps {
		s := &def.Steps[i]

		if s.Handler == nil {
			if s.HandlerName == "" {
				return fmt.Errorf("%w: workflow %q step %q has neither handler nor handler name",
					cascade.ErrUnknownHandler, def.Name, s.ID)
			}
			if r.handlers == nil {
				return fmt.Errorf("%w: workflow %q step %q references %q but no handler registry is configured",
					cascade.ErrUnknownHandler, def.Name, s.ID, s.HandlerName)
			}
			h, ok := r.handlers.Handler(s.HandlerName)
			if !ok {
				return fmt.Errorf("%w: workflow %q step %q references %q",
					cascade.ErrUnknownHandler, def.Name, s.ID, s.HandlerName)
			}
			s.Handler = h
		}

		if s.Rollback == nil && s.RollbackName != "" {
			if r.handlers == nil {
				return fmt.Errorf("%w: workflow %q step %q references rollback %q but no handler registry is configured",
					cascade.ErrUnknownHandler, def.Name, s.ID, s.RollbackName)
			}
			h, ok := r.handlers.Rollback(s.RollbackName)
			if !ok {
				return fmt.Errorf("%w: workflow %q step %q references rollback %q",
					cascade.ErrUnknownHandler, def.Name, s.ID, s.RollbackName)
			}
			s.Rollback = h
		}
	}
	return nil
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cascade.ErrWorkflowNotFound, name)
	}
	return def, nil
}

// List returns registered definitions sorted by name. A non-empty
// category restricts the result to that category.
func (r *Registry) List(category string) []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		if category != "" && def.Category != category {
			continue
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
