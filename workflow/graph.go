package workflow

import (
	"fmt"

	"github.com/seqra/cascade"
)

// ValidateGraph checks the step list for duplicate ids, dependency
// references to unknown steps, and cycles. It runs at registration time
// so that a definition that passes can never hit an unresolvable graph
// during scheduling.
func ValidateGraph(steps []Step) error {
	index := make(map[string]int, len(steps))
	for i := range steps {
		id := steps[i].ID
		if _, dup := index[id]; dup {
			return fmt.Errorf("%w: duplicate step id %q", cascade.ErrInvalidStepGraph, id)
		}
		index[id] = i
	}

	for i := range steps {
		for _, dep := range steps[i].DependsOn {
			if _, ok := index[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on unknown step %q",
					cascade.ErrInvalidStepGraph, steps[i].ID, dep)
			}
			if dep == steps[i].ID {
				return fmt.Errorf("%w: step %q depends on itself",
					cascade.ErrInvalidStepGraph, steps[i].ID)
			}
		}
	}

	// Kahn's algorithm: if a topological sort cannot consume every step,
	// the remainder forms at least one cycle.
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for i := range steps {
		indegree[steps[i].ID] = len(steps[i].DependsOn)
		for _, dep := range steps[i].DependsOn {
			dependents[dep] = append(dependents[dep], steps[i].ID)
		}
	}

	queue := make([]string, 0, len(steps))
	for i := range steps {
		if indegree[steps[i].ID] == 0 {
			queue = append(queue, steps[i].ID)
		}
	}

	sorted := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		sorted++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if sorted != len(steps) {
		var cyclic []string
		for id, deg := range indegree {
			if deg > 0 {
				cyclic = append(cyclic, id)
			}
		}
		return fmt.Errorf("%w: dependency cycle involving steps %v",
			cascade.ErrInvalidStepGraph, cyclic)
	}

	return nil
}

// ReadySteps returns the steps that are neither completed nor finished
// and whose every dependency is completed, in definition order. The
// finished set must contain every step with a terminal per-step outcome
// (completed or failed).
func (d *Definition) ReadySteps(completed, finished map[string]struct{}) []*Step {
	var ready []*Step
	for i := range d.Steps {
		s := &d.Steps[i]
		if _, done := finished[s.ID]; done {
			continue
		}
		ok := true
		for _, dep := range s.DependsOn {
			if _, dc := completed[dep]; !dc {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, s)
		}
	}
	return ready
}
