package workflow

import (
	"context"
	"time"

	"github.com/seqra/cascade/id"
)

// ListFilter narrows ListExecutions results. Zero-value fields match
// everything.
type ListFilter struct {
	// Status filters by execution status.
	Status Status
	// WorkflowName filters by the workflow the execution belongs to.
	WorkflowName string
	// Since excludes executions started before it.
	Since time.Time
	// Until excludes executions started after it.
	Until time.Time
	// Limit caps the number of results. Zero means no limit.
	Limit int
	// Offset skips results after sorting.
	Offset int
}

// Matches reports whether an execution passes the filter.
func (f ListFilter) Matches(e *Execution) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.WorkflowName != "" && e.WorkflowName != f.WorkflowName {
		return false
	}
	if !f.Since.IsZero() && e.StartedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.StartedAt.After(f.Until) {
		return false
	}
	return true
}

// Store is the persistence contract for executions. The engine drives
// executions entirely in memory; a Store is a sink for tracking and
// listing them, not a replay source.
type Store interface {
	// CreateExecution persists a new execution record.
	CreateExecution(ctx context.Context, e *Execution) error

	// GetExecution retrieves an execution by id.
	GetExecution(ctx context.Context, execID id.ExecutionID) (*Execution, error)

	// UpdateExecution persists changes to an existing execution.
	UpdateExecution(ctx context.Context, e *Execution) error

	// ListExecutions returns executions matching the filter, sorted by
	// start time descending.
	ListExecutions(ctx context.Context, filter ListFilter) ([]*Execution, error)
}
