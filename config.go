package cascade

import "time"

// RollbackOrder selects how the rollback coordinator orders compensating
// actions across completed steps.
type RollbackOrder string

const (
	// RollbackDefinitionOrder compensates completed steps in the reverse
	// of their position in the workflow's step list.
	RollbackDefinitionOrder RollbackOrder = "definition"

	// RollbackCompletionOrder compensates completed steps in the reverse
	// of their actual completion time. Under parallel batches this can
	// differ from definition order.
	RollbackCompletionOrder RollbackOrder = "completion"
)

// Config holds engine-wide execution settings.
type Config struct {
	// MaxBatchConcurrency caps how many steps of one parallel batch run
	// concurrently. Zero or negative means unbounded.
	MaxBatchConcurrency int

	// StepTimeout is the default per-step deadline. A step's own Timeout
	// overrides it. Zero means no deadline.
	StepTimeout time.Duration

	// RollbackOrder selects the compensation ordering policy.
	RollbackOrder RollbackOrder

	// RollbackOnCancel runs compensations for completed steps when an
	// execution is cancelled. When false (the default), a cancelled
	// execution ends in StatusPartiallyCompleted and any external state
	// it created is left for manual inspection.
	RollbackOnCancel bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxBatchConcurrency: 8,
		StepTimeout:         0,
		RollbackOrder:       RollbackDefinitionOrder,
		RollbackOnCancel:    false,
	}
}
