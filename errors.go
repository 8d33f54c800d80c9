package cascade

import "errors"

var (
	// Registry errors.
	ErrDuplicateWorkflow = errors.New("cascade: workflow already registered")
	ErrWorkflowNotFound  = errors.New("cascade: workflow not found")
	ErrInvalidStepGraph  = errors.New("cascade: invalid step graph")
	ErrUnknownHandler    = errors.New("cascade: unknown handler reference")

	// Execution errors.
	ErrExecutionNotFound = errors.New("cascade: execution not found")
	ErrExecutionExists   = errors.New("cascade: execution already exists")
	ErrNotCancellable    = errors.New("cascade: execution is not cancellable")
	ErrUnresolvableGraph = errors.New("cascade: no runnable steps remain")

	// State errors.
	ErrInvalidState        = errors.New("cascade: invalid state transition")
	ErrMaxAttemptsExceeded = errors.New("cascade: max attempts exceeded")
	ErrResultExists        = errors.New("cascade: step result already recorded")

	// Store errors.
	ErrNoStore = errors.New("cascade: no store configured")
)
