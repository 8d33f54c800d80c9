package audit

// Audit event actions. Each constant corresponds to one hook lifecycle
// event and becomes the Action field of the audit event.
const (
	ActionExecutionStarted   = "execution.started"
	ActionExecutionCompleted = "execution.completed"
	ActionExecutionFailed    = "execution.failed"
	ActionExecutionCancelled = "execution.cancelled"
	ActionRollbackStarted    = "rollback.started"
	ActionRollbackFinished   = "rollback.finished"
	ActionStepCompleted      = "step.completed"
	ActionStepFailed         = "step.failed"
	ActionStepRetrying       = "step.retrying"
	ActionStepRolledBack     = "step.rolled_back"
)

// Audit event categories group related actions.
const (
	CategoryExecution = "cascade.execution"
	CategoryRollback  = "cascade.rollback"
	CategoryStep      = "cascade.step"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceExecution = "execution"
	ResourceStep      = "step_run"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionExecutionStarted,
		ActionExecutionCompleted,
		ActionExecutionFailed,
		ActionExecutionCancelled,
		ActionRollbackStarted,
		ActionRollbackFinished,
		ActionStepCompleted,
		ActionStepFailed,
		ActionStepRetrying,
		ActionStepRolledBack,
	}
}
