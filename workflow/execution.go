package workflow

import (
	"fmt"
	"time"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/id"
)

// Status is the lifecycle state of a workflow execution.
type Status string

// Execution states.
const (
	// StatusPending means the execution record exists but scheduling has
	// not begun.
	StatusPending Status = "pending"
	// StatusRunning means the scheduler is dispatching batches.
	StatusRunning Status = "running"
	// StatusCompleted means every required step completed. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means a required step failed terminally (or the graph
	// became unresolvable). Followed by StatusRollingBack when any
	// completed step declares a rollback handler; otherwise terminal.
	StatusFailed Status = "failed"
	// StatusRollingBack means compensations are running.
	StatusRollingBack Status = "rolling_back"
	// StatusRolledBack means compensation finished (best-effort). Terminal.
	StatusRolledBack Status = "rolled_back"
	// StatusPartiallyCompleted means the execution was cancelled while
	// running; completed work is left in place. Terminal.
	StatusPartiallyCompleted Status = "partially_completed"
)

// validTransitions is the execution state machine. A transition not
// listed here is a programming error surfaced as ErrInvalidState.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusRunning},
	StatusRunning:     {StatusCompleted, StatusFailed, StatusPartiallyCompleted, StatusRollingBack},
	StatusFailed:      {StatusRollingBack},
	StatusRollingBack: {StatusRolledBack},
}

// Terminal reports whether the status is final. A terminal execution
// never returns to a non-terminal status, with the single modeled
// exception of StatusFailed proceeding into rollback.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRolledBack, StatusPartiallyCompleted:
		return true
	default:
		return false
	}
}

// StepStatus is the lifecycle state of one step run.
type StepStatus string

// Step states.
const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
)

// StepExecution records one step's run within an execution.
type StepExecution struct {
	ID          id.StepRunID    `json:"id"`
	ExecutionID id.ExecutionID  `json:"execution_id"`
	StepID      string          `json:"step_id"`
	Status      StepStatus      `json:"status"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	// RollbackError records a failed compensation. The step keeps
	// StepCompleted status in that case; only a successful compensation
	// moves it to StepRolledBack.
	RollbackError string `json:"rollback_error,omitempty"`
	RetryCount    int    `json:"retry_count"`
}

// MarkRunning transitions the record to StepRunning and stamps the start
// time.
func (se *StepExecution) MarkRunning(now time.Time) {
	se.Status = StepRunning
	se.StartedAt = &now
}

// MarkCompleted transitions the record to StepCompleted with its result.
func (se *StepExecution) MarkCompleted(now time.Time, result any) {
	se.Status = StepCompleted
	se.CompletedAt = &now
	se.Result = result
}

// MarkFailed transitions the record to StepFailed with the final error.
func (se *StepExecution) MarkFailed(now time.Time, err error) {
	se.Status = StepFailed
	se.CompletedAt = &now
	se.Error = err.Error()
}

// Execution is one concrete run of a workflow. It is created by the
// runner, mutated in place by the scheduler and executor, and retained in
// the execution store.
type Execution struct {
	ID           id.ExecutionID `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	Status       Status         `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	Params       map[string]any `json:"params,omitempty"`

	// Steps holds one record per definition step, in definition order.
	Steps []*StepExecution `json:"steps"`

	// CurrentStepID is the id of the sequential step currently being
	// dispatched, empty during parallel fan-out and between batches.
	CurrentStepID string `json:"current_step_id,omitempty"`

	// Error is the top-level failure message.
	Error string `json:"error,omitempty"`

	// Metadata copied from the definition.
	Category          string        `json:"category,omitempty"`
	Tags              []string      `json:"tags,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`
}

// NewExecution creates the execution record for a definition with bound
// parameters, with one pending StepExecution per step.
func NewExecution(def *Definition, params map[string]any, now time.Time) *Execution {
	execID := id.NewExecutionID()
	steps := make([]*StepExecution, 0, len(def.Steps))
	for i := range def.Steps {
		steps = append(steps, &StepExecution{
			ID:          id.NewStepRunID(),
			ExecutionID: execID,
			StepID:      def.Steps[i].ID,
			Status:      StepPending,
		})
	}

	return &Execution{
		ID:                execID,
		WorkflowName:      def.Name,
		Status:            StatusPending,
		StartedAt:         now,
		Params:            params,
		Steps:             steps,
		Category:          def.Category,
		Tags:              append([]string(nil), def.Tags...),
		EstimatedDuration: def.EstimatedDuration,
	}
}

// StepRecord returns the run record for a step id.
func (e *Execution) StepRecord(stepID string) (*StepExecution, bool) {
	for _, se := range e.Steps {
		if se.StepID == stepID {
			return se, true
		}
	}
	return nil, false
}

// Transition moves the execution to a new status, enforcing the state
// machine. The caller owns timestamps and error fields.
func (e *Execution) Transition(to Status) error {
	for _, allowed := range validTransitions[e.Status] {
		if allowed == to {
			e.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", cascade.ErrInvalidState, e.Status, to)
}

// Clone returns a deep copy safe to hand to callers while the scheduler
// keeps mutating the original.
func (e *Execution) Clone() *Execution {
	out := *e
	out.Steps = make([]*StepExecution, len(e.Steps))
	for i, se := range e.Steps {
		cp := *se
		out.Steps[i] = &cp
	}
	if e.Params != nil {
		out.Params = make(map[string]any, len(e.Params))
		for k, v := range e.Params {
			out.Params[k] = v
		}
	}
	out.Tags = append([]string(nil), e.Tags...)
	return &out
}
