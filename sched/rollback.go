package sched

import (
	"context"
	"log/slog"
	"sort"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/workflow"
)

// Rollback runs compensating handlers for the completed steps of a
// failed or cancelled execution. Compensation is best-effort: a failing
// handler is recorded on its step and the pass continues with the
// remaining candidates.
type Rollback struct {
	emitter workflow.StepEmitter
	order   cascade.RollbackOrder
	logger  *slog.Logger
}

// NewRollback creates a rollback coordinator with the given ordering
// policy.
func NewRollback(emitter workflow.StepEmitter, order cascade.RollbackOrder, logger *slog.Logger) *Rollback {
	return &Rollback{
		emitter: emitter,
		order:   order,
		logger:  logger,
	}
}

// candidate pairs a completed step with its run record.
type candidate struct {
	step *workflow.Step
	rec  *workflow.StepExecution
	idx  int
}

// candidates returns the completed steps that declare a compensating
// handler, ordered so that iterating runs the most recent work first.
//
// Under RollbackDefinitionOrder the list is the reverse of definition
// order. Under RollbackCompletionOrder it is ordered by completion time
// descending, falling back to definition order for equal timestamps.
func (r *Rollback) candidates(def *workflow.Definition, exec *workflow.Execution) []candidate {
	var out []candidate
	for i := range def.Steps {
		st := &def.Steps[i]
		if st.Rollback == nil {
			continue
		}
		rec, ok := exec.StepRecord(st.ID)
		if !ok || rec.Status != workflow.StepCompleted {
			continue
		}
		out = append(out, candidate{step: st, rec: rec, idx: i})
	}

	switch r.order {
	case cascade.RollbackCompletionOrder:
		sort.SliceStable(out, func(a, b int) bool {
			ca, cb := out[a].rec.CompletedAt, out[b].rec.CompletedAt
			if ca != nil && cb != nil && !ca.Equal(*cb) {
				return ca.After(*cb)
			}
			return out[a].idx > out[b].idx
		})
	default:
		sort.SliceStable(out, func(a, b int) bool {
			return out[a].idx > out[b].idx
		})
	}
	return out
}

// HasCandidates reports whether any completed step has a compensating
// handler.
func (r *Rollback) HasCandidates(def *workflow.Definition, exec *workflow.Execution) bool {
	return len(r.candidates(def, exec)) > 0
}

// Run compensates the completed steps and returns the number of
// compensations that failed. A failed compensation keeps its step at
// StepCompleted with RollbackError set; only a successful one moves the
// step to StepRolledBack.
func (r *Rollback) Run(ctx context.Context, def *workflow.Definition, exec *workflow.Execution, wf *workflow.Context) int {
	failures := 0
	for _, c := range r.candidates(def, exec) {
		err := c.step.Rollback(ctx, wf)
		if err != nil {
			failures++
			c.rec.RollbackError = err.Error()
			r.logger.Error("step compensation failed",
				slog.String("execution_id", exec.ID.String()),
				slog.String("step_id", c.step.ID),
				slog.String("error", err.Error()),
			)
		} else {
			c.rec.Status = workflow.StepRolledBack
			r.logger.Info("step rolled back",
				slog.String("execution_id", exec.ID.String()),
				slog.String("step_id", c.step.ID),
			)
		}
		r.emitter.EmitStepRolledBack(ctx, exec, c.step.ID, err)
	}
	return failures
}
