// Package memory provides a fully in-memory execution store. Safe for
// concurrent access. Intended for unit testing, development, and
// single-process deployments that don't need executions to survive a
// restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/id"
	"github.com/seqra/cascade/workflow"
)

var _ workflow.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithTTL evicts terminal executions once they have been finished for
// at least ttl. Zero (the default) retains executions forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// Store is an in-memory workflow.Store.
type Store struct {
	mu    sync.RWMutex
	execs map[string]*workflow.Execution
	ttl   time.Duration
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{execs: make(map[string]*workflow.Execution)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// CreateExecution persists a new execution record.
func (s *Store) CreateExecution(_ context.Context, e *workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(time.Now().UTC())

	key := e.ID.String()
	if _, exists := s.execs[key]; exists {
		return fmt.Errorf("%w: %s", cascade.ErrExecutionExists, key)
	}
	s.execs[key] = e.Clone()
	return nil
}

// GetExecution retrieves an execution by id.
func (s *Store) GetExecution(_ context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.execs[execID.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, execID)
	}
	return e.Clone(), nil
}

// UpdateExecution persists changes to an existing execution.
func (s *Store) UpdateExecution(_ context.Context, e *workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(time.Now().UTC())

	key := e.ID.String()
	if _, ok := s.execs[key]; !ok {
		return fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, key)
	}
	s.execs[key] = e.Clone()
	return nil
}

// ListExecutions returns executions matching the filter, sorted by
// start time descending.
func (s *Store) ListExecutions(_ context.Context, filter workflow.ListFilter) ([]*workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*workflow.Execution, 0, len(s.execs))
	for _, e := range s.execs {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, k int) bool {
		if !matched[i].StartedAt.Equal(matched[k].StartedAt) {
			return matched[i].StartedAt.After(matched[k].StartedAt)
		}
		return matched[i].ID.String() > matched[k].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	out := make([]*workflow.Execution, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	return out, nil
}

// sweep evicts terminal executions past their TTL. Callers hold the
// write lock.
func (s *Store) sweep(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for key, e := range s.execs {
		if !e.Status.Terminal() || e.CompletedAt == nil {
			continue
		}
		if now.Sub(*e.CompletedAt) >= s.ttl {
			delete(s.execs, key)
		}
	}
}
