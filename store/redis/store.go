// Package redis implements the execution store on Redis so that
// execution history is shared across processes and survives restarts.
// Each execution is stored as a JSON blob with a Set index for
// enumeration; filtering and sorting happen client-side.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/seqra/cascade"
	"github.com/seqra/cascade/id"
	"github.com/seqra/cascade/workflow"
)

var _ workflow.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements workflow.Store backed by Redis.
type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis
// client lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op — the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// CreateExecution persists a new execution record.
func (s *Store) CreateExecution(ctx context.Context, e *workflow.Execution) error {
	eID := e.ID.String()
	key := execKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: create execution exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", cascade.ErrExecutionExists, eID)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cascade/redis: marshal execution: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, execIDsKey, eID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cascade/redis: create execution: %w", err)
	}
	return nil
}

// GetExecution retrieves an execution by id.
func (s *Store) GetExecution(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	data, err := s.client.Get(ctx, execKey(execID.String())).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, execID)
	}
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: get execution: %w", err)
	}

	var e workflow.Execution
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("cascade/redis: unmarshal execution: %w", err)
	}
	return &e, nil
}

// UpdateExecution persists changes to an existing execution.
func (s *Store) UpdateExecution(ctx context.Context, e *workflow.Execution) error {
	eID := e.ID.String()
	key := execKey(eID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("cascade/redis: update execution exists: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", cascade.ErrExecutionNotFound, eID)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cascade/redis: marshal execution: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("cascade/redis: update execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions matching the filter, sorted by
// start time descending. Records that disappear or fail to decode
// mid-enumeration are skipped.
func (s *Store) ListExecutions(ctx context.Context, filter workflow.ListFilter) ([]*workflow.Execution, error) {
	ids, err := s.client.SMembers(ctx, execIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("cascade/redis: list executions smembers: %w", err)
	}

	var execs []*workflow.Execution
	for _, eID := range ids {
		data, getErr := s.client.Get(ctx, execKey(eID)).Bytes()
		if getErr != nil {
			continue
		}
		var e workflow.Execution
		if decErr := json.Unmarshal(data, &e); decErr != nil {
			s.logger.Warn("skipping undecodable execution",
				slog.String("execution_id", eID),
				slog.String("error", decErr.Error()),
			)
			continue
		}
		if filter.Matches(&e) {
			execs = append(execs, &e)
		}
	}

	sort.Slice(execs, func(i, k int) bool {
		if !execs[i].StartedAt.Equal(execs[k].StartedAt) {
			return execs[i].StartedAt.After(execs[k].StartedAt)
		}
		return execs[i].ID.String() > execs[k].ID.String()
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(execs) {
			return nil, nil
		}
		execs = execs[filter.Offset:]
	}
	if filter.Limit > 0 && len(execs) > filter.Limit {
		execs = execs[:filter.Limit]
	}
	return execs, nil
}
