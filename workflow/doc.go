// Package workflow defines the data model of the orchestration engine:
// workflow definitions and their step graphs, parameter schemas and
// validation, per-execution contexts, execution and step-run records with
// their state machines, the definition registry, and the execution store
// contract.
//
// This package is deliberately free of scheduling logic. A Definition is a
// pure, declarative description — step ids, dependency edges, and flags —
// that can be validated, listed, and loaded from YAML without executing
// anything. Handlers are either attached directly to steps or referenced
// by name and resolved through a HandlerRegistry at registration time.
// The sched package consumes these types to drive executions.
package workflow
