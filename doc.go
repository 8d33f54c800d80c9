// Package cascade is a workflow orchestration engine for driving stateful
// external systems through named, parameter-driven sequences of
// interdependent steps.
//
// Cascade is a library, not a service. The hosting application constructs
// an engine, registers workflow definitions (a dependency graph of steps
// plus a parameter schema), and starts executions by name:
//
//	eng, err := engine.New(
//		engine.WithLogger(logger),
//		engine.WithTarget(apiClient),
//	)
//
//	err := eng.RegisterWorkflow(&workflow.Definition{
//		Name:     "provision-endpoint",
//		Category: "delivery",
//		Steps: []workflow.Step{
//			{ID: "create-config", Handler: createConfig, Rollback: deleteConfig},
//			{ID: "attach-cert", DependsOn: []string{"create-config"}, Handler: attachCert},
//		},
//	})
//
//	exec, err := eng.StartWorkflow(ctx, "provision-endpoint", map[string]any{
//		"domain": "www.example.com",
//	})
//
// The scheduler repeatedly computes the batch of steps whose dependencies
// are satisfied, fans the batch out concurrently (bounded by
// Config.MaxBatchConcurrency), and waits for the whole batch to drain
// before acting on any failure. Each step runs with per-step retry and
// backoff. When a required step fails terminally, completed steps that
// declare a rollback handler are compensated in reverse order and the
// execution ends in StatusRolledBack.
//
// Subsystem packages:
//
//   - workflow: definitions, step graphs, parameter validation, execution
//     records, the definition registry, and the execution store contract
//   - sched: the scheduling loop, per-step executor, rollback coordinator,
//     and the execution registry (start/get/list/cancel)
//   - engine: the facade that wires everything together
//   - backoff: pluggable retry delay strategies
//   - middleware: composable per-step middleware (logging, recover,
//     timeout, metrics, tracing)
//   - hook: lifecycle hook registration for observability sinks
//   - observability: OpenTelemetry metrics hook extension
//   - audit: audit-trail hook extension
//   - store/memory, store/redis: execution store implementations
//
// Executions are tracked in-process by default; the engine itself makes no
// durability or exactly-once promises. Step handlers are invoked with
// at-least-once semantics and must tolerate re-invocation on retry.
package cascade
