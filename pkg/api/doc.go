// Package api contains the core building blocks used by the toolflow engine:
// steps, the shared run context, workflow definitions, tools and observers.
//
// Most users interact with the higher-level toolflow package, which
// re-exports these types and adds the Builder and Runner. The api package is
// intended for custom integrations such as new tools, observers or history
// stores.
//
// # Steps
//
// A Step is one of four variants, each a pointer type embedding StepInfo:
//
//   - *ToolStep invokes a Tool from a Registry with templated parameters.
//   - *ConditionStep picks the OnTrue or OnFalse branch.
//   - *ParallelStep runs a group of children and merges their writes in
//     listed order.
//   - *LoopStep repeats its children while a predicate holds, up to
//     MaxIterations.
//
// Conditions and loops take either a Go Predicate or a CEL expression over
// the variables context and step_results.
//
// # Templates
//
// Tool parameter strings may reference the run state:
//
//	${context.key}      a shared value
//	${step_id.result}   a step's result
//	${step_id.error}    a step's error message, or nil
//
// A string that is exactly one reference resolves to the raw value; a
// reference inside a longer string is interpolated. Unknown references
// resolve to nil or the empty string.
//
// # Context
//
// FlowContext holds the shared data, one StepResult per executed step, the
// last leaf step and its result, and the execution trace. The engine writes
// it through Set, Record and Visit; Fork and Merge give parallel children
// isolated branches.
//
// # Errors
//
// Configuration problems are reported as *ConfigError wrapping one of the
// Err* sentinels and are never routed through a step's OnError. A tool
// failure that no OnError or ContinueOnError handles aborts the run with a
// *ToolError.
//
// # Observability
//
// Observer receives workflow and step lifecycle callbacks. LoggingObserver,
// BasicMetrics and ExecutionLog are ready-made implementations;
// NewCompositeObserver combines several.
package api
