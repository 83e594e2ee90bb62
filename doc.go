// Package toolflow provides a small, embeddable workflow interpreter for Go.
//
// A workflow is a graph of steps sharing one FlowContext. Steps call tools,
// branch on conditions, fan out over children and loop, and they pass data
// to each other through ${...} references and the context. Toolflow runs
// fully in-process; run history can optionally be written to SQLite,
// Postgres, Redis or MongoDB.
//
// # Core Concepts
//
//  1. Workflow and Step
//  2. Tool and Registry
//  3. FlowContext
//  4. Runner
//  5. Builder
//
// # Steps
//
// There are four step types:
//
//   - ToolStep invokes a tool from the Registry with resolved parameters
//     and records its result. OutputKey also stores the result in the
//     shared context.
//   - ConditionStep evaluates a predicate or CEL expression and continues
//     with OnTrue or OnFalse. A branch names at most one step.
//   - ParallelStep runs its children, each followed by the tool steps it
//     routes to, and merges their writes in listed order.
//   - LoopStep runs its children repeatedly while its predicate holds, at
//     most MaxIterations times.
//
// Every step may route failures to OnError, or end the run quietly with
// ContinueOnError.
//
// # Templates and expressions
//
// Tool parameters may reference the context and earlier results:
//
//	"${context.city}"          shared value
//	"${sum.result}"            result of step "sum"
//	"total: ${context.total}"  embedded references render as text
//
// A parameter that is exactly one reference keeps the referenced value's
// type. Unresolved references become nil (whole) or "" (embedded).
//
// Conditions and loops use CEL over two variables, context and
// step_results:
//
//	context.sum_result == 42 && step_results.sum.error == null
//
// An expression that fails to compile or evaluate is false.
//
// # Errors
//
// Malformed workflows fail before any step runs with a *ConfigError
// (errors.Is against ErrMultipleNextSteps, ErrUnsupportedNesting and the
// other sentinels). A cycle fails with ErrCycleDetected when a step is
// about to run a second time. A tool failure nobody handles ends the run
// with a *ToolError; a missing tool is always fatal.
//
// # Runner
//
// Runner wraps the interpreter with run ids, slog logging, an optional
// in-memory execution log and an optional run history:
//
//	history, _ := toolflow.OpenHistory(ctx, "sqlite", "runs.db")
//	defer history.Close()
//
//	runner := toolflow.NewRunner(toolflow.RunnerConfig{
//	    Store:  history.Runs,
//	    Events: history.Events,
//	})
//	fctx, err := runner.Run(ctx, wf, tools, toolflow.NewFlowContext(input))
//
// Workflows can also be loaded from YAML, TOML or JSON with package
// pkg/definition, and run from the command line with cmd/toolflow.
//
// For examples, see the /examples directory.
package toolflow
