package toolflow

import (
	"context"

	"github.com/petrijr/toolflow/internal/engine"
	"github.com/petrijr/toolflow/internal/persistence"
	"github.com/petrijr/toolflow/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Workflow      = api.Workflow
	Step          = api.Step
	StepInfo      = api.StepInfo
	StepType      = api.StepType
	ToolStep      = api.ToolStep
	ConditionStep = api.ConditionStep
	ParallelStep  = api.ParallelStep
	LoopStep      = api.LoopStep
	Predicate     = api.Predicate
	Snapshot      = api.Snapshot
	StepResult    = api.StepResult
	FlowContext   = api.FlowContext

	Tool       = api.Tool
	ToolSchema = api.ToolSchema
	ToolFunc   = api.ToolFunc
	Registry   = api.Registry

	ConfigError = api.ConfigError
	ToolError   = api.ToolError

	RunInfo              = api.RunInfo
	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
	ExecutionLog         = api.ExecutionLog
	LogEntry             = api.LogEntry
	WorkflowEvent        = api.WorkflowEvent
)

// Run history types.

type (
	RunRecord   = persistence.RunRecord
	RunFilter   = persistence.RunFilter
	RunStatus   = persistence.RunStatus
	RunStore    = persistence.RunStore
	EventStore  = persistence.EventStore
	History     = persistence.Persistence
	HistoryKind = persistence.Backend
)

// Step types.

const (
	StepTool      = api.StepTool
	StepCondition = api.StepCondition
	StepParallel  = api.StepParallel
	StepLoop      = api.StepLoop
)

// Run statuses.

const (
	RunCompleted = persistence.RunCompleted
	RunFailed    = persistence.RunFailed
)

// Re-export common constructors and sentinel errors.

var (
	NewWorkflow          = api.NewWorkflow
	NewFlowContext       = api.NewFlowContext
	NewRegistry          = api.NewRegistry
	MustRegistry         = api.MustRegistry
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	// OpenHistory connects to a run history backend; see persistence.Open.
	OpenHistory = persistence.Open
	// MemoryHistory returns an in-process run history.
	MemoryHistory = persistence.Memory

	ErrDuplicateStep       = api.ErrDuplicateStep
	ErrStepNotFound        = api.ErrStepNotFound
	ErrMissingStartStep    = api.ErrMissingStartStep
	ErrUnsupportedStepType = api.ErrUnsupportedStepType
	ErrMultipleNextSteps   = api.ErrMultipleNextSteps
	ErrCycleDetected       = api.ErrCycleDetected
	ErrUnsupportedNesting  = api.ErrUnsupportedNesting
	ErrInvalidStep         = api.ErrInvalidStep
	ErrToolNotFound        = api.ErrToolNotFound
	ErrValidationFailed    = api.ErrValidationFailed
	ErrRunNotFound         = persistence.ErrRunNotFound
)

// Run executes wf once with a default engine. Nothing is logged or recorded;
// use a Runner for that.
func Run(ctx context.Context, wf *Workflow, tools Registry, fctx *FlowContext) (*FlowContext, error) {
	return engine.New(engine.Config{}).Run(ctx, wf, tools, fctx)
}
