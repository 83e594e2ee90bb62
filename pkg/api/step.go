package api

import (
	"fmt"
	"maps"

	"github.com/petrijr/toolflow/internal/expr"
	"github.com/petrijr/toolflow/internal/template"
)

// StepType discriminates the step variants.
type StepType string

const (
	StepTool      StepType = "tool"
	StepCondition StepType = "condition"
	StepParallel  StepType = "parallel"
	StepLoop      StepType = "loop"
)

// DefaultMaxIterations caps a LoopStep whose MaxIterations is zero.
const DefaultMaxIterations = 10

// ParseStepType accepts the lower-case type names used in workflow documents.
func ParseStepType(s string) (StepType, error) {
	switch t := StepType(s); t {
	case StepTool, StepCondition, StepParallel, StepLoop:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStepType, s)
	}
}

// StepInfo holds the fields shared by every step variant.
type StepInfo struct {
	ID          string
	Name        string
	Description string

	// OnError names the step to continue with when this step fails.
	OnError string
	// ContinueOnError ends the traversal normally on failure when OnError is
	// empty. Without either, a failure aborts the run.
	ContinueOnError bool
}

// Info returns the shared step fields.
func (s StepInfo) Info() StepInfo { return s }

// Step is one of *ToolStep, *ConditionStep, *ParallelStep or *LoopStep.
type Step interface {
	Info() StepInfo
	Type() StepType
	isStep()
}

// Predicate decides a condition or loop continuation. A panicking predicate
// evaluates to false.
type Predicate func(Snapshot) bool

// ToolStep invokes a tool from the registry.
type ToolStep struct {
	StepInfo
	ToolName string
	// ToolParams values may contain ${...} references.
	ToolParams map[string]any
	// OutputKey, when set, also stores the result in the shared data.
	OutputKey string
}

// ConditionStep selects the next step. Condition wins over Expression when
// both are set.
type ConditionStep struct {
	StepInfo
	Condition  Predicate
	Expression string
	OnTrue     []string
	OnFalse    []string
}

// ParallelStep runs its children as one fan-out group.
type ParallelStep struct {
	StepInfo
	Steps []string
}

// LoopStep runs its children while the predicate holds, at most
// MaxIterations times. Without a predicate the body never runs.
type LoopStep struct {
	StepInfo
	Steps         []string
	Condition     Predicate
	Expression    string
	MaxIterations int
}

func (*ToolStep) Type() StepType      { return StepTool }
func (*ConditionStep) Type() StepType { return StepCondition }
func (*ParallelStep) Type() StepType  { return StepParallel }
func (*LoopStep) Type() StepType      { return StepLoop }

func (*ToolStep) isStep()      {}
func (*ConditionStep) isStep() {}
func (*ParallelStep) isStep()  {}
func (*LoopStep) isStep()      {}

// ResolveParams returns ToolParams with every template reference resolved
// against snap. ToolParams itself is not modified.
func (s *ToolStep) ResolveParams(snap Snapshot) map[string]any {
	return template.Resolve(s.ToolParams, snap.Scope())
}

// Evaluate decides the condition. Evaluation failures yield false.
func (s *ConditionStep) Evaluate(snap Snapshot) bool {
	return evaluate(s.Condition, s.Expression, snap)
}

// HasPredicate reports whether a condition or expression is configured.
func (s *ConditionStep) HasPredicate() bool {
	return s.Condition != nil || s.Expression != ""
}

// Next returns the branch selected by result.
func (s *ConditionStep) Next(result bool) []string {
	if result {
		return s.OnTrue
	}
	return s.OnFalse
}

// HasPredicate reports whether a condition or expression is configured.
func (s *LoopStep) HasPredicate() bool {
	return s.Condition != nil || s.Expression != ""
}

// ShouldContinue evaluates the continuation predicate. A loop without one
// never runs.
func (s *LoopStep) ShouldContinue(snap Snapshot) bool {
	if !s.HasPredicate() {
		return false
	}
	return evaluate(s.Condition, s.Expression, snap)
}

// Limit returns the effective iteration cap.
func (s *LoopStep) Limit() int {
	if s.MaxIterations == 0 {
		return DefaultMaxIterations
	}
	return s.MaxIterations
}

func evaluate(p Predicate, expression string, snap Snapshot) (ok bool) {
	if p != nil {
		defer func() {
			if recover() != nil {
				ok = false
			}
		}()
		return p(snap)
	}
	if expression == "" {
		return false
	}
	return expr.Default().Bool(expression, snap.Vars())
}

// Snapshot is a read-only view of a FlowContext handed to predicates and
// template resolution. Its maps are shallow copies.
type Snapshot struct {
	Context     map[string]any
	StepResults map[string]StepResult
}

// Scope converts the snapshot into template resolution input.
func (s Snapshot) Scope() template.Scope {
	return template.Scope{Context: s.Context, Steps: s.entries()}
}

// Vars converts the snapshot into expression variables.
func (s Snapshot) Vars() map[string]any {
	ctx := s.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{
		expr.VarContext:     ctx,
		expr.VarStepResults: s.entries(),
	}
}

func (s Snapshot) entries() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.StepResults))
	for id, r := range s.StepResults {
		out[id] = r.Entry()
	}
	return out
}

// StepResult is the ledger entry written for a step execution. An empty
// Error means the step succeeded.
type StepResult struct {
	Result any
	Error  string
}

// Failed reports whether the entry records a failure.
func (r StepResult) Failed() bool { return r.Error != "" }

// Entry returns the {"result", "error"} map view used by templates and
// expressions. A successful step has a nil error.
func (r StepResult) Entry() map[string]any {
	var errVal any
	if r.Error != "" {
		errVal = r.Error
	}
	return map[string]any{"result": r.Result, "error": errVal}
}

func cloneResults(m map[string]StepResult) map[string]StepResult {
	if m == nil {
		return map[string]StepResult{}
	}
	return maps.Clone(m)
}
