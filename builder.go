package toolflow

import (
	"errors"
	"fmt"

	"github.com/petrijr/toolflow/pkg/api"
)

// Builder provides a fluent API for defining workflows:
//
//	wf, err := toolflow.New("calc-weather").
//	    Parallel("flow", []string{"sum", "check"}).
//	    Tool("sum", "calculator", map[string]any{
//	        "operation": "add", "a": "${context.a}", "b": "${context.b}",
//	    }, toolflow.Output("sum_result")).
//	    Condition("check", "context.sum_result == 42", toolflow.OnTrue("weather")).
//	    Tool("weather", "weather", map[string]any{"location": "${context.city}"}).
//	    Build()
//
// The first step added is the start step unless Start says otherwise.
// Empty ids are programmer errors and panic; everything else is reported
// by Build.
type Builder struct {
	wf   *api.Workflow
	errs []error
}

// New creates a new workflow builder with the given id.
func New(id string) *Builder {
	if id == "" {
		panic("toolflow: workflow id must not be empty")
	}
	return &Builder{wf: api.NewWorkflow(id, id)}
}

// Named sets the human-readable workflow name. It defaults to the id.
func (b *Builder) Named(name string) *Builder {
	b.wf.Name = name
	return b
}

// Describe sets the workflow description.
func (b *Builder) Describe(description string) *Builder {
	b.wf.Description = description
	return b
}

// Meta stores a metadata entry on the workflow.
func (b *Builder) Meta(key string, value any) *Builder {
	if b.wf.Metadata == nil {
		b.wf.Metadata = map[string]any{}
	}
	b.wf.Metadata[key] = value
	return b
}

// Start sets the start step explicitly.
func (b *Builder) Start(id string) *Builder {
	b.wf.StartStepID = id
	return b
}

// StepOption sets an optional step field. Options that do not apply to a
// step's type are ignored.
type StepOption func(*stepOptions)

type stepOptions struct {
	info          api.StepInfo
	outputKey     string
	onTrue        []string
	onFalse       []string
	maxIterations int
}

// Name sets the step's display name.
func Name(name string) StepOption {
	return func(o *stepOptions) { o.info.Name = name }
}

// Description sets the step's description.
func Description(d string) StepOption {
	return func(o *stepOptions) { o.info.Description = d }
}

// OnError routes failures of the step to id.
func OnError(id string) StepOption {
	return func(o *stepOptions) { o.info.OnError = id }
}

// ContinueOnError ends the run normally when the step fails and has no
// OnError target.
func ContinueOnError() StepOption {
	return func(o *stepOptions) { o.info.ContinueOnError = true }
}

// Output also stores a tool step's result in the shared context under key.
func Output(key string) StepOption {
	return func(o *stepOptions) { o.outputKey = key }
}

// OnTrue sets a condition's true branch.
func OnTrue(ids ...string) StepOption {
	return func(o *stepOptions) { o.onTrue = ids }
}

// OnFalse sets a condition's false branch.
func OnFalse(ids ...string) StepOption {
	return func(o *stepOptions) { o.onFalse = ids }
}

// MaxIterations caps a loop. Zero means DefaultMaxIterations.
func MaxIterations(n int) StepOption {
	return func(o *stepOptions) { o.maxIterations = n }
}

func apply(id string, opts []StepOption) stepOptions {
	if id == "" {
		panic("toolflow: step id must not be empty")
	}
	o := stepOptions{info: api.StepInfo{ID: id}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Tool adds a tool step. Parameter values may contain ${...} references.
func (b *Builder) Tool(id, toolName string, params map[string]any, opts ...StepOption) *Builder {
	o := apply(id, opts)
	return b.Add(&api.ToolStep{
		StepInfo:   o.info,
		ToolName:   toolName,
		ToolParams: params,
		OutputKey:  o.outputKey,
	})
}

// Condition adds a condition step decided by a CEL expression.
func (b *Builder) Condition(id, expression string, opts ...StepOption) *Builder {
	o := apply(id, opts)
	return b.Add(&api.ConditionStep{
		StepInfo:   o.info,
		Expression: expression,
		OnTrue:     o.onTrue,
		OnFalse:    o.onFalse,
	})
}

// If adds a condition step decided by a Go predicate.
func (b *Builder) If(id string, pred Predicate, opts ...StepOption) *Builder {
	if pred == nil {
		panic(fmt.Sprintf("toolflow: step %q has nil predicate", id))
	}
	o := apply(id, opts)
	return b.Add(&api.ConditionStep{
		StepInfo:  o.info,
		Condition: pred,
		OnTrue:    o.onTrue,
		OnFalse:   o.onFalse,
	})
}

// Parallel adds a fan-out step over children. Results are merged in listed
// order whatever the runner's concurrency.
func (b *Builder) Parallel(id string, children []string, opts ...StepOption) *Builder {
	o := apply(id, opts)
	return b.Add(&api.ParallelStep{StepInfo: o.info, Steps: children})
}

// Loop adds a loop over children that continues while expression holds,
// up to its maximum number of iterations. An empty expression never runs
// the body.
func (b *Builder) Loop(id string, children []string, expression string, opts ...StepOption) *Builder {
	o := apply(id, opts)
	return b.Add(&api.LoopStep{
		StepInfo:      o.info,
		Steps:         children,
		Expression:    expression,
		MaxIterations: o.maxIterations,
	})
}

// While adds a loop over children that continues while pred holds.
func (b *Builder) While(id string, children []string, pred Predicate, opts ...StepOption) *Builder {
	if pred == nil {
		panic(fmt.Sprintf("toolflow: step %q has nil predicate", id))
	}
	o := apply(id, opts)
	return b.Add(&api.LoopStep{
		StepInfo:      o.info,
		Steps:         children,
		Condition:     pred,
		MaxIterations: o.maxIterations,
	})
}

// Add registers a prepared step.
func (b *Builder) Add(step Step) *Builder {
	if err := b.wf.AddStep(step); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Build validates and returns the workflow.
func (b *Builder) Build() (*Workflow, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}
	if err := b.wf.Validate(); err != nil {
		return nil, err
	}
	return b.wf, nil
}

// MustBuild is like Build but panics on error.
// Useful for initialization in main().
func (b *Builder) MustBuild() *Workflow {
	wf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return wf
}
