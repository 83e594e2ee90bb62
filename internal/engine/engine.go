package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/petrijr/toolflow/pkg/api"
)

// Config describes how to construct an Engine.
type Config struct {
	Observer api.Observer

	// Concurrency bounds how many children of a parallel step run at once.
	// Values <= 1 run them sequentially in listed order.
	Concurrency int
}

// Engine interprets workflows. It holds no per-run state and is safe for
// concurrent use as long as every run gets its own FlowContext.
type Engine struct {
	observer    api.Observer
	concurrency int
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	return &Engine{observer: obs, concurrency: cfg.Concurrency}
}

// Run executes wf from its start step. A nil fctx starts from an empty
// context; otherwise fctx is mutated in place and returned.
func (e *Engine) Run(ctx context.Context, wf *api.Workflow, tools api.Registry, fctx *api.FlowContext) (*api.FlowContext, error) {
	if wf == nil {
		return nil, errors.New("toolflow: nil workflow")
	}
	run := &api.RunInfo{
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		StartedAt:    time.Now().UTC(),
	}
	return e.Execute(ctx, run, wf, tools, fctx)
}

// Execute is Run with caller-supplied run identity, which is handed to the
// observer with every event.
func (e *Engine) Execute(ctx context.Context, run *api.RunInfo, wf *api.Workflow, tools api.Registry, fctx *api.FlowContext) (*api.FlowContext, error) {
	if wf == nil {
		return nil, errors.New("toolflow: nil workflow")
	}
	if fctx == nil {
		fctx = api.NewFlowContext(nil)
	}

	e.observer.OnWorkflowStart(ctx, run)

	if err := wf.Validate(); err != nil {
		err = fmt.Errorf("workflow %q: %w", wf.ID, err)
		e.observer.OnWorkflowFailed(ctx, run, err)
		return nil, err
	}

	x := &execution{Engine: e, run: run, wf: wf, tools: tools}
	if err := x.traverse(ctx, fctx); err != nil {
		e.observer.OnWorkflowFailed(ctx, run, err)
		return nil, err
	}

	e.observer.OnWorkflowCompleted(ctx, run, fctx)
	return fctx, nil
}

// execution carries the per-run collaborators through the handlers.
type execution struct {
	*Engine
	run   *api.RunInfo
	wf    *api.Workflow
	tools api.Registry
}

// outcome is what a step handler hands back to the traversal.
type outcome struct {
	next string
	// failure is the step's own error, reported to observers even when it
	// was routed through OnError or swallowed.
	failure error
}

// traverse walks the step graph from the start step until a handler yields
// no next step.
func (x *execution) traverse(ctx context.Context, fctx *api.FlowContext) error {
	var visited []string
	seen := make(map[string]bool)

	for current := x.wf.StartStepID; current != ""; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before step %q: %w", current, err)
		}
		if seen[current] {
			return cycleError(current, visited)
		}
		seen[current] = true
		visited = append(visited, current)

		step, err := x.wf.Step(current)
		if err != nil {
			return err
		}
		out, err := x.execStep(ctx, fctx, step)
		if err != nil {
			return err
		}
		current = out.next
	}
	return nil
}

func (x *execution) execStep(ctx context.Context, fctx *api.FlowContext, step api.Step) (outcome, error) {
	start := time.Now()
	x.observer.OnStepStart(ctx, x.run, step)

	var (
		out outcome
		err error
	)
	switch st := step.(type) {
	case *api.ToolStep:
		out, err = x.runTool(ctx, fctx, st)
	case *api.ConditionStep:
		out, err = x.runCondition(fctx, st)
	case *api.ParallelStep:
		out, err = x.runParallel(ctx, fctx, st)
	case *api.LoopStep:
		out, err = x.runLoop(ctx, fctx, st)
	default:
		err = api.NewConfigError(step.Info().ID, "type", api.ErrUnsupportedStepType, fmt.Sprintf("%T", step))
	}

	failure := out.failure
	if err != nil {
		failure = err
	}
	x.observer.OnStepCompleted(ctx, x.run, step, failure, time.Since(start))
	return out, err
}

func cycleError(stepID string, visited []string) error {
	path := strings.Join(append(visited, stepID), " -> ")
	return api.NewConfigError(stepID, "", api.ErrCycleDetected, "path "+path+"; use a loop step for intentional repetition")
}
