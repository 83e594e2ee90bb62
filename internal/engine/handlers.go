package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/toolflow/pkg/api"
)

func (x *execution) runTool(ctx context.Context, fctx *api.FlowContext, st *api.ToolStep) (outcome, error) {
	tool, ok := x.tools.Lookup(st.ToolName)
	if !ok {
		return outcome{}, &api.ToolError{StepID: st.ID, ToolName: st.ToolName, Err: api.ErrToolNotFound}
	}

	params := st.ResolveParams(fctx.Snapshot())
	result, err := invoke(ctx, tool, st.ID, params)
	if err == nil {
		if st.OutputKey != "" {
			fctx.Set(st.OutputKey, result)
		}
		fctx.Visit(st.ID, api.StepResult{Result: result})
		return outcome{}, nil
	}

	fctx.Visit(st.ID, api.StepResult{Error: err.Error()})
	return route(st.StepInfo, err, &api.ToolError{StepID: st.ID, ToolName: st.ToolName, Err: err})
}

// invoke validates and executes a tool. A panicking tool counts as a failed
// execution.
func invoke(ctx context.Context, tool api.Tool, stepID string, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("tool %q panicked: %v", tool.Name(), r)
		}
	}()
	if !tool.Validate(params) {
		return nil, fmt.Errorf("%w: tool %q in step %q", api.ErrValidationFailed, tool.Name(), stepID)
	}
	return tool.Execute(ctx, params)
}

// route applies a step's error wiring to a failure.
func route(info api.StepInfo, failure, fatal error) (outcome, error) {
	switch {
	case info.OnError != "":
		return outcome{next: info.OnError, failure: failure}, nil
	case info.ContinueOnError:
		return outcome{failure: failure}, nil
	default:
		return outcome{failure: failure}, fatal
	}
}

func (x *execution) runCondition(fctx *api.FlowContext, st *api.ConditionStep) (outcome, error) {
	ok := st.Evaluate(fctx.Snapshot())
	fctx.Visit(st.ID, api.StepResult{Result: ok})

	next := st.Next(ok)
	switch len(next) {
	case 0:
		return outcome{}, nil
	case 1:
		return outcome{next: next[0]}, nil
	default:
		branch := "on_false"
		if ok {
			branch = "on_true"
		}
		return outcome{}, api.NewConfigError(st.ID, branch, api.ErrMultipleNextSteps, fmt.Sprintf("%d next steps", len(next)))
	}
}

func (x *execution) runParallel(ctx context.Context, fctx *api.FlowContext, st *api.ParallelStep) (outcome, error) {
	if err := x.fanOut(ctx, fctx, st.Steps); err != nil {
		return x.compositeFailure(fctx, st.StepInfo, err)
	}
	fctx.Finish(st.ID, api.StepResult{Result: len(st.Steps)})
	return outcome{}, nil
}

func (x *execution) runLoop(ctx context.Context, fctx *api.FlowContext, st *api.LoopStep) (outcome, error) {
	if len(st.Steps) == 0 {
		fctx.Finish(st.ID, api.StepResult{Result: 0})
		return outcome{}, nil
	}
	limit := st.Limit()
	iterations := 0
	for iterations < limit && st.ShouldContinue(fctx.Snapshot()) {
		if err := ctx.Err(); err != nil {
			return outcome{}, fmt.Errorf("run cancelled in loop %q: %w", st.ID, err)
		}
		iterations++
		if err := x.sequence(ctx, fctx, st.Steps); err != nil {
			return x.compositeFailure(fctx, st.StepInfo, err)
		}
	}
	fctx.Finish(st.ID, api.StepResult{Result: iterations})
	return outcome{}, nil
}

// compositeFailure routes a tool failure that escaped a child of a parallel
// or loop step through the composite's own error wiring. Everything else is
// fatal.
func (x *execution) compositeFailure(fctx *api.FlowContext, info api.StepInfo, err error) (outcome, error) {
	if !routable(err) {
		return outcome{}, err
	}
	fctx.Finish(info.ID, api.StepResult{Error: err.Error()})
	return route(info, err, err)
}

func routable(err error) bool {
	if _, ok := api.IsToolError(err); !ok {
		return false
	}
	return !errors.Is(err, api.ErrToolNotFound)
}

// runChild executes one child of a parallel or loop step. A tool child whose
// failure is routed, or a condition child whose branch selects a step,
// continues into a chain of tool steps that ends at the first step of any
// other type. Each chain has its own cycle guard.
func (x *execution) runChild(ctx context.Context, fctx *api.FlowContext, id string) error {
	var visited []string
	seen := make(map[string]bool)

	for current := id; current != ""; {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before step %q: %w", current, err)
		}
		if seen[current] {
			return cycleError(current, visited)
		}
		seen[current] = true

		step, err := x.wf.Step(current)
		if err != nil {
			return err
		}
		switch step.(type) {
		case *api.ToolStep:
		case *api.ConditionStep:
			if current != id {
				return nil
			}
		default:
			return api.NewConfigError(current, "", api.ErrUnsupportedNesting,
				fmt.Sprintf("%s step reached from child %q", step.Type(), id))
		}
		visited = append(visited, current)

		out, err := x.execStep(ctx, fctx, step)
		if err != nil {
			return err
		}
		current = out.next
	}
	return nil
}
