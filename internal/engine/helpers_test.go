package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/toolflow/pkg/api"
)

var errBoom = errors.New("boom")

func newWorkflow(t *testing.T, start string, steps ...api.Step) *api.Workflow {
	t.Helper()
	wf := api.NewWorkflow("test-flow", "Test flow")
	for _, s := range steps {
		require.NoError(t, wf.AddStep(s))
	}
	if start != "" {
		wf.StartStepID = start
	}
	return wf
}

func toolStep(id, tool string, params map[string]any) *api.ToolStep {
	return &api.ToolStep{StepInfo: api.StepInfo{ID: id}, ToolName: tool, ToolParams: params}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case nil:
		return 0, true
	default:
		return 0, false
	}
}

// countingTools returns a registry of small deterministic tools plus the
// per-tool call counters.
type countingTools struct {
	registry api.Registry
	calls    sync.Map // name -> *atomic.Int64
}

func newTools() *countingTools {
	ct := &countingTools{}
	ct.registry = api.MustRegistry(
		ct.wrap(&api.ToolFunc{
			ToolName: "add",
			Desc:     "adds a and b",
			ValidateFn: func(p map[string]any) bool {
				_, okA := number(p["a"])
				_, okB := number(p["b"])
				return okA && okB && p["a"] != nil && p["b"] != nil
			},
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				a, _ := number(p["a"])
				b, _ := number(p["b"])
				return a + b, nil
			},
		}),
		ct.wrap(&api.ToolFunc{
			ToolName: "increment",
			Desc:     "returns value + 1; a missing value counts as zero",
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				v, ok := number(p["value"])
				if !ok {
					return nil, fmt.Errorf("value is not a number: %v", p["value"])
				}
				return v + 1, nil
			},
		}),
		ct.wrap(&api.ToolFunc{
			ToolName: "echo",
			Desc:     "returns its params",
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				return p, nil
			},
		}),
		ct.wrap(&api.ToolFunc{
			ToolName: "fail",
			Desc:     "always fails",
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				return nil, errBoom
			},
		}),
		ct.wrap(&api.ToolFunc{
			ToolName: "panic",
			Desc:     "always panics",
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				panic("kaboom")
			},
		}),
		ct.wrap(&api.ToolFunc{
			ToolName: "sleep",
			Desc:     "sleeps for ms milliseconds and returns label",
			Fn: func(ctx context.Context, p map[string]any) (any, error) {
				ms, _ := number(p["ms"])
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
					return p["label"], nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}),
	)
	return ct
}

func (ct *countingTools) wrap(t *api.ToolFunc) *api.ToolFunc {
	counter := &atomic.Int64{}
	ct.calls.Store(t.ToolName, counter)
	fn := t.Fn
	t.Fn = func(ctx context.Context, p map[string]any) (any, error) {
		counter.Add(1)
		return fn(ctx, p)
	}
	return t
}

func (ct *countingTools) count(name string) int64 {
	v, ok := ct.calls.Load(name)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// recordingObserver records event names in order.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
	errs   map[string]error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{errs: map[string]error{}}
}

func (o *recordingObserver) add(ev string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) OnWorkflowStart(ctx context.Context, run *api.RunInfo) {
	o.add("workflow_start")
}

func (o *recordingObserver) OnWorkflowCompleted(ctx context.Context, run *api.RunInfo, fctx *api.FlowContext) {
	o.add("workflow_complete:" + fctx.LastStepID)
}

func (o *recordingObserver) OnWorkflowFailed(ctx context.Context, run *api.RunInfo, err error) {
	o.add("workflow_failed")
}

func (o *recordingObserver) OnStepStart(ctx context.Context, run *api.RunInfo, step api.Step) {
	o.add("start:" + step.Info().ID)
}

func (o *recordingObserver) OnStepCompleted(ctx context.Context, run *api.RunInfo, step api.Step, err error, d time.Duration) {
	o.add("done:" + step.Info().ID)
	if err != nil {
		o.mu.Lock()
		o.errs[step.Info().ID] = err
		o.mu.Unlock()
	}
}

func (o *recordingObserver) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}
