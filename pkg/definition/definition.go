// Package definition reads and writes workflow documents in YAML, TOML or
// JSON.
//
// A document mirrors api.Workflow with snake_case field names:
//
//	id: calc-weather
//	start_step_id: flow
//	steps:
//	  flow:
//	    type: parallel
//	    parallel_steps: [sum, check]
//	  sum:
//	    type: tool
//	    tool_name: calculator
//	    tool_params: {operation: add, a: "${context.a}", b: "${context.b}"}
//	    output_key: sum_result
//
// Go predicates have no document form; steps that use them must also carry
// an expression to be encoded.
package definition

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/petrijr/toolflow/pkg/api"
)

// ErrNotSerializable is returned when a step only has a Go predicate.
var ErrNotSerializable = errors.New("step predicate has no document form")

// Document is the persisted shape of a workflow.
type Document struct {
	ID          string             `json:"id" yaml:"id" toml:"id"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	StartStepID string             `json:"start_step_id" yaml:"start_step_id" toml:"start_step_id"`
	Metadata    map[string]any     `json:"metadata,omitempty" yaml:"metadata,omitempty" toml:"metadata,omitempty"`
	Steps       map[string]StepDoc `json:"steps" yaml:"steps" toml:"steps"`
}

// StepDoc is the persisted shape of one step. Only the fields of its type
// are meaningful.
type StepDoc struct {
	Type        string `json:"type" yaml:"type" toml:"type"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`

	ToolName   string         `json:"tool_name,omitempty" yaml:"tool_name,omitempty" toml:"tool_name,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty" yaml:"tool_params,omitempty" toml:"tool_params,omitempty"`
	OutputKey  string         `json:"output_key,omitempty" yaml:"output_key,omitempty" toml:"output_key,omitempty"`

	ConditionExpression string   `json:"condition_expression,omitempty" yaml:"condition_expression,omitempty" toml:"condition_expression,omitempty"`
	OnTrue              []string `json:"on_true,omitempty" yaml:"on_true,omitempty" toml:"on_true,omitempty"`
	OnFalse             []string `json:"on_false,omitempty" yaml:"on_false,omitempty" toml:"on_false,omitempty"`

	ParallelSteps []string `json:"parallel_steps,omitempty" yaml:"parallel_steps,omitempty" toml:"parallel_steps,omitempty"`

	LoopSteps      []string `json:"loop_steps,omitempty" yaml:"loop_steps,omitempty" toml:"loop_steps,omitempty"`
	LoopExpression string   `json:"loop_expression,omitempty" yaml:"loop_expression,omitempty" toml:"loop_expression,omitempty"`
	MaxIterations  int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty" toml:"max_iterations,omitempty"`

	OnError         string `json:"on_error,omitempty" yaml:"on_error,omitempty" toml:"on_error,omitempty"`
	ContinueOnError bool   `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty" toml:"continue_on_error,omitempty"`
}

// Workflow builds an api.Workflow from the document. Steps are added in
// id order; the document must name its start step. The result is not
// validated.
func (d *Document) Workflow() (*api.Workflow, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("%w: workflow id must not be empty", api.ErrInvalidStep)
	}
	if d.StartStepID == "" {
		return nil, api.NewConfigError("", "start_step_id", api.ErrMissingStartStep, "documents must set start_step_id")
	}

	wf := api.NewWorkflow(d.ID, d.Name)
	wf.Description = d.Description
	wf.Metadata = d.Metadata
	wf.StartStepID = d.StartStepID

	ids := make([]string, 0, len(d.Steps))
	for id := range d.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		step, err := d.Steps[id].step(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := wf.AddStep(step); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return wf, nil
}

func (s StepDoc) step(id string) (api.Step, error) {
	typ, err := api.ParseStepType(s.Type)
	if err != nil {
		return nil, api.NewConfigError(id, "type", api.ErrUnsupportedStepType, fmt.Sprintf("%q", s.Type))
	}
	if stray := s.foreignFields(typ); len(stray) > 0 {
		return nil, api.NewConfigError(id, stray[0], api.ErrInvalidStep,
			fmt.Sprintf("%s step sets %s", typ, strings.Join(stray, ", ")))
	}
	info := api.StepInfo{
		ID:              id,
		Name:            s.Name,
		Description:     s.Description,
		OnError:         s.OnError,
		ContinueOnError: s.ContinueOnError,
	}

	switch typ {
	case api.StepTool:
		return &api.ToolStep{
			StepInfo:   info,
			ToolName:   s.ToolName,
			ToolParams: s.ToolParams,
			OutputKey:  s.OutputKey,
		}, nil
	case api.StepCondition:
		return &api.ConditionStep{
			StepInfo:   info,
			Expression: s.ConditionExpression,
			OnTrue:     s.OnTrue,
			OnFalse:    s.OnFalse,
		}, nil
	case api.StepParallel:
		return &api.ParallelStep{StepInfo: info, Steps: s.ParallelSteps}, nil
	default:
		return &api.LoopStep{
			StepInfo:      info,
			Steps:         s.LoopSteps,
			Expression:    s.LoopExpression,
			MaxIterations: s.MaxIterations,
		}, nil
	}
}

// foreignFields lists the type-specific fields that are set but belong to
// a step type other than typ.
func (s StepDoc) foreignFields(typ api.StepType) []string {
	fields := []struct {
		owner api.StepType
		name  string
		set   bool
	}{
		{api.StepTool, "tool_name", s.ToolName != ""},
		{api.StepTool, "tool_params", s.ToolParams != nil},
		{api.StepTool, "output_key", s.OutputKey != ""},
		{api.StepCondition, "condition_expression", s.ConditionExpression != ""},
		{api.StepCondition, "on_true", s.OnTrue != nil},
		{api.StepCondition, "on_false", s.OnFalse != nil},
		{api.StepParallel, "parallel_steps", s.ParallelSteps != nil},
		{api.StepLoop, "loop_steps", s.LoopSteps != nil},
		{api.StepLoop, "loop_expression", s.LoopExpression != ""},
		{api.StepLoop, "max_iterations", s.MaxIterations != 0},
	}
	var stray []string
	for _, f := range fields {
		if f.set && f.owner != typ {
			stray = append(stray, f.name)
		}
	}
	return stray
}

// FromWorkflow converts wf into a Document. It fails with ErrNotSerializable
// when a condition or loop relies on a Go predicate alone.
func FromWorkflow(wf *api.Workflow) (*Document, error) {
	doc := &Document{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		StartStepID: wf.StartStepID,
		Metadata:    wf.Metadata,
		Steps:       make(map[string]StepDoc, len(wf.Steps)),
	}

	for _, id := range wf.StepIDs() {
		step := wf.Steps[id]
		info := step.Info()
		sd := StepDoc{
			Type:            string(step.Type()),
			Name:            info.Name,
			Description:     info.Description,
			OnError:         info.OnError,
			ContinueOnError: info.ContinueOnError,
		}

		switch s := step.(type) {
		case *api.ToolStep:
			sd.ToolName = s.ToolName
			sd.ToolParams = s.ToolParams
			sd.OutputKey = s.OutputKey
		case *api.ConditionStep:
			if s.Condition != nil && s.Expression == "" {
				return nil, fmt.Errorf("step %q: %w", id, ErrNotSerializable)
			}
			sd.ConditionExpression = s.Expression
			sd.OnTrue = s.OnTrue
			sd.OnFalse = s.OnFalse
		case *api.ParallelStep:
			sd.ParallelSteps = s.Steps
		case *api.LoopStep:
			if s.Condition != nil && s.Expression == "" {
				return nil, fmt.Errorf("step %q: %w", id, ErrNotSerializable)
			}
			sd.LoopSteps = s.Steps
			sd.LoopExpression = s.Expression
			sd.MaxIterations = s.MaxIterations
		}
		doc.Steps[id] = sd
	}
	return doc, nil
}
