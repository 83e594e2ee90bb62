package api

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Workflow is a named set of steps with a designated entry step. Steps must
// not be modified while a run is in progress.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]any

	Steps       map[string]Step
	StartStepID string

	order []string
}

// NewWorkflow creates an empty workflow.
func NewWorkflow(id, name string) *Workflow {
	return &Workflow{
		ID:    id,
		Name:  name,
		Steps: map[string]Step{},
	}
}

// AddStep registers s under its id. The first registered step becomes the
// start step unless StartStepID is already set.
func (w *Workflow) AddStep(s Step) error {
	if s == nil {
		return NewConfigError("", "", ErrInvalidStep, "nil step")
	}
	id := s.Info().ID
	if id == "" {
		return NewConfigError("", "id", ErrInvalidStep, "step id must not be empty")
	}
	if w.Steps == nil {
		w.Steps = map[string]Step{}
	}
	if _, exists := w.Steps[id]; exists {
		return NewConfigError(id, "", ErrDuplicateStep, "")
	}
	w.Steps[id] = s
	w.order = append(w.order, id)
	if w.StartStepID == "" {
		w.StartStepID = id
	}
	return nil
}

// Step returns the step registered under id.
func (w *Workflow) Step(id string) (Step, error) {
	s, ok := w.Steps[id]
	if !ok || s == nil {
		return nil, NewConfigError(id, "", ErrStepNotFound, "")
	}
	return s, nil
}

// StepIDs lists step ids in registration order. Steps placed in the map
// directly follow in sorted order.
func (w *Workflow) StepIDs() []string {
	ids := make([]string, 0, len(w.Steps))
	seen := make(map[string]bool, len(w.Steps))
	for _, id := range w.order {
		if _, ok := w.Steps[id]; ok && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	var rest []string
	for id := range w.Steps {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// Validate checks the whole definition and returns every configuration
// error found, joined. Cycles are detected at run time.
func (w *Workflow) Validate() error {
	var errs []error
	if w.StartStepID == "" {
		errs = append(errs, NewConfigError("", "start_step_id", ErrMissingStartStep, "no start step"))
	} else if _, ok := w.Steps[w.StartStepID]; !ok {
		errs = append(errs, NewConfigError(w.StartStepID, "start_step_id", ErrMissingStartStep, ""))
	}
	for _, id := range w.StepIDs() {
		errs = append(errs, w.validateStep(id, w.Steps[id])...)
	}
	return errors.Join(errs...)
}

func (w *Workflow) validateStep(id string, s Step) []error {
	if s == nil {
		return []error{NewConfigError(id, "", ErrInvalidStep, "nil step")}
	}
	var errs []error
	info := s.Info()
	if info.ID != id {
		errs = append(errs, NewConfigError(id, "id", ErrInvalidStep, fmt.Sprintf("registered under %q but declares id %q", id, info.ID)))
	}
	if info.OnError != "" {
		errs = append(errs, w.checkRef(id, "on_error", info.OnError)...)
	}

	switch st := s.(type) {
	case *ToolStep:
		if st.ToolName == "" {
			errs = append(errs, NewConfigError(id, "tool_name", ErrInvalidStep, "tool step has no tool name"))
		}
	case *ConditionStep:
		if !st.HasPredicate() {
			errs = append(errs, NewConfigError(id, "condition", ErrInvalidStep, "condition step has neither condition nor expression"))
		}
		errs = append(errs, w.checkBranch(id, "on_true", st.OnTrue)...)
		errs = append(errs, w.checkBranch(id, "on_false", st.OnFalse)...)
	case *ParallelStep:
		errs = append(errs, w.checkChildren(id, StepParallel, "parallel_steps", st.Steps)...)
	case *LoopStep:
		if st.MaxIterations < 0 {
			errs = append(errs, NewConfigError(id, "max_iterations", ErrInvalidStep, fmt.Sprintf("must not be negative, got %d", st.MaxIterations)))
		}
		errs = append(errs, w.checkChildren(id, StepLoop, "loop_steps", st.Steps)...)
	default:
		errs = append(errs, NewConfigError(id, "type", ErrUnsupportedStepType, fmt.Sprintf("%T", s)))
	}
	return errs
}

func (w *Workflow) checkRef(id, field, ref string) []error {
	if _, ok := w.Steps[ref]; !ok {
		return []error{NewConfigError(id, field, ErrStepNotFound, fmt.Sprintf("references unknown step %q", ref))}
	}
	return nil
}

func (w *Workflow) checkBranch(id, field string, next []string) []error {
	var errs []error
	if len(next) > 1 {
		errs = append(errs, NewConfigError(id, field, ErrMultipleNextSteps, fmt.Sprintf("%d next steps", len(next))))
	}
	for _, ref := range next {
		errs = append(errs, w.checkRef(id, field, ref)...)
	}
	return errs
}

// checkChildren enforces that fan-out groups and loop bodies contain only
// tool and condition steps, and that nothing a child can chain into is a
// parallel or loop step.
func (w *Workflow) checkChildren(id string, parent StepType, field string, children []string) []error {
	var errs []error
	for _, child := range children {
		if child == id {
			errs = append(errs, NewConfigError(id, field, ErrUnsupportedNesting, "step lists itself as a child"))
			continue
		}
		s, ok := w.Steps[child]
		if !ok {
			errs = append(errs, NewConfigError(id, field, ErrStepNotFound, fmt.Sprintf("references unknown step %q", child)))
			continue
		}
		var starts []string
		switch st := s.(type) {
		case *ToolStep:
			starts = append(starts, st.OnError)
		case *ConditionStep:
			starts = append(starts, st.OnTrue...)
			starts = append(starts, st.OnFalse...)
		case *ParallelStep, *LoopStep:
			errs = append(errs, NewConfigError(id, field, ErrUnsupportedNesting,
				fmt.Sprintf("%s step %q inside %s step", s.Type(), child, parent)))
			continue
		}
		for _, start := range starts {
			errs = append(errs, w.checkChain(id, parent, field, child, start)...)
		}
	}
	return errs
}

// checkChain follows the steps a composite child can continue into: a
// branch target and then on_error redirects of tool steps. The chain stops
// at the first condition step.
func (w *Workflow) checkChain(id string, parent StepType, field, child, start string) []error {
	var visited []string
	for cur := start; cur != "" && !slices.Contains(visited, cur); {
		visited = append(visited, cur)
		switch st := w.Steps[cur].(type) {
		case *ToolStep:
			cur = st.OnError
		case *ParallelStep, *LoopStep:
			return []error{NewConfigError(id, field, ErrUnsupportedNesting,
				fmt.Sprintf("%s step %q reachable from child %q of %s step", st.Type(), cur, child, parent))}
		default:
			return nil
		}
	}
	return nil
}
