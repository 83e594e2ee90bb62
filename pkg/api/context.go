package api

import (
	"maps"
	"slices"
)

// FlowContext is the mutable state shared by every step of one run.
//
// The engine writes through Set, Visit and Finish. A FlowContext must not
// be used by two runs at the same time; independent contexts over the same
// Workflow are fine.
type FlowContext struct {
	// Data is the shared key/value store read by templates and conditions.
	Data map[string]any
	// StepResults holds one entry per executed step id.
	StepResults map[string]StepResult

	// LastStepID points at the most recently executed step. A parallel or
	// loop step takes it over once its children are done. LastResult only
	// follows leaf steps (tool or condition); a failed tool clears it.
	LastStepID string
	LastResult any

	// Trace lists executed leaf step ids in execution order.
	Trace []string

	journal   []mutation
	recording bool
}

type mutationKind int

const (
	mutSet mutationKind = iota
	mutRecord
	mutVisit
	mutFinish
)

type mutation struct {
	kind   mutationKind
	key    string
	value  any
	result StepResult
}

// NewFlowContext returns a context seeded with a copy of data.
func NewFlowContext(data map[string]any) *FlowContext {
	d := make(map[string]any, len(data))
	maps.Copy(d, data)
	return &FlowContext{
		Data:        d,
		StepResults: map[string]StepResult{},
	}
}

// Get returns the shared value stored under key.
func (c *FlowContext) Get(key string) (any, bool) {
	v, ok := c.Data[key]
	return v, ok
}

// Result returns the ledger entry for stepID.
func (c *FlowContext) Result(stepID string) (StepResult, bool) {
	r, ok := c.StepResults[stepID]
	return r, ok
}

// Set stores a shared value.
func (c *FlowContext) Set(key string, value any) {
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	c.Data[key] = value
	c.log(mutation{kind: mutSet, key: key, value: value})
}

// Record writes the ledger entry for stepID without touching the last-step
// pointers. Composite steps record their summary this way.
func (c *FlowContext) Record(stepID string, r StepResult) {
	if c.StepResults == nil {
		c.StepResults = map[string]StepResult{}
	}
	c.StepResults[stepID] = r
	c.log(mutation{kind: mutRecord, key: stepID, result: r})
}

// Finish records a composite step's ledger entry and moves LastStepID to it.
// LastResult and Trace keep what the children left.
func (c *FlowContext) Finish(stepID string, r StepResult) {
	if c.StepResults == nil {
		c.StepResults = map[string]StepResult{}
	}
	c.StepResults[stepID] = r
	c.LastStepID = stepID
	c.log(mutation{kind: mutFinish, key: stepID, result: r})
}

// Visit records a leaf step execution: the ledger entry, the last-step
// pointers and the trace.
func (c *FlowContext) Visit(stepID string, r StepResult) {
	if c.StepResults == nil {
		c.StepResults = map[string]StepResult{}
	}
	c.StepResults[stepID] = r
	c.LastStepID = stepID
	c.LastResult = r.Result
	c.Trace = append(c.Trace, stepID)
	c.log(mutation{kind: mutVisit, key: stepID, result: r})
}

func (c *FlowContext) log(m mutation) {
	if c.recording {
		c.journal = append(c.journal, m)
	}
}

// Snapshot returns a shallow read-only view of the current state.
func (c *FlowContext) Snapshot() Snapshot {
	data := make(map[string]any, len(c.Data))
	maps.Copy(data, c.Data)
	return Snapshot{Context: data, StepResults: cloneResults(c.StepResults)}
}

// Fork returns an independent branch context starting from the current
// state. Writes to the branch are journaled and can be applied back with
// Merge.
func (c *FlowContext) Fork() *FlowContext {
	data := make(map[string]any, len(c.Data))
	maps.Copy(data, c.Data)
	return &FlowContext{
		Data:        data,
		StepResults: cloneResults(c.StepResults),
		LastStepID:  c.LastStepID,
		LastResult:  c.LastResult,
		Trace:       slices.Clone(c.Trace),
		recording:   true,
	}
}

// Merge replays the writes made to branch since it was forked. Merging
// branches in a fixed order gives a deterministic result.
func (c *FlowContext) Merge(branch *FlowContext) {
	for _, m := range branch.journal {
		switch m.kind {
		case mutSet:
			c.Set(m.key, m.value)
		case mutRecord:
			c.Record(m.key, m.result)
		case mutVisit:
			c.Visit(m.key, m.result)
		case mutFinish:
			c.Finish(m.key, m.result)
		}
	}
	branch.journal = nil
}
