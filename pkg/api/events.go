package api

import "time"

// EventType identifies a run history event.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow.started"
	EventWorkflowCompleted EventType = "workflow.completed"
	EventWorkflowFailed    EventType = "workflow.failed"

	EventStepStarted   EventType = "step.started"
	EventStepCompleted EventType = "step.completed"
	EventStepFailed    EventType = "step.failed"
)

// WorkflowEvent is a minimal append-only history record for audit/debugging.
type WorkflowEvent struct {
	RunID string
	At    time.Time
	Type  EventType

	WorkflowID string
	StepID     string
	StepType   StepType

	// Small, human-oriented details such as an error message or the last
	// step id. Do not dump tool results here.
	Detail string
}
