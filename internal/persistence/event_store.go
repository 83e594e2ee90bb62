package persistence

import (
	"context"
	"log/slog"
	"time"

	"github.com/petrijr/toolflow/pkg/api"
)

// EventStore is an append-only history store for run events.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.WorkflowEvent) error
	ListEvents(ctx context.Context, runID string) ([]api.WorkflowEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.WorkflowEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, runID string) ([]api.WorkflowEvent, error) {
	return nil, nil
}

// EventRecorder is an api.Observer that appends every lifecycle event to an
// EventStore. Append failures are logged and otherwise ignored.
type EventRecorder struct {
	store  EventStore
	logger *slog.Logger
	now    func() time.Time
}

var _ api.Observer = (*EventRecorder)(nil)

// NewEventRecorder creates an EventRecorder. A nil logger uses
// slog.Default().
func NewEventRecorder(store EventStore, logger *slog.Logger) *EventRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventRecorder{store: store, logger: logger, now: time.Now}
}

func (r *EventRecorder) OnWorkflowStart(ctx context.Context, run *api.RunInfo) {
	r.append(ctx, run, api.WorkflowEvent{Type: api.EventWorkflowStarted})
}

func (r *EventRecorder) OnWorkflowCompleted(ctx context.Context, run *api.RunInfo, fctx *api.FlowContext) {
	r.append(ctx, run, api.WorkflowEvent{Type: api.EventWorkflowCompleted, Detail: fctx.LastStepID})
}

func (r *EventRecorder) OnWorkflowFailed(ctx context.Context, run *api.RunInfo, err error) {
	r.append(ctx, run, api.WorkflowEvent{Type: api.EventWorkflowFailed, Detail: err.Error()})
}

func (r *EventRecorder) OnStepStart(ctx context.Context, run *api.RunInfo, step api.Step) {
	r.append(ctx, run, api.WorkflowEvent{
		Type:     api.EventStepStarted,
		StepID:   step.Info().ID,
		StepType: step.Type(),
	})
}

func (r *EventRecorder) OnStepCompleted(ctx context.Context, run *api.RunInfo, step api.Step, err error, d time.Duration) {
	ev := api.WorkflowEvent{
		Type:     api.EventStepCompleted,
		StepID:   step.Info().ID,
		StepType: step.Type(),
	}
	if err != nil {
		ev.Type = api.EventStepFailed
		ev.Detail = err.Error()
	}
	r.append(ctx, run, ev)
}

func (r *EventRecorder) append(ctx context.Context, run *api.RunInfo, ev api.WorkflowEvent) {
	ev.RunID = run.RunID
	ev.WorkflowID = run.WorkflowID
	ev.At = r.now().UTC()
	// Appends are not cut short by the run's cancellation.
	if err := r.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.WarnContext(ctx, "event_append_failed",
			slog.String("run_id", ev.RunID),
			slog.String("event", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}
