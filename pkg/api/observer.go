package api

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// RunInfo identifies one execution of a workflow.
type RunInfo struct {
	RunID        string
	WorkflowID   string
	WorkflowName string
	StartedAt    time.Time
}

// Observer receives callbacks from the engine for logging and metrics.
//
// Implementations should be fast and non-blocking. With concurrent fan-out,
// step callbacks of one group may arrive from several goroutines.
type Observer interface {
	// OnWorkflowStart is called before the first step executes.
	OnWorkflowStart(ctx context.Context, run *RunInfo)

	// OnWorkflowCompleted is called when the traversal ends without a fatal
	// error. fctx is the final context.
	OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext)

	// OnWorkflowFailed is called when the run aborts.
	OnWorkflowFailed(ctx context.Context, run *RunInfo, err error)

	// OnStepStart is called before a step executes, including children of
	// parallel and loop steps.
	OnStepStart(ctx context.Context, run *RunInfo, step Step)

	// OnStepCompleted is called after a step executes. err is the step's
	// failure, whether or not it was routed.
	OnStepCompleted(ctx context.Context, run *RunInfo, step Step, err error, d time.Duration)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, run *RunInfo)                        {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext) {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, run *RunInfo, err error)            {}
func (NoopObserver) OnStepStart(ctx context.Context, run *RunInfo, step Step)                 {}
func (NoopObserver) OnStepCompleted(context.Context, *RunInfo, Step, error, time.Duration)    {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, run *RunInfo) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, run)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, run, fctx)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, run *RunInfo, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, run, err)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run *RunInfo, step Step) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, step)
	}
}

func (c *CompositeObserver) OnStepCompleted(ctx context.Context, run *RunInfo, step Step, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepCompleted(ctx, run, step, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs workflow / step lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, run *RunInfo) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("workflow", run.WorkflowID),
		slog.String("run_id", run.RunID),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext) {
	o.Logger.InfoContext(ctx, "workflow_complete",
		slog.String("workflow", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.String("last_step_id", fctx.LastStepID),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, run *RunInfo, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("workflow", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run *RunInfo, step Step) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("workflow", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.String("step", step.Info().ID),
		slog.String("step_type", string(step.Type())),
	)
}

func (o *LoggingObserver) OnStepCompleted(ctx context.Context, run *RunInfo, step Step, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_completed",
		slog.String("workflow", run.WorkflowID),
		slog.String("run_id", run.RunID),
		slog.String("step", step.Info().ID),
		slog.String("step_type", string(step.Type())),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters and aggregate step durations.
// It implements Observer, and can be combined with LoggingObserver via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	workflowsStarted   atomic.Int64
	workflowsCompleted atomic.Int64
	workflowsFailed    atomic.Int64
	stepsCompleted     atomic.Int64
	stepsFailed        atomic.Int64
	totalStepDuration  atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	WorkflowsStarted   int64
	WorkflowsCompleted int64
	WorkflowsFailed    int64
	RunningWorkflows   int64

	StepsCompleted  int64
	StepsFailed     int64
	AvgStepDuration time.Duration
}

func (m *BasicMetrics) OnWorkflowStart(ctx context.Context, run *RunInfo) {
	m.workflowsStarted.Add(1)
}

func (m *BasicMetrics) OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext) {
	m.workflowsCompleted.Add(1)
}

func (m *BasicMetrics) OnWorkflowFailed(ctx context.Context, run *RunInfo, err error) {
	m.workflowsFailed.Add(1)
}

func (m *BasicMetrics) OnStepCompleted(ctx context.Context, run *RunInfo, step Step, err error, d time.Duration) {
	// Only successful steps count towards the average duration.
	if err != nil {
		m.stepsFailed.Add(1)
		return
	}
	m.stepsCompleted.Add(1)
	m.totalStepDuration.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.workflowsStarted.Load()
	completed := m.workflowsCompleted.Load()
	failed := m.workflowsFailed.Load()
	steps := m.stepsCompleted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return BasicMetricsSnapshot{
		WorkflowsStarted:   started,
		WorkflowsCompleted: completed,
		WorkflowsFailed:    failed,
		RunningWorkflows:   started - completed - failed,
		StepsCompleted:     steps,
		StepsFailed:        m.stepsFailed.Load(),
		AvgStepDuration:    avg,
	}
}

// LogEntry is one line of an ExecutionLog.
type LogEntry struct {
	At         time.Time
	Event      string
	RunID      string
	WorkflowID string
	LastStepID string
	Error      string
}

// ExecutionLog keeps workflow-level events in memory.
type ExecutionLog struct {
	NoopObserver

	mu      sync.Mutex
	entries []LogEntry
}

func (l *ExecutionLog) OnWorkflowStart(ctx context.Context, run *RunInfo) {
	l.add(LogEntry{Event: "workflow_start", RunID: run.RunID, WorkflowID: run.WorkflowID})
}

func (l *ExecutionLog) OnWorkflowCompleted(ctx context.Context, run *RunInfo, fctx *FlowContext) {
	l.add(LogEntry{Event: "workflow_complete", RunID: run.RunID, WorkflowID: run.WorkflowID, LastStepID: fctx.LastStepID})
}

func (l *ExecutionLog) OnWorkflowFailed(ctx context.Context, run *RunInfo, err error) {
	l.add(LogEntry{Event: "workflow_failed", RunID: run.RunID, WorkflowID: run.WorkflowID, Error: err.Error()})
}

func (l *ExecutionLog) add(e LogEntry) {
	e.At = time.Now().UTC()
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *ExecutionLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Clear drops all recorded entries.
func (l *ExecutionLog) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
