package toolflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/petrijr/toolflow/internal/engine"
	"github.com/petrijr/toolflow/internal/persistence"
	"github.com/petrijr/toolflow/pkg/api"
)

// RunnerConfig describes how to construct a Runner.
type RunnerConfig struct {
	// Concurrency bounds how many children of a parallel step run at once.
	// Values <= 1 run them sequentially.
	Concurrency int

	// Observers receive every lifecycle event in addition to the runner's
	// own logging.
	Observers []Observer

	// Logger receives workflow and step logs. nil uses slog.Default().
	Logger *slog.Logger

	// EnableLogging keeps an in-memory log of workflow events, readable
	// through ExecutionLog.
	EnableLogging bool

	// Store, when set, receives one RunRecord per run.
	Store RunStore
	// Events, when set, receives every lifecycle event.
	Events EventStore
}

// Runner executes workflows and reports on them. It adds run ids, logging
// and history around the engine and has no control flow of its own.
//
// Typical usage:
//
//	runner := toolflow.NewRunner(toolflow.RunnerConfig{EnableLogging: true})
//	fctx, err := runner.Run(ctx, wf, tools, toolflow.NewFlowContext(input))
//
// A Runner is safe for concurrent use as long as each run gets its own
// FlowContext.
type Runner struct {
	engine *engine.Engine
	store  RunStore
	log    *api.ExecutionLog
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner constructs a Runner from cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		store:  cfg.Store,
		log:    &api.ExecutionLog{},
		logger: logger,
		now:    time.Now,
	}

	observers := []api.Observer{api.NewLoggingObserver(logger)}
	if cfg.EnableLogging {
		observers = append(observers, r.log)
	}
	if cfg.Events != nil {
		observers = append(observers, persistence.NewEventRecorder(cfg.Events, logger))
	}
	observers = append(observers, cfg.Observers...)

	r.engine = engine.New(engine.Config{
		Observer:    api.NewCompositeObserver(observers...),
		Concurrency: cfg.Concurrency,
	})
	return r
}

// Run executes wf from its start step and returns the final context. A nil
// fctx starts from an empty context. On failure the result is nil, but a
// caller-supplied fctx keeps the partial state.
func (r *Runner) Run(ctx context.Context, wf *Workflow, tools Registry, fctx *FlowContext) (*FlowContext, error) {
	rec, err := r.Execute(ctx, wf, tools, fctx)
	if err != nil {
		return nil, err
	}
	return rec.Context, nil
}

// Execute is Run returning the run's history record, which is also
// returned when the run fails.
func (r *Runner) Execute(ctx context.Context, wf *Workflow, tools Registry, fctx *FlowContext) (*RunRecord, error) {
	if wf == nil {
		return nil, errors.New("toolflow: nil workflow")
	}
	if fctx == nil {
		fctx = api.NewFlowContext(nil)
	}

	run := &api.RunInfo{
		RunID:        uuid.NewString(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		StartedAt:    r.now().UTC(),
	}
	_, err := r.engine.Execute(ctx, run, wf, tools, fctx)

	rec := &RunRecord{
		ID:           run.RunID,
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Status:       RunCompleted,
		Context:      fctx,
		StartedAt:    run.StartedAt,
		FinishedAt:   r.now().UTC(),
	}
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
	}
	r.save(ctx, rec)
	return rec, err
}

// save writes rec to the store. History failures never fail the run.
func (r *Runner) save(ctx context.Context, rec *RunRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveRun(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.WarnContext(ctx, "run_save_failed",
			slog.String("run_id", rec.ID),
			slog.String("workflow", rec.WorkflowID),
			slog.Any("error", err),
		)
	}
}

// ExecutionLog returns the workflow events recorded so far. It is empty
// unless EnableLogging was set.
func (r *Runner) ExecutionLog() []LogEntry {
	return r.log.Entries()
}

// ClearLog drops the recorded workflow events.
func (r *Runner) ClearLog() {
	r.log.Clear()
}
