// Package metrics exports workflow run metrics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/toolflow/pkg/api"
)

const namespace = "toolflow"

// Status label values.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// PrometheusObserver is an api.Observer that records run and step metrics.
type PrometheusObserver struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	running      prometheus.Gauge
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
}

var _ api.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Workflow runs started.",
		}, []string{"workflow"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Workflow runs finished, by outcome.",
		}, []string{"workflow", "status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_progress",
			Help:      "Workflow runs currently executing.",
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_executions_total",
			Help:      "Step executions, by step type and outcome.",
		}, []string{"workflow", "step_type", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"step_type"}),
	}

	for _, c := range []prometheus.Collector{o.runsStarted, o.runsFinished, o.running, o.steps, o.stepDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) OnWorkflowStart(ctx context.Context, run *api.RunInfo) {
	o.runsStarted.WithLabelValues(run.WorkflowID).Inc()
	o.running.Inc()
}

func (o *PrometheusObserver) OnWorkflowCompleted(ctx context.Context, run *api.RunInfo, fctx *api.FlowContext) {
	o.runsFinished.WithLabelValues(run.WorkflowID, statusCompleted).Inc()
	o.running.Dec()
}

func (o *PrometheusObserver) OnWorkflowFailed(ctx context.Context, run *api.RunInfo, err error) {
	o.runsFinished.WithLabelValues(run.WorkflowID, statusFailed).Inc()
	o.running.Dec()
}

func (o *PrometheusObserver) OnStepStart(ctx context.Context, run *api.RunInfo, step api.Step) {}

func (o *PrometheusObserver) OnStepCompleted(ctx context.Context, run *api.RunInfo, step api.Step, err error, d time.Duration) {
	status := statusCompleted
	if err != nil {
		status = statusFailed
	}
	o.steps.WithLabelValues(run.WorkflowID, string(step.Type()), status).Inc()
	o.stepDuration.WithLabelValues(string(step.Type())).Observe(d.Seconds())
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for node_exporter's textfile collector. A nil g uses
// prometheus.DefaultGatherer.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return prometheus.WriteToTextfile(path, g)
}
