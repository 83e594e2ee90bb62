package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow"
	"github.com/petrijr/toolflow/pkg/api"
	"github.com/petrijr/toolflow/pkg/definition"
	"github.com/petrijr/toolflow/pkg/metrics"
)

type runOptions struct {
	workflow        string
	vars            []string
	inputFile       string
	concurrency     int
	metricsTextfile string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a workflow from a definition file",
		Long: `Run loads the workflow definitions in file, runs one of them and prints
the final context as JSON.

Initial context values come from --input (a JSON object) and --set; --set
wins. A --set value is parsed as JSON when it is valid JSON and used as a
string otherwise, so --set a=20 gives a number and --set city=Paris a string.`,
		Example: `  toolflow run examples/calculator_weather/workflow.yaml --set a=20 --set b=22 --set city=Paris`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, g, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.workflow, "workflow", "w", "", "workflow id to run when the file holds several")
	cmd.Flags().StringArrayVar(&opts.vars, "set", nil, "initial context value (format: key=value)")
	cmd.Flags().StringVar(&opts.inputFile, "input", "", "JSON file with the initial context")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "parallel fan-out width (default: from config)")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run (default: from config)")
	return cmd
}

func runRun(cmd *cobra.Command, g *globalOptions, opts *runOptions, path string) error {
	cfg, logger, err := g.loadConfig(cmd)
	if err != nil {
		return err
	}

	wfs, err := definition.LoadWorkflows(path)
	if err != nil {
		return err
	}
	wf, err := pickWorkflow(wfs, opts.workflow)
	if err != nil {
		return err
	}

	input, err := initialContext(opts.inputFile, opts.vars)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts, err := loadTools(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = ts.Close() }()

	history, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	concurrency := cfg.Engine.Concurrency
	if opts.concurrency > 0 {
		concurrency = opts.concurrency
	}
	textfile := cfg.Metrics.Textfile
	if opts.metricsTextfile != "" {
		textfile = opts.metricsTextfile
	}

	var observers []api.Observer
	reg := prometheus.NewRegistry()
	if textfile != "" {
		prom, err := metrics.NewPrometheusObserver(reg)
		if err != nil {
			return err
		}
		observers = append(observers, prom)
	}

	runner := toolflow.NewRunner(toolflow.RunnerConfig{
		Concurrency: concurrency,
		Observers:   observers,
		Logger:      logger,
		Store:       history.Runs,
		Events:      history.Events,
	})

	rec, runErr := runner.Execute(ctx, wf, ts.registry, toolflow.NewFlowContext(input))
	if rec == nil {
		return runErr
	}

	if textfile != "" {
		if err := metrics.WriteTextfile(textfile, reg); err != nil {
			logger.WarnContext(ctx, "metrics_write_failed", "path", textfile, "error", err)
		}
	}

	if err := writeJSON(cmd, newRunView(rec)); err != nil {
		return err
	}
	return runErr
}

// pickWorkflow selects wfs[id], or the only workflow when id is empty.
func pickWorkflow(wfs []*api.Workflow, id string) (*api.Workflow, error) {
	if id == "" {
		if len(wfs) == 1 {
			return wfs[0], nil
		}
		return nil, fmt.Errorf("file holds %d workflows, choose one with --workflow: %s",
			len(wfs), strings.Join(workflowIDs(wfs), ", "))
	}
	for _, wf := range wfs {
		if wf.ID == id {
			return wf, nil
		}
	}
	return nil, fmt.Errorf("workflow %q not found. Available: %s", id, strings.Join(workflowIDs(wfs), ", "))
}

func workflowIDs(wfs []*api.Workflow) []string {
	ids := make([]string, 0, len(wfs))
	for _, wf := range wfs {
		ids = append(ids, wf.ID)
	}
	return ids
}

// initialContext merges the --input file and --set values.
func initialContext(inputFile string, vars []string) (map[string]any, error) {
	data := map[string]any{}
	if inputFile != "" {
		raw, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parsing input %s: %w", inputFile, err)
		}
		if data == nil {
			return nil, errors.New("input must be a JSON object")
		}
	}
	for _, v := range vars {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value %q (expected key=value)", v)
		}
		data[key] = parseValue(value)
	}
	return data, nil
}

func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// runView is the JSON shape printed by run and history show.
type runView struct {
	RunID        string                    `json:"run_id"`
	WorkflowID   string                    `json:"workflow_id"`
	WorkflowName string                    `json:"workflow_name,omitempty"`
	Status       string                    `json:"status"`
	Error        string                    `json:"error,omitempty"`
	StartedAt    time.Time                 `json:"started_at"`
	FinishedAt   time.Time                 `json:"finished_at"`
	LastStepID   string                    `json:"last_step_id,omitempty"`
	LastResult   any                       `json:"last_result,omitempty"`
	Data         map[string]any            `json:"data"`
	StepResults  map[string]map[string]any `json:"step_results"`
	Trace        []string                  `json:"trace"`
	Events       []eventView               `json:"events,omitempty"`
}

type eventView struct {
	At     time.Time `json:"at"`
	Type   string    `json:"type"`
	StepID string    `json:"step_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func newRunView(rec *toolflow.RunRecord) runView {
	v := runView{
		RunID:        rec.ID,
		WorkflowID:   rec.WorkflowID,
		WorkflowName: rec.WorkflowName,
		Status:       string(rec.Status),
		Error:        rec.Error,
		StartedAt:    rec.StartedAt,
		FinishedAt:   rec.FinishedAt,
		Data:         map[string]any{},
		StepResults:  map[string]map[string]any{},
		Trace:        []string{},
	}
	if fctx := rec.Context; fctx != nil {
		v.LastStepID = fctx.LastStepID
		v.LastResult = fctx.LastResult
		if fctx.Data != nil {
			v.Data = fctx.Data
		}
		for id, r := range fctx.StepResults {
			v.StepResults[id] = r.Entry()
		}
		if fctx.Trace != nil {
			v.Trace = fctx.Trace
		}
	}
	return v
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
