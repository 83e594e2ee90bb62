package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/toolflow/pkg/api"
)

const calcWeatherYAML = `id: calc-weather
name: Calculator and weather
start_step_id: flow
steps:
  flow:
    type: parallel
    parallel_steps: [sum, check]
  sum:
    type: tool
    tool_name: calculator
    tool_params:
      operation: add
      a: "${context.a}"
      b: "${context.b}"
    output_key: sum_result
  check:
    type: condition
    condition_expression: context.sum_result == 42
    on_true: [weather]
  weather:
    type: tool
    tool_name: weather
    tool_params:
      location: "${context.city}"
`

const divideYAML = `id: divide
start_step_id: div
steps:
  div:
    type: tool
    tool_name: calculator
    tool_params: {operation: divide, a: 1, b: 0}
`

const unknownToolYAML = `id: mystery
start_step_id: ask
steps:
  ask:
    type: tool
    tool_name: oracle
`

const twoWorkflowsYAML = `id: first
start_step_id: a
steps:
  a: {type: tool, tool_name: weather, tool_params: {location: Oslo}}
---
id: second
start_step_id: b
steps:
  b: {type: tool, tool_name: weather, tool_params: {location: Rome}}
`

// testEnv is a temp dir with a config file using a sqlite history.
type testEnv struct {
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "toolflow.toml")
	content := "[history]\nbackend = \"sqlite\"\ndsn = \"" + filepath.ToSlash(filepath.Join(dir, "history.db")) + "\"\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	return &testEnv{dir: dir, config: cfg}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.config}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"run", "validate", "convert", "tools", "history"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestRun_CalculatorWeather(t *testing.T) {
	env := newTestEnv(t)
	wf := env.write(t, "calc.yaml", calcWeatherYAML)

	stdout, stderr, err := env.run("run", wf, "--set", "a=20", "--set", "b=22", "--set", "city=Paris")
	require.NoError(t, err, stderr)

	var view runView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, "calc-weather", view.WorkflowID)
	assert.Equal(t, "flow", view.LastStepID)
	assert.Equal(t, "Weather in Paris: 22°C, Sunny, Humidity: 65%", view.LastResult)
	assert.Equal(t, 42.0, view.Data["sum_result"])
	assert.Equal(t, []string{"sum", "check", "weather"}, view.Trace)
	assert.Equal(t, true, view.StepResults["check"]["result"])
	assert.Contains(t, stderr, "workflow_complete")

	// The run is in the sqlite history.
	listOut, _, err := env.run("history", "list")
	require.NoError(t, err)
	assert.Contains(t, listOut, view.RunID)
	assert.Contains(t, listOut, "calc-weather")

	showOut, _, err := env.run("history", "show", view.RunID)
	require.NoError(t, err)
	var shown runView
	require.NoError(t, json.Unmarshal([]byte(showOut), &shown))
	assert.Equal(t, view.RunID, shown.RunID)
	assert.Equal(t, 42.0, shown.Data["sum_result"])
	require.NotEmpty(t, shown.Events)
	assert.Equal(t, string(api.EventWorkflowStarted), shown.Events[0].Type)
	assert.Equal(t, string(api.EventWorkflowCompleted), shown.Events[len(shown.Events)-1].Type)
}

func TestRun_FailurePrintsRecord(t *testing.T) {
	env := newTestEnv(t)
	wf := env.write(t, "divide.yaml", divideYAML)

	stdout, _, err := env.run("run", wf)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrValidationFailed)

	var view runView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "failed", view.Status)
	assert.NotEmpty(t, view.StepResults["div"]["error"])

	listOut, _, err := env.run("history", "list", "--status", "failed")
	require.NoError(t, err)
	assert.Contains(t, listOut, view.RunID)

	listOut, _, err = env.run("history", "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, listOut, "No runs found.")
}

func TestRun_InputFileAndWorkflowSelection(t *testing.T) {
	env := newTestEnv(t)
	wf := env.write(t, "two.yaml", twoWorkflowsYAML)

	_, _, err := env.run("run", wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first, second")

	_, _, err = env.run("run", wf, "--workflow", "third")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"third" not found`)

	stdout, _, err := env.run("run", wf, "--workflow", "second")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Weather in Rome")

	calc := env.write(t, "calc.yaml", calcWeatherYAML)
	input := env.write(t, "input.json", `{"a": 40, "b": 2, "city": "Turku"}`)
	stdout, _, err = env.run("run", calc, "--input", input, "--set", "city=Oulu")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Weather in Oulu")

	// Concurrent children do not see each other's writes.
	stdout, _, err = env.run("run", calc, "--input", input, "--concurrency", "2")
	require.NoError(t, err)
	var view runView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "flow", view.LastStepID)
	assert.Equal(t, []string{"sum", "check"}, view.Trace)
	assert.Equal(t, false, view.LastResult)
	assert.Equal(t, 42.0, view.Data["sum_result"])
}

func TestRun_MetricsTextfile(t *testing.T) {
	env := newTestEnv(t)
	wf := env.write(t, "calc.yaml", calcWeatherYAML)
	prom := filepath.Join(env.dir, "toolflow.prom")

	_, _, err := env.run("run", wf, "--set", "a=1", "--set", "b=2", "--set", "city=Espoo", "--metrics-textfile", prom)
	require.NoError(t, err)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `toolflow_runs_finished_total{status="completed",workflow="calc-weather"} 1`)
}

func TestValidate(t *testing.T) {
	env := newTestEnv(t)
	good := env.write(t, "calc.yaml", calcWeatherYAML)
	mystery := env.write(t, "mystery.yaml", unknownToolYAML)
	broken := env.write(t, "broken.yaml", "id: broken\nstart_step_id: nowhere\nsteps:\n  a: {type: tool, tool_name: weather}\n")

	stdout, _, err := env.run("validate", good, mystery)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok   "+good+": calc-weather (4 steps)")

	stdout, _, err = env.run("validate", "--tools", good, mystery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tool "oracle"`)
	assert.Contains(t, stdout, "FAIL "+mystery)

	_, _, err = env.run("validate", broken)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrMissingStartStep)
}

func TestConvert(t *testing.T) {
	env := newTestEnv(t)
	wf := env.write(t, "calc.yaml", calcWeatherYAML)

	stdout, _, err := env.run("convert", wf, "--to", "json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, "calc-weather", doc["id"])

	stdout, _, err = env.run("convert", wf, "--to", "toml")
	require.NoError(t, err)
	assert.Contains(t, stdout, `start_step_id = "flow"`)

	two := env.write(t, "two.yaml", twoWorkflowsYAML)
	_, _, err = env.run("convert", two, "--to", "json")
	assert.Error(t, err)

	stdout, _, err = env.run("convert", two)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "\n---\n"))

	_, _, err = env.run("convert", wf, "--to", "xml")
	assert.Error(t, err)
}

func TestTools(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run("tools")
	require.NoError(t, err)
	assert.Contains(t, stdout, "calculator")
	assert.Contains(t, stdout, "weather")

	stdout, _, err = env.run("tools", "--json")
	require.NoError(t, err)
	var schemas []api.ToolSchema
	require.NoError(t, json.Unmarshal([]byte(stdout), &schemas))
	require.Len(t, schemas, 2)
	assert.Equal(t, "calculator", schemas[0].Name)
}

func TestHistory_UnknownRunAndStatus(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run("history", "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `run "nope" not found`)

	_, _, err = env.run("history", "list", "--status", "running")
	assert.Error(t, err)
}

func TestInitialContext(t *testing.T) {
	data, err := initialContext("", []string{"n=3", "flag=true", "name=Ada", "list=[1,2]", "eq=a=b"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, data["n"])
	assert.Equal(t, true, data["flag"])
	assert.Equal(t, "Ada", data["name"])
	assert.Equal(t, []any{1.0, 2.0}, data["list"])
	assert.Equal(t, "a=b", data["eq"])

	_, err = initialContext("", []string{"novalue"})
	assert.Error(t, err)
	_, err = initialContext("", []string{"=x"})
	assert.Error(t, err)
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("tools", "--log-level", "loud")
	assert.Error(t, err)

	_, stderr, err := env.run("run", env.write(t, "calc.yaml", calcWeatherYAML),
		"--log-level", "debug", "--set", "a=1", "--set", "b=1", "--set", "city=Lahti")
	require.NoError(t, err)
	assert.Contains(t, stderr, "step_completed")
}
