package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/toolflow/internal/engine"
	"github.com/petrijr/toolflow/pkg/api"
)

func TestCalculator_Execute(t *testing.T) {
	calc := NewCalculator()
	cases := []struct {
		op   string
		a, b any
		want float64
	}{
		{OpAdd, 20, 22, 42},
		{OpSubtract, 10.5, 0.5, 10},
		{OpMultiply, int64(6), json.Number("7"), 42},
		{OpDivide, "9", 3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			params := map[string]any{"operation": tc.op, "a": tc.a, "b": tc.b}
			require.True(t, calc.Validate(params))

			got, err := calc.Execute(context.Background(), params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCalculator_Validate(t *testing.T) {
	calc := NewCalculator()

	assert.False(t, calc.Validate(map[string]any{"operation": OpDivide, "a": 1, "b": 0}))
	assert.False(t, calc.Validate(map[string]any{"operation": OpAdd, "a": 1}))
	assert.False(t, calc.Validate(map[string]any{"operation": OpAdd, "a": nil, "b": 2}))
	assert.False(t, calc.Validate(map[string]any{"operation": OpAdd, "a": "one", "b": 2}))
	assert.True(t, calc.Validate(map[string]any{"operation": OpMultiply, "a": 1, "b": 0}))
}

func TestCalculator_Errors(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.Execute(context.Background(), map[string]any{"operation": "modulo", "a": 1, "b": 2})
	assert.ErrorIs(t, err, ErrUnknownOperation)

	_, err = calc.Execute(context.Background(), map[string]any{"operation": OpDivide, "a": 1, "b": 0})
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestCalculator_Schema(t *testing.T) {
	schema := NewCalculator().Schema()
	assert.Equal(t, "calculator", schema.Name)
	assert.Equal(t, []string{"operation", "a", "b"}, schema.Parameters["required"])
}

func TestWeather(t *testing.T) {
	w := NewWeather()

	assert.False(t, w.Validate(map[string]any{}))
	assert.False(t, w.Validate(map[string]any{"location": "  "}))
	require.True(t, w.Validate(map[string]any{"location": "Paris"}))

	got, err := w.Execute(context.Background(), map[string]any{"location": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Weather in Paris: 22°C, Sunny, Humidity: 65%", got)

	got, err = w.Execute(context.Background(), map[string]any{"location": "Austin", "units": UnitsFahrenheit})
	require.NoError(t, err)
	assert.Equal(t, "Weather in Austin: 72°F, Sunny, Humidity: 65%", got)
}

func TestToFloat(t *testing.T) {
	for _, v := range []any{42, int8(42), uint16(42), float32(42), 42.0, "42", " 42 ", json.Number("42")} {
		f, ok := ToFloat(v)
		assert.True(t, ok, "%T", v)
		assert.Equal(t, 42.0, f)
	}
	for _, v := range []any{nil, true, "x", []any{1}} {
		_, ok := ToFloat(v)
		assert.False(t, ok, "%v", v)
	}
}

// The calculator, condition and weather scenario end to end.
func TestCalculatorWeatherWorkflow(t *testing.T) {
	wf := api.NewWorkflow("calc-weather", "Calculator and weather")
	steps := []api.Step{
		&api.ParallelStep{StepInfo: api.StepInfo{ID: "flow"}, Steps: []string{"sum", "check"}},
		&api.ToolStep{
			StepInfo:   api.StepInfo{ID: "sum"},
			ToolName:   "calculator",
			ToolParams: map[string]any{"operation": "add", "a": "${context.a}", "b": "${context.b}"},
			OutputKey:  "sum_result",
		},
		&api.ConditionStep{
			StepInfo:   api.StepInfo{ID: "check"},
			Expression: "context.sum_result == 42",
			OnTrue:     []string{"weather"},
		},
		&api.ToolStep{
			StepInfo:   api.StepInfo{ID: "weather"},
			ToolName:   "weather",
			ToolParams: map[string]any{"location": "${context.city}"},
		},
	}
	for _, s := range steps {
		require.NoError(t, wf.AddStep(s))
	}

	registry := api.MustRegistry(NewCalculator(), NewWeather())
	fctx := api.NewFlowContext(map[string]any{"a": 20, "b": 22, "city": "Helsinki"})

	out, err := engine.New(engine.Config{}).Run(context.Background(), wf, registry, fctx)
	require.NoError(t, err)

	assert.Equal(t, 42.0, out.Data["sum_result"])
	assert.Equal(t, "flow", out.LastStepID)
	assert.Equal(t, "Weather in Helsinki: 22°C, Sunny, Humidity: 65%", out.LastResult)
	assert.Equal(t, []string{"sum", "check", "weather"}, out.Trace)
}
