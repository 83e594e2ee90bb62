// Package expr evaluates condition expressions with CEL.
//
// Expressions see two variables: context (the run's shared data) and
// step_results (step id -> {"result": ..., "error": ...}). CEL is not
// Turing complete and has no side effects, so a workflow document cannot use
// a condition to run arbitrary code.
package expr

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

const (
	// VarContext names the shared data map inside expressions.
	VarContext = "context"
	// VarStepResults names the step result ledger inside expressions.
	VarStepResults = "step_results"

	// DefaultCostLimit bounds the work a single evaluation may do.
	DefaultCostLimit uint64 = 100_000
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrNotBoolean      = errors.New("expression does not produce a bool")
)

// Evaluator compiles and caches CEL programs. It is safe for concurrent use.
type Evaluator struct {
	env       *cel.Env
	costLimit uint64
	programs  sync.Map // expression -> cel.Program
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCostLimit overrides DefaultCostLimit.
func WithCostLimit(limit uint64) Option {
	return func(e *Evaluator) { e.costLimit = limit }
}

// NewEvaluator builds an Evaluator with the context and step_results
// variables declared as dynamic values.
func NewEvaluator(opts ...Option) (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(VarContext, cel.DynType),
		cel.Variable(VarStepResults, cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	e := &Evaluator{env: env, costLimit: DefaultCostLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

var defaultEvaluator = sync.OnceValue(func() *Evaluator {
	e, err := NewEvaluator()
	if err != nil {
		panic(err)
	}
	return e
})

// Default returns the process-wide Evaluator.
func Default() *Evaluator {
	return defaultEvaluator()
}

// Check compiles expression and reports why it could never evaluate to a
// bool. A nil error does not guarantee a true or false answer at run time;
// missing keys still evaluate to false.
func (e *Evaluator) Check(expression string) error {
	_, err := e.program(expression)
	return err
}

// Eval evaluates expression against vars and returns its boolean result.
func (e *Evaluator) Eval(expression string, vars map[string]any) (bool, error) {
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: %w (got %s)", expression, ErrNotBoolean, out.Type().TypeName())
	}
	return b, nil
}

// Bool is Eval with every failure mapped to false.
func (e *Evaluator) Bool(expression string, vars map[string]any) bool {
	b, err := e.Eval(expression, vars)
	return err == nil && b
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, iss := e.env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: %w (got %s)", expression, ErrNotBoolean, out)
	}

	prg, err := e.env.Program(ast, cel.CostLimit(e.costLimit))
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expression, err)
	}
	actual, _ := e.programs.LoadOrStore(expression, prg)
	return actual.(cel.Program), nil
}
