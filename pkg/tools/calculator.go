package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/petrijr/toolflow/pkg/api"
)

// Calculator operations.
const (
	OpAdd      = "add"
	OpSubtract = "subtract"
	OpMultiply = "multiply"
	OpDivide   = "divide"
)

var (
	ErrDivisionByZero   = errors.New("division by zero is not allowed")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Calculator performs basic arithmetic on two operands. Results are always
// float64.
//
// Parameters: operation (add|subtract|multiply|divide), a, b. Operands may
// be any Go number, a json.Number or a numeric string.
type Calculator struct{}

var _ api.Tool = Calculator{}

func NewCalculator() Calculator { return Calculator{} }

func (Calculator) Name() string { return "calculator" }

func (Calculator) Description() string {
	return "Performs basic arithmetic operations: add, subtract, multiply, divide"
}

func (c Calculator) Schema() api.ToolSchema {
	return api.ToolSchema{
		Name:        c.Name(),
		Description: c.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"enum":        []string{OpAdd, OpSubtract, OpMultiply, OpDivide},
					"description": "The arithmetic operation to perform",
				},
				"a": map[string]any{"type": "number", "description": "First number"},
				"b": map[string]any{"type": "number", "description": "Second number"},
			},
			"required": []string{"operation", "a", "b"},
		},
	}
}

// Validate rejects missing or non-numeric operands and division by zero.
func (Calculator) Validate(params map[string]any) bool {
	if _, ok := ToFloat(params["a"]); !ok {
		return false
	}
	b, ok := ToFloat(params["b"])
	if !ok {
		return false
	}
	op, _ := params["operation"].(string)
	return !(op == OpDivide && b == 0)
}

func (Calculator) Execute(ctx context.Context, params map[string]any) (any, error) {
	op, _ := params["operation"].(string)
	a, ok := ToFloat(params["a"])
	if !ok {
		return nil, fmt.Errorf("operand a: not a number: %v", params["a"])
	}
	b, ok := ToFloat(params["b"])
	if !ok {
		return nil, fmt.Errorf("operand b: not a number: %v", params["b"])
	}

	switch op {
	case OpAdd:
		return a + b, nil
	case OpSubtract:
		return a - b, nil
	case OpMultiply:
		return a * b, nil
	case OpDivide:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		return a / b, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}

// ToFloat converts the numeric representations that show up in resolved
// tool parameters.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
