package api

import (
	"errors"
	"fmt"
)

// Configuration errors. They indicate a malformed workflow definition and are
// never routed through a step's error wiring.
var (
	ErrDuplicateStep       = errors.New("duplicate step id")
	ErrStepNotFound        = errors.New("step not found")
	ErrMissingStartStep    = errors.New("start step not found")
	ErrUnsupportedStepType = errors.New("unsupported step type")
	ErrMultipleNextSteps   = errors.New("multiple next steps on a branch; use a parallel step for fan-out")
	ErrCycleDetected       = errors.New("workflow cycle detected")
	ErrUnsupportedNesting  = errors.New("unsupported step nesting")
	ErrInvalidStep         = errors.New("invalid step")
)

// Tool errors.
var (
	// ErrToolNotFound is returned when a step names a tool missing from the
	// registry. It is fatal and is not routed through OnError.
	ErrToolNotFound = errors.New("tool not found for step")

	// ErrValidationFailed is recorded when Tool.Validate rejects the
	// resolved parameters. It is handled like an execution failure.
	ErrValidationFailed = errors.New("tool parameter validation failed")
)

// ConfigError describes a configuration error with the offending step.
type ConfigError struct {
	StepID string
	Field  string
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	switch {
	case e.StepID != "" && e.Field != "":
		return fmt.Sprintf("step %q (%s): %s", e.StepID, e.Field, msg)
	case e.StepID != "":
		return fmt.Sprintf("step %q: %s", e.StepID, msg)
	default:
		return msg
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a ConfigError. detail is optional.
func NewConfigError(stepID, field string, err error, detail string) *ConfigError {
	return &ConfigError{StepID: stepID, Field: field, Err: err, Detail: detail}
}

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ToolError is the fatal error returned when a tool step fails and neither
// OnError nor ContinueOnError handles it.
type ToolError struct {
	StepID   string
	ToolName string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed in step %q: %v", e.ToolName, e.StepID, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// IsToolError returns the ToolError wrapped in err, if any.
func IsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
