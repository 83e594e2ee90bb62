package api

import (
	"context"
	"fmt"
	"sort"
)

// ToolSchema documents a tool's parameters (JSON schema). The engine never
// consults it; it is exposed for callers such as the CLI or model adapters.
type ToolSchema struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

// EmptyParameters is the schema used by tools that take no parameters.
func EmptyParameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

// Tool is a named unit of work invoked by tool steps.
//
// Validate is called with the resolved parameters before Execute; returning
// false is treated exactly like Execute returning an error. Execute blocks
// until the work completes; timeouts are the caller's concern and can be
// applied through ctx.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Validate(params map[string]any) bool
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Registry maps tool names to tools.
type Registry map[string]Tool

// NewRegistry builds a Registry keyed by Tool.Name.
func NewRegistry(tools ...Tool) (Registry, error) {
	r := make(Registry, len(tools))
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(tools ...Tool) Registry {
	r, err := NewRegistry(tools...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds t under its name. Registering a name twice is an error.
func (r Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("toolflow: nil tool")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("toolflow: tool name must not be empty")
	}
	if _, exists := r[name]; exists {
		return fmt.Errorf("toolflow: tool %q already registered", name)
	}
	r[name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r Registry) Lookup(name string) (Tool, bool) {
	t, ok := r[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the schemas of all registered tools, sorted by name.
func (r Registry) Schemas() []ToolSchema {
	out := make([]ToolSchema, 0, len(r))
	for _, n := range r.Names() {
		out = append(out, r[n].Schema())
	}
	return out
}

// ToolFunc adapts a function into a Tool. It is mostly useful in tests and
// small programs; Validate always succeeds unless ValidateFn is set.
type ToolFunc struct {
	ToolName   string
	Desc       string
	Params     map[string]any
	ValidateFn func(params map[string]any) bool
	Fn         func(ctx context.Context, params map[string]any) (any, error)
}

var _ Tool = (*ToolFunc)(nil)

func (t *ToolFunc) Name() string        { return t.ToolName }
func (t *ToolFunc) Description() string { return t.Desc }

func (t *ToolFunc) Schema() ToolSchema {
	params := t.Params
	if params == nil {
		params = EmptyParameters()
	}
	return ToolSchema{Name: t.ToolName, Description: t.Desc, Parameters: params}
}

func (t *ToolFunc) Validate(params map[string]any) bool {
	if t.ValidateFn == nil {
		return true
	}
	return t.ValidateFn(params)
}

func (t *ToolFunc) Execute(ctx context.Context, params map[string]any) (any, error) {
	if t.Fn == nil {
		return nil, fmt.Errorf("tool %q has no function", t.ToolName)
	}
	return t.Fn(ctx, params)
}
