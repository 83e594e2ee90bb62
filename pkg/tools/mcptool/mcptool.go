// Package mcptool adapts tools served by an MCP (Model Context Protocol)
// server to the api.Tool interface, so workflow steps can call them like
// any local tool.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/petrijr/toolflow/pkg/api"
)

// ErrToolFailed wraps results the server flagged with isError.
var ErrToolFailed = errors.New("mcp tool reported an error")

// Caller is the part of an MCP client a Tool needs. *client.Client
// satisfies it.
type Caller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Lister is a Caller that can also enumerate the server's tools.
type Lister interface {
	Caller
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
}

// Tool is an api.Tool backed by one tool on an MCP server.
type Tool struct {
	caller Caller
	def    mcp.Tool
	name   string
	schema map[string]any
}

var _ api.Tool = (*Tool)(nil)

// Option customizes a Tool.
type Option func(*Tool)

// WithPrefix registers the tool as "<prefix>.<name>" while still calling the
// server with the original name. Useful when several servers expose tools
// with the same name.
func WithPrefix(prefix string) Option {
	return func(t *Tool) {
		if prefix != "" {
			t.name = prefix + "." + t.def.Name
		}
	}
}

// New wraps def, as returned by the server's tools/list, into a Tool that
// calls through caller.
func New(caller Caller, def mcp.Tool, opts ...Option) *Tool {
	t := &Tool{
		caller: caller,
		def:    def,
		name:   def.Name,
		schema: inputSchema(def),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Discover lists the server's tools and wraps each of them.
func Discover(ctx context.Context, c Lister, opts ...Option) ([]*Tool, error) {
	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}
	tools := make([]*Tool, 0, len(res.Tools))
	for _, def := range res.Tools {
		tools = append(tools, New(c, def, opts...))
	}
	return tools, nil
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.def.Description }

// Schema returns the input schema reported by the server.
func (t *Tool) Schema() api.ToolSchema {
	return api.ToolSchema{Name: t.name, Description: t.def.Description, Parameters: t.schema}
}

// Validate checks that every parameter the schema marks as required is
// present and non-nil. Type checking is left to the server.
func (t *Tool) Validate(params map[string]any) bool {
	for _, key := range requiredKeys(t.schema) {
		if v, ok := params[key]; !ok || v == nil {
			return false
		}
	}
	return true
}

// Execute calls the tool on the server. Structured content is returned as
// is; otherwise the text parts of the result are joined with newlines.
func (t *Tool) Execute(ctx context.Context, params map[string]any) (any, error) {
	res, err := t.caller.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      t.def.Name,
			Arguments: params,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("call mcp tool %q: %w", t.def.Name, err)
	}
	if res == nil {
		return nil, nil
	}

	text := textOf(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("%w: %s: %s", ErrToolFailed, t.def.Name, text)
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func textOf(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		switch tc := c.(type) {
		case mcp.TextContent:
			parts = append(parts, tc.Text)
		case *mcp.TextContent:
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// inputSchema converts the tool's input schema into a plain JSON map.
func inputSchema(def mcp.Tool) map[string]any {
	var raw []byte
	if len(def.RawInputSchema) > 0 {
		raw = def.RawInputSchema
	} else {
		b, err := json.Marshal(def.InputSchema)
		if err != nil {
			return api.EmptyParameters()
		}
		raw = b
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return api.EmptyParameters()
	}
	return schema
}

func requiredKeys(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		keys := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				keys = append(keys, s)
			}
		}
		return keys
	}
	return nil
}
