package mcptool

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/toolflow/pkg/api"
)

type fakeServer struct {
	tools   []mcp.Tool
	calls   []mcp.CallToolRequest
	result  *mcp.CallToolResult
	err     error
	listErr error
}

func (f *fakeServer) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeServer) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_docs",
		mcp.WithDescription("Search internal documentation"),
		mcp.WithString("query", mcp.Required()),
		mcp.WithNumber("limit"),
	)
}

func TestTool_SchemaAndValidate(t *testing.T) {
	tool := New(&fakeServer{}, searchTool())

	assert.Equal(t, "search_docs", tool.Name())
	assert.Equal(t, "Search internal documentation", tool.Description())

	schema := tool.Schema()
	assert.Equal(t, "object", schema.Parameters["type"])
	assert.Contains(t, schema.Parameters["properties"], "query")

	assert.True(t, tool.Validate(map[string]any{"query": "cel"}))
	assert.False(t, tool.Validate(map[string]any{"limit": 3}))
	assert.False(t, tool.Validate(map[string]any{"query": nil}))
}

func TestTool_ExecuteText(t *testing.T) {
	srv := &fakeServer{result: mcp.NewToolResultText("three results")}
	tool := New(srv, searchTool(), WithPrefix("docs"))

	assert.Equal(t, "docs.search_docs", tool.Name())

	out, err := tool.Execute(context.Background(), map[string]any{"query": "cel"})
	require.NoError(t, err)
	assert.Equal(t, "three results", out)

	require.Len(t, srv.calls, 1)
	assert.Equal(t, "search_docs", srv.calls[0].Params.Name)
	assert.Equal(t, map[string]any{"query": "cel"}, srv.calls[0].GetArguments())
}

func TestTool_ExecuteStructured(t *testing.T) {
	structured := map[string]any{"hits": 3.0}
	srv := &fakeServer{result: &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent("{\"hits\":3}")},
		StructuredContent: structured,
	}}

	out, err := New(srv, searchTool()).Execute(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, structured, out)
}

func TestTool_ExecuteErrors(t *testing.T) {
	srv := &fakeServer{result: mcp.NewToolResultError("index offline")}
	_, err := New(srv, searchTool()).Execute(context.Background(), map[string]any{"query": "x"})
	require.ErrorIs(t, err, ErrToolFailed)
	assert.Contains(t, err.Error(), "index offline")

	transport := errors.New("broken pipe")
	srv = &fakeServer{err: transport}
	_, err = New(srv, searchTool()).Execute(context.Background(), map[string]any{"query": "x"})
	assert.ErrorIs(t, err, transport)
}

func TestDiscover(t *testing.T) {
	srv := &fakeServer{tools: []mcp.Tool{
		searchTool(),
		mcp.NewTool("ping", mcp.WithDescription("Ping")),
	}}

	tools, err := Discover(context.Background(), srv, WithPrefix("kb"))
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "kb.search_docs", tools[0].Name())
	assert.Equal(t, "kb.ping", tools[1].Name())
	assert.True(t, tools[1].Validate(nil))

	registry, err := api.NewRegistry(tools[0], tools[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"kb.ping", "kb.search_docs"}, registry.Names())

	srv.listErr = errors.New("not initialized")
	_, err = Discover(context.Background(), srv)
	assert.ErrorIs(t, err, srv.listErr)
}
