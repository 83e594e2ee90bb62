package mcptool

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// ServerConfig describes an MCP server launched as a subprocess.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	// Env entries in KEY=VALUE form, added to the subprocess environment.
	Env []string
}

// Server is a connected stdio MCP server and the tools it exposes.
type Server struct {
	Name   string
	Tools  []*Tool
	client *client.Client
}

const listTimeout = 10 * time.Second

// Connect launches the server, performs the MCP handshake and discovers its
// tools. Tool names are prefixed with the server name when it is set.
func Connect(ctx context.Context, cfg ServerConfig, clientName, clientVersion string) (*Server, error) {
	// The stdio client starts the subprocess itself.
	c, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("start mcp server %q: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize mcp server %q: %w", cfg.Name, err)
	}

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	tools, err := Discover(listCtx, c, WithPrefix(cfg.Name))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("mcp server %q: %w", cfg.Name, err)
	}
	return &Server{Name: cfg.Name, Tools: tools, client: c}, nil
}

// Close stops the server subprocess.
func (s *Server) Close() error {
	return s.client.Close()
}
