package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/internal/config"
	"github.com/petrijr/toolflow/internal/persistence"
	"github.com/petrijr/toolflow/internal/telemetry"
	"github.com/petrijr/toolflow/pkg/api"
	"github.com/petrijr/toolflow/pkg/tools"
	"github.com/petrijr/toolflow/pkg/tools/mcptool"
)

// loadConfig reads the config file and builds the logger. Logs go to the
// command's stderr so stdout stays machine-readable.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = config.LogLevel(strings.ToLower(o.logLevel))
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), string(cfg.Logging.Level), string(cfg.Logging.Format))
	return cfg, logger, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*persistence.Persistence, error) {
	p, err := persistence.Open(ctx, persistence.Backend(cfg.History.Backend), cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s history: %w", cfg.History.Backend, err)
	}
	return p, nil
}

// toolset is the registry a command runs against and the MCP servers
// backing part of it.
type toolset struct {
	registry api.Registry
	servers  []*mcptool.Server
}

// loadTools registers the built-in tools and every tool exposed by the
// configured MCP servers.
func loadTools(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*toolset, error) {
	ts := &toolset{registry: api.MustRegistry(tools.NewCalculator(), tools.NewWeather())}

	for _, s := range cfg.MCPServers {
		srv, err := mcptool.Connect(ctx, mcptool.ServerConfig{
			Name:    s.Name,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.EnvList(),
		}, "toolflow", Version)
		if err != nil {
			return nil, errors.Join(err, ts.Close())
		}
		ts.servers = append(ts.servers, srv)
		for _, t := range srv.Tools {
			if err := ts.registry.Register(t); err != nil {
				return nil, errors.Join(err, ts.Close())
			}
		}
		logger.InfoContext(ctx, "mcp_server_connected",
			slog.String("server", s.Name),
			slog.Int("tools", len(srv.Tools)),
		)
	}
	return ts, nil
}

// Close stops the MCP server subprocesses.
func (ts *toolset) Close() error {
	var errs []error
	for _, s := range ts.servers {
		errs = append(errs, s.Close())
	}
	ts.servers = nil
	return errors.Join(errs...)
}
