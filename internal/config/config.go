// Package config loads the toolflow CLI configuration from TOML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "TOOLFLOW_CONFIG"

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
}

// EngineConfig holds interpreter settings.
type EngineConfig struct {
	// Concurrency bounds parallel fan-out; 1 runs children in order.
	Concurrency int `toml:"concurrency"`
}

// HistoryConfig selects where run records are written.
type HistoryConfig struct {
	// Backend is one of memory, sqlite, postgres, redis or mongo.
	Backend string `toml:"backend"`
	DSN     string `toml:"dsn"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus metrics after each run.
	Textfile string `toml:"textfile"`
}

// MCPServer describes an MCP server whose tools are made available to
// workflows.
type MCPServer struct {
	Name    string            `toml:"name"`
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
}

// Config is the main configuration struct for toolflow.
type Config struct {
	Logging    LoggingConfig `toml:"logging"`
	Engine     EngineConfig  `toml:"engine"`
	History    HistoryConfig `toml:"history"`
	Metrics    MetricsConfig `toml:"metrics"`
	MCPServers []MCPServer   `toml:"mcp_servers"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
		Engine: EngineConfig{
			Concurrency: 1,
		},
		History: HistoryConfig{
			Backend: "memory",
		},
	}
}

// Load loads configuration from path, merging with defaults. A missing file
// yields the defaults. LOG_LEVEL and LOG_FORMAT override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Use defaults if no config file.
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = LogFormat(strings.ToLower(v))
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("engine concurrency must be at least 1")
	}
	switch c.History.Backend {
	case "memory", "sqlite", "postgres", "redis", "mongo":
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	seen := make(map[string]bool, len(c.MCPServers))
	for i, s := range c.MCPServers {
		if s.Name == "" {
			return fmt.Errorf("mcp_servers[%d]: name is required", i)
		}
		if s.Command == "" {
			return fmt.Errorf("mcp server %q: command is required", s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("mcp server %q defined twice", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// EnvList returns s.Env as KEY=VALUE pairs.
func (s MCPServer) EnvList() []string {
	out := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		out = append(out, k+"="+v)
	}
	return out
}
