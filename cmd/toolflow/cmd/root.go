// Package cmd implements the toolflow command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "toolflow",
		Short: "Run tool workflows defined in YAML, TOML or JSON",
		Long: `toolflow executes workflows made of tool, condition, parallel and loop steps.

Steps share a context. Tool parameters may reference it with ${context.key},
${step_id.result} and ${step_id.error}; conditions are CEL expressions over
context and step_results.

Tools come from the built-in set (calculator, weather) and from any MCP
servers listed in the configuration file.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv(config.EnvConfigPath),
		"config file (TOML); defaults to $"+config.EnvConfigPath)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.SetVersionTemplate("toolflow {{.Version}}\n")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newConvertCmd(),
		newToolsCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
