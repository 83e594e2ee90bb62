package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/pkg/definition"
)

func newValidateCmd(g *globalOptions) *cobra.Command {
	var checkTools bool
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check workflow definition files",
		Long: `Validate parses each file and checks every workflow in it: step
references, branch widths, nesting rules and loop bounds.

With --tools it also checks that every tool step names a known tool, which
starts the configured MCP servers.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var known map[string]bool
			if checkTools {
				cfg, logger, err := g.loadConfig(cmd)
				if err != nil {
					return err
				}
				ts, err := loadTools(cmd.Context(), cfg, logger)
				if err != nil {
					return err
				}
				defer func() { _ = ts.Close() }()
				known = make(map[string]bool, len(ts.registry))
				for _, name := range ts.registry.Names() {
					known[name] = true
				}
			}

			var errs []error
			for _, path := range args {
				if err := validateFile(cmd, path, known); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&checkTools, "tools", false, "also check tool names against the available tools")
	return cmd
}

// validateFile reports on one file. A nil known skips the tool check.
func validateFile(cmd *cobra.Command, path string, known map[string]bool) error {
	out := cmd.OutOrStdout()
	wfs, err := definition.LoadWorkflows(path)
	if err != nil {
		fmt.Fprintf(out, "FAIL %s\n", path)
		return err
	}

	var errs []error
	if known != nil {
		for _, wf := range wfs {
			for _, name := range toolNames(wf) {
				if !known[name] {
					errs = append(errs, fmt.Errorf("workflow %q: unknown tool %q", wf.ID, name))
				}
			}
		}
	}
	if len(errs) > 0 {
		fmt.Fprintf(out, "FAIL %s\n", path)
		return errors.Join(errs...)
	}

	for _, wf := range wfs {
		fmt.Fprintf(out, "ok   %s: %s (%d steps)\n", path, wf.ID, len(wf.Steps))
	}
	return nil
}
