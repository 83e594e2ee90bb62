package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/pkg/api"
)

func newToolsCmd(g *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			ts, err := loadTools(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = ts.Close() }()

			if asJSON {
				return writeJSON(cmd, ts.registry.Schemas())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, name := range ts.registry.Names() {
				t, _ := ts.registry.Lookup(name)
				fmt.Fprintf(w, "%s\t%s\n", name, t.Description())
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tool schemas as JSON")
	return cmd
}

// toolNames lists the distinct tool names used by wf's tool steps.
func toolNames(wf *api.Workflow) []string {
	seen := map[string]bool{}
	var names []string
	for _, id := range sortedKeys(wf.Steps) {
		if ts, ok := wf.Steps[id].(*api.ToolStep); ok && !seen[ts.ToolName] {
			seen[ts.ToolName] = true
			names = append(names, ts.ToolName)
		}
	}
	return names
}
