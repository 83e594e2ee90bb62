package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/pkg/definition"
)

func newConvertCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Re-encode workflow definitions as YAML, TOML or JSON",
		Long: `Convert reads the workflow definitions in file and writes them to stdout in
another format. Several YAML documents become a multi-document YAML stream;
TOML and JSON output hold one workflow each, so a file with several
workflows can only be converted to YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := definition.Format(to)
			switch format {
			case definition.FormatYAML, definition.FormatTOML, definition.FormatJSON:
			default:
				return fmt.Errorf("%w: %q", definition.ErrUnknownFormat, to)
			}

			docs, err := definition.LoadFile(args[0])
			if err != nil {
				return err
			}
			if len(docs) > 1 && format != definition.FormatYAML {
				return fmt.Errorf("%s holds %d workflows; only yaml output supports several", args[0], len(docs))
			}

			out := cmd.OutOrStdout()
			for i, doc := range docs {
				if i > 0 {
					fmt.Fprintln(out, "---")
				}
				if err := definition.Encode(out, doc, format); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "yaml", "output format: yaml, toml or json")
	return cmd
}
