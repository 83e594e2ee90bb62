package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/toolflow/internal/persistence"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `History reads the run records written by toolflow run.

The memory backend forgets everything when the process exits, so configure a
persistent [history] backend (sqlite, postgres, redis or mongo) to use it.`,
	}
	cmd.AddCommand(newHistoryListCmd(g), newHistoryShowCmd(g))
	return cmd
}

func newHistoryListCmd(g *globalOptions) *cobra.Command {
	var filter persistence.RunFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch persistence.RunStatus(status) {
			case "", persistence.RunCompleted, persistence.RunFailed:
				filter.Status = persistence.RunStatus(status)
			default:
				return fmt.Errorf("invalid --status %q (expected completed or failed)", status)
			}

			cfg, _, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			history, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = history.Close() }()

			runs, err := history.Runs.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tWORKFLOW\tSTATUS\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.WorkflowID, r.Status,
					r.StartedAt.Format(time.RFC3339),
					r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.WorkflowID, "workflow", "", "only runs of this workflow")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (completed or failed)")
	return cmd
}

func newHistoryShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a recorded run and its events as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			history, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = history.Close() }()

			rec, err := history.Runs.GetRun(cmd.Context(), args[0])
			if errors.Is(err, persistence.ErrRunNotFound) {
				return fmt.Errorf("run %q not found", args[0])
			}
			if err != nil {
				return err
			}
			events, err := history.Events.ListEvents(cmd.Context(), rec.ID)
			if err != nil {
				return err
			}

			view := newRunView(rec)
			for _, ev := range events {
				view.Events = append(view.Events, eventView{
					At:     ev.At,
					Type:   string(ev.Type),
					StepID: ev.StepID,
					Detail: ev.Detail,
				})
			}
			return writeJSON(cmd, view)
		},
	}
}
