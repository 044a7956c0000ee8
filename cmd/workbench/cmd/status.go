package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentworkbench/workbench/internal/core"
)

var statusCmd = &cobra.Command{
	Use:   "status [runID]",
	Short: "Show run status",
	Long: `Show recent runs, or the node-level detail of a single run when a
run ID is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 10,
		"Number of recent runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		runs, err := store.ListRuns(ctx, statusLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %-8s  %s  %s\n",
				r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), r.Label)
		}
		return nil
	}

	runID := core.RunID(args[0])
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s\n", run.ID)
	fmt.Fprintf(out, "  project:  %s\n", run.ProjectID)
	fmt.Fprintf(out, "  label:    %s\n", run.Label)
	fmt.Fprintf(out, "  status:   %s\n", run.Status)
	fmt.Fprintf(out, "  started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "  finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if msg, ok := run.Meta["error"].(string); ok {
		fmt.Fprintf(out, "  error:    %s\n", msg)
	}

	nodes, err := store.ListNodes(ctx, runID)
	if err != nil {
		return err
	}
	if len(nodes) > 0 {
		fmt.Fprintln(out, "  nodes:")
		for _, n := range nodes {
			line := fmt.Sprintf("    %-10s %s", n.State.Status, n.Label)
			if n.State.Error != "" {
				line += ": " + n.State.Error
			}
			fmt.Fprintln(out, line)
		}
	}

	costs, err := store.ListCosts(ctx, runID)
	if err != nil {
		return err
	}
	if len(costs) > 0 {
		var total float64
		for _, c := range costs {
			total += c.USD
		}
		fmt.Fprintf(out, "  cost:     $%.6f across %d records\n", total, len(costs))
	}
	return nil
}
