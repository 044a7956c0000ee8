package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agentworkbench/workbench/internal/core"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a run for a project",
	Long: `Insert a queued run for a project directly into the store. The
worker picks it up on its next poll.

Examples:
  workbench submit --project 4f7c... --label "nightly check"`,
	RunE: runSubmit,
}

var (
	submitProject string
	submitLabel   string
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitProject, "project", "",
		"Project ID to run (required)")
	submitCmd.Flags().StringVar(&submitLabel, "label", "",
		"Optional run label")
	_ = submitCmd.MarkFlagRequired("project")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
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
	if _, err := store.GetProject(ctx, core.ProjectID(submitProject)); err != nil {
		return err
	}

	now := time.Now().UTC()
	label := submitLabel
	if label == "" {
		label = fmt.Sprintf("Run %s", now.Format(time.RFC3339))
	}

	run := &core.Run{
		ID:        core.RunID(uuid.NewString()),
		ProjectID: core.ProjectID(submitProject),
		Label:     label,
		Status:    core.RunStatusQueued,
		StartedAt: now,
		Meta:      map[string]any{},
	}
	if err := store.CreateRun(ctx, run); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queued run %s\n", run.ID)
	return nil
}
