package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "workbench %s\n", appVersion)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", appCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
