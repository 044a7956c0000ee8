// Package cmd implements the workbench CLI.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Queue-driven analysis and generation pipeline for web projects",
	Long: `workbench runs a fixed analysis/generation pipeline against web
projects: it outlines the project repository, lists its deployments, and
asks an LLM for HTML improvements, recording per-node state, logs, and
cost estimates in a durable store.

Runs are submitted through the API or 'workbench submit' and drained by
the 'workbench worker' poll loop.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// GetVersion returns the application version string.
func GetVersion() string {
	return appVersion
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .workbench/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")

	// Bind flags to viper (errors are nil when flag exists)
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}
