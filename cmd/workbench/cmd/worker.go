package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentworkbench/workbench/internal/events"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue-polling worker",
	Long: `Start the worker poll loop. The worker claims queued runs oldest
first, executes the pipeline for each, and records terminal status.

The worker shuts down gracefully on SIGINT/SIGTERM: it stops claiming
new runs immediately and waits for the in-flight run to finish.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.New(256)
	defer bus.Close()

	scheduler := newScheduler(cfg, store, bus, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		scheduler.Drain(context.Background())
	}()

	return scheduler.Run(ctx)
}
