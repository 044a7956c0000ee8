package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentworkbench/workbench/internal/api"
	"github.com/agentworkbench/workbench/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the HTTP API server for run submission and observability.

Examples:
  # Start with defaults (localhost:8080)
  workbench serve

  # Bind to all interfaces on a custom port
  workbench serve --host 0.0.0.0 --port 3000

  # Serve the API and run the worker in one process
  workbench serve --with-worker`,
	RunE: runServe,
}

var (
	serveHost       string
	servePort       int
	serveNoCORS     bool
	serveWithWorker bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "localhost",
		"Host address to bind to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080,
		"Port to listen on")
	serveCmd.Flags().BoolVar(&serveNoCORS, "no-cors", false,
		"Disable CORS headers")
	serveCmd.Flags().BoolVar(&serveWithWorker, "with-worker", false,
		"Run the queue worker in the same process")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveNoCORS {
		cfg.Server.EnableCORS = false
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.New(256)
	defer bus.Close()

	server := api.NewServer(store, bus,
		api.WithLogger(logger),
		api.WithCORS(cfg.Server.EnableCORS),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, addr)
	})
	if serveWithWorker {
		scheduler := newScheduler(cfg, store, bus, logger)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}

	return g.Wait()
}
