package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/agentworkbench/workbench/internal/adapters/github"
	"github.com/agentworkbench/workbench/internal/adapters/openai"
	"github.com/agentworkbench/workbench/internal/adapters/state"
	"github.com/agentworkbench/workbench/internal/adapters/vercel"
	"github.com/agentworkbench/workbench/internal/config"
	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/cost"
	"github.com/agentworkbench/workbench/internal/events"
	"github.com/agentworkbench/workbench/internal/graph"
	"github.com/agentworkbench/workbench/internal/logging"
	"github.com/agentworkbench/workbench/internal/tools"
	"github.com/agentworkbench/workbench/internal/worker"
)

// newLogger builds the process logger from the persistent flags.
func newLogger() *slog.Logger {
	return logging.New(logging.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: os.Stderr,
	})
}

// loadConfig loads configuration through the shared viper instance so
// persistent flag bindings take effect.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	return loader.Load()
}

// openStore opens the SQLite store, creating the parent directory when
// needed.
func openStore(cfg *config.Config) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return state.NewSQLiteStore(cfg.Store.Path)
}

// buildExecutor wires the tool set against configured credentials.
// Tools with missing credentials stay functional with degraded results.
func buildExecutor(cfg *config.Config, store core.Store, bus *events.Bus, logger *slog.Logger) *graph.Executor {
	tracker := cost.NewTracker(store, logger)

	var gh tools.GitHubClient
	if cfg.GitHub.Token != "" {
		gh = github.NewClient(cfg.GitHub.Token)
	} else {
		logger.Warn("no GitHub token configured, repo outline will use mock data")
	}

	var vc tools.VercelClient
	if cfg.Vercel.Token != "" {
		vc = vercel.NewClient(cfg.Vercel.Token)
	} else {
		logger.Warn("no Vercel token configured, deployment listing will be empty")
	}

	var llm tools.Completer
	if cfg.OpenAI.APIKey != "" {
		llm = openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		logger.Warn("no OpenAI API key configured, HTML improvement will use mock data")
	}

	toolset := []core.Tool{
		tools.NewOutlineTool(gh, logger, store),
		tools.NewDeploysTool(vc, logger, store),
		tools.NewImproveTool(llm, tracker, logger, store),
	}
	return graph.NewExecutor(store, toolset, bus, logger, graph.Config{
		ToolTimeout: cfg.Worker.ToolTimeout,
	})
}

// newScheduler assembles the full worker stack.
func newScheduler(cfg *config.Config, store core.Store, bus *events.Bus, logger *slog.Logger) *worker.Scheduler {
	executor := buildExecutor(cfg, store, bus, logger)
	return worker.New(store, executor, bus, logger, worker.Config{
		PollInterval:         cfg.Worker.PollInterval,
		ShutdownPollInterval: cfg.Worker.ShutdownPollInterval,
	})
}
