// Package worker runs the polling scheduler that drains the run queue.
// One scheduler instance per store is assumed; run claiming is a plain
// status update, not an atomic compare-and-swap.
package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/events"
	"github.com/agentworkbench/workbench/internal/runlog"
)

const (
	defaultPollInterval         = 5 * time.Second
	defaultShutdownPollInterval = time.Second
)

// Executor executes a claimed run's pipeline. A non-nil error fails
// the run.
type Executor interface {
	Execute(ctx context.Context, run *core.Run, project *core.Project, rl core.RunLogger) (map[string]any, error)
}

// Config holds scheduler tuning knobs.
type Config struct {
	PollInterval         time.Duration
	ShutdownPollInterval time.Duration
}

// Scheduler polls the store for queued runs and processes them one at
// a time, oldest first. Failures reading the queue are logged and
// polling continues; a run in flight always reaches terminal status
// before the scheduler stops.
type Scheduler struct {
	store    core.Store
	executor Executor
	bus      *events.Bus
	logger   *slog.Logger
	cfg      Config

	current atomic.Value // core.RunID of the in-flight run, "" when idle
}

// New creates a scheduler.
func New(store core.Store, executor Executor, bus *events.Bus, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ShutdownPollInterval <= 0 {
		cfg.ShutdownPollInterval = defaultShutdownPollInterval
	}
	s := &Scheduler{
		store:    store,
		executor: executor,
		bus:      bus,
		logger:   logger,
		cfg:      cfg,
	}
	s.current.Store(core.RunID(""))
	return s
}

// CurrentRun returns the id of the run being processed, or "" when the
// scheduler is idle.
func (s *Scheduler) CurrentRun() core.RunID {
	return s.current.Load().(core.RunID)
}

// Run polls until ctx is canceled. Cancellation stops new claims
// immediately; an in-flight run finishes on a detached context before
// Run returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("worker started", "poll_interval", s.cfg.PollInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("worker stopped")
			return nil
		default:
		}

		run, project, err := s.store.NextQueuedRun(ctx)
		if err != nil {
			s.logger.Error("failed to fetch queued runs", "error", err)
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}
		if run == nil {
			s.sleep(ctx, s.cfg.PollInterval)
			continue
		}

		// The run must reach terminal status even if shutdown begins
		// mid-execution.
		s.processRun(context.WithoutCancel(ctx), run, project)
	}
}

// Drain blocks until no run is in flight, checking at the shutdown
// poll cadence. Called alongside cancellation to report progress while
// the in-flight run completes.
func (s *Scheduler) Drain(ctx context.Context) {
	for {
		id := s.CurrentRun()
		if id == "" {
			return
		}
		s.logger.Info("waiting for current run to complete", "run_id", id)
		timer := time.NewTimer(s.cfg.ShutdownPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) processRun(ctx context.Context, run *core.Run, project *core.Project) {
	s.current.Store(run.ID)
	defer s.current.Store(core.RunID(""))

	rl := runlog.New(run.ID, "worker", s.logger, s.store)
	rl.Info(ctx, "processing run", map[string]any{
		"run_id":       string(run.ID),
		"project_name": project.Name,
		"label":        run.Label,
	})

	if err := s.store.ClaimRun(ctx, run.ID); err != nil {
		s.failRun(ctx, rl, run.ID, core.ErrState(core.CodeClaimFailed, "failed to update run status").WithCause(err))
		return
	}
	s.bus.Publish(events.NewRunClaimedEvent(run.ID, project.ID, run.Label))

	started := time.Now()
	if _, err := s.executor.Execute(ctx, run, project, rl); err != nil {
		s.failRun(ctx, rl, run.ID, err)
		return
	}

	if err := s.store.FinishRun(ctx, run.ID, core.RunStatusSuccess, time.Now().UTC(), nil); err != nil {
		s.logger.Error("failed to mark run as successful", "run_id", run.ID, "error", err)
	}
	rl.Info(ctx, "run completed successfully", nil)
	s.bus.Publish(events.NewRunSucceededEvent(run.ID, time.Since(started)))
}

// failRun records the terminal error status. The error message is
// merged into the run's meta map without discarding prior keys. A
// failed terminal write is logged only; the run is not re-queued.
func (s *Scheduler) failRun(ctx context.Context, rl core.RunLogger, id core.RunID, runErr error) {
	rl.Error(ctx, "run failed", map[string]any{"error": runErr.Error()})

	meta := map[string]any{"error": runErr.Error()}
	if err := s.store.FinishRun(ctx, id, core.RunStatusError, time.Now().UTC(), meta); err != nil {
		s.logger.Error("failed to mark run as failed", "run_id", id, "error", err)
	}
	s.bus.PublishPriority(events.NewRunFailedEvent(id, runErr))
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
