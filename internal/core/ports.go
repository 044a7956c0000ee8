package core

import (
	"context"
	"time"
)

// =============================================================================
// Persistence Gateway Port
// =============================================================================

// Store is the persistence gateway shared by all components. The durable
// store is the single source of truth: no in-memory authoritative state
// survives a process restart.
type Store interface {
	// Projects.
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)

	// Runs. Runs are created by the submission boundary; the scheduler
	// exclusively owns status transitions afterwards.
	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id RunID) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// NextQueuedRun returns the oldest queued run (earliest StartedAt)
	// joined with its project, or (nil, nil, nil) when the queue is empty.
	NextQueuedRun(ctx context.Context) (*Run, *Project, error)

	// ClaimRun moves a run from queued to running. There is no
	// compare-and-swap against a concurrent claim: a single worker per
	// store is assumed. Multi-worker deployment requires making this an
	// atomic conditional update first.
	ClaimRun(ctx context.Context, id RunID) error

	// FinishRun sets the terminal status and finish timestamp, and merges
	// the given keys into the run's meta map without discarding prior keys.
	FinishRun(ctx context.Context, id RunID, status RunStatus, finishedAt time.Time, meta map[string]any) error

	// Graph skeleton. Both inserts are batch operations; a run's graph is
	// written in full before any node executes.
	InsertNodes(ctx context.Context, nodes []*GraphNode) error
	InsertEdges(ctx context.Context, edges []*GraphEdge) error
	UpdateNodeState(ctx context.Context, id NodeID, state NodeState) error
	ListNodes(ctx context.Context, runID RunID) ([]*GraphNode, error)
	ListEdges(ctx context.Context, runID RunID) ([]*GraphEdge, error)

	// Append-only audit trail.
	AppendLog(ctx context.Context, e *LogEntry) error
	ListLogs(ctx context.Context, runID RunID) ([]*LogEntry, error)
	AppendCost(ctx context.Context, c *CostRecord) error
	ListCosts(ctx context.Context, runID RunID) ([]*CostRecord, error)

	// MostRecentRunningRun returns the newest run with status running, or
	// nil when none is running. Used by the message-intake endpoint.
	MostRecentRunningRun(ctx context.Context) (*Run, error)

	Close() error
}

// =============================================================================
// Tool Adapter Port
// =============================================================================

// Tool is one opaque unit of work a graph node delegates to. A tool
// returns a JSON-serializable result on success. Missing credentials are
// handled inside the tool with a valid degraded result; returning an
// error is reserved for unexpected faults.
type Tool interface {
	// Name returns the stable topology identifier (e.g. "repo-outline").
	Name() string

	Execute(ctx context.Context, runID RunID, project *Project) (map[string]any, error)
}

// =============================================================================
// Run Logger Port
// =============================================================================

// RunLogger is the per-run append-only log sink. Implementations must
// never return control-flow-interrupting failures to the caller: every
// method is fire-and-forget from the caller's perspective.
type RunLogger interface {
	Info(ctx context.Context, msg string, data map[string]any)
	Warn(ctx context.Context, msg string, data map[string]any)
	Error(ctx context.Context, msg string, data map[string]any)
	Debug(ctx context.Context, msg string, data map[string]any)
}

// =============================================================================
// Cost Tracker Port
// =============================================================================

// CostTracker converts raw token usage into cost records. Recording is
// best-effort: an unrecognized provider or a persistence failure is
// logged and swallowed, never propagated.
type CostTracker interface {
	Record(ctx context.Context, runID RunID, usage TokenUsage)
}
