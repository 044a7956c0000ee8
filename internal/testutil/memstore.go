package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

// MemStore is an in-memory core.Store for tests. Per-method failure
// injection hooks allow exercising persistence-error paths.
type MemStore struct {
	mu       sync.Mutex
	Projects map[core.ProjectID]*core.Project
	Runs     map[core.RunID]*core.Run
	Nodes    []*core.GraphNode
	Edges    []*core.GraphEdge
	Logs     []*core.LogEntry
	Costs    []*core.CostRecord

	// Failure injection. When set, the corresponding method returns the
	// error instead of mutating state.
	FailNextQueuedRun error
	FailClaimRun      error
	FailFinishRun     error
	FailInsertNodes   error
	FailInsertEdges   error
	FailUpdateNode    error
	FailAppendLog     error
	FailAppendCost    error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		Projects: make(map[core.ProjectID]*core.Project),
		Runs:     make(map[core.RunID]*core.Run),
	}
}

// SetFailNextQueuedRun swaps the NextQueuedRun failure injection under
// the store lock, safe to call while a poller is running.
func (s *MemStore) SetFailNextQueuedRun(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailNextQueuedRun = err
}

// CreateProject stores a project.
func (s *MemStore) CreateProject(_ context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Projects[p.ID] = p
	return nil
}

// GetProject fetches a project.
func (s *MemStore) GetProject(_ context.Context, id core.ProjectID) (*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Projects[id]
	if !ok {
		return nil, core.ErrNotFound(core.CodeProjectNotFound, fmt.Sprintf("project %s not found", id))
	}
	return p, nil
}

// ListProjects returns all projects.
func (s *MemStore) ListProjects(_ context.Context) ([]*core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Project, 0, len(s.Projects))
	for _, p := range s.Projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateRun stores a run.
func (s *MemStore) CreateRun(_ context.Context, r *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Meta == nil {
		r.Meta = map[string]any{}
	}
	s.Runs[r.ID] = r
	return nil
}

// GetRun fetches a run.
func (s *MemStore) GetRun(_ context.Context, id core.RunID) (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.Runs[id]
	if !ok {
		return nil, core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	return r, nil
}

// ListRuns returns runs newest first.
func (s *MemStore) ListRuns(_ context.Context, limit int) ([]*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Run, 0, len(s.Runs))
	for _, r := range s.Runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// NextQueuedRun returns the oldest queued run with its project.
func (s *MemStore) NextQueuedRun(_ context.Context) (*core.Run, *core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNextQueuedRun != nil {
		return nil, nil, s.FailNextQueuedRun
	}
	var oldest *core.Run
	for _, r := range s.Runs {
		if r.Status != core.RunStatusQueued {
			continue
		}
		if oldest == nil || r.StartedAt.Before(oldest.StartedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return nil, nil, nil
	}
	p, ok := s.Projects[oldest.ProjectID]
	if !ok {
		return nil, nil, core.ErrNotFound(core.CodeProjectNotFound,
			fmt.Sprintf("project %s not found", oldest.ProjectID))
	}
	return oldest, p, nil
}

// ClaimRun moves a run to running.
func (s *MemStore) ClaimRun(_ context.Context, id core.RunID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailClaimRun != nil {
		return s.FailClaimRun
	}
	r, ok := s.Runs[id]
	if !ok {
		return core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	r.Status = core.RunStatusRunning
	return nil
}

// FinishRun sets terminal status and merges meta.
func (s *MemStore) FinishRun(_ context.Context, id core.RunID, status core.RunStatus, finishedAt time.Time, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFinishRun != nil {
		return s.FailFinishRun
	}
	r, ok := s.Runs[id]
	if !ok {
		return core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	r.Status = status
	r.FinishedAt = &finishedAt
	for k, v := range meta {
		r.Meta[k] = v
	}
	return nil
}

// MostRecentRunningRun returns the newest running run or nil.
func (s *MemStore) MostRecentRunningRun(_ context.Context) (*core.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var newest *core.Run
	for _, r := range s.Runs {
		if r.Status != core.RunStatusRunning {
			continue
		}
		if newest == nil || r.StartedAt.After(newest.StartedAt) {
			newest = r
		}
	}
	return newest, nil
}

// InsertNodes appends node rows.
func (s *MemStore) InsertNodes(_ context.Context, nodes []*core.GraphNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertNodes != nil {
		return s.FailInsertNodes
	}
	s.Nodes = append(s.Nodes, nodes...)
	return nil
}

// InsertEdges appends edge rows.
func (s *MemStore) InsertEdges(_ context.Context, edges []*core.GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertEdges != nil {
		return s.FailInsertEdges
	}
	s.Edges = append(s.Edges, edges...)
	return nil
}

// UpdateNodeState replaces a node's state.
func (s *MemStore) UpdateNodeState(_ context.Context, id core.NodeID, state core.NodeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdateNode != nil {
		return s.FailUpdateNode
	}
	for _, n := range s.Nodes {
		if n.ID == id {
			n.State = state
			return nil
		}
	}
	return core.ErrNotFound("NODE_NOT_FOUND", fmt.Sprintf("node %s not found", id))
}

// ListNodes returns a run's nodes in insertion order.
func (s *MemStore) ListNodes(_ context.Context, runID core.RunID) ([]*core.GraphNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.GraphNode
	for _, n := range s.Nodes {
		if n.RunID == runID {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListEdges returns a run's edges in insertion order.
func (s *MemStore) ListEdges(_ context.Context, runID core.RunID) ([]*core.GraphEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.GraphEdge
	for _, e := range s.Edges {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendLog appends a log entry.
func (s *MemStore) AppendLog(_ context.Context, e *core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppendLog != nil {
		return s.FailAppendLog
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.Logs = append(s.Logs, e)
	return nil
}

// ListLogs returns a run's log entries in append order.
func (s *MemStore) ListLogs(_ context.Context, runID core.RunID) ([]*core.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.LogEntry
	for _, e := range s.Logs {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

// AppendCost appends a cost record.
func (s *MemStore) AppendCost(_ context.Context, c *core.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAppendCost != nil {
		return s.FailAppendCost
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.Costs = append(s.Costs, c)
	return nil
}

// ListCosts returns a run's cost records in append order.
func (s *MemStore) ListCosts(_ context.Context, runID core.RunID) ([]*core.CostRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.CostRecord
	for _, c := range s.Costs {
		if c.RunID == runID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
