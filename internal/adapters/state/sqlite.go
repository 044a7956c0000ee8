// Package state provides the SQLite implementation of the persistence
// gateway. The store is the single source of truth shared by the worker,
// the HTTP API, and the dashboard.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// timeFormat is the canonical timestamp encoding in the store.
const timeFormat = time.RFC3339Nano

// SQLiteStore implements core.Store with SQLite storage.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex // serializes writers; SQLite allows one at a time
}

// NewSQLiteStore opens (creating if necessary) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	s := &SQLiteStore{dbPath: dbPath}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	// WAL mode so the worker and the API can read concurrently.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate runs pending migrations.
func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}

	return nil
}

// =============================================================================
// Projects
// =============================================================================

// CreateProject inserts a new project row.
func (s *SQLiteStore) CreateProject(ctx context.Context, p *core.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, repo_url, created_at) VALUES (?, ?, ?, ?)`,
		string(p.ID), p.Name, p.RepoURL, p.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// GetProject fetches a project by id.
func (s *SQLiteStore) GetProject(ctx context.Context, id core.ProjectID) (*core.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, repo_url, created_at FROM projects WHERE id = ?`, string(id))
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeProjectNotFound, fmt.Sprintf("project %s not found", id))
	}
	return p, err
}

// ListProjects returns all projects ordered by creation time.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, repo_url, created_at FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*core.Project, error) {
	var p core.Project
	var id, createdAt string
	if err := row.Scan(&id, &p.Name, &p.RepoURL, &createdAt); err != nil {
		return nil, err
	}
	p.ID = core.ProjectID(id)
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing project created_at: %w", err)
	}
	p.CreatedAt = t
	return &p, nil
}

// =============================================================================
// Runs
// =============================================================================

// CreateRun inserts a new run row. The submission boundary inserts runs
// with status queued and empty meta; the store itself does not enforce
// that shape.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := r.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}

	var finishedAt any
	if r.FinishedAt != nil {
		finishedAt = r.FinishedAt.UTC().Format(timeFormat)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_id, label, status, started_at, finished_at, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.ProjectID), r.Label, string(r.Status),
		r.StartedAt.UTC().Format(timeFormat), finishedAt, string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// GetRun fetches a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id core.RunID) (*core.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, label, status, started_at, finished_at, meta
		 FROM runs WHERE id = ?`, string(id))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	return r, err
}

// ListRuns returns runs ordered newest first. limit <= 0 means no limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	query := `SELECT id, project_id, label, status, started_at, finished_at, meta
	          FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// NextQueuedRun returns the oldest queued run joined with its project.
// Returns (nil, nil, nil) when the queue is empty.
func (s *SQLiteStore) NextQueuedRun(ctx context.Context) (*core.Run, *core.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.project_id, r.label, r.status, r.started_at, r.finished_at, r.meta,
		        p.id, p.name, p.repo_url, p.created_at
		 FROM runs r
		 JOIN projects p ON p.id = r.project_id
		 WHERE r.status = ?
		 ORDER BY r.started_at ASC
		 LIMIT 1`, string(core.RunStatusQueued))

	var r core.Run
	var p core.Project
	var runID, projectRef, status, startedAt, metaJSON string
	var finishedAt sql.NullString
	var projectID, projectCreatedAt string

	err := row.Scan(&runID, &projectRef, &r.Label, &status, &startedAt, &finishedAt, &metaJSON,
		&projectID, &p.Name, &p.RepoURL, &projectCreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying queued runs: %w", err)
	}

	if err := fillRun(&r, runID, projectRef, status, startedAt, finishedAt, metaJSON); err != nil {
		return nil, nil, err
	}
	p.ID = core.ProjectID(projectID)
	t, err := time.Parse(timeFormat, projectCreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing project created_at: %w", err)
	}
	p.CreatedAt = t

	return &r, &p, nil
}

// ClaimRun moves a run to running. There is no conditional update guarding
// against a concurrent claim; a single worker per store is assumed.
func (s *SQLiteStore) ClaimRun(ctx context.Context, id core.RunID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE id = ?`,
		string(core.RunStatusRunning), string(id))
	if err != nil {
		return fmt.Errorf("claiming run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming run: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	return nil
}

// FinishRun sets the terminal status and finish timestamp and merges the
// given keys into the run's meta without discarding prior keys.
func (s *SQLiteStore) FinishRun(ctx context.Context, id core.RunID, status core.RunStatus, finishedAt time.Time, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metaJSON string
	err = tx.QueryRowContext(ctx, `SELECT meta FROM runs WHERE id = ?`, string(id)).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound(core.CodeRunNotFound, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return fmt.Errorf("reading run meta: %w", err)
	}

	merged := map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &merged); err != nil {
		return fmt.Errorf("unmarshaling run meta: %w", err)
	}
	for k, v := range meta {
		merged[k] = v
	}
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, meta = ? WHERE id = ?`,
		string(status), finishedAt.UTC().Format(timeFormat), string(mergedJSON), string(id))
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}

	return tx.Commit()
}

// MostRecentRunningRun returns the newest running run or nil.
func (s *SQLiteStore) MostRecentRunningRun(ctx context.Context) (*core.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, label, status, started_at, finished_at, meta
		 FROM runs WHERE status = ? ORDER BY started_at DESC LIMIT 1`,
		string(core.RunStatusRunning))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scanRun(row rowScanner) (*core.Run, error) {
	var r core.Run
	var id, projectID, status, startedAt, metaJSON string
	var finishedAt sql.NullString
	if err := row.Scan(&id, &projectID, &r.Label, &status, &startedAt, &finishedAt, &metaJSON); err != nil {
		return nil, err
	}
	if err := fillRun(&r, id, projectID, status, startedAt, finishedAt, metaJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

func fillRun(r *core.Run, id, projectID, status, startedAt string, finishedAt sql.NullString, metaJSON string) error {
	r.ID = core.RunID(id)
	r.ProjectID = core.ProjectID(projectID)
	r.Status = core.RunStatus(status)

	t, err := time.Parse(timeFormat, startedAt)
	if err != nil {
		return fmt.Errorf("parsing run started_at: %w", err)
	}
	r.StartedAt = t

	if finishedAt.Valid {
		ft, err := time.Parse(timeFormat, finishedAt.String)
		if err != nil {
			return fmt.Errorf("parsing run finished_at: %w", err)
		}
		r.FinishedAt = &ft
	}

	r.Meta = map[string]any{}
	if err := json.Unmarshal([]byte(metaJSON), &r.Meta); err != nil {
		return fmt.Errorf("unmarshaling run meta: %w", err)
	}
	return nil
}

// =============================================================================
// Graph
// =============================================================================

// InsertNodes inserts all node rows in one transaction. Either every row
// is written or none: a partial graph skeleton is never acceptable.
func (s *SQLiteStore) InsertNodes(ctx context.Context, nodes []*core.GraphNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO graph_nodes (id, run_id, type, label, state, pos) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing node insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range nodes {
		stateJSON, err := json.Marshal(n.State.StateMap())
		if err != nil {
			return fmt.Errorf("marshaling node state: %w", err)
		}
		posJSON, err := json.Marshal(n.Pos)
		if err != nil {
			return fmt.Errorf("marshaling node pos: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(n.ID), string(n.RunID), n.Type, n.Label, string(stateJSON), string(posJSON)); err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// InsertEdges inserts all edge rows in one transaction.
func (s *SQLiteStore) InsertEdges(ctx context.Context, edges []*core.GraphEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO graph_edges (id, run_id, from_id, to_id, label, state) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		state := e.State
		if state == nil {
			state = map[string]any{}
		}
		stateJSON, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshaling edge state: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			string(e.ID), string(e.RunID), string(e.FromID), string(e.ToID), e.Label, string(stateJSON)); err != nil {
			return fmt.Errorf("inserting edge %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// UpdateNodeState replaces a node's persisted state map.
func (s *SQLiteStore) UpdateNodeState(ctx context.Context, id core.NodeID, state core.NodeState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateJSON, err := json.Marshal(state.StateMap())
	if err != nil {
		return fmt.Errorf("marshaling node state: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE graph_nodes SET state = ? WHERE id = ?`, string(stateJSON), string(id))
	if err != nil {
		return fmt.Errorf("updating node state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating node state: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound("NODE_NOT_FOUND", fmt.Sprintf("node %s not found", id))
	}
	return nil
}

// ListNodes returns a run's nodes in insertion order.
func (s *SQLiteStore) ListNodes(ctx context.Context, runID core.RunID) ([]*core.GraphNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, type, label, state, pos FROM graph_nodes WHERE run_id = ? ORDER BY rowid`,
		string(runID))
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*core.GraphNode
	for rows.Next() {
		var n core.GraphNode
		var id, rid, stateJSON, posJSON string
		if err := rows.Scan(&id, &rid, &n.Type, &n.Label, &stateJSON, &posJSON); err != nil {
			return nil, err
		}
		n.ID = core.NodeID(id)
		n.RunID = core.RunID(rid)

		stateMap := map[string]any{}
		if err := json.Unmarshal([]byte(stateJSON), &stateMap); err != nil {
			return nil, fmt.Errorf("unmarshaling node state: %w", err)
		}
		st, err := core.NodeStateFromMap(stateMap)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		n.State = st

		if err := json.Unmarshal([]byte(posJSON), &n.Pos); err != nil {
			return nil, fmt.Errorf("unmarshaling node pos: %w", err)
		}
		nodes = append(nodes, &n)
	}
	return nodes, rows.Err()
}

// ListEdges returns a run's edges in insertion order.
func (s *SQLiteStore) ListEdges(ctx context.Context, runID core.RunID) ([]*core.GraphEdge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, from_id, to_id, label, state FROM graph_edges WHERE run_id = ? ORDER BY rowid`,
		string(runID))
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []*core.GraphEdge
	for rows.Next() {
		var e core.GraphEdge
		var id, rid, fromID, toID, stateJSON string
		if err := rows.Scan(&id, &rid, &fromID, &toID, &e.Label, &stateJSON); err != nil {
			return nil, err
		}
		e.ID = core.EdgeID(id)
		e.RunID = core.RunID(rid)
		e.FromID = core.NodeID(fromID)
		e.ToID = core.NodeID(toID)
		e.State = map[string]any{}
		if err := json.Unmarshal([]byte(stateJSON), &e.State); err != nil {
			return nil, fmt.Errorf("unmarshaling edge state: %w", err)
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// =============================================================================
// Logs and costs
// =============================================================================

// AppendLog appends one log entry.
func (s *SQLiteStore) AppendLog(ctx context.Context, e *core.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dataJSON any
	if e.Data != nil {
		b, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshaling log data: %w", err)
		}
		dataJSON = string(b)
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (run_id, level, source, message, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(e.RunID), string(e.Level), e.Source, e.Message, dataJSON,
		createdAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}
	return nil
}

// ListLogs returns a run's log entries in append order.
func (s *SQLiteStore) ListLogs(ctx context.Context, runID core.RunID) ([]*core.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, level, source, message, data, created_at
		 FROM logs WHERE run_id = ? ORDER BY created_at, id`, string(runID))
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var entries []*core.LogEntry
	for rows.Next() {
		var e core.LogEntry
		var rid, level, createdAt string
		var dataJSON sql.NullString
		if err := rows.Scan(&rid, &level, &e.Source, &e.Message, &dataJSON, &createdAt); err != nil {
			return nil, err
		}
		e.RunID = core.RunID(rid)
		e.Level = core.LogLevel(level)
		if dataJSON.Valid {
			e.Data = map[string]any{}
			if err := json.Unmarshal([]byte(dataJSON.String), &e.Data); err != nil {
				return nil, fmt.Errorf("unmarshaling log data: %w", err)
			}
		}
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing log created_at: %w", err)
		}
		e.CreatedAt = t
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// AppendCost appends one cost record.
func (s *SQLiteStore) AppendCost(ctx context.Context, c *core.CostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO costs (run_id, provider, input_tokens, output_tokens, usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(c.RunID), c.Provider, c.InputTokens, c.OutputTokens, c.USD,
		createdAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting cost: %w", err)
	}
	return nil
}

// ListCosts returns a run's cost records in append order.
func (s *SQLiteStore) ListCosts(ctx context.Context, runID core.RunID) ([]*core.CostRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, provider, input_tokens, output_tokens, usd, created_at
		 FROM costs WHERE run_id = ? ORDER BY created_at, id`, string(runID))
	if err != nil {
		return nil, fmt.Errorf("querying costs: %w", err)
	}
	defer rows.Close()

	var records []*core.CostRecord
	for rows.Next() {
		var c core.CostRecord
		var rid, createdAt string
		if err := rows.Scan(&rid, &c.Provider, &c.InputTokens, &c.OutputTokens, &c.USD, &createdAt); err != nil {
			return nil, err
		}
		c.RunID = core.RunID(rid)
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing cost created_at: %w", err)
		}
		c.CreatedAt = t
		records = append(records, &c)
	}
	return records, rows.Err()
}
