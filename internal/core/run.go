package core

import (
	"time"
)

// RunID uniquely identifies a pipeline run.
type RunID string

// ProjectID uniquely identifies a project.
type ProjectID string

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued  RunStatus = "queued"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// IsTerminal reports whether the status is a terminal state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// Transitions are monotonic: queued -> running -> {success, error}.
// A run never re-enters queued once claimed.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusQueued:
		return next == RunStatusRunning
	case RunStatusRunning:
		return next == RunStatusSuccess || next == RunStatusError
	default:
		return false
	}
}

// Run is one execution instance of a project's analysis pipeline.
// Runs are created by the submission boundary with status queued and are
// mutated exclusively by the worker scheduler afterwards.
type Run struct {
	ID         RunID
	ProjectID  ProjectID
	Label      string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	// Meta is an opaque pass-through bag. The scheduler merges an
	// "error" key into it on failure without discarding prior keys.
	Meta map[string]any
}

// Project is a read-only input to run execution.
type Project struct {
	ID        ProjectID
	Name      string
	RepoURL   string
	CreatedAt time.Time
}
