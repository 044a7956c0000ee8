package events

import (
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

// Event type constants for run lifecycle events.
const (
	TypeRunClaimed   = "run_claimed"
	TypeRunSucceeded = "run_succeeded"
	TypeRunFailed    = "run_failed"
)

// Event type constants for node lifecycle events.
const (
	TypeNodeStarted   = "node_started"
	TypeNodeCompleted = "node_completed"
	TypeNodeFailed    = "node_failed"
)

// RunClaimedEvent is emitted when the worker picks up a queued run.
type RunClaimedEvent struct {
	BaseEvent
	ProjectID core.ProjectID `json:"project_id"`
	Label     string         `json:"label"`
}

func NewRunClaimedEvent(runID core.RunID, projectID core.ProjectID, label string) RunClaimedEvent {
	return RunClaimedEvent{
		BaseEvent: NewBaseEvent(TypeRunClaimed, runID),
		ProjectID: projectID,
		Label:     label,
	}
}

// RunSucceededEvent is emitted once when a run reaches terminal success.
type RunSucceededEvent struct {
	BaseEvent
	Duration time.Duration `json:"duration"`
}

func NewRunSucceededEvent(runID core.RunID, duration time.Duration) RunSucceededEvent {
	return RunSucceededEvent{
		BaseEvent: NewBaseEvent(TypeRunSucceeded, runID),
		Duration:  duration,
	}
}

// RunFailedEvent is emitted when a run reaches terminal error.
// This is a priority event, never dropped.
type RunFailedEvent struct {
	BaseEvent
	Error string `json:"error"`
}

func NewRunFailedEvent(runID core.RunID, err error) RunFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return RunFailedEvent{
		BaseEvent: NewBaseEvent(TypeRunFailed, runID),
		Error:     errStr,
	}
}

// NodeStartedEvent is emitted when a graph node begins executing.
type NodeStartedEvent struct {
	BaseEvent
	NodeID core.NodeID `json:"node_id"`
	Tool   string      `json:"tool"`
}

func NewNodeStartedEvent(runID core.RunID, nodeID core.NodeID, tool string) NodeStartedEvent {
	return NodeStartedEvent{
		BaseEvent: NewBaseEvent(TypeNodeStarted, runID),
		NodeID:    nodeID,
		Tool:      tool,
	}
}

// NodeCompletedEvent is emitted when a graph node finishes successfully.
type NodeCompletedEvent struct {
	BaseEvent
	NodeID   core.NodeID   `json:"node_id"`
	Duration time.Duration `json:"duration"`
}

func NewNodeCompletedEvent(runID core.RunID, nodeID core.NodeID, duration time.Duration) NodeCompletedEvent {
	return NodeCompletedEvent{
		BaseEvent: NewBaseEvent(TypeNodeCompleted, runID),
		NodeID:    nodeID,
		Duration:  duration,
	}
}

// NodeFailedEvent is emitted when a graph node errors. The run keeps
// executing its remaining nodes.
type NodeFailedEvent struct {
	BaseEvent
	NodeID core.NodeID `json:"node_id"`
	Error  string      `json:"error"`
}

func NewNodeFailedEvent(runID core.RunID, nodeID core.NodeID, err error) NodeFailedEvent {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	return NodeFailedEvent{
		BaseEvent: NewBaseEvent(TypeNodeFailed, runID),
		NodeID:    nodeID,
		Error:     errStr,
	}
}
