package core

import "fmt"

// NodeID identifies a persisted graph node. Node ids are namespaced by
// run id so that two runs sharing one store never collide.
type NodeID string

// EdgeID identifies a persisted graph edge.
type EdgeID string

// NodeStatus represents the execution state of a single graph node.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
)

// NodeState is the tagged variant behind the persisted state map.
// Exactly one of Result or Error is set on a terminal status.
type NodeState struct {
	Status NodeStatus
	Result map[string]any
	Error  string
}

// StateMap renders the variant as the persisted key/value form.
func (s NodeState) StateMap() map[string]any {
	m := map[string]any{"status": string(s.Status)}
	switch s.Status {
	case NodeStatusCompleted:
		m["result"] = s.Result
	case NodeStatusError:
		m["error"] = s.Error
	}
	return m
}

// NodeStateFromMap parses the persisted key/value form back into the variant.
func NodeStateFromMap(m map[string]any) (NodeState, error) {
	var s NodeState
	status, ok := m["status"].(string)
	if !ok {
		return s, fmt.Errorf("node state missing status")
	}
	s.Status = NodeStatus(status)
	if r, ok := m["result"].(map[string]any); ok {
		s.Result = r
	}
	if e, ok := m["error"].(string); ok {
		s.Error = e
	}
	return s, nil
}

// Position is the dashboard layout hint stored with each node. The worker
// only ever writes the placeholder origin.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is one persisted step of a run's pipeline. Created once per
// run at graph-build time and mutated by the executor as execution
// proceeds, never re-created.
type GraphNode struct {
	ID    NodeID
	RunID RunID
	Type  string
	Label string
	State NodeState
	Pos   Position
}

// GraphEdge is a cosmetic lineage label between two nodes. Edges never
// gate execution order and carry no data; they exist for display only.
type GraphEdge struct {
	ID     EdgeID
	RunID  RunID
	FromID NodeID
	ToID   NodeID
	Label  string
	State  map[string]any
}

// NamespacedNodeID builds the globally unique id for a topology node
// within a run.
func NamespacedNodeID(runID RunID, topologyID string) NodeID {
	return NodeID(fmt.Sprintf("%s-%s", runID, topologyID))
}

// NamespacedEdgeID builds the globally unique id for a topology edge
// within a run.
func NamespacedEdgeID(runID RunID, topologyID string) EdgeID {
	return EdgeID(fmt.Sprintf("%s-%s", runID, topologyID))
}
