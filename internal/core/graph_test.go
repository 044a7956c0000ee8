package core

import "testing"

func TestNodeStateStateMap(t *testing.T) {
	completed := NodeState{
		Status: NodeStatusCompleted,
		Result: map[string]any{"files": []string{"README.md"}},
	}
	m := completed.StateMap()
	if m["status"] != "completed" {
		t.Errorf("status = %v, want completed", m["status"])
	}
	if _, ok := m["result"]; !ok {
		t.Error("completed state must carry a result")
	}
	if _, ok := m["error"]; ok {
		t.Error("completed state must not carry an error")
	}

	failed := NodeState{Status: NodeStatusError, Error: "boom"}
	m = failed.StateMap()
	if m["error"] != "boom" {
		t.Errorf("error = %v, want boom", m["error"])
	}
	if _, ok := m["result"]; ok {
		t.Error("error state must not carry a result")
	}

	pending := NodeState{Status: NodeStatusPending}
	m = pending.StateMap()
	if len(m) != 1 {
		t.Errorf("pending state map has %d keys, want 1", len(m))
	}
}

func TestNodeStateFromMap(t *testing.T) {
	s, err := NodeStateFromMap(map[string]any{
		"status": "completed",
		"result": map[string]any{"total": 3},
	})
	if err != nil {
		t.Fatalf("NodeStateFromMap() error = %v", err)
	}
	if s.Status != NodeStatusCompleted {
		t.Errorf("Status = %v, want completed", s.Status)
	}
	if s.Result["total"] != 3 {
		t.Errorf("Result[total] = %v, want 3", s.Result["total"])
	}

	if _, err := NodeStateFromMap(map[string]any{"result": "x"}); err == nil {
		t.Error("expected error for state map without status")
	}
}

func TestNamespacedIDs(t *testing.T) {
	if got := NamespacedNodeID("run-1", "repo-outline"); got != "run-1-repo-outline" {
		t.Errorf("NamespacedNodeID = %q", got)
	}
	if got := NamespacedEdgeID("run-2", "repo-to-deploys"); got != "run-2-repo-to-deploys" {
		t.Errorf("NamespacedEdgeID = %q", got)
	}

	// Two runs over the same topology never collide.
	a := NamespacedNodeID("run-a", "repo-outline")
	b := NamespacedNodeID("run-b", "repo-outline")
	if a == b {
		t.Error("node ids for different runs must differ")
	}
}
