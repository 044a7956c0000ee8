package testutil

import (
	"context"
	"sync"

	"github.com/agentworkbench/workbench/internal/core"
)

var _ core.Store = (*MemStore)(nil)

// MockTool implements core.Tool for testing.
type MockTool struct {
	ToolName    string
	ExecuteFunc func(ctx context.Context, runID core.RunID, project *core.Project) (map[string]any, error)

	mu    sync.Mutex
	calls int
}

// Name returns the mock tool name.
func (m *MockTool) Name() string { return m.ToolName }

// Execute invokes ExecuteFunc, or returns an empty result when unset.
func (m *MockTool) Execute(ctx context.Context, runID core.RunID, project *core.Project) (map[string]any, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, runID, project)
	}
	return map[string]any{"tool": m.ToolName}, nil
}

// Calls returns how many times Execute was invoked.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ core.Tool = (*MockTool)(nil)
