package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

// MockAdapter is a self-contained Adapter used until a real framework
// integration lands. It plans two dependent steps and fabricates their
// results, recording mock-provider usage so the cost pipeline is
// exercised end to end.
type MockAdapter struct {
	now func() time.Time
}

var _ Adapter = (*MockAdapter)(nil)

func NewMockAdapter() *MockAdapter {
	return &MockAdapter{now: time.Now}
}

func (m *MockAdapter) BuildPlan(ctx context.Context, objective string, ac Context) (*Plan, error) {
	ac.Logger.Info(ctx, "creating mock plan for objective", map[string]any{"objective": objective})

	return &Plan{
		ID:          "mock-plan-1",
		Description: fmt.Sprintf("Mock plan for: %s", objective),
		Steps: []PlanStep{
			{
				ID:           "step-1",
				Tool:         "analyze",
				Input:        map[string]any{"objective": objective},
				Dependencies: nil,
				Description:  "Analyze the objective",
			},
			{
				ID:           "step-2",
				Tool:         "generate",
				Input:        map[string]any{"analysisResult": "step-1"},
				Dependencies: []string{"step-1"},
				Description:  "Generate solution based on analysis",
			},
		},
		EstimatedCostUSD:  0.05,
		EstimatedDuration: 30,
	}, nil
}

func (m *MockAdapter) ExecutePlan(ctx context.Context, plan *Plan, ac Context) (map[string]any, error) {
	ac.Logger.Info(ctx, "executing mock plan", map[string]any{"plan_id": plan.ID})

	results := make(map[string]any, len(plan.Steps))
	for _, step := range plan.Steps {
		ac.Logger.Info(ctx, "executing step: "+step.Description, map[string]any{"step_id": step.ID})

		results[step.ID] = map[string]any{
			"stepId":    step.ID,
			"tool":      step.Tool,
			"result":    fmt.Sprintf("Mock result for %s", step.Description),
			"timestamp": m.now().UTC().Format(time.RFC3339),
		}

		ac.Costs.Record(ctx, ac.RunID, core.TokenUsage{
			InputTokens:  100,
			OutputTokens: 200,
			Provider:     "mock-agent",
		})
	}

	ac.Logger.Info(ctx, "plan execution completed", map[string]any{"results_count": len(results)})

	return map[string]any{
		"planId":  plan.ID,
		"status":  "completed",
		"results": results,
	}, nil
}

func (m *MockAdapter) Tools() []ToolSpec {
	return []ToolSpec{
		{
			Name:        "analyze",
			Description: "Analyze input data and extract insights",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"objective": map[string]any{"type": "string"},
				},
				"required": []any{"objective"},
			},
			OutputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"insights":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"confidence": map[string]any{"type": "number"},
				},
			},
		},
		{
			Name:        "generate",
			Description: "Generate content based on analysis",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"analysisResult": map[string]any{"type": "string"},
				},
				"required": []any{"analysisResult"},
			},
			OutputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content":  map[string]any{"type": "string"},
					"metadata": map[string]any{"type": "object"},
				},
			},
		},
	}
}
