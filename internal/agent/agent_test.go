package agent

import (
	"context"
	"testing"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/cost"
	"github.com/agentworkbench/workbench/internal/logging"
	"github.com/agentworkbench/workbench/internal/runlog"
	"github.com/agentworkbench/workbench/internal/testutil"
)

func newAgentContext(store *testutil.MemStore) Context {
	logger := logging.NewNop()
	return Context{
		RunID:     "run-1",
		ProjectID: "proj-1",
		NodeID:    "run-1-agent",
		Logger:    runlog.New("run-1", "mock-agent", logger, store),
		Costs:     cost.NewTracker(store, logger),
	}
}

func TestMockAdapterBuildPlan(t *testing.T) {
	store := testutil.NewMemStore()
	adapter := NewMockAdapter()

	plan, err := adapter.BuildPlan(context.Background(), "improve landing page", newAgentContext(store))
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, plan.ID, "mock-plan-1")
	testutil.AssertContains(t, plan.Description, "improve landing page")
	testutil.AssertLen(t, plan.Steps, 2)

	testutil.AssertEqual(t, plan.Steps[0].Tool, "analyze")
	testutil.AssertLen(t, plan.Steps[0].Dependencies, 0)
	testutil.AssertEqual(t, plan.Steps[1].Tool, "generate")
	testutil.AssertLen(t, plan.Steps[1].Dependencies, 1)
	testutil.AssertEqual(t, plan.Steps[1].Dependencies[0], "step-1")
}

func TestMockAdapterExecutePlan(t *testing.T) {
	store := testutil.NewMemStore()
	adapter := NewMockAdapter()
	ac := newAgentContext(store)

	plan, err := adapter.BuildPlan(context.Background(), "objective", ac)
	testutil.AssertNoError(t, err)

	out, err := adapter.ExecutePlan(context.Background(), plan, ac)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, out["status"].(string), "completed")
	results := out["results"].(map[string]any)
	testutil.AssertMapLen(t, results, 2)
	step1 := results["step-1"].(map[string]any)
	testutil.AssertContains(t, step1["result"].(string), "Analyze the objective")

	// One usage record per step; the mock provider is zero priced.
	var agentCosts []*core.CostRecord
	for _, c := range store.Costs {
		if c.Provider == "mock-agent" {
			agentCosts = append(agentCosts, c)
		}
	}
	testutil.AssertLen(t, agentCosts, 2)
	testutil.AssertEqual(t, agentCosts[0].InputTokens, 100)
	testutil.AssertEqual(t, agentCosts[0].OutputTokens, 200)
	testutil.AssertEqual(t, agentCosts[0].USD, 0)
}

func TestMockAdapterTools(t *testing.T) {
	adapter := NewMockAdapter()
	tools := adapter.Tools()
	testutil.AssertLen(t, tools, 2)
	testutil.AssertEqual(t, tools[0].Name, "analyze")
	testutil.AssertEqual(t, tools[1].Name, "generate")
}
