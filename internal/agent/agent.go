// Package agent defines the capability surface for plugging external
// agentic frameworks into the execution graph. A framework integration
// builds a plan for an objective and executes it against the run's
// logging and cost-tracking facilities.
package agent

import (
	"context"

	"github.com/agentworkbench/workbench/internal/core"
)

// Context carries the run-scoped facilities an adapter needs while
// planning or executing. Adapters must not persist state outside of
// these facilities.
type Context struct {
	RunID     core.RunID
	ProjectID core.ProjectID
	NodeID    core.NodeID
	Logger    core.RunLogger
	Costs     core.CostTracker
}

// ToolSpec describes a tool an adapter can invoke during execution.
// Schemas are loosely typed JSON-schema fragments.
type ToolSpec struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	InputSchema  map[string]any `json:"inputSchema"`
	OutputSchema map[string]any `json:"outputSchema"`
}

// PlanStep is a single unit of work in a plan. Dependencies reference
// the IDs of steps that must complete first.
type PlanStep struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Input        map[string]any `json:"input"`
	Dependencies []string       `json:"dependencies"`
	Description  string         `json:"description"`
}

// Plan is an ordered set of steps toward an objective.
type Plan struct {
	ID                string     `json:"id"`
	Description       string     `json:"description"`
	Steps             []PlanStep `json:"steps"`
	EstimatedCostUSD  float64    `json:"estimatedCost,omitempty"`
	EstimatedDuration int        `json:"estimatedDuration,omitempty"`
}

// Adapter is implemented by agent framework integrations.
type Adapter interface {
	// BuildPlan produces a plan for the given objective.
	BuildPlan(ctx context.Context, objective string, ac Context) (*Plan, error)

	// ExecutePlan runs every step of the plan and returns the
	// aggregated step results keyed by step ID.
	ExecutePlan(ctx context.Context, plan *Plan, ac Context) (map[string]any, error)

	// Tools lists the tools this adapter can invoke.
	Tools() []ToolSpec
}
