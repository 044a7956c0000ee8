package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/events"
)

const defaultToolTimeout = 5 * time.Minute

// Config holds executor tuning knobs.
type Config struct {
	// ToolTimeout bounds a single node's tool invocation. A node whose
	// tool exceeds the deadline fails with a timeout error; the run
	// continues with the next node.
	ToolTimeout time.Duration
}

// Executor persists a run's graph skeleton and executes its nodes in
// sequence. Node failures are isolated: a failing node is recorded and
// execution continues. The executor itself fails only when the skeleton
// cannot be persisted or a fault escapes the per-node boundary.
type Executor struct {
	store       core.Store
	tools       map[string]core.Tool
	topo        Topology
	bus         *events.Bus
	logger      *slog.Logger
	toolTimeout time.Duration
}

// NewExecutor wires the executor with its tool set. Tools are looked up
// by name against the topology's node IDs.
func NewExecutor(store core.Store, tools []core.Tool, bus *events.Bus, logger *slog.Logger, cfg Config) *Executor {
	byName := make(map[string]core.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
	}
	timeout := cfg.ToolTimeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	return &Executor{
		store:       store,
		tools:       byName,
		topo:        DefaultTopology(),
		bus:         bus,
		logger:      logger,
		toolTimeout: timeout,
	}
}

// Execute persists the run's graph and executes every node, returning
// the aggregate result map keyed by topology node ID. The map always
// carries one entry per node: the tool's result on success, or
// {"error": message} when the node failed. A non-nil error means the
// run itself must be failed.
func (e *Executor) Execute(ctx context.Context, run *core.Run, project *core.Project, rl core.RunLogger) (map[string]any, error) {
	rl.Info(ctx, "starting graph execution", map[string]any{
		"run_id":       string(run.ID),
		"project_name": project.Name,
		"node_count":   len(e.topo.Nodes),
		"edge_count":   len(e.topo.Edges),
	})

	if err := e.persistSkeleton(ctx, run.ID); err != nil {
		rl.Error(ctx, "graph execution failed", map[string]any{"error": err.Error()})
		return nil, err
	}

	results := make(map[string]any, len(e.topo.Nodes))
	for _, tn := range e.topo.Nodes {
		nodeID := core.NamespacedNodeID(run.ID, tn.ID)

		rl.Info(ctx, "executing node: "+tn.Label, map[string]any{"node_id": tn.ID})
		e.bus.Publish(events.NewNodeStartedEvent(run.ID, nodeID, tn.ID))
		e.setNodeState(ctx, rl, nodeID, core.NodeState{Status: core.NodeStatusRunning})

		started := time.Now()
		result, err := e.runTool(ctx, tn.ID, run.ID, project)
		if err != nil {
			rl.Error(ctx, "failed to execute node: "+tn.Label, map[string]any{
				"node_id": tn.ID,
				"error":   err.Error(),
			})
			e.setNodeState(ctx, rl, nodeID, core.NodeState{
				Status: core.NodeStatusError,
				Error:  err.Error(),
			})
			results[tn.ID] = map[string]any{"error": err.Error()}
			e.bus.Publish(events.NewNodeFailedEvent(run.ID, nodeID, err))
			continue
		}

		e.setNodeState(ctx, rl, nodeID, core.NodeState{
			Status: core.NodeStatusCompleted,
			Result: result,
		})
		results[tn.ID] = result
		rl.Info(ctx, "completed node: "+tn.Label, map[string]any{
			"node_id":     tn.ID,
			"result_keys": len(result),
		})
		e.bus.Publish(events.NewNodeCompletedEvent(run.ID, nodeID, time.Since(started)))
	}

	rl.Info(ctx, "graph execution completed", map[string]any{"results_count": len(results)})
	return results, nil
}

// persistSkeleton writes all node and edge rows before any node
// executes. Either batch failing is fatal to the run: a partial graph
// is never acceptable.
func (e *Executor) persistSkeleton(ctx context.Context, runID core.RunID) error {
	nodes := make([]*core.GraphNode, 0, len(e.topo.Nodes))
	for _, tn := range e.topo.Nodes {
		nodes = append(nodes, &core.GraphNode{
			ID:    core.NamespacedNodeID(runID, tn.ID),
			RunID: runID,
			Type:  tn.Type,
			Label: tn.Label,
			State: core.NodeState{Status: core.NodeStatusPending},
			Pos:   core.Position{},
		})
	}
	if err := e.store.InsertNodes(ctx, nodes); err != nil {
		return core.ErrExecution(core.CodeGraphPersist, "failed to insert graph nodes").WithCause(err)
	}

	edges := make([]*core.GraphEdge, 0, len(e.topo.Edges))
	for _, te := range e.topo.Edges {
		edges = append(edges, &core.GraphEdge{
			ID:     core.NamespacedEdgeID(runID, te.ID),
			RunID:  runID,
			FromID: core.NamespacedNodeID(runID, te.From),
			ToID:   core.NamespacedNodeID(runID, te.To),
			Label:  te.Label,
			State:  map[string]any{},
		})
	}
	if err := e.store.InsertEdges(ctx, edges); err != nil {
		return core.ErrExecution(core.CodeGraphPersist, "failed to insert graph edges").WithCause(err)
	}
	return nil
}

// runTool invokes the node's tool under the per-tool deadline with
// panic recovery. Everything node-related is converted into an error
// here so the caller can record it and move on.
func (e *Executor) runTool(ctx context.Context, toolName string, runID core.RunID, project *core.Project) (result map[string]any, err error) {
	tool, ok := e.tools[toolName]
	if !ok {
		return nil, core.ErrExecution("TOOL_NOT_REGISTERED", fmt.Sprintf("no tool registered for node %q", toolName))
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", "tool", toolName, "panic", r)
			result = nil
			err = core.ErrInternal(core.CodeNodePanic, fmt.Sprintf("tool %s panicked: %v", toolName, r))
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, e.toolTimeout)
	defer cancel()

	result, err = tool.Execute(tctx, runID, project)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, core.ErrTimeout(fmt.Sprintf("tool %s exceeded its %s deadline", toolName, e.toolTimeout))
		}
		return nil, err
	}
	return result, nil
}

// setNodeState persists a node transition. A failed state write is
// logged and ignored so it cannot break the node isolation contract.
func (e *Executor) setNodeState(ctx context.Context, rl core.RunLogger, id core.NodeID, state core.NodeState) {
	if err := e.store.UpdateNodeState(ctx, id, state); err != nil {
		rl.Warn(ctx, "failed to update node state", map[string]any{
			"node_id": string(id),
			"status":  string(state.Status),
			"error":   err.Error(),
		})
	}
}
