package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/agentworkbench/workbench/internal/adapters/vercel"
	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/runlog"
)

// DeploysToolName is the topology id of the deployment listing node.
const DeploysToolName = "vercel-deploys"

// maxDeployments caps the unfiltered listing at the most recent entries.
const maxDeployments = 10

// VercelClient is the subset of the Vercel adapter the deploys tool uses.
type VercelClient interface {
	ListDeployments(ctx context.Context) ([]vercel.Deployment, error)
}

// DeploysTool lists the project's recent Vercel deployments.
type DeploysTool struct {
	client VercelClient // nil when no Vercel token is configured
	logger *slog.Logger
	store  core.Store
}

// NewDeploysTool creates the deployment listing tool. client may be nil,
// in which case the tool returns an empty result.
func NewDeploysTool(client VercelClient, logger *slog.Logger, store core.Store) *DeploysTool {
	return &DeploysTool{client: client, logger: logger, store: store}
}

// Name returns the tool's topology id.
func (t *DeploysTool) Name() string { return DeploysToolName }

// Execute lists deployments matching the project name. Missing
// credentials and upstream failures both degrade to an empty result.
func (t *DeploysTool) Execute(ctx context.Context, runID core.RunID, project *core.Project) (map[string]any, error) {
	logger := runlog.New(runID, DeploysToolName, t.logger, t.store)
	logger.Info(ctx, "starting deployments analysis", map[string]any{"project_name": project.Name})

	if t.client == nil {
		logger.Warn(ctx, "Vercel token not provided, returning empty results", nil)
		return emptyDeploysResult(), nil
	}

	deployments, err := t.client.ListDeployments(ctx)
	if err != nil {
		logger.Error(ctx, "failed to fetch deployments", map[string]any{"error": err.Error()})
		return emptyDeploysResult(), nil
	}

	var filtered []vercel.Deployment
	if project.Name != "" {
		for _, d := range deployments {
			if strings.Contains(d.Name, project.Name) {
				filtered = append(filtered, d)
			}
		}
	} else {
		filtered = deployments
		if len(filtered) > maxDeployments {
			filtered = filtered[:maxDeployments]
		}
	}

	items := make([]any, 0, len(filtered))
	states := map[string]any{}
	for _, d := range filtered {
		items = append(items, map[string]any{
			"uid":     d.UID,
			"url":     d.URL,
			"state":   d.State,
			"created": d.Created,
			"source":  d.Source,
		})
		if n, ok := states[d.State].(int); ok {
			states[d.State] = n + 1
		} else {
			states[d.State] = 1
		}
	}

	logger.Info(ctx, "deployments analysis completed", map[string]any{
		"total":  len(filtered),
		"states": states,
	})

	return map[string]any{
		"deployments": items,
		"total":       len(filtered),
	}, nil
}

func emptyDeploysResult() map[string]any {
	return map[string]any{
		"deployments": []any{},
		"total":       0,
	}
}

var _ core.Tool = (*DeploysTool)(nil)
