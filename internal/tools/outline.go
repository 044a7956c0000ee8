// Package tools contains the pipeline's tool adapters. Each tool is an
// opaque unit of work behind the core.Tool contract: missing credentials
// degrade to a valid placeholder result, and errors are reserved for
// faults the tool cannot absorb itself.
package tools

import (
	"context"
	"log/slog"

	"github.com/agentworkbench/workbench/internal/adapters/github"
	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/runlog"
)

// OutlineToolName is the topology id of the repository analysis node.
const OutlineToolName = "repo-outline"

// GitHubClient is the subset of the GitHub adapter the outline tool uses.
type GitHubClient interface {
	ListContents(ctx context.Context, owner, repo string) ([]github.ContentEntry, error)
	FetchReadme(ctx context.Context, owner, repo string) (string, error)
}

// OutlineTool produces a structural outline of the project's repository.
type OutlineTool struct {
	client GitHubClient // nil when no GitHub token is configured
	logger *slog.Logger
	store  core.Store
}

// NewOutlineTool creates the repository outline tool. client may be nil,
// in which case the tool returns mock data.
func NewOutlineTool(client GitHubClient, logger *slog.Logger, store core.Store) *OutlineTool {
	return &OutlineTool{client: client, logger: logger, store: store}
}

// Name returns the tool's topology id.
func (t *OutlineTool) Name() string { return OutlineToolName }

// Execute analyzes the project repository. It never returns an error: a
// missing URL or token degrades to placeholder data, and an upstream
// failure degrades to a result carrying the error text.
func (t *OutlineTool) Execute(ctx context.Context, runID core.RunID, project *core.Project) (map[string]any, error) {
	logger := runlog.New(runID, OutlineToolName, t.logger, t.store)
	logger.Info(ctx, "starting repo outline analysis", map[string]any{"repo_url": project.RepoURL})

	if project.RepoURL == "" {
		logger.Info(ctx, "no repo URL provided, using placeholder data", nil)
		return map[string]any{
			"files": []any{"package.json", "src/index.ts", "src/components/Button.tsx", "README.md"},
			"structure": map[string]any{
				"src":          map[string]any{"index.ts": "entry point", "components": map[string]any{"Button.tsx": "component"}},
				"package.json": "dependencies",
				"README.md":    "documentation",
			},
			"readme": "This is a placeholder README for the repository analysis.",
		}, nil
	}

	if t.client == nil {
		logger.Warn(ctx, "GitHub token not provided, using mock data", nil)
		return map[string]any{
			"files":     []any{"package.json", "src/index.js", "README.md"},
			"structure": map[string]any{"src": []any{"index.js"}, "package.json": true, "README.md": true},
			"readme":    "Mock repository structure - GitHub token not configured",
		}, nil
	}

	result, err := t.analyze(ctx, logger, project.RepoURL)
	if err != nil {
		logger.Error(ctx, "failed to analyze repository", map[string]any{"error": err.Error()})
		return map[string]any{
			"files":     []any{"Error fetching repository"},
			"structure": map[string]any{"error": err.Error()},
			"readme":    "Error: " + err.Error(),
		}, nil
	}
	return result, nil
}

func (t *OutlineTool) analyze(ctx context.Context, logger core.RunLogger, repoURL string) (map[string]any, error) {
	owner, repo, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "fetching repository contents", map[string]any{"owner": owner, "repo": repo})

	entries, err := t.client.ListContents(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	files := make([]any, 0, len(entries))
	structure := map[string]any{}
	for _, e := range entries {
		files = append(files, e.Name)
		structure[e.Name] = e.Type
	}

	readme, err := t.client.FetchReadme(ctx, owner, repo)
	if err != nil {
		logger.Warn(ctx, "could not fetch README", map[string]any{"error": err.Error()})
	}

	result := map[string]any{
		"files":     files,
		"structure": structure,
	}
	if readme != "" {
		result["readme"] = readme
	}

	logger.Info(ctx, "repository outline completed", map[string]any{"file_count": len(files)})
	return result, nil
}

var _ core.Tool = (*OutlineTool)(nil)
