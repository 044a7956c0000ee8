package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentworkbench/workbench/internal/adapters/openai"
	"github.com/agentworkbench/workbench/internal/core"
	"github.com/agentworkbench/workbench/internal/runlog"
)

// ImproveToolName is the topology id of the LLM improvement node.
const ImproveToolName = "llm-improve-html"

// Completer is the subset of the OpenAI adapter the improve tool uses.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, openai.Usage, error)
	ProviderTag() string
}

// ImproveTool asks an LLM for an improved version of a sample page
// rendered for the project.
type ImproveTool struct {
	client  Completer // nil when no API key is configured
	tracker core.CostTracker
	logger  *slog.Logger
	store   core.Store
}

// NewImproveTool creates the LLM improvement tool. client may be nil, in
// which case the tool returns a mock improvement.
func NewImproveTool(client Completer, tracker core.CostTracker, logger *slog.Logger, store core.Store) *ImproveTool {
	return &ImproveTool{client: client, tracker: tracker, logger: logger, store: store}
}

// Name returns the tool's topology id.
func (t *ImproveTool) Name() string { return ImproveToolName }

// Execute asks the LLM to improve the project's sample page. A missing
// API key degrades to a mock result; an upstream failure degrades to a
// result echoing the original page with the error as its only
// suggestion.
func (t *ImproveTool) Execute(ctx context.Context, runID core.RunID, project *core.Project) (map[string]any, error) {
	logger := runlog.New(runID, ImproveToolName, t.logger, t.store)
	logger.Info(ctx, "starting HTML improvement", map[string]any{"project_name": project.Name})

	inputHTML := sampleHTML(project)

	if t.client == nil {
		logger.Warn(ctx, "OpenAI API key not provided, returning mock improvements", nil)
		return map[string]any{
			"originalHtml": inputHTML,
			"improvedHtml": strings.Replace(inputHTML, "<title>", "<title>Improved ", 1),
			"suggestions": []any{
				"Add semantic HTML elements",
				"Include meta viewport tag",
				"Add CSS for better styling",
				"Improve accessibility with ARIA labels",
			},
			"tokensUsed": map[string]any{"input": 0, "output": 0},
		}, nil
	}

	logger.Info(ctx, "calling LLM for HTML improvements", map[string]any{"provider": t.client.ProviderTag()})

	content, usage, err := t.client.Complete(ctx, improvePrompt(inputHTML))
	if err != nil {
		logger.Error(ctx, "failed to improve HTML with LLM", map[string]any{"error": err.Error()})
		return map[string]any{
			"originalHtml": inputHTML,
			"improvedHtml": inputHTML,
			"suggestions":  []any{"Error: " + err.Error()},
			"tokensUsed":   map[string]any{"input": 0, "output": 0},
		}, nil
	}

	t.tracker.Record(ctx, runID, core.TokenUsage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		Provider:     t.client.ProviderTag(),
	})

	improved, suggestions := parseImproveReply(content)
	if suggestions == nil {
		logger.Warn(ctx, "failed to parse LLM response as JSON, using raw content", nil)
		improved = content
		suggestions = []any{"AI provided improvements (parsing failed)"}
	}

	logger.Info(ctx, "HTML improvement completed", map[string]any{
		"tokens_in":         usage.PromptTokens,
		"tokens_out":        usage.CompletionTokens,
		"suggestions_count": len(suggestions),
	})

	return map[string]any{
		"originalHtml": inputHTML,
		"improvedHtml": improved,
		"suggestions":  suggestions,
		"tokensUsed": map[string]any{
			"input":  usage.PromptTokens,
			"output": usage.CompletionTokens,
		},
	}, nil
}

// parseImproveReply extracts the improved HTML and suggestions from the
// LLM's JSON reply. Returns a nil suggestions slice when the reply is
// not in the expected shape.
func parseImproveReply(content string) (string, []any) {
	var parsed struct {
		ImprovedHTML string   `json:"improvedHtml"`
		Improvements []string `json:"improvements"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.ImprovedHTML == "" {
		return "", nil
	}
	suggestions := make([]any, 0, len(parsed.Improvements))
	for _, s := range parsed.Improvements {
		suggestions = append(suggestions, s)
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "AI analysis completed")
	}
	return parsed.ImprovedHTML, suggestions
}

func sampleHTML(project *core.Project) string {
	repoURL := project.RepoURL
	if repoURL == "" {
		repoURL = "Not specified"
	}
	return strings.TrimSpace(fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
</head>
<body>
    <h1>%[1]s</h1>
    <p>Project repository: %[2]s</p>
    <div>
        <button onclick="alert('Hello from %[1]s!')">Test Button</button>
    </div>
</body>
</html>
`, project.Name, repoURL))
}

func improvePrompt(inputHTML string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are an expert web developer. Please analyze the following HTML and provide an improved version.

Focus on:
1. Semantic HTML structure
2. Accessibility improvements
3. Modern HTML5 features
4. Basic responsive design considerations
5. SEO improvements

Original HTML:
%s

Please respond with:
1. The improved HTML code
2. A list of specific improvements made

Format your response as JSON:
{
  "improvedHtml": "...",
  "improvements": ["improvement 1", "improvement 2", ...]
}
`, inputHTML))
}

var _ core.Tool = (*ImproveTool)(nil)
