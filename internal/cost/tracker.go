// Package cost converts raw token usage into monetary estimates and
// appends cost records. Recording is best-effort and never fails a run.
package cost

import (
	"context"
	"log/slog"

	"github.com/agentworkbench/workbench/internal/core"
)

// pricePair is the per-token rate for one provider.
type pricePair struct {
	input  float64
	output float64
}

// pricing is the static provider price table, in USD per token.
var pricing = map[string]pricePair{
	"openai-gpt-4":         {input: 0.03 / 1000, output: 0.06 / 1000},
	"openai-gpt-3.5-turbo": {input: 0.001 / 1000, output: 0.002 / 1000},
	"anthropic-claude-3":   {input: 0.015 / 1000, output: 0.075 / 1000},
	"mock-agent":           {input: 0, output: 0},
}

// Tracker appends cost records derived from token usage.
type Tracker struct {
	store  core.Store
	logger *slog.Logger
}

// NewTracker creates a cost tracker.
func NewTracker(store core.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// Record computes the USD cost for the usage and appends a cost record.
// An unrecognized provider is a warning and a no-op; a persistence
// failure is logged and swallowed.
func (t *Tracker) Record(ctx context.Context, runID core.RunID, usage core.TokenUsage) {
	price, ok := pricing[usage.Provider]
	if !ok {
		t.logger.Warn("unknown provider pricing, skipping cost record",
			"provider", usage.Provider, "run_id", string(runID))
		return
	}

	usd := float64(usage.InputTokens)*price.input + float64(usage.OutputTokens)*price.output

	record := &core.CostRecord{
		RunID:        runID,
		Provider:     usage.Provider,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		USD:          usd,
	}
	if err := t.store.AppendCost(ctx, record); err != nil {
		t.logger.Error("failed to record cost",
			"provider", usage.Provider, "run_id", string(runID), "error", err)
		return
	}

	t.logger.Info("recorded cost",
		"run_id", string(runID),
		"usd", usd,
		"tokens", usage.InputTokens+usage.OutputTokens)
}

var _ core.CostTracker = (*Tracker)(nil)
