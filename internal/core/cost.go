package core

import "time"

// TokenUsage is the raw usage reported by a billed tool invocation.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	Provider     string
}

// CostRecord is the monetary estimate derived from one TokenUsage.
// Append-only, one record per billed tool invocation.
type CostRecord struct {
	RunID        RunID
	Provider     string
	InputTokens  int
	OutputTokens int
	USD          float64
	CreatedAt    time.Time
}
