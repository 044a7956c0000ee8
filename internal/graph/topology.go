// Package graph builds and executes the fixed per-run pipeline. The
// topology is declared here, not configured per run: three tool nodes
// chained by two labeled edges. Edges describe suggested data lineage
// for the dashboard and never gate execution order.
package graph

// TopologyNode is a template node of the fixed pipeline. Its ID matches
// the name of the tool that executes it.
type TopologyNode struct {
	ID    string
	Type  string
	Label string
}

// TopologyEdge is a template edge between two topology node IDs.
type TopologyEdge struct {
	ID    string
	From  string
	To    string
	Label string
}

// Topology is the declared shape of a run's pipeline.
type Topology struct {
	Nodes []TopologyNode
	Edges []TopologyEdge
}

// DefaultTopology returns the analysis/generation pipeline executed for
// every run: repository analysis, deployment listing, then LLM-based
// HTML improvement. Nodes execute in declaration order.
func DefaultTopology() Topology {
	return Topology{
		Nodes: []TopologyNode{
			{ID: "repo-outline", Type: "analysis", Label: "Repository Analysis"},
			{ID: "vercel-deploys", Type: "analysis", Label: "Vercel Deployments"},
			{ID: "llm-improve-html", Type: "generation", Label: "LLM HTML Improvement"},
		},
		Edges: []TopologyEdge{
			{ID: "repo-to-vercel", From: "repo-outline", To: "vercel-deploys", Label: "analyze"},
			{ID: "vercel-to-llm", From: "vercel-deploys", To: "llm-improve-html", Label: "enhance"},
		},
	}
}
