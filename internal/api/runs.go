package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentworkbench/workbench/internal/core"
)

const defaultRunListLimit = 50

// RunResponse represents a run in API responses.
type RunResponse struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Label      string         `json:"label,omitempty"`
	Status     string         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Meta       map[string]any `json:"meta"`
}

// CreateRunRequest is the request body for submitting a run.
type CreateRunRequest struct {
	ProjectID string `json:"projectId"`
	Label     string `json:"label,omitempty"`
}

// NodeResponse represents a graph node in API responses.
type NodeResponse struct {
	ID    string         `json:"id"`
	RunID string         `json:"run_id"`
	Type  string         `json:"type"`
	Label string         `json:"label"`
	State map[string]any `json:"state"`
	Pos   core.Position  `json:"pos"`
}

// EdgeResponse represents a graph edge in API responses.
type EdgeResponse struct {
	ID     string         `json:"id"`
	RunID  string         `json:"run_id"`
	FromID string         `json:"from_id"`
	ToID   string         `json:"to_id"`
	Label  string         `json:"label,omitempty"`
	State  map[string]any `json:"state"`
}

// LogResponse represents a log entry in API responses.
type LogResponse struct {
	RunID     string         `json:"run_id"`
	Level     string         `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CostResponse represents a cost record in API responses.
type CostResponse struct {
	RunID        string    `json:"run_id"`
	Provider     string    `json:"provider"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	USD          float64   `json:"usd"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRunResponse(r *core.Run) RunResponse {
	return RunResponse{
		ID:         string(r.ID),
		ProjectID:  string(r.ProjectID),
		Label:      r.Label,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Meta:       r.Meta,
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleCreateRun is the run submission boundary: it validates that the
// project exists and inserts the run with status queued. The worker
// picks it up on its next poll.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ProjectID) == "" {
		respondError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	if _, err := s.store.GetProject(r.Context(), core.ProjectID(req.ProjectID)); err != nil {
		respondStoreError(w, err)
		return
	}

	now := time.Now().UTC()
	label := req.Label
	if label == "" {
		label = fmt.Sprintf("Run %s", now.Format(time.RFC3339))
	}

	run := &core.Run{
		ID:        core.RunID(uuid.NewString()),
		ProjectID: core.ProjectID(req.ProjectID),
		Label:     label,
		Status:    core.RunStatusQueued,
		StartedAt: now,
		Meta:      map[string]any{},
	}
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"runId": string(run.ID)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := core.RunID(chi.URLParam(r, "runID"))
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(run))
}

// requireRun loads the run for sub-resource reads so an unknown run id
// yields 404 instead of an empty list.
func (s *Server) requireRun(w http.ResponseWriter, r *http.Request) (core.RunID, bool) {
	id := core.RunID(chi.URLParam(r, "runID"))
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleListRunNodes(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireRun(w, r)
	if !ok {
		return
	}
	nodes, err := s.store.ListNodes(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := make([]NodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, NodeResponse{
			ID:    string(n.ID),
			RunID: string(n.RunID),
			Type:  n.Type,
			Label: n.Label,
			State: n.State.StateMap(),
			Pos:   n.Pos,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRunEdges(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireRun(w, r)
	if !ok {
		return
	}
	edges, err := s.store.ListEdges(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := make([]EdgeResponse, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeResponse{
			ID:     string(e.ID),
			RunID:  string(e.RunID),
			FromID: string(e.FromID),
			ToID:   string(e.ToID),
			Label:  e.Label,
			State:  e.State,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRunLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireRun(w, r)
	if !ok {
		return
	}
	logs, err := s.store.ListLogs(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toLogResponses(logs))
}

func toLogResponses(logs []*core.LogEntry) []LogResponse {
	out := make([]LogResponse, 0, len(logs))
	for _, e := range logs {
		out = append(out, LogResponse{
			RunID:     string(e.RunID),
			Level:     string(e.Level),
			Source:    e.Source,
			Message:   e.Message,
			Data:      e.Data,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleListRunCosts(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireRun(w, r)
	if !ok {
		return
	}
	costs, err := s.store.ListCosts(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := make([]CostResponse, 0, len(costs))
	for _, c := range costs {
		out = append(out, CostResponse{
			RunID:        string(c.RunID),
			Provider:     c.Provider,
			InputTokens:  c.InputTokens,
			OutputTokens: c.OutputTokens,
			USD:          c.USD,
			CreatedAt:    c.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
