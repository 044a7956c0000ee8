package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/agentworkbench/workbench/internal/core"
)

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RepoURL   string    `json:"repo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name    string `json:"name"`
	RepoURL string `json:"repoUrl,omitempty"`
}

func toProjectResponse(p *core.Project) ProjectResponse {
	return ProjectResponse{
		ID:        string(p.ID),
		Name:      p.Name,
		RepoURL:   p.RepoURL,
		CreatedAt: p.CreatedAt,
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	out := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &core.Project{
		ID:        core.ProjectID(uuid.NewString()),
		Name:      strings.TrimSpace(req.Name),
		RepoURL:   strings.TrimSpace(req.RepoURL),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProject(r.Context(), p); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProjectResponse(p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id := core.ProjectID(chi.URLParam(r, "projectID"))
	p, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectResponse(p))
}
