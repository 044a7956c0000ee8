package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/agentworkbench/workbench/internal/core"
)

const (
	messageSource      = "intertools"
	maxInlineHTMLChars = 1000
	defaultMessageList = 50
)

// MessageRequest is the click-to-chat payload forwarded from a page
// under analysis.
type MessageRequest struct {
	Message     string         `json:"message"`
	PageURL     string         `json:"pageUrl,omitempty"`
	PageTitle   string         `json:"pageTitle,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	HTMLContent string         `json:"htmlContent,omitempty"`
	ElementInfo map[string]any `json:"elementInfo,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	AgentID     string         `json:"agentId,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// handleCreateMessage records an intake message against a run. The
// target run comes from the runId query parameter, falling back to the
// most recent running run.
func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	targetRunID := core.RunID(r.URL.Query().Get("runId"))
	if targetRunID == "" {
		run, err := s.store.MostRecentRunningRun(r.Context())
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if run == nil {
			respondError(w, http.StatusNotFound,
				"no active run found; specify runId or start a run")
			return
		}
		targetRunID = run.ID
		s.logger.Info("auto-detected target run", "run_id", targetRunID)
	}

	data := map[string]any{
		"pageUrl":   req.PageURL,
		"pageTitle": req.PageTitle,
		"userAgent": req.UserAgent,
		"sessionId": req.SessionID,
		"agentId":   req.AgentID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if req.HTMLContent != "" {
		html := req.HTMLContent
		if len(html) > maxInlineHTMLChars {
			html = html[:maxInlineHTMLChars] + "..."
		}
		data["htmlContent"] = html
	}
	if req.ElementInfo != nil {
		data["elementInfo"] = req.ElementInfo
	}
	if req.Context != nil {
		data["context"] = req.Context
	}

	entry := &core.LogEntry{
		RunID:     targetRunID,
		Level:     core.LogLevelInfo,
		Source:    messageSource,
		Message:   req.Message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AppendLog(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	s.logger.Info("intake message recorded", "run_id", targetRunID)
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"runId":     string(targetRunID),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListMessages returns intake messages for a run, newest first.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	runID := core.RunID(r.URL.Query().Get("runId"))
	if runID == "" {
		respondError(w, http.StatusBadRequest, "runId is required")
		return
	}

	limit := defaultMessageList
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	logs, err := s.store.ListLogs(r.Context(), runID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var messages []*core.LogEntry
	for _, e := range logs {
		if e.Source == messageSource {
			messages = append(messages, e)
		}
	}
	// Newest first, capped at the requested limit.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if len(messages) > limit {
		messages = messages[:limit]
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"messages": toLogResponses(messages),
		"count":    len(messages),
	})
}
