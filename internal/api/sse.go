package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentworkbench/workbench/internal/events"
)

// handleSSE streams run and node lifecycle events to the client as
// Server-Sent Events.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	ctx := r.Context()
	eventCh := s.bus.Subscribe()
	defer s.bus.Unsubscribe(eventCh)

	s.logger.Info("SSE client connected", "remote_addr", r.RemoteAddr)

	s.sendSSEEvent(w, flusher, "connected", map[string]string{
		"status": "connected",
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE client disconnected", "remote_addr", r.RemoteAddr)
			return

		case event, ok := <-eventCh:
			if !ok {
				s.logger.Info("event bus closed, ending SSE stream")
				return
			}
			s.sendEventToClient(w, flusher, event)
		}
	}
}

// sendSSEEvent writes an event to the SSE stream.
func (s *Server) sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	// SSE format: event: type\ndata: json\n\n
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

// sendEventToClient converts an Event to SSE format and sends it.
func (s *Server) sendEventToClient(w http.ResponseWriter, flusher http.Flusher, event events.Event) {
	var payload any

	switch e := event.(type) {
	case events.RunClaimedEvent:
		payload = map[string]any{
			"run_id":     e.Run(),
			"project_id": e.ProjectID,
			"label":      e.Label,
			"timestamp":  e.Timestamp(),
		}

	case events.RunSucceededEvent:
		payload = map[string]any{
			"run_id":    e.Run(),
			"duration":  e.Duration.String(),
			"timestamp": e.Timestamp(),
		}

	case events.RunFailedEvent:
		payload = map[string]any{
			"run_id":    e.Run(),
			"error":     e.Error,
			"timestamp": e.Timestamp(),
		}

	case events.NodeStartedEvent:
		payload = map[string]any{
			"run_id":    e.Run(),
			"node_id":   e.NodeID,
			"tool":      e.Tool,
			"timestamp": e.Timestamp(),
		}

	case events.NodeCompletedEvent:
		payload = map[string]any{
			"run_id":    e.Run(),
			"node_id":   e.NodeID,
			"duration":  e.Duration.String(),
			"timestamp": e.Timestamp(),
		}

	case events.NodeFailedEvent:
		payload = map[string]any{
			"run_id":    e.Run(),
			"node_id":   e.NodeID,
			"error":     e.Error,
			"timestamp": e.Timestamp(),
		}

	default:
		payload = map[string]any{
			"run_id":    event.Run(),
			"timestamp": event.Timestamp(),
		}
	}

	s.sendSSEEvent(w, flusher, event.EventType(), payload)
}
