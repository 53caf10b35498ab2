// File: internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/executor"
	"github.com/nexus-desktop/nexus-agent/internal/session"
)

type analyzeRequest struct {
	Screenshot string `json:"screenshot"`
	UserIntent string `json:"userIntent"`
}

// handleAnalyze runs the analysis client on a (screenshot, intent) pair.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserIntent == "" {
		s.writeError(w, http.StatusBadRequest, "User intent is required")
		return
	}

	analysis, err := s.analyzer.Analyze(r.Context(), req.Screenshot, req.UserIntent)
	if err != nil {
		s.log.Error("analysis request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analysis":  analysis,
		"isUsingAI": s.analyzer.Ready(),
	})
}

// handleAnalyzeStatus is a pure status probe with no side effects.
func (s *Server) handleAnalyzeStatus(w http.ResponseWriter, _ *http.Request) {
	message := "Running in demo mode (no API key)"
	if s.analyzer.Ready() {
		message = "AI service ready with Gemini API"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ready":     s.analyzer.Ready(),
		"hasApiKey": s.hasAPIKey,
		"message":   message,
	})
}

// handleDesktopAction dispatches one primitive action to the executor.
func (s *Server) handleDesktopAction(w http.ResponseWriter, r *http.Request) {
	var req schemas.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		s.writeError(w, http.StatusBadRequest, "Action type is required")
		return
	}

	result, err := s.executor.Execute(r.Context(), req)
	if err != nil {
		if errors.Is(err, executor.ErrUnknownActionKind) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown action type: %s", req.Kind))
			return
		}
		s.log.Error("desktop action failed", zap.String("type", string(req.Kind)), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleActionHistory returns the executor's audit trail.
func (s *Server) handleActionHistory(w http.ResponseWriter, _ *http.Request) {
	history := s.executor.History()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(history),
		"actions": history,
	})
}

// handleClearHistory empties the audit trail.
func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.executor.ClearHistory()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Action history cleared",
	})
}

type runRequest struct {
	Intent string `json:"intent"`
}

// handleRun performs one orchestration run server-side and returns the
// resulting log and transcript. Overlapping runs are refused, not queued.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Intent == "" {
		s.writeError(w, http.StatusBadRequest, "intent is required")
		return
	}

	err := s.orchestrator.Run(r.Context(), req.Intent)
	if errors.Is(err, session.ErrRunInProgress) {
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  err == nil,
		"actions":  s.orchestrator.Actions().List(),
		"messages": s.orchestrator.Transcript().List(),
	})
}
