// File: internal/server/server.go
// Description: HTTP surface of the agent: analysis and desktop-action
// endpoints plus the server-side automation run. The websocket endpoint is
// mounted by the serve command next to these routes.
package server

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
	"github.com/nexus-desktop/nexus-agent/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server bundles the HTTP handlers and their collaborators.
type Server struct {
	analyzer     schemas.AnalysisClient
	executor     schemas.ActionExecutor
	orchestrator *session.Orchestrator
	hasAPIKey    bool
	log          *zap.Logger

	httpServer *http.Server
}

// New builds the server. extra, when non-nil, registers additional routes
// (the realtime endpoint) on the same mux.
func New(
	cfg config.ServerConfig,
	hasAPIKey bool,
	analyzer schemas.AnalysisClient,
	exec schemas.ActionExecutor,
	orch *session.Orchestrator,
	logger *zap.Logger,
	extra func(mux *http.ServeMux),
) *Server {
	s := &Server{
		analyzer:     analyzer,
		executor:     exec,
		orchestrator: orch,
		hasAPIKey:    hasAPIKey,
		log:          logger.Named("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ai/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/ai/analyze", s.handleAnalyzeStatus)
	mux.HandleFunc("POST /api/desktop/action", s.handleDesktopAction)
	mux.HandleFunc("GET /api/desktop/action", s.handleActionHistory)
	mux.HandleFunc("DELETE /api/desktop/action", s.handleClearHistory)
	mux.HandleFunc("POST /api/automation/run", s.handleRun)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if extra != nil {
		extra(mux)
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the routed handler, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving HTTP until the listener fails or Shutdown
// is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
