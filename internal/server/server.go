// Package server is the Bridge's loopback HTTP front end plus the peer
// WebSocket endpoint.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/unityctl/unityctl/internal/bridge"
	"github.com/unityctl/unityctl/internal/config"
	"github.com/unityctl/unityctl/internal/history"
)

// Server holds the handler dependencies.
type Server struct {
	logger    *slog.Logger
	projectID string
	version   string

	session  *bridge.SessionManager
	orch     *bridge.Orchestrator
	logs     *bridge.LogBuffer
	timeouts config.Timeouts
	history  *history.Store

	upgrader websocket.Upgrader
}

// New creates a server. history may be nil when journaling is disabled.
func New(logger *slog.Logger, projectID, version string, session *bridge.SessionManager, orch *bridge.Orchestrator, logs *bridge.LogBuffer, timeouts config.Timeouts, hist *history.Store) *Server {
	return &Server{
		logger:    logger,
		projectID: projectID,
		version:   version,
		session:   session,
		orch:      orch,
		logs:      logs,
		timeouts:  timeouts,
		history:   hist,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Loopback-only daemon; the editor plugin sends no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Routes registers all endpoints on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /rpc", s.handleRPC)
	mux.HandleFunc("GET /logs/tail", s.handleLogsTail)
	mux.HandleFunc("GET /logs/stream", s.handleLogsStream)
	mux.HandleFunc("POST /logs/clear", s.handleLogsClear)
	mux.HandleFunc("GET /console/tail", s.handleConsoleTail)
	mux.HandleFunc("POST /console/clear", s.handleConsoleClear)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{
		"status": "error",
		"error":  map[string]any{"code": code, "message": message},
	})
}

// handleWS upgrades the editor peer connection and runs it to completion.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.session.HandlePeer(conn)
}
