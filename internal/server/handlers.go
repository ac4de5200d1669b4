package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/unityctl/unityctl/internal/bridge"
	"github.com/unityctl/unityctl/internal/history"
)

// rpcBody is the POST /rpc request shape. Timeout is in seconds and
// overrides the per-command default.
type rpcBody struct {
	Command string         `json:"command"`
	Args    map[string]any `json:"args,omitempty"`
	AgentID string         `json:"agentId,omitempty"`
	Timeout float64        `json:"timeout,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.session.Status()
	body := map[string]any{
		"status":         "ok",
		"projectId":      s.projectID,
		"unityConnected": st.Connected,
		"editorReady":    st.Ready,
		"bridgeVersion":  s.version,
	}
	if st.Hello != nil {
		body["unityPluginVersion"] = st.Hello.PluginVersion
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var body rpcBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, string(bridge.CodeProtocolError), "invalid request body: "+err.Error())
		return
	}
	if body.Command == "" {
		s.writeError(w, http.StatusBadRequest, string(bridge.CodeProtocolError), "command is required")
		return
	}

	timeout := s.timeouts.For(body.Command, body.Args)
	if body.Timeout > 0 {
		timeout = time.Duration(body.Timeout * float64(time.Second))
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.orch.Execute(ctx, body.Command, body.Args, body.AgentID)
	elapsed := time.Since(start)

	if err != nil {
		code := bridge.CodeCommandFailed
		message := err.Error()
		switch {
		case errors.Is(err, bridge.ErrPeerUnavailable):
			code = bridge.CodePeerUnavailable
		case errors.Is(err, bridge.ErrTimeout):
			code = bridge.CodeTimeout
			message = fmt.Sprintf("command %q exceeded its %s deadline", body.Command, timeout)
		case errors.Is(err, bridge.ErrPeerDisconnected):
			code = bridge.CodePeerDisconnected
		default:
			s.logger.Error("rpc failed", "command", body.Command, "error", err)
			s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			s.journal(body, "error", "INTERNAL", elapsed)
			return
		}
		s.writeError(w, code.HTTPStatus(), string(code), message)
		s.journal(body, "error", string(code), elapsed)
		return
	}

	status := http.StatusOK
	code := ""
	if resp.Error != nil {
		code = resp.Error.Code
		status = bridge.Code(resp.Error.Code).HTTPStatus()
	}
	s.logger.Info("rpc completed",
		"command", body.Command,
		"status", resp.Status,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.writeJSON(w, status, resp)
	s.journal(body, resp.Status, code, elapsed)
}

func (s *Server) journal(body rpcBody, status, code string, elapsed time.Duration) {
	if s.history == nil {
		return
	}
	err := s.history.Record(history.Entry{
		Command:    body.Command,
		Status:     status,
		Code:       code,
		DurationMS: elapsed.Milliseconds(),
		AgentID:    body.AgentID,
	})
	if err != nil {
		s.logger.Warn("journal rpc", "error", err)
	}
}

func (s *Server) handleLogsTail(w http.ResponseWriter, r *http.Request) {
	s.tail(w, r, sourceParam(r))
}

func (s *Server) handleConsoleTail(w http.ResponseWriter, r *http.Request) {
	s.tail(w, r, bridge.SourceConsole)
}

func (s *Server) tail(w http.ResponseWriter, r *http.Request, source bridge.Source) {
	lines := 100
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, string(bridge.CodeProtocolError), "lines must be a non-negative integer")
			return
		}
		lines = n
	}
	full := r.URL.Query().Get("full") == "true"

	res := s.logs.Tail(lines, source, full)
	if res.Entries == nil {
		res.Entries = []bridge.LogEntry{}
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	s.clear(w, r)
}

func (s *Server) handleConsoleClear(w http.ResponseWriter, r *http.Request) {
	s.clear(w, r)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	wm := s.logs.Clear(reason)
	s.logger.Info("logs cleared", "reason", reason, "watermark", wm)
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "watermark": wm})
}

// handleLogsStream serves the SSE log feed: one `data: <json>` frame per
// entry, starting strictly after the subscription point.
func (s *Server) handleLogsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}
	source := sourceParam(r)

	sub := s.logs.Subscribe()
	defer s.logs.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case entry, open := <-sub:
			if !open {
				// Dropped by the buffer for falling behind.
				return
			}
			if source != bridge.SourceAll && entry.Source != source {
				continue
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"entries": []history.Entry{}})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.history.Recent(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func sourceParam(r *http.Request) bridge.Source {
	switch r.URL.Query().Get("source") {
	case "console":
		return bridge.SourceConsole
	case "editor":
		return bridge.SourceEditor
	default:
		return bridge.SourceAll
	}
}
