// ABOUTME: MCP Streamable HTTP server exposing the routing tools to remote agents.
// ABOUTME: Each initialize creates an isolated session with its own L402 credentials.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/rendezvous-mcp/internal/auth"
	"github.com/2389/rendezvous-mcp/internal/session"
	"github.com/2389/rendezvous-mcp/internal/tools"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// Config holds configuration for the MCP server.
type Config struct {
	Registry *tools.Registry
	Sessions *session.Manager
	Info     ServerInfo
	Logger   *slog.Logger
	// TokenVerifier enables bearer JWT auth. Nil serves anonymous clients.
	TokenVerifier auth.TokenVerifier
	RequireAuth   bool
	Observer      ToolCallObserver
	// SessionGauge is told the live session count whenever it changes.
	SessionGauge interface{ SetSessions(n int) }
}

// Server implements MCP-compatible HTTP endpoints.
// Conforms to MCP Streamable HTTP transport specification (2025-11-25).
type Server struct {
	dispatcher
	sessions    *session.Manager
	verifier    auth.TokenVerifier
	requireAuth bool
	gauge       interface{ SetSessions(n int) }
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cfg.RequireAuth && cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		dispatcher: dispatcher{
			registry: cfg.Registry,
			info:     cfg.Info,
			observer: cfg.Observer,
			logger:   logger,
		},
		sessions:    cfg.Sessions,
		verifier:    cfg.TokenVerifier,
		requireAuth: cfg.RequireAuth,
		gauge:       cfg.SessionGauge,
	}, nil
}

// RegisterRoutes registers /mcp and /health on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	var mcpHandler http.Handler = http.HandlerFunc(s.handleMCP)
	if s.verifier != nil {
		mcpHandler = auth.Middleware(s.verifier, s.requireAuth)(mcpHandler)
	}
	mux.Handle("/mcp", mcpHandler)
	mux.HandleFunc("/health", s.handleHealth)
}

// handleMCP is the single MCP endpoint supporting POST, GET, and DELETE per the
// Streamable HTTP transport spec (2025-11-25).
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodGet:
		// We don't support server-initiated SSE streams
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, GET, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth reports liveness and the tools on offer.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"server":   s.info.Name,
		"version":  s.info.Version,
		"tools":    s.registry.Names(),
		"sessions": s.sessions.Count(),
	})
}

// handleDelete terminates a session per the Streamable HTTP spec.
// Verifies the caller owns the session to prevent unauthorized termination.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, status := s.lookupSession(r, sessionID)
	if sess == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.sessions.Delete(sessionID)
	s.reportSessions()
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// lookupSession finds a live session owned by the caller. On failure it
// returns nil and the HTTP status to send.
func (s *Server) lookupSession(r *http.Request, sessionID string) (*session.Session, int) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		// Session expired or invalid - client must re-initialize
		return nil, http.StatusNotFound
	}
	if sess.Owner != "" && sess.Owner != auth.SubjectFrom(r.Context()) {
		return nil, http.StatusForbidden
	}
	return sess, http.StatusOK
}

// handlePost processes JSON-RPC messages sent via HTTP POST.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	protoVersion := r.Header.Get("Mcp-Protocol-Version")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		s.sendJSON(w, errorResponse(nil, JSONRPCParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		s.sendJSON(w, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSON(w, errorResponse(nil, JSONRPCParseError, "invalid JSON"))
		return
	}
	if req.JSONRPC != "2.0" {
		s.sendJSON(w, errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version"))
		return
	}

	if req.Method == "initialize" {
		s.handleInitialize(w, r, req)
		return
	}

	// Per spec: server default assumption if missing is 2025-03-26.
	if protoVersion != "" && !supportedProtocolVersions[protoVersion] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	sess, status := s.lookupSession(r, sessionID)
	if sess == nil {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.isNotification(),
		"session_id", sessionID,
	)

	resp := s.dispatch(r.Context(), sess, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.sendJSON(w, resp)
}

// handleInitialize handles the MCP initialize handshake and creates a session
// bound to the caller's identity.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request, req JSONRPCRequest) {
	if req.isNotification() {
		s.sendJSON(w, errorResponse(nil, JSONRPCInvalidRequest, "initialize must be a request"))
		return
	}

	sess, err := s.sessions.Create(negotiateVersion(req.Params), auth.SubjectFrom(r.Context()))
	if err != nil {
		s.logger.Error("failed to create MCP session", "error", err)
		s.sendJSON(w, errorResponse(req.ID, JSONRPCInternalError, "failed to create session"))
		return
	}

	s.logger.Info("MCP session created",
		"session_id", sess.ID,
		"protocol_version", sess.ProtocolVersion,
		"authenticated", sess.Owner != "",
	)

	s.reportSessions()

	// Set the session ID header so the client can use it on subsequent requests
	w.Header().Set("Mcp-Session-Id", sess.ID)
	s.sendJSON(w, resultResponse(req.ID, s.initializeResult(sess)))
}

// negotiateVersion echoes a supported client protocol version and otherwise
// offers the latest.
func negotiateVersion(params json.RawMessage) string {
	var p struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if len(params) > 0 && json.Unmarshal(params, &p) == nil && supportedProtocolVersions[p.ProtocolVersion] {
		return p.ProtocolVersion
	}
	return latestProtocolVersion
}

// SweepSessions drops idle sessions every interval until stop is closed.
func (s *Server) SweepSessions(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.logger.Info("expired idle MCP sessions", "count", n, "remaining", s.sessions.Count())
				s.reportSessions()
			}
		}
	}
}

func (s *Server) reportSessions() {
	if s.gauge != nil {
		s.gauge.SetSessions(s.sessions.Count())
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
