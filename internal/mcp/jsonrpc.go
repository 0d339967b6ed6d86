// ABOUTME: JSON-RPC 2.0 and MCP wire types shared by the HTTP and stdio transports.
// ABOUTME: Also holds the method dispatcher for an established session.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/rendezvous-mcp/internal/session"
	"github.com/2389/rendezvous-mcp/internal/tools"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2025-03-26": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise in initialize responses
const latestProtocolVersion = "2025-11-25"

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the request expects no response.
func (r JSONRPCRequest) isNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call.
type MCPCallToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerInfo names this server in initialize and health responses.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolCallObserver receives the outcome of every tools/call.
type ToolCallObserver interface {
	ObserveToolCall(tool, outcome string, d time.Duration)
}

// Tool call outcomes reported to observers.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	}
}

// dispatcher executes session-scoped methods. Both transports create the
// session themselves on initialize and hand every later request here.
type dispatcher struct {
	registry *tools.Registry
	info     ServerInfo
	observer ToolCallObserver
	logger   *slog.Logger
}

func (d *dispatcher) initializeResult(sess *session.Session) map[string]any {
	return map[string]any{
		"protocolVersion": sess.ProtocolVersion,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": d.info,
	}
}

// dispatch handles one non-initialize request. It returns nil for
// notifications.
func (d *dispatcher) dispatch(ctx context.Context, sess *session.Session, req JSONRPCRequest) *JSONRPCResponse {
	if req.isNotification() {
		d.logger.Debug("accepted MCP notification", "method", req.Method, "session_id", sess.ID)
		return nil
	}

	switch req.Method {
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return d.toolsList(req)
	case "tools/call":
		return d.toolsCall(ctx, sess, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found")
	}
}

func (d *dispatcher) toolsList(req JSONRPCRequest) *JSONRPCResponse {
	defs := d.registry.Definitions()
	result := MCPListToolsResult{Tools: make([]MCPToolInfo, len(defs))}
	for i, def := range defs {
		result.Tools[i] = MCPToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}
	}
	d.logger.Debug("tools/list", "count", len(defs))
	return resultResponse(req.ID, result)
}

func (d *dispatcher) toolsCall(ctx context.Context, sess *session.Session, req JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}
	if d.registry.Get(params.Name) == nil {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool not found")
	}

	// Generate request ID for correlation
	requestID := uuid.New().String()
	logger := d.logger.With("tool_name", params.Name, "request_id", requestID, "session_id", sess.ID)
	logger.Debug("tools/call")

	ctx = session.NewContext(ctx, sess)
	start := time.Now()
	output, err := d.registry.Call(ctx, sess, params.Name, params.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		d.observe(params.Name, OutcomeError, elapsed)
		return d.toolError(req.ID, logger, err)
	}
	d.observe(params.Name, OutcomeOK, elapsed)
	logger.Debug("tools/call complete", "duration", elapsed)

	return resultResponse(req.ID, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(output)}},
	})
}

// toolError maps a handler error onto the response. Cancellation becomes a
// JSON-RPC error; everything else is reported to the model as an isError
// tool result so it can correct its input or retry.
func (d *dispatcher) toolError(id json.RawMessage, logger *slog.Logger, err error) *JSONRPCResponse {
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		return errorResponse(id, JSONRPCInvalidParams, "tool not found")
	case errors.Is(err, context.Canceled):
		return errorResponse(id, JSONRPCInternalError, "request cancelled")
	}

	logger.Warn("tool execution failed", "error", err)
	return resultResponse(id, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: err.Error()}},
		IsError: true,
	})
}

func (d *dispatcher) observe(tool, outcome string, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveToolCall(tool, outcome, elapsed)
	}
}
