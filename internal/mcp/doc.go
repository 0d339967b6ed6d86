// Package mcp implements the Model Context Protocol transports that expose
// the rendezvous tools to agents.
//
// # Protocol
//
// MCP is JSON-RPC 2.0. The supported methods are initialize, ping,
// tools/list and tools/call; notifications are accepted and ignored.
//
// # Transports
//
// Server speaks Streamable HTTP on a single endpoint:
//
//   - POST /mcp    - JSON-RPC request; initialize returns Mcp-Session-Id
//   - DELETE /mcp  - terminate the session named by Mcp-Session-Id
//   - GET /health  - liveness, server version and tool names
//
// StdioServer reads newline-delimited requests from stdin and writes one
// response line per request to stdout. Logs must go to stderr.
//
// # Sessions
//
// Every initialize over HTTP creates a session.Session with its own L402
// credential store, so credentials paid for by one client are never replayed
// for another. The stdio transport uses a single session for the life of
// the process.
//
// # Authentication
//
// With a TokenVerifier configured, requests carry
//
//	Authorization: Bearer <token>
//
// and sessions are bound to the token subject. Requests from a different
// subject get 403.
//
// # Tool Execution
//
//	{
//	  "jsonrpc": "2.0",
//	  "method": "tools/call",
//	  "params": {
//	    "name": "get_isochrone",
//	    "arguments": {"lat": 51.5, "lon": -0.1, "transport_mode": "walk", "time_minutes": 15}
//	  },
//	  "id": 2
//	}
//
// Tool output is returned as a single text content item holding JSON. Tool
// failures (bad arguments, backend errors) come back as isError results
// rather than JSON-RPC errors so the model can see and react to them.
package mcp
