// Package gateway wires the rendezvous-mcp server together.
//
// # Overview
//
// A Gateway owns one process's components: the Valhalla backend client,
// the session manager with its per-session authorizing routing gateways,
// the tool registry with the rendezvous pack, the optional challenge
// ledger, Prometheus metrics, and JWT verification. Run serves whichever
// transport the configuration selects.
//
// # Transports
//
// stdio serves exactly one session on stdin and stdout; logs must go to
// stderr. http serves:
//
//   - POST/DELETE /mcp: MCP Streamable HTTP
//   - GET /health: server name, version, tools, and session count
//   - GET /metrics: Prometheus scrape endpoint, when metrics are enabled
//
// Idle HTTP sessions are swept after server.session_ttl.
//
// # Observers
//
// Payment challenges flow to both metrics and the ledger through
// routing.Observers. Deleting a session that held a credential records a
// "cleared" event; credentials themselves are never persisted.
package gateway
