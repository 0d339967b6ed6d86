// Package config handles configuration loading for rendezvous-mcp.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from the RENDEZVOUS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/rendezvous/config.yaml
//  3. ~/.config/rendezvous/config.yaml
//
// A missing default file is not an error; defaults are used. A file named
// by RENDEZVOUS_CONFIG must exist. Files ending in .toml are parsed as TOML.
//
// # Environment Variables
//
// Values can reference the environment:
//
//	auth:
//	  jwt_secret: "${RENDEZVOUS_JWT_SECRET}"
//
// After the file is read, TRANSPORT, HOST, PORT and VALHALLA_URL override
// server.transport, the host and port of server.http_addr, and
// routing.base_url.
//
// # Example
//
//	server:
//	  transport: http          # stdio (default) or http
//	  http_addr: "0.0.0.0:3002"
//	  session_ttl: "30m"       # idle HTTP sessions are dropped
//
//	routing:
//	  base_url: "https://routing.trotters.cc"
//	  timeout: "30s"
//	  legacy_header_challenges: false
//
//	database:
//	  path: "~/.local/share/rendezvous/ledger.db"   # empty disables the ledger
//
//	auth:
//	  jwt_secret: "${RENDEZVOUS_JWT_SECRET}"
//	  required: false
//
//	logging:
//	  level: info              # debug, info, warn, error
//	  format: text             # text or json
//
//	metrics:
//	  enabled: true
//	  path: /metrics
//
// Durations use time.ParseDuration syntax.
package config
