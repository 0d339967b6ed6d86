// Package auth authenticates MCP clients with HS256 bearer JWTs.
//
// Authentication is optional. When a jwt_secret is configured the HTTP
// transport verifies "Authorization: Bearer <token>" and binds each MCP
// session to the token subject, so one client cannot drive (or terminate)
// another client's session and spend its stored L402 credentials.
//
// Tokens are minted with the CLI:
//
//	rendezvous-mcp token --subject alice --ttl 720h
package auth
