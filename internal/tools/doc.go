// Package tools holds the registry of in-process tools exposed over MCP.
//
// A Tool pairs a Definition (name, description, JSON Schema for its input)
// with a Handler. Handlers receive the caller's session so that any state
// they touch, such as stored payment credentials, stays scoped to it.
package tools
