// ABOUTME: Thread-safe registry of in-process tools and their handlers.
// ABOUTME: Rejects name collisions and dispatches calls by tool name.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/rendezvous-mcp/internal/session"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// Definition describes a tool to clients.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// Handler executes a tool for a session. It returns the result as JSON.
type Handler func(ctx context.Context, sess *session.Session, input json.RawMessage) (json.RawMessage, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition Definition
	Handler    Handler
}

// Pack is a named group of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

// Registry maps tool names to tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	packOf map[string]string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*Tool),
		packOf: make(map[string]string),
		logger: logger,
	}
}

// RegisterPack registers every tool in the pack. Nothing is registered if
// any name collides with an existing tool or another tool in the pack.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack %q: tool with empty name", pack.ID)
		}
		if owner, exists := r.packOf[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'", ErrToolCollision, name, owner)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: tool '%s' appears twice in pack '%s'", ErrToolCollision, name, pack.ID)
		}
		seen[name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		r.tools[tool.Definition.Name] = tool
		r.packOf[tool.Definition.Name] = pack.ID
	}

	r.logger.Info("tool pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools),
	)
	return nil
}

// Get returns a tool by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all tool definitions sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns all tool names sorted.
func (r *Registry) Names() []string {
	defs := r.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Call runs the named tool for a session. Empty input is treated as {}.
func (r *Registry) Call(ctx context.Context, sess *session.Session, name string, input json.RawMessage) (json.RawMessage, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, ErrToolNotFound
	}
	if len(input) == 0 || string(input) == "null" {
		input = json.RawMessage("{}")
	}
	return tool.Handler(ctx, sess, input)
}
