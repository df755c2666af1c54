// Package tools holds the callable tool set behind the tools/list and
// tools/call protocol surface. Each tool returns a JSON-serializable
// envelope; domain failures travel inside the envelope under "error",
// and the error return is reserved for transport-level faults.
package tools

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool is one named, schema-described capability.
type Tool interface {
	Definition() mcp.Tool
	Run(ctx context.Context, args map[string]any) (any, error)
}

// Registry maps tool names to implementations.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.byName[t.Definition().Name] = t
	}
	return r
}

// Get returns the named tool, or nil if unknown.
func (r *Registry) Get(name string) Tool {
	return r.byName[name]
}

// List returns all tool definitions sorted by name.
func (r *Registry) List() []mcp.Tool {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}
