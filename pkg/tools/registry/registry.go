// Package registry holds the set of tools advertised by the server.
//
// Tools are registered once at startup and listed in registration order, so
// repeated listings are stable. After startup the registry is only read,
// which makes concurrent lookups from in-flight calls safe.
package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rhuss/sandbox-mcp/pkg/api"
)

// Registry stores tool descriptors by name, preserving insertion order.
type Registry struct {
	mu sync.RWMutex

	// tools stores registered descriptors in insertion order.
	tools []api.ToolDescriptor

	// byName maps tool name to its index in tools.
	byName map[string]int
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]int),
	}
}

// Register adds a descriptor. It returns a *api.DuplicateToolError if a
// tool with the same name is already registered.
func (r *Registry) Register(d api.ToolDescriptor) error {
	if d.Name == "" {
		return errors.New("tool name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[d.Name]; ok {
		return &api.DuplicateToolError{Name: d.Name}
	}

	// Copy the field slice so later mutation by the caller is not observed.
	d.Schema.Fields = append([]api.Field(nil), d.Schema.Fields...)

	r.byName[d.Name] = len(r.tools)
	r.tools = append(r.tools, d)

	slog.Info("registered tool", "tool", d.Name, "fields", len(d.Schema.Fields))
	return nil
}

// MustRegister is like Register but panics on error. Use it for built-in
// tools, where a failure is a programming error.
func (r *Registry) MustRegister(d api.ToolDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the descriptor for the named tool, or a *api.UnknownToolError.
func (r *Registry) Get(name string) (api.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byName[name]
	if !ok {
		return api.ToolDescriptor{}, &api.UnknownToolError{Name: name}
	}
	return r.tools[i], nil
}

// List returns all descriptors in registration order. The returned slice
// is a copy.
func (r *Registry) List() []api.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]api.ToolDescriptor, len(r.tools))
	copy(out, r.tools)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
