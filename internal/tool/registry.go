package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// Registry holds registered tools by name and dispatches execution.
// Lookup and dispatch are both O(1), map-backed.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool registered under the
// same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the names of all registered tools, sorted for determinism.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns every registered tool's wire.ToolDefinition, the
// shape a CompletionRequest carries upstream.
func (r *Registry) Definitions() []wire.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]wire.ToolDefinition, 0, len(r.tools))
	for _, name := range r.sortedNamesLocked() {
		t := r.tools[name]
		defs = append(defs, wire.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		})
	}
	return defs
}

func (r *Registry) sortedNamesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute dispatches a tool_use block by name. A call against an unknown
// tool never fails the request: it synthesizes an error Result so the
// engine can fold it into a normal tool_result block with is_error=true
// and let the model see and react to its own mistake, rather than
// aborting the exploration. A panic inside a tool is recovered the same
// way, as an error Result with a generic message.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (res Result) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %s", name))
	}

	defer func() {
		if p := recover(); p != nil {
			res = ErrorResult(fmt.Sprintf("tool %s failed unexpectedly", name))
		}
	}()
	result, err := t.Execute(ctx, input)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return result
}
