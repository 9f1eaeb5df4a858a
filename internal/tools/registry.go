package tools

import (
	"sort"
	"sync"
)

// Registry manages the collection of available tools. Tools are
// registered once at process start; the catalog is immutable afterwards.
type Registry struct {
	tools map[string]Tool
	names []string
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.names = append(r.names, name)
		sort.Strings(r.names)
	}
	r.tools[name] = tool
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// List returns all registered tools in name order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		list = append(list, r.tools[name])
	}
	return list
}

// Catalog returns the serializable descriptors of all registered tools,
// in name order. This is the contract surface advertised to the
// prediction service.
func (r *Registry) Catalog() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	catalog := make([]Definition, 0, len(r.names))
	for _, name := range r.names {
		catalog = append(catalog, r.tools[name].Definition())
	}
	return catalog
}

// FunctionSchemas returns the catalog in OpenAI function-calling format.
func (r *Registry) FunctionSchemas() []ToolSchema {
	catalog := r.Catalog()
	schemas := make([]ToolSchema, 0, len(catalog))
	for _, def := range catalog {
		schemas = append(schemas, def.FunctionSchema())
	}
	return schemas
}

// MCPDefinitions returns the catalog in the MCP tools/list shape.
func (r *Registry) MCPDefinitions() []map[string]any {
	catalog := r.Catalog()
	defs := make([]map[string]any, 0, len(catalog))
	for _, def := range catalog {
		defs = append(defs, def.MCPDefinition())
	}
	return defs
}
