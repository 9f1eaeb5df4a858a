package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
)

// stubTool is a minimal tool for registry and invoker tests.
type stubTool struct {
	name    string
	params  []Param
	call    func(ctx context.Context, args Arguments) (any, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub tool: " + t.name }

func (t *stubTool) Definition() Definition {
	return Definition{
		Name:        t.name,
		Description: t.Description(),
		Params:      t.params,
		Returns:     "object",
	}
}

func (t *stubTool) Call(ctx context.Context, args Arguments) (any, error) {
	if t.call != nil {
		return t.call(ctx, args)
	}
	return map[string]any{"ok": true}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{name: "beta"})
	registry.Register(&stubTool{name: "alpha"})

	tool, exists := registry.Get("alpha")
	if !exists {
		t.Fatal("Expected tool alpha to exist")
	}
	if tool.Name() != "alpha" {
		t.Errorf("Expected alpha, got %s", tool.Name())
	}

	if _, exists := registry.Get("gamma"); exists {
		t.Error("Expected gamma to be absent")
	}

	list := registry.List()
	if len(list) != 2 {
		t.Fatalf("Expected 2 tools, got %d", len(list))
	}
	if list[0].Name() != "alpha" || list[1].Name() != "beta" {
		t.Errorf("Expected name order, got %s, %s", list[0].Name(), list[1].Name())
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Description: "entity id", Required: true},
			{Name: "hint", Type: TypeString, Required: false},
		},
	})
	registry.Register(&stubTool{name: "list_all"})

	catalog := registry.Catalog()

	data, err := json.Marshal(catalog)
	if err != nil {
		t.Fatalf("Failed to marshal catalog: %v", err)
	}

	var parsed []Definition
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal catalog: %v", err)
	}

	if !reflect.DeepEqual(catalog, parsed) {
		t.Errorf("Catalog round trip mismatch:\n got %+v\nwant %+v", parsed, catalog)
	}
}

func TestFunctionSchemas(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Required: true},
			{Name: "hint", Type: TypeString},
		},
	})

	schemas := registry.FunctionSchemas()
	if len(schemas) != 1 {
		t.Fatalf("Expected 1 schema, got %d", len(schemas))
	}

	schema := schemas[0]
	if schema.Type != "function" {
		t.Errorf("Expected type function, got %s", schema.Type)
	}
	if schema.Function.Name != "lookup" {
		t.Errorf("Expected name lookup, got %s", schema.Function.Name)
	}
	if schema.Function.Parameters.Type != "object" {
		t.Errorf("Expected object parameters, got %s", schema.Function.Parameters.Type)
	}
	if got := schema.Function.Parameters.Properties["id"].Type; got != "integer" {
		t.Errorf("Expected integer id property, got %s", got)
	}
	if len(schema.Function.Parameters.Required) != 1 || schema.Function.Parameters.Required[0] != "id" {
		t.Errorf("Expected required [id], got %v", schema.Function.Parameters.Required)
	}
}

func TestMCPDefinitions(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "lookup",
		params: []Param{
			{Name: "id", Type: TypeInteger, Description: "entity id", Required: true},
		},
	})

	defs := registry.MCPDefinitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}

	def := defs[0]
	if def["name"] != "lookup" {
		t.Errorf("Expected name lookup, got %v", def["name"])
	}
	inputSchema, ok := def["inputSchema"].(map[string]any)
	if !ok {
		t.Fatalf("Expected inputSchema map, got %T", def["inputSchema"])
	}
	required, ok := inputSchema["required"].([]string)
	if !ok || len(required) != 1 || required[0] != "id" {
		t.Errorf("Expected required [id], got %v", inputSchema["required"])
	}
}
