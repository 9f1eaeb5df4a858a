package tools

import (
	"context"
)

// Tool is the interface that all tools must implement.
type Tool interface {
	// Name returns the name of the tool.
	Name() string

	// Description returns a human-readable description, shown to the
	// prediction service to aid tool selection.
	Description() string

	// Definition returns the tool's full descriptor: parameter schema
	// and return shape. Registered once at startup and immutable after.
	Definition() Definition

	// Call executes the tool. The arguments have already been validated
	// and coerced against the tool's declared schema by the Invoker.
	// The returned value is a flat DTO or a list of flat DTOs.
	Call(ctx context.Context, args Arguments) (any, error)
}

// Arguments is a validated, type-coerced parameter map. Values are
// string for string parameters and int64 for integer parameters.
type Arguments map[string]any

// String returns the named string argument, or "" when absent.
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int64 returns the named integer argument, or 0 when absent.
func (a Arguments) Int64(name string) int64 {
	n, _ := a[name].(int64)
	return n
}
