package tools

import "fmt"

// ErrorKind classifies a tool invocation failure.
type ErrorKind string

const (
	// KindUnknownTool means the requested tool name is not registered.
	KindUnknownTool ErrorKind = "unknown_tool"
	// KindInvalidArguments means a required parameter is missing or
	// failed type coercion. Field names the offending parameter.
	KindInvalidArguments ErrorKind = "invalid_arguments"
	// KindNotFound means a referenced patient or report does not exist.
	// Entity and ID identify it.
	KindNotFound ErrorKind = "not_found"
	// KindStoreFailure means the underlying persistence operation failed.
	KindStoreFailure ErrorKind = "store_failure"
	// KindTimeout means the query exceeded its overall deadline.
	KindTimeout ErrorKind = "timeout"
	// KindUpstreamFailure means the prediction service was unreachable
	// or returned an unparseable instruction.
	KindUpstreamFailure ErrorKind = "upstream_failure"
)

// Error is a structured tool invocation failure. It travels as data
// through InvocationResult so the prediction service can explain it,
// retry, or choose a different tool.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Entity  string    `json:"entity,omitempty"`
	ID      int64     `json:"id,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewUnknownToolError creates an unknown-tool error.
func NewUnknownToolError(name string) *Error {
	return &Error{
		Kind:    KindUnknownTool,
		Message: fmt.Sprintf("tool not found: %s", name),
	}
}

// NewInvalidArgumentsError creates an invalid-arguments error naming
// the offending field.
func NewInvalidArgumentsError(field, message string) *Error {
	return &Error{
		Kind:    KindInvalidArguments,
		Message: message,
		Field:   field,
	}
}

// NewNotFoundError creates a not-found error carrying the entity kind
// and id that failed to resolve.
func NewNotFoundError(entity string, id int64) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %d", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

// NewStoreFailureError wraps a persistence failure.
func NewStoreFailureError(cause error) *Error {
	return &Error{
		Kind:    KindStoreFailure,
		Message: "store operation failed",
		cause:   cause,
	}
}
