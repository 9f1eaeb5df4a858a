package orchestrator

import "fmt"

// QueryErrorKind classifies a loop-fatal query failure. Tool-level
// failures never surface here: they travel back to the prediction
// service as data.
type QueryErrorKind string

const (
	// ErrTimeout means the query exceeded its overall deadline.
	ErrTimeout QueryErrorKind = "timeout"
	// ErrUpstream means the prediction service was unreachable or
	// returned an unparseable instruction.
	ErrUpstream QueryErrorKind = "upstream_failure"
	// ErrRoundLimit means the query exceeded the configured maximum
	// number of tool-call rounds.
	ErrRoundLimit QueryErrorKind = "round_limit"
)

// QueryError is the single structured top-level error a caller can
// receive instead of a composed answer.
type QueryError struct {
	Kind    QueryErrorKind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.cause
}
