package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"medagent-go/internal/store"
)

// InvocationRequest is one tool call as produced by the prediction
// service. The argument values are untrusted: possibly mistyped,
// incomplete, or referring to an unknown tool.
type InvocationRequest struct {
	ID        string         `json:"id,omitempty"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// InvocationResult is the outcome of one tool invocation: either a
// success payload or a structured failure, never both.
type InvocationResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Payload any    `json:"payload"`
	Error   *Error `json:"error,omitempty"`
}

// MetricsRecorder receives per-invocation telemetry.
type MetricsRecorder interface {
	RecordToolInvocation(tool, status string, duration time.Duration)
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithMetrics wires a metrics recorder into the invoker.
func WithMetrics(recorder MetricsRecorder) InvokerOption {
	return func(inv *Invoker) { inv.metrics = recorder }
}

// Invoker executes invocation requests against the registry, enforcing
// each tool's declared parameter schema before execution.
type Invoker struct {
	registry *Registry
	metrics  MetricsRecorder
	logger   zerolog.Logger
}

// NewInvoker creates a new invoker over the given registry.
func NewInvoker(registry *Registry, logger zerolog.Logger, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		logger:   logger.With().Str("component", "tool_invoker").Logger(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke executes one invocation request. Failures are returned as data
// in the result, never as a panic or a bare error: the caller feeds them
// back into the decision loop.
func (inv *Invoker) Invoke(ctx context.Context, req InvocationRequest) InvocationResult {
	start := time.Now()
	result := inv.invoke(ctx, req)

	status := "success"
	if !result.Success {
		status = string(result.Error.Kind)
	}
	if inv.metrics != nil {
		inv.metrics.RecordToolInvocation(req.Tool, status, time.Since(start))
	}

	event := inv.logger.Debug()
	if !result.Success {
		event = inv.logger.Info().Str("error_kind", string(result.Error.Kind))
	}
	event.
		Str("tool", req.Tool).
		Str("status", status).
		Dur("duration", time.Since(start)).
		Msg("Tool invocation finished")

	return result
}

func (inv *Invoker) invoke(ctx context.Context, req InvocationRequest) InvocationResult {
	tool, exists := inv.registry.Get(req.Tool)
	if !exists {
		return failure(req.Tool, NewUnknownToolError(req.Tool))
	}

	args, toolErr := coerceArguments(tool.Definition(), req.Arguments)
	if toolErr != nil {
		return failure(req.Tool, toolErr)
	}

	payload, err := tool.Call(ctx, args)
	if err != nil {
		return failure(req.Tool, mapCallError(err))
	}

	return InvocationResult{Tool: req.Tool, Success: true, Payload: payload}
}

func failure(tool string, err *Error) InvocationResult {
	return InvocationResult{Tool: tool, Success: false, Error: err}
}

// coerceArguments validates the raw argument map against the declared
// schema and produces typed Arguments. Undeclared arguments are dropped.
func coerceArguments(def Definition, raw map[string]any) (Arguments, *Error) {
	args := make(Arguments, len(def.Params))
	for _, p := range def.Params {
		value, present := raw[p.Name]
		if !present || value == nil {
			if p.Required {
				return nil, NewInvalidArgumentsError(p.Name,
					fmt.Sprintf("missing required parameter: %s", p.Name))
			}
			continue
		}

		switch p.Type {
		case TypeString:
			s, err := coerceString(value)
			if err != nil {
				return nil, NewInvalidArgumentsError(p.Name,
					fmt.Sprintf("parameter %s: %v", p.Name, err))
			}
			args[p.Name] = s
		case TypeInteger:
			n, err := coerceInt64(value)
			if err != nil {
				return nil, NewInvalidArgumentsError(p.Name,
					fmt.Sprintf("parameter %s: %v", p.Name, err))
			}
			args[p.Name] = n
		default:
			return nil, NewInvalidArgumentsError(p.Name,
				fmt.Sprintf("parameter %s has unsupported type %s", p.Name, p.Type))
		}
	}
	return args, nil
}

func coerceString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

// coerceInt64 accepts the shapes a model plausibly emits for an integer
// id: a JSON number, a json.Number, or a numeric string.
func coerceInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

// mapCallError converts errors surfaced by tool handlers into the
// structured taxonomy.
func mapCallError(err error) *Error {
	var toolErr *Error
	if errors.As(err, &toolErr) {
		return toolErr
	}

	var notFound *store.NotFoundError
	if errors.As(err, &notFound) {
		return NewNotFoundError(notFound.Entity, notFound.ID)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "tool invocation deadline exceeded", cause: err}
	}

	return NewStoreFailureError(err)
}
