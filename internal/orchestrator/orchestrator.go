// Package orchestrator bridges free-text queries to tool invocations:
// it sends the query and the tool catalog to the prediction service,
// dispatches the tool calls it asks for, feeds the results back, and
// returns the final composed answer.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"medagent-go/internal/llm"
	"medagent-go/internal/tools"
)

// Config bounds one query run. The round cap and deadline guarantee
// termination no matter what the prediction service decides.
type Config struct {
	MaxToolRounds    int
	QueryTimeout     time.Duration
	MaxParallelTools int
	MaxTokens        int
	Temperature      float64
	SystemPrompt     string
}

// DefaultConfig returns the default orchestration limits.
func DefaultConfig() Config {
	return Config{
		MaxToolRounds:    8,
		QueryTimeout:     60 * time.Second,
		MaxParallelTools: 4,
		MaxTokens:        2048,
		Temperature:      0.2,
		SystemPrompt: "You are a medical records assistant. Use the available tools to " +
			"answer questions about patients and their medical reports. When a tool " +
			"reports a failure, explain it to the user in plain language.",
	}
}

// MetricsRecorder receives per-query telemetry.
type MetricsRecorder interface {
	RecordQuery(status string, rounds int, duration time.Duration)
	RecordLLMRequest(status string, duration time.Duration)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics wires a metrics recorder into the orchestrator.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(o *Orchestrator) { o.metrics = recorder }
}

// Orchestrator runs the decision loop. It holds no per-query state, so
// one instance serves concurrent queries.
type Orchestrator struct {
	llm      llm.Client
	registry *tools.Registry
	invoker  *tools.Invoker
	cfg      Config
	metrics  MetricsRecorder
	logger   zerolog.Logger
}

// New creates an orchestrator.
func New(client llm.Client, registry *tools.Registry, invoker *tools.Invoker, cfg Config, logger zerolog.Logger, opts ...Option) *Orchestrator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultConfig().MaxToolRounds
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}
	if cfg.MaxParallelTools <= 0 {
		cfg.MaxParallelTools = DefaultConfig().MaxParallelTools
	}
	o := &Orchestrator{
		llm:      client,
		registry: registry,
		invoker:  invoker,
		cfg:      cfg,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// dispatched pairs one tool call with its result, in request order.
type dispatched struct {
	call   llm.ToolCall
	result tools.InvocationResult
}

// Query answers one free-text query. history carries prior turns of the
// same conversation and may be nil. The error, when non-nil, is always
// a *QueryError.
func (o *Orchestrator) Query(ctx context.Context, query string, history []llm.Message) (string, error) {
	start := time.Now()
	queryID := uuid.NewString()
	logger := o.logger.With().Str("query_id", queryID).Logger()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.QueryTimeout)
	defer cancel()

	schemas := o.registry.FunctionSchemas()

	messages := make([]llm.Message, 0, len(history)+2)
	if o.cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.cfg.SystemPrompt})
	}
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	rounds := 0
	for rounds < o.cfg.MaxToolRounds {
		rounds++

		resp, err := o.decide(ctx, messages, schemas)
		if err != nil {
			qerr := o.classify(ctx, err)
			o.recordQuery(string(qerr.Kind), rounds, start)
			return "", qerr
		}

		if len(resp.ToolCalls) == 0 {
			logger.Info().Int("rounds", rounds).Msg("Query answered")
			o.recordQuery("success", rounds, start)
			return resp.Content, nil
		}

		calls := withCallIDs(resp.ToolCalls)
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: calls,
		})

		logger.Debug().
			Int("round", rounds).
			Int("tool_calls", len(calls)).
			Msg("Dispatching tool round")

		// Round barrier: every invocation of this round completes
		// before any result is handed back to the prediction service.
		for _, d := range o.dispatchRound(ctx, calls) {
			payload, err := json.Marshal(d.result)
			if err != nil {
				payload = []byte(`{"success":false,"error":{"kind":"store_failure","message":"result serialization failed"}}`)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: d.call.ID,
				Content:    string(payload),
			})
		}

		if ctx.Err() != nil {
			qerr := o.classify(ctx, ctx.Err())
			o.recordQuery(string(qerr.Kind), rounds, start)
			return "", qerr
		}
	}

	logger.Warn().Int("rounds", rounds).Msg("Tool round limit exceeded")
	o.recordQuery(string(ErrRoundLimit), rounds, start)
	return "", &QueryError{
		Kind:    ErrRoundLimit,
		Message: fmt.Sprintf("query exceeded the maximum of %d tool rounds", o.cfg.MaxToolRounds),
	}
}

// decide sends one decision request and records its telemetry.
func (o *Orchestrator) decide(ctx context.Context, messages []llm.Message, schemas []tools.ToolSchema) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := o.llm.Chat(ctx, &llm.ChatRequest{
		Messages:    messages,
		Tools:       schemas,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	if o.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		o.metrics.RecordLLMRequest(status, time.Since(start))
	}
	return resp, err
}

// dispatchRound executes one round of tool calls concurrently and
// returns results in the original call order. A single call takes the
// fast path with no goroutine overhead.
func (o *Orchestrator) dispatchRound(ctx context.Context, calls []llm.ToolCall) []dispatched {
	results := make([]dispatched, len(calls))

	if len(calls) == 1 {
		results[0] = dispatched{call: calls[0], result: o.invokeCall(ctx, calls[0])}
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxParallelTools)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = dispatched{call: call, result: o.invokeCall(gCtx, call)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// invokeCall decodes one tool call's argument JSON and invokes it.
// Undecodable arguments become an invalid_arguments failure fed back to
// the prediction service, which can repair its own call.
func (o *Orchestrator) invokeCall(ctx context.Context, call llm.ToolCall) tools.InvocationResult {
	args := make(map[string]any)
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return tools.InvocationResult{
				Tool:    call.Name,
				Success: false,
				Error:   tools.NewInvalidArgumentsError("", "arguments are not a valid JSON object"),
			}
		}
	}
	return o.invoker.Invoke(ctx, tools.InvocationRequest{
		ID:        call.ID,
		Tool:      call.Name,
		Arguments: args,
	})
}

// classify maps a loop-fatal error to its query error kind.
func (o *Orchestrator) classify(ctx context.Context, err error) *QueryError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &QueryError{Kind: ErrTimeout, Message: "query deadline exceeded", cause: err}
	}
	return &QueryError{Kind: ErrUpstream, Message: "prediction service failed", cause: err}
}

func (o *Orchestrator) recordQuery(status string, rounds int, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordQuery(status, rounds, time.Since(start))
	}
}

// withCallIDs ensures every tool call carries an id so its result can
// be correlated, assigning one when the model omitted it.
func withCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	copy(out, calls)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = "call_" + uuid.NewString()
		}
	}
	return out
}
