// Package llm talks to the prediction service. The service's reasoning
// is opaque: this package only moves messages, tool schemas, and tool
// calls across the wire.
package llm

import (
	"context"

	"medagent-go/internal/tools"
)

// Message roles on the chat wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role result message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall is one tool invocation requested by the prediction service.
// Arguments is the raw JSON object produced by the model; it is
// untrusted and decoded downstream.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatRequest is one decision request to the prediction service.
type ChatRequest struct {
	Messages    []Message
	Tools       []tools.ToolSchema
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the prediction service's decision: a text answer,
// one or more tool calls, or both.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	TokensInput  int
	TokensOutput int
}

// Client is the prediction-service contract consumed by the orchestrator.
type Client interface {
	// Chat sends one decision request. Errors mean the service is
	// unreachable or its reply could not be parsed; both are fatal for
	// the current query.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
