// Package conversation tracks multi-turn chat state. Each conversation
// holds the message history threaded into follow-up queries and expires
// after a period of inactivity.
package conversation

import (
	"context"
	"time"

	"medagent-go/internal/llm"
)

// Conversation is one client's chat thread.
type Conversation struct {
	ID         string        `json:"id"`
	CreatedAt  time.Time     `json:"created_at"`
	LastAccess time.Time     `json:"last_access"`
	ExpiresAt  time.Time     `json:"expires_at"`
	History    []llm.Message `json:"-"`
}

// IsExpired reports whether the conversation has expired.
func (c *Conversation) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Refresh updates the last access time and extends expiration.
func (c *Conversation) Refresh(timeout time.Duration) {
	now := time.Now()
	c.LastAccess = now
	c.ExpiresAt = now.Add(timeout)
}

// Manager defines conversation lifecycle operations.
type Manager interface {
	// Create starts a new empty conversation.
	Create(ctx context.Context) (*Conversation, error)

	// Get returns an active conversation, deleting it if expired.
	Get(ctx context.Context, id string) (*Conversation, error)

	// AppendTurn adds messages to the history and extends expiration.
	AppendTurn(ctx context.Context, id string, messages ...llm.Message) error

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error

	// CleanupExpired removes all expired conversations.
	CleanupExpired(ctx context.Context) (int, error)

	// ActiveCount returns the number of stored conversations.
	ActiveCount(ctx context.Context) (int, error)
}

// Store defines conversation storage operations.
type Store interface {
	// Set stores a conversation.
	Set(ctx context.Context, id string, conv *Conversation) error

	// Get retrieves a conversation by ID.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Delete removes a conversation.
	Delete(ctx context.Context, id string) error

	// List returns all stored conversations.
	List(ctx context.Context) ([]*Conversation, error)

	// Count returns the number of stored conversations.
	Count(ctx context.Context) (int, error)

	// Close cleans up resources.
	Close() error
}
