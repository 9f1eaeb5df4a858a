package conversation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"medagent-go/internal/llm"
)

// MemoryStore implements Store using in-memory storage.
type MemoryStore struct {
	conversations map[string]*Conversation
	mutex         sync.RWMutex
	logger        zerolog.Logger
}

// NewMemoryStore creates a new in-memory conversation store.
func NewMemoryStore(logger zerolog.Logger) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		logger:        logger.With().Str("component", "conversation_store").Logger(),
	}
}

// Set stores a conversation.
func (s *MemoryStore) Set(ctx context.Context, id string, conv *Conversation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.conversations[id] = copyConversation(conv)

	s.logger.Debug().
		Str("conversation_id", id).
		Int("history_len", len(conv.History)).
		Time("expires_at", conv.ExpiresAt).
		Msg("Stored conversation")

	return nil
}

// Get retrieves a conversation by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	conv, exists := s.conversations[id]
	if !exists {
		s.logger.Debug().
			Str("conversation_id", id).
			Msg("Conversation not found")
		return nil, NewNotFoundError(id)
	}

	return copyConversation(conv), nil
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.conversations[id]; !exists {
		return NewNotFoundError(id)
	}

	delete(s.conversations, id)
	s.logger.Debug().
		Str("conversation_id", id).
		Msg("Conversation deleted")

	return nil
}

// List returns all stored conversations.
func (s *MemoryStore) List(ctx context.Context) ([]*Conversation, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	conversations := make([]*Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		conversations = append(conversations, copyConversation(conv))
	}

	return conversations, nil
}

// Count returns the number of stored conversations.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.conversations), nil
}

// Close cleans up resources.
func (s *MemoryStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleared := len(s.conversations)
	s.conversations = make(map[string]*Conversation)

	s.logger.Info().
		Int("cleared_conversations", cleared).
		Msg("Conversation store closed and cleared")

	return nil
}

// copyConversation deep-copies a conversation so callers cannot mutate
// stored history through the returned pointer.
func copyConversation(conv *Conversation) *Conversation {
	c := *conv
	if conv.History != nil {
		c.History = make([]llm.Message, len(conv.History))
		copy(c.History, conv.History)
	}
	return &c
}
