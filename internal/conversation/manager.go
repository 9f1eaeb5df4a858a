package conversation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"medagent-go/internal/llm"
)

// ManagerConfig contains configuration for the conversation manager.
type ManagerConfig struct {
	// Timeout is the inactivity window after which a conversation expires.
	Timeout time.Duration
	// MaxHistoryMessages caps the stored history. When exceeded, the
	// oldest messages are dropped. Zero means unlimited.
	MaxHistoryMessages int
}

// MetricsRecorder receives conversation telemetry.
type MetricsRecorder interface {
	SetActiveConversations(count int)
}

// DefaultManager implements the Manager interface.
type DefaultManager struct {
	store     Store
	generator *IDGenerator
	cfg       ManagerConfig
	metrics   MetricsRecorder
	logger    zerolog.Logger
}

// ManagerOption configures a DefaultManager.
type ManagerOption func(*DefaultManager)

// WithMetrics wires a metrics recorder into the manager.
func WithMetrics(recorder MetricsRecorder) ManagerOption {
	return func(m *DefaultManager) { m.metrics = recorder }
}

// NewManager creates a new conversation manager.
func NewManager(store Store, cfg ManagerConfig, logger zerolog.Logger, opts ...ManagerOption) *DefaultManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	m := &DefaultManager{
		store:     store,
		generator: NewIDGenerator(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "conversation_manager").Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new empty conversation.
func (m *DefaultManager) Create(ctx context.Context) (*Conversation, error) {
	id, err := m.generator.Generate()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to generate conversation ID")
		return nil, err
	}

	now := time.Now()
	conv := &Conversation{
		ID:         id,
		CreatedAt:  now,
		LastAccess: now,
		ExpiresAt:  now.Add(m.cfg.Timeout),
	}

	if err := m.store.Set(ctx, id, conv); err != nil {
		m.logger.Error().
			Err(err).
			Str("conversation_id", id).
			Msg("Failed to store conversation")
		return nil, NewStorageError("create", err)
	}

	m.logger.Info().
		Str("conversation_id", id).
		Time("expires_at", conv.ExpiresAt).
		Msg("Conversation created")

	m.publishCount(ctx)
	return conv, nil
}

// Get returns an active conversation, deleting it if expired.
func (m *DefaultManager) Get(ctx context.Context, id string) (*Conversation, error) {
	if err := m.generator.Validate(id); err != nil {
		m.logger.Debug().
			Str("conversation_id", id).
			Err(err).
			Msg("Conversation ID validation failed")
		return nil, err
	}

	conv, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if conv.IsExpired() {
		m.logger.Debug().
			Str("conversation_id", id).
			Time("expires_at", conv.ExpiresAt).
			Msg("Conversation has expired")

		if deleteErr := m.store.Delete(ctx, id); deleteErr != nil {
			m.logger.Warn().
				Err(deleteErr).
				Str("conversation_id", id).
				Msg("Failed to delete expired conversation")
		}
		m.publishCount(ctx)
		return nil, NewExpiredError(id)
	}

	return conv, nil
}

// AppendTurn adds messages to the history and extends expiration.
func (m *DefaultManager) AppendTurn(ctx context.Context, id string, messages ...llm.Message) error {
	conv, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	conv.History = append(conv.History, messages...)
	if m.cfg.MaxHistoryMessages > 0 && len(conv.History) > m.cfg.MaxHistoryMessages {
		conv.History = conv.History[len(conv.History)-m.cfg.MaxHistoryMessages:]
	}
	conv.Refresh(m.cfg.Timeout)

	if err := m.store.Set(ctx, id, conv); err != nil {
		m.logger.Error().
			Err(err).
			Str("conversation_id", id).
			Msg("Failed to append conversation turn")
		return NewStorageError("append", err)
	}

	m.logger.Debug().
		Str("conversation_id", id).
		Int("history_len", len(conv.History)).
		Time("new_expires_at", conv.ExpiresAt).
		Msg("Conversation turn appended")

	return nil
}

// Delete removes a conversation.
func (m *DefaultManager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Debug().
			Err(err).
			Str("conversation_id", id).
			Msg("Failed to delete conversation")
		return err
	}

	m.logger.Info().
		Str("conversation_id", id).
		Msg("Conversation deleted")

	m.publishCount(ctx)
	return nil
}

// CleanupExpired removes all expired conversations.
func (m *DefaultManager) CleanupExpired(ctx context.Context) (int, error) {
	conversations, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list conversations for cleanup")
		return 0, NewStorageError("cleanup_list", err)
	}

	now := time.Now()
	deleted := 0
	for _, conv := range conversations {
		if !now.After(conv.ExpiresAt) {
			continue
		}
		if err := m.store.Delete(ctx, conv.ID); err != nil {
			m.logger.Warn().
				Err(err).
				Str("conversation_id", conv.ID).
				Msg("Failed to delete expired conversation during cleanup")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info().
			Int("deleted_count", deleted).
			Msg("Conversation cleanup completed")
	}

	m.publishCount(ctx)
	return deleted, nil
}

// ActiveCount returns the number of stored conversations.
func (m *DefaultManager) ActiveCount(ctx context.Context) (int, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return 0, NewStorageError("count", err)
	}
	return count, nil
}

func (m *DefaultManager) publishCount(ctx context.Context) {
	if m.metrics == nil {
		return
	}
	if count, err := m.store.Count(ctx); err == nil {
		m.metrics.SetActiveConversations(count)
	}
}
