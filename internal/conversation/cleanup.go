package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CleanupService periodically removes expired conversations.
type CleanupService struct {
	manager  Manager
	interval time.Duration
	logger   zerolog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}

	mutex   sync.RWMutex
	running bool
}

// CleanupConfig contains configuration for the cleanup service.
type CleanupConfig struct {
	CleanupInterval time.Duration
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(manager Manager, config CleanupConfig, logger zerolog.Logger) *CleanupService {
	return &CleanupService{
		manager:   manager,
		interval:  config.CleanupInterval,
		logger:    logger.With().Str("component", "conversation_cleanup").Logger(),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start begins the cleanup background goroutine.
func (c *CleanupService) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.running {
		c.logger.Warn().Msg("Cleanup service is already running")
		return nil
	}

	c.logger.Info().
		Dur("interval", c.interval).
		Msg("Starting conversation cleanup service")

	c.running = true
	go c.run(ctx)

	return nil
}

// Stop gracefully stops the cleanup service.
func (c *CleanupService) Stop() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.running {
		return nil
	}

	close(c.stopCh)
	<-c.stoppedCh

	c.running = false
	c.logger.Info().Msg("Conversation cleanup service stopped")

	return nil
}

// IsRunning reports whether the cleanup service is currently running.
func (c *CleanupService) IsRunning() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.running
}

// RunOnce performs a single cleanup pass.
func (c *CleanupService) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	deleted, err := c.manager.CleanupExpired(ctx)
	if err != nil {
		c.logger.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Conversation cleanup failed")
		return 0, err
	}

	c.logger.Debug().
		Int("deleted_count", deleted).
		Dur("duration", time.Since(start)).
		Msg("Conversation cleanup pass completed")

	return deleted, nil
}

func (c *CleanupService) run(ctx context.Context) {
	defer close(c.stoppedCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Cleanup service stopping due to context cancellation")
			return

		case <-c.stopCh:
			return

		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if _, err := c.RunOnce(cleanupCtx); err != nil {
				c.logger.Error().Err(err).Msg("Cleanup pass failed")
			}
			cancel()
		}
	}
}
