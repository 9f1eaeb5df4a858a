package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"medagent-go/internal/conversation"
	"medagent-go/internal/llm"
	"medagent-go/internal/orchestrator"
	"medagent-go/internal/server"
	"medagent-go/internal/store"
	"medagent-go/internal/telemetry"
	"medagent-go/internal/tools"
	"medagent-go/internal/tools/medical"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()

	cfg, err := server.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, keeping default")
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("store_driver", cfg.StoreDriver).
		Str("model", cfg.LLM.Model).
		Msg("Starting medagent server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recordStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open record store")
	}
	defer recordStore.Close()

	metrics := telemetry.NewMetrics()

	registry := tools.NewRegistry()
	medical.Register(registry, recordStore, logger)
	invoker := tools.NewInvoker(registry, logger, tools.WithMetrics(metrics))

	for _, def := range registry.Catalog() {
		logger.Info().Str("tool", def.Name).Msg("Registered tool")
	}

	llmClient := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, logger)

	orch := orchestrator.New(llmClient, registry, invoker, orchestrator.Config{
		MaxToolRounds:    cfg.Orchestrator.MaxToolRounds,
		QueryTimeout:     cfg.Orchestrator.QueryTimeout.Duration,
		MaxParallelTools: cfg.Orchestrator.MaxParallelTools,
		MaxTokens:        cfg.LLM.MaxTokens,
		Temperature:      cfg.LLM.Temperature,
	}, logger, orchestrator.WithMetrics(metrics))

	convStore := conversation.NewMemoryStore(logger)
	defer convStore.Close()
	manager := conversation.NewManager(convStore, conversation.ManagerConfig{
		Timeout:            cfg.ConversationTimeout.Duration,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
	}, logger, conversation.WithMetrics(metrics))

	cleanup := conversation.NewCleanupService(manager, conversation.CleanupConfig{
		CleanupInterval: cfg.CleanupInterval.Duration,
	}, logger)
	if err := cleanup.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start conversation cleanup")
	}
	defer cleanup.Stop()

	collector := telemetry.NewSystemMetricsCollector(metrics, logger, 15*time.Second)
	go collector.Start(ctx)
	defer collector.Stop()

	handler := server.New(server.Dependencies{
		Registry:      registry,
		Invoker:       invoker,
		Orchestrator:  orch,
		Conversations: manager,
		Metrics:       metrics,
	}, logger)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}

// openStore opens the configured record store and seeds it when empty.
func openStore(ctx context.Context, cfg server.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		s := store.NewMemoryStore(logger)
		if err := store.Seed(ctx, s, logger); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		s, err := store.OpenSQLite(cfg.StorePath, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Seed(ctx, s, logger); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	}
}
