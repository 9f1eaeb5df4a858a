package server

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values like "30s" decode.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LLMConfig configures the prediction service client.
type LLMConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`

	// APIKey comes from the OPENAI_API_KEY environment variable,
	// never from the config file.
	APIKey string `toml:"-"`
}

// OrchestratorConfig bounds the query loop.
type OrchestratorConfig struct {
	MaxToolRounds    int      `toml:"max_tool_rounds"`
	QueryTimeout     Duration `toml:"query_timeout"`
	MaxParallelTools int      `toml:"max_parallel_tools"`
}

// Config contains the server configuration.
type Config struct {
	Addr string `toml:"addr"`

	// StoreDriver selects the record store backend: "sqlite" or "memory".
	StoreDriver string `toml:"store_driver"`
	StorePath   string `toml:"store_path"`

	ConversationTimeout Duration `toml:"conversation_timeout"`
	CleanupInterval     Duration `toml:"cleanup_interval"`
	MaxHistoryMessages  int      `toml:"max_history_messages"`

	LogLevel string `toml:"log_level"`

	LLM          LLMConfig          `toml:"llm"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:                ":8080",
		StoreDriver:         "sqlite",
		StorePath:           "medagent.db",
		ConversationTimeout: Duration{time.Hour},
		CleanupInterval:     Duration{5 * time.Minute},
		MaxHistoryMessages:  40,
		LogLevel:            "info",
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   2048,
			Temperature: 0.2,
		},
		Orchestrator: OrchestratorConfig{
			MaxToolRounds:    8,
			QueryTimeout:     Duration{60 * time.Second},
			MaxParallelTools: 4,
		},
	}
}

// Load reads the configuration file at path on top of the defaults. An
// empty path returns the defaults. The API key is always taken from the
// OPENAI_API_KEY environment variable.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would break the
// server at runtime.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	switch c.StoreDriver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == "sqlite" && c.StorePath == "" {
		return fmt.Errorf("store_path required for the sqlite driver")
	}
	if c.ConversationTimeout.Duration <= 0 {
		return fmt.Errorf("conversation_timeout must be positive")
	}
	if c.CleanupInterval.Duration <= 0 {
		return fmt.Errorf("cleanup_interval must be positive")
	}
	return nil
}
