// Package config loads the relay configuration from a JSON5 file and
// overlays environment variables on top. A .env file in the working
// directory is honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// Config is the full runtime configuration.
type Config struct {
	mu sync.RWMutex

	Server     ServerConfig     `json:"server"`
	GreenAPI   GreenAPIConfig   `json:"green_api"`
	OpenRouter OpenRouterConfig `json:"openrouter"`
	Telegram   TelegramConfig   `json:"telegram"`
	Sessions   SessionsConfig   `json:"sessions"`
}

// ServerConfig controls the webhook HTTP listener.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// GreenAPIConfig holds the WhatsApp gateway credentials.
type GreenAPIConfig struct {
	InstanceID string `json:"instance_id"`
	Token      string `json:"token"`
	APIBase    string `json:"api_base"`
}

// OpenRouterConfig holds the LLM provider credentials and sampling knobs.
type OpenRouterConfig struct {
	APIKey      string  `json:"api_key"`
	APIBase     string  `json:"api_base"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// TelegramConfig holds the operator bot credentials.
type TelegramConfig struct {
	Token   string `json:"token"`
	OwnerID int64  `json:"owner_id"`
}

// SessionsConfig controls conversation persistence.
type SessionsConfig struct {
	DataFile     string `json:"data_file"`
	HistoryCap   int    `json:"history_cap"`
	ContextTurns int    `json:"context_turns"`
}

// Addr returns the host:port the webhook listener binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		OpenRouter: OpenRouterConfig{
			APIBase:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-3.5-turbo",
			Temperature: 0.22,
			MaxTokens:   800,
		},
		Sessions: SessionsConfig{
			DataFile:     "users.json",
			HistoryCap:   200,
			ContextTurns: 12,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	// Pick up a local .env if one exists.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config. Both the
// DIGITALME_* names and the bare legacy names are honored; env vars take
// precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	envStr(&c.GreenAPI.InstanceID, "DIGITALME_INSTANCE_ID", "INSTANCE_ID")
	envStr(&c.GreenAPI.Token, "DIGITALME_API_TOKEN", "API_TOKEN")
	envStr(&c.GreenAPI.APIBase, "DIGITALME_GREEN_API_BASE")
	envStr(&c.OpenRouter.APIKey, "DIGITALME_OPENROUTER_KEY", "OPENROUTER_KEY")
	envStr(&c.OpenRouter.APIBase, "DIGITALME_OPENROUTER_BASE")
	envStr(&c.OpenRouter.Model, "DIGITALME_MODEL")
	envStr(&c.Telegram.Token, "DIGITALME_TELEGRAM_ADMIN_TOKEN", "TELEGRAM_ADMIN_TOKEN")
	envStr(&c.Sessions.DataFile, "DIGITALME_DATA_FILE")
	envStr(&c.Server.Host, "DIGITALME_HOST")

	for _, key := range []string{"DIGITALME_PORT", "PORT"} {
		if v := os.Getenv(key); v != "" {
			if port, err := strconv.Atoi(v); err == nil && port > 0 {
				c.Server.Port = port
			}
			break
		}
	}

	for _, key := range []string{"DIGITALME_TELEGRAM_OWNER_ID", "TELEGRAM_OWNER_ID"} {
		if v := os.Getenv(key); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.Telegram.OwnerID = id
			} else {
				fmt.Fprintf(os.Stderr, "invalid %s: %q\n", key, v)
			}
			break
		}
	}
}

// MissingCredentials lists the credentials that are still unset. The
// relay starts without them but the affected integrations stay inert.
func (c *Config) MissingCredentials() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	if c.GreenAPI.InstanceID == "" {
		missing = append(missing, "green_api.instance_id")
	}
	if c.GreenAPI.Token == "" {
		missing = append(missing, "green_api.token")
	}
	if c.OpenRouter.APIKey == "" {
		missing = append(missing, "openrouter.api_key")
	}
	if c.Telegram.Token == "" {
		missing = append(missing, "telegram.token")
	}
	if c.Telegram.OwnerID == 0 {
		missing = append(missing, "telegram.owner_id")
	}
	return missing
}
