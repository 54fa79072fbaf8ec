// Package config loads the proxy's process configuration: which backends
// are available, how requests are routed, the exploration budget
// defaults, and the concurrency/retention knobs the proxy front-end and
// session janitor read at startup. Structurally adapted from the
// teacher's own config.Load/LoadFromEnv/Validate shape.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level muninnd configuration.
type Config struct {
	Proxy     ProxyConfig               `json:"proxy"`
	Backends  map[string]BackendConfig  `json:"backends"`
	Router    RouterConfig              `json:"router"`
	Budget    BudgetConfig              `json:"budget"`
	Session   SessionConfig             `json:"session"`
}

// ProxyConfig holds HTTP front-end settings.
type ProxyConfig struct {
	Host              string `json:"host"`
	Port              int    `json:"port"`
	MaxConcurrency    int    `json:"max_concurrency,omitempty"`    // default 64
	ShutdownGraceSecs int    `json:"shutdown_grace_secs,omitempty"` // default 5
}

// BackendConfig describes one upstream LLM backend the proxy can
// passthrough to or run the engine against.
type BackendConfig struct {
	Type    string `json:"type"` // "anthropic", "openai", or "ollama"
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// RouterConfig selects the routing strategy and, for the Llm strategy, the
// router backend to call.
type RouterConfig struct {
	Strategy        string `json:"strategy"` // "always_passthrough", "always_rlm", "heuristic", "llm"
	RouterBackend   string `json:"router_backend,omitempty"`   // key into Backends
	RouterModel     string `json:"router_model,omitempty"`
	RouterTimeoutMs int    `json:"router_timeout_ms,omitempty"` // default 2000
}

// BudgetConfig holds process-wide exploration budget defaults (SPEC
// §4.3); a request's own muninn.budget overrides these per call.
type BudgetConfig struct {
	MaxDepth        int   `json:"max_depth,omitempty"`
	MaxTokens       int   `json:"max_tokens,omitempty"`
	MaxToolCalls    int   `json:"max_tool_calls,omitempty"`
	MaxDurationSecs int64 `json:"max_duration_secs,omitempty"`
}

// SessionConfig controls where traces are written and how long session
// directories are kept.
type SessionConfig struct {
	MuninnDir         string `json:"muninn_dir,omitempty"` // default ".muninn"
	RetentionHours    int    `json:"retention_hours,omitempty"` // 0 disables the janitor
	RetentionSchedule string `json:"retention_schedule,omitempty"` // default "@every 1h"
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with a MUNINN_
// prefix, the deployment path when no config file is mounted.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Proxy: ProxyConfig{
			Host: getenv("MUNINN_HOST", "0.0.0.0"),
			Port: getenvInt("MUNINN_PORT", 8787),
		},
		Backends: make(map[string]BackendConfig),
		Router: RouterConfig{
			Strategy:    getenv("MUNINN_ROUTER_STRATEGY", "llm"),
			RouterModel: os.Getenv("MUNINN_ROUTER_MODEL"),
		},
		Session: SessionConfig{
			MuninnDir: getenv("MUNINN_DIR", ".muninn"),
		},
	}

	if apiKey := os.Getenv("MUNINN_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Backends["anthropic"] = BackendConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("MUNINN_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		}
	}
	if apiKey := os.Getenv("MUNINN_OPENAI_API_KEY"); apiKey != "" {
		cfg.Backends["openai"] = BackendConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("MUNINN_OPENAI_BASE_URL"),
			Model:   getenv("MUNINN_OPENAI_MODEL", "gpt-4o"),
		}
	}
	if baseURL := os.Getenv("MUNINN_OLLAMA_BASE_URL"); baseURL != "" {
		cfg.Backends["ollama"] = BackendConfig{
			Type:    "ollama",
			BaseURL: baseURL,
			Model:   getenv("MUNINN_OLLAMA_MODEL", "gpt-oss:20b"),
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Proxy.MaxConcurrency == 0 {
		c.Proxy.MaxConcurrency = 64
	}
	if c.Proxy.ShutdownGraceSecs == 0 {
		c.Proxy.ShutdownGraceSecs = 5
	}
	if c.Router.Strategy == "" {
		c.Router.Strategy = "llm"
	}
	if c.Router.RouterTimeoutMs == 0 {
		c.Router.RouterTimeoutMs = 2000
	}
	if c.Budget.MaxDepth == 0 {
		c.Budget.MaxDepth = 10
	}
	if c.Budget.MaxTokens == 0 {
		c.Budget.MaxTokens = 100_000
	}
	if c.Budget.MaxToolCalls == 0 {
		c.Budget.MaxToolCalls = 50
	}
	if c.Budget.MaxDurationSecs == 0 {
		c.Budget.MaxDurationSecs = 300
	}
	if c.Session.MuninnDir == "" {
		c.Session.MuninnDir = ".muninn"
	}
	if c.Session.RetentionHours > 0 && c.Session.RetentionSchedule == "" {
		c.Session.RetentionSchedule = "@every 1h"
	}
}

// RouterTimeout returns the configured router timeout as a time.Duration.
func (c *Config) RouterTimeout() time.Duration {
	return time.Duration(c.Router.RouterTimeoutMs) * time.Millisecond
}

// Validate checks for required fields and cross-references.
func (c *Config) Validate() error {
	var errs []string

	switch c.Router.Strategy {
	case "always_passthrough", "always_rlm", "heuristic", "llm":
	default:
		errs = append(errs, fmt.Sprintf("router.strategy %q is not one of always_passthrough, always_rlm, heuristic, llm", c.Router.Strategy))
	}

	if c.Router.Strategy == "llm" && c.Router.RouterBackend != "" {
		if _, ok := c.Backends[c.Router.RouterBackend]; !ok {
			errs = append(errs, fmt.Sprintf("router.router_backend references unknown backend %q", c.Router.RouterBackend))
		}
	}

	for name, b := range c.Backends {
		switch b.Type {
		case "anthropic", "openai":
			if b.APIKey == "" {
				errs = append(errs, fmt.Sprintf("backends.%s.api_key is required for type %q", name, b.Type))
			}
		case "ollama":
			// no credential required
		default:
			errs = append(errs, fmt.Sprintf("backends.%s.type %q is not one of anthropic, openai, ollama", name, b.Type))
		}
		if b.Model == "" {
			errs = append(errs, fmt.Sprintf("backends.%s.model is required", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
