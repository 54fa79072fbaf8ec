package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "proxy": {
    "host": "0.0.0.0",
    "port": 8787,
    "max_concurrency": 32
  },
  "backends": {
    "anthropic": {
      "type": "anthropic",
      "api_key": "sk-test-key",
      "model": "claude-sonnet-4-20250514"
    },
    "local": {
      "type": "ollama",
      "base_url": "http://localhost:11434/v1",
      "model": "gpt-oss:20b"
    }
  },
  "router": {
    "strategy": "llm",
    "router_backend": "anthropic"
  },
  "budget": {
    "max_depth": 5,
    "max_tokens": 50000
  },
  "session": {
    "muninn_dir": "/tmp/muninn-test",
    "retention_hours": 24
  }
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(validJSON), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Proxy.Port != 8787 {
		t.Fatalf("expected proxy.port=8787, got %d", cfg.Proxy.Port)
	}
	if cfg.Proxy.MaxConcurrency != 32 {
		t.Fatalf("expected proxy.max_concurrency=32, got %d", cfg.Proxy.MaxConcurrency)
	}
	if cfg.Router.Strategy != "llm" {
		t.Fatalf("expected router.strategy=llm, got %s", cfg.Router.Strategy)
	}
	if cfg.Budget.MaxDepth != 5 {
		t.Fatalf("expected budget.max_depth=5, got %d", cfg.Budget.MaxDepth)
	}
	// max_tool_calls was omitted; applyDefaults must have filled it in.
	if cfg.Budget.MaxToolCalls != 50 {
		t.Fatalf("expected default budget.max_tool_calls=50, got %d", cfg.Budget.MaxToolCalls)
	}
	if cfg.Session.RetentionSchedule != "@every 1h" {
		t.Fatalf("expected default retention schedule, got %s", cfg.Session.RetentionSchedule)
	}
	if anthropic, ok := cfg.Backends["anthropic"]; !ok || anthropic.APIKey != "sk-test-key" {
		t.Fatalf("expected backends.anthropic to be loaded, got %+v", cfg.Backends)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestValidateRejectsUnknownRouterStrategy(t *testing.T) {
	cfg := &Config{Router: RouterConfig{Strategy: "bogus"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for an unknown router strategy")
	}
}

func TestValidateRejectsRouterBackendReferencingUnknownBackend(t *testing.T) {
	cfg := &Config{
		Router:   RouterConfig{Strategy: "llm", RouterBackend: "nope"},
		Backends: map[string]BackendConfig{},
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Fatalf("expected an error mentioning the unknown backend, got %v", err)
	}
}

func TestValidateRequiresAPIKeyForAnthropicAndOpenAI(t *testing.T) {
	cfg := &Config{
		Router:   RouterConfig{Strategy: "heuristic"},
		Backends: map[string]BackendConfig{"main": {Type: "anthropic", Model: "claude-sonnet-4-20250514"}},
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected an error about the missing api_key, got %v", err)
	}
}

func TestValidateAllowsOllamaWithoutAPIKey(t *testing.T) {
	cfg := &Config{
		Router:   RouterConfig{Strategy: "heuristic"},
		Backends: map[string]BackendConfig{"local": {Type: "ollama", Model: "gpt-oss:20b"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaultsFillsProxyAndBudget(t *testing.T) {
	cfg := &Config{Router: RouterConfig{Strategy: "heuristic"}}
	cfg.applyDefaults()

	if cfg.Proxy.MaxConcurrency != 64 {
		t.Fatalf("expected default max_concurrency=64, got %d", cfg.Proxy.MaxConcurrency)
	}
	if cfg.Proxy.ShutdownGraceSecs != 5 {
		t.Fatalf("expected default shutdown_grace_secs=5, got %d", cfg.Proxy.ShutdownGraceSecs)
	}
	if cfg.Budget.MaxDepth != 10 || cfg.Budget.MaxTokens != 100_000 {
		t.Fatalf("expected default budget values, got %+v", cfg.Budget)
	}
	if cfg.Session.MuninnDir != ".muninn" {
		t.Fatalf("expected default muninn_dir, got %s", cfg.Session.MuninnDir)
	}
}

func TestRouterTimeout(t *testing.T) {
	cfg := &Config{Router: RouterConfig{RouterTimeoutMs: 1500}}
	if cfg.RouterTimeout().Milliseconds() != 1500 {
		t.Fatalf("expected 1500ms, got %v", cfg.RouterTimeout())
	}
}
