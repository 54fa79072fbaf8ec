package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/h1v3-io/muninn/internal/backend"
	"github.com/h1v3-io/muninn/internal/budget"
	"github.com/h1v3-io/muninn/internal/config"
	"github.com/h1v3-io/muninn/internal/logbuf"
	"github.com/h1v3-io/muninn/internal/proxy"
	"github.com/h1v3-io/muninn/internal/router"
	"github.com/h1v3-io/muninn/internal/session"
	"github.com/h1v3-io/muninn/internal/tool"
	"github.com/h1v3-io/muninn/internal/trace"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	targetBackend := flag.String("backend", os.Getenv("MUNINN_TARGET_BACKEND"), "Backend key to passthrough/explore against")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("muninnd starting", "router_strategy", cfg.Router.Strategy)

	backends := make(map[string]backend.Backend)
	for name, bcfg := range cfg.Backends {
		backends[name] = buildBackend(bcfg)
		logger.Info("backend initialized", "name", name, "type", bcfg.Type, "model", bcfg.Model)
	}

	beName := *targetBackend
	if beName == "" {
		beName = firstBackendKey(cfg.Backends)
	}
	be, ok := backends[beName]
	if !ok {
		logger.Error("no backend configured to passthrough/explore against", "wanted", beName)
		os.Exit(1)
	}

	var routerBE backend.Backend
	if cfg.Router.Strategy == "llm" {
		routerBE = backends[cfg.Router.RouterBackend]
		if routerBE == nil {
			routerBE = be
		}
	}
	rt := router.NewRouter(router.Config{
		Strategy:      router.Strategy(cfg.Router.Strategy),
		RouterModel:   cfg.Router.RouterModel,
		RouterTimeout: cfg.RouterTimeout(),
	}, routerBE)

	// Concrete file-system/graph tools are intentionally unshipped (the
	// registry exists to exercise the dispatch shape, not to provide
	// production capabilities). Any tool_use the model emits folds to an
	// is_error ToolResult rather than failing the request.
	registry := tool.NewRegistry()

	muninnDir := cfg.Session.MuninnDir
	sessionID := session.Generate()
	if _, err := session.EnsureDir(muninnDir, sessionID); err != nil {
		logger.Error("failed to create session directory", "error", err)
		os.Exit(1)
	}

	store, err := session.NewStore(filepath.Join(muninnDir, "sessions.db"))
	if err != nil {
		logger.Error("failed to open session catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	meta := session.NewMetadata(sessionID, cfg.Router.Strategy, cfg.Router.RouterModel)
	if err := store.Record(meta); err != nil {
		logger.Warn("failed to record session metadata", "error", err)
	}

	traceWriter, err := trace.NewWriter(session.TracePath(muninnDir, sessionID))
	if err != nil {
		logger.Error("failed to open trace writer", "error", err)
		os.Exit(1)
	}
	defer traceWriter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Session.RetentionHours > 0 {
		janitor := session.NewJanitor(store, muninnDir, time.Duration(cfg.Session.RetentionHours)*time.Hour, logger.With("component", "janitor"))
		if err := janitor.Start(cfg.Session.RetentionSchedule); err != nil {
			logger.Error("failed to start session janitor", "error", err)
			os.Exit(1)
		}
		defer janitor.Stop()
		logger.Info("session janitor started", "schedule", cfg.Session.RetentionSchedule, "retention_hours", cfg.Session.RetentionHours)
	}

	budgetConfig := budget.Config{
		MaxDepth:        cfg.Budget.MaxDepth,
		MaxTokens:       cfg.Budget.MaxTokens,
		MaxToolCalls:    cfg.Budget.MaxToolCalls,
		MaxDurationSecs: cfg.Budget.MaxDurationSecs,
	}

	srv := proxy.NewServer(
		proxy.Config{
			Host:              cfg.Proxy.Host,
			Port:              cfg.Proxy.Port,
			MaxConcurrency:    cfg.Proxy.MaxConcurrency,
			ShutdownGraceSecs: cfg.Proxy.ShutdownGraceSecs,
		},
		be,
		registry,
		rt,
		budgetConfig,
		traceWriter,
		store,
		sessionID,
		logger.With("component", "proxy"),
	)

	go safeGo(logger, "proxy-server", func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("proxy server exited with error", "error", err)
		}
	})
	logger.Info("proxy listening", "host", cfg.Proxy.Host, "port", cfg.Proxy.Port, "session_id", string(sessionID))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	time.Sleep(time.Duration(cfg.Proxy.ShutdownGraceSecs) * time.Second)
	logger.Info("muninnd stopped")
}

func buildBackend(bcfg config.BackendConfig) backend.Backend {
	switch bcfg.Type {
	case "anthropic":
		var opts []backend.AnthropicOption
		if bcfg.BaseURL != "" {
			opts = append(opts, backend.WithAnthropicBaseURL(bcfg.BaseURL))
		}
		return backend.NewAnthropic(bcfg.APIKey, opts...)
	case "ollama":
		var opts []backend.OllamaOption
		if bcfg.BaseURL != "" {
			opts = append(opts, backend.WithOllamaBaseURL(bcfg.BaseURL))
		}
		if bcfg.Model != "" {
			opts = append(opts, backend.WithOllamaModel(bcfg.Model))
		}
		return backend.NewOllama(opts...)
	default: // "openai" or empty
		var opts []backend.OpenAIOption
		if bcfg.BaseURL != "" {
			opts = append(opts, backend.WithOpenAIBaseURL(bcfg.BaseURL))
		}
		if bcfg.Model != "" {
			opts = append(opts, backend.WithOpenAIModel(bcfg.Model))
		}
		return backend.NewOpenAI(bcfg.APIKey, opts...)
	}
}

func firstBackendKey(backends map[string]config.BackendConfig) string {
	if _, ok := backends["anthropic"]; ok {
		return "anthropic"
	}
	for name := range backends {
		return name
	}
	return ""
}

// safeGo runs fn with panic recovery, the same guard every long-lived
// background goroutine in this process gets.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
