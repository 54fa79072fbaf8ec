// Package proxy is the HTTP front-end: it accepts Anthropic Messages API
// requests, asks internal/router where they should go, runs either a
// direct passthrough or an internal/engine exploration, and renders the
// result back as JSON or server-sent events. Built on net/http.ServeMux
// with Go 1.22+ method-and-path patterns, an *http.Server with
// ReadHeaderTimeout set, and a Start(ctx)/graceful-Shutdown pairing driven
// by a background goroutine watching ctx.Done().
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/h1v3-io/muninn/internal/backend"
	"github.com/h1v3-io/muninn/internal/budget"
	"github.com/h1v3-io/muninn/internal/engine"
	"github.com/h1v3-io/muninn/internal/router"
	"github.com/h1v3-io/muninn/internal/session"
	"github.com/h1v3-io/muninn/internal/tool"
	"github.com/h1v3-io/muninn/internal/trace"
	"github.com/h1v3-io/muninn/pkg/wire"
)

// Config holds the proxy's own HTTP-level settings. Process-wide router
// strategy and budget defaults are owned by the caller (internal/config)
// and passed in already resolved.
type Config struct {
	Host              string
	Port              int
	MaxConcurrency    int
	ShutdownGraceSecs int
}

// TraceSink receives one finished RequestTrace per request. Decoupling
// the server from internal/trace.Writer the same way internal/engine
// decouples itself from internal/trace.Collector via the Recorder
// interface — a nil TraceSink is valid and simply drops traces.
type TraceSink interface {
	Write(trace.RequestTrace) error
}

// Server is the muninn proxy's HTTP front-end.
type Server struct {
	cfg          Config
	backend      backend.Backend
	registry     *tool.Registry
	router       *router.Router
	budgetConfig budget.Config
	traces       TraceSink
	sessions     *session.Store
	sessionID    session.ID
	logger       *slog.Logger
	srv          *http.Server
	sem          chan struct{}
}

// NewServer wires a proxy Server. registry may be empty (no tools
// registered) since concrete tool implementations are out of scope here;
// an empty registry still lets the engine run, folding every tool_use
// into an is_error result.
func NewServer(
	cfg Config,
	be backend.Backend,
	registry *tool.Registry,
	rt *router.Router,
	budgetConfig budget.Config,
	traces TraceSink,
	sessions *session.Store,
	sessionID session.ID,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 64
	}
	if cfg.ShutdownGraceSecs <= 0 {
		cfg.ShutdownGraceSecs = 5
	}

	s := &Server{
		cfg:          cfg,
		backend:      be,
		registry:     registry,
		router:       rt,
		budgetConfig: budgetConfig,
		traces:       traces,
		sessions:     sessions,
		sessionID:    sessionID,
		logger:       logger,
		sem:          make(chan struct{}, cfg.MaxConcurrency),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/messages", s.withConcurrencyLimit(s.handleMessages))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until ctx is canceled, at which point
// in-flight requests are granted a grace period before being force-closed.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownGraceSecs)*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutCtx); err != nil {
			s.srv.Close()
		}
	}()

	s.logger.Info("proxy starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("proxy: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler, for httptest-based tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// withConcurrencyLimit bounds the number of in-flight requests to
// cfg.MaxConcurrency, returning 503 once the ceiling is reached rather
// than queuing unboundedly — a buffered channel used as a semaphore.
func (s *Server) withConcurrencyLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
			next(w, r)
		default:
			writeJSON(w, http.StatusServiceUnavailable, newErrorResponse("overloaded", "too many concurrent requests"))
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	var req wire.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, newErrorResponse("invalid_request_error", "invalid JSON: "+err.Error()))
		return
	}

	traceID := uuid.New().String()
	collector := trace.NewCollector(traceID)
	ctx := trace.WithCollector(r.Context(), collector)

	defer func() {
		s.writeTrace(collector.Finalize())
	}()

	decision := s.router.Decide(ctx, req)
	collector.RecordRouterDecision(trace.RouterDecision{
		Route:           string(decision.Route),
		Method:          decision.Method,
		Rationale:       decision.Rationale,
		Confidence:      decision.Confidence,
		CapturedRequest: decision.CapturedRequest,
		DurationMs:      decision.DurationMs,
	})

	if decision.Route == router.Rlm {
		s.serveRlm(ctx, w, req)
		return
	}
	s.servePassthrough(ctx, w, req)
}

func (s *Server) servePassthrough(ctx context.Context, w http.ResponseWriter, req wire.CompletionRequest) {
	forward := req.WithoutMuninn()

	if req.Stream {
		s.streamBackend(ctx, w, forward)
		return
	}

	resp, err := s.backend.Complete(ctx, forward)
	if err != nil {
		status, errType, message := classifyBackendError(err)
		writeJSON(w, status, newErrorResponse(errType, message))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) streamBackend(ctx context.Context, w http.ResponseWriter, req wire.CompletionRequest) {
	beginSSE(w)
	for ev, err := range s.backend.Stream(ctx, req) {
		if err != nil {
			writeSSEEvent(w, wire.StreamEvent{Type: wire.EventError, Data: wire.ErrorPayload{Type: "api_error", Message: err.Error()}})
			writeSSEEvent(w, wire.StreamEvent{Type: wire.EventMessageStop})
			flush(w)
			return
		}
		writeSSEEvent(w, ev)
		flush(w)
	}
}

func (s *Server) serveRlm(ctx context.Context, w http.ResponseWriter, req wire.CompletionRequest) {
	config := budget.Resolve(s.budgetConfig, toOverride(req))
	eng := engine.NewEngine(s.backend, s.registry)
	if collector := trace.FromContext(ctx); collector != nil {
		eng = eng.WithRecorder(collector)
	}

	resp, err := eng.Run(ctx, req, config)
	if err != nil {
		status, errType, message := classifyBackendError(err)
		writeJSON(w, status, newErrorResponse(errType, message))
		return
	}

	if collector := trace.FromContext(ctx); collector != nil && resp.Muninn != nil && resp.Muninn.Exploration != nil {
		exp := resp.Muninn.Exploration
		collector.RecordExplorationSummary(exp.DepthReached, exp.TokensUsed, exp.ToolCalls, exp.TerminatedBy)
	}

	if isBudgetBreach(resp) {
		s.writeBudgetExceeded(w, req.Stream, resp.Muninn.Exploration.TerminatedBy)
		return
	}

	if req.Stream {
		beginSSE(w)
		for ev, _ := range backend.RenderFinalMessage(*resp) {
			writeSSEEvent(w, ev)
			flush(w)
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// isBudgetBreach reports whether the engine stopped because a budget
// limit was hit rather than a natural model stop.
func isBudgetBreach(resp *wire.CompletionResponse) bool {
	if resp.Muninn == nil || resp.Muninn.Exploration == nil {
		return false
	}
	switch budget.Reason(resp.Muninn.Exploration.TerminatedBy) {
	case budget.ReasonDepth, budget.ReasonTokens, budget.ReasonToolCalls, budget.ReasonDuration:
		return true
	default:
		return false
	}
}

func (s *Server) writeBudgetExceeded(w http.ResponseWriter, stream bool, reason string) {
	message := fmt.Sprintf("exploration budget exceeded: %s", reason)
	if !stream {
		writeJSON(w, http.StatusOK, newErrorResponse("budget_exceeded", message))
		return
	}
	beginSSE(w)
	writeSSEEvent(w, wire.StreamEvent{Type: wire.EventError, Data: wire.ErrorPayload{Type: "budget_exceeded", Message: message}})
	writeSSEEvent(w, wire.StreamEvent{Type: wire.EventMessageStop})
	flush(w)
}

func toOverride(req wire.CompletionRequest) budget.Override {
	if req.Muninn == nil || req.Muninn.Budget == nil {
		return budget.Override{}
	}
	b := req.Muninn.Budget
	return budget.Override{
		MaxDepth:        b.MaxDepth,
		MaxTokens:       b.MaxTokens,
		MaxToolCalls:    b.MaxToolCalls,
		MaxDurationSecs: b.MaxDurationSecs,
	}
}

func (s *Server) writeTrace(rt trace.RequestTrace) {
	if s.traces == nil {
		return
	}
	if err := s.traces.Write(rt); err != nil {
		s.logger.Error("failed to write request trace", "trace_id", rt.TraceID, "error", err)
		return
	}
	if s.sessions != nil {
		if err := s.sessions.IncrementTraceCount(s.sessionID); err != nil {
			s.logger.Warn("failed to update session trace count", "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
