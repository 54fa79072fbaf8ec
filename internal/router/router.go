// Package router decides, per request, whether a completion should go
// straight to the upstream backend or run through the recursive
// exploration engine. Grounded on original_source's
// crates/muninn-rlm/src/router.rs: explicit overrides are checked before
// any strategy runs, and a strategy never sees a request the overrides
// already resolved.
package router

import (
	"context"
	"time"

	"github.com/h1v3-io/muninn/internal/backend"
	"github.com/h1v3-io/muninn/pkg/wire"
)

// Route is the routing decision for one request.
type Route string

const (
	Passthrough Route = "passthrough"
	Rlm         Route = "rlm"
)

// Strategy selects how a request is routed once the explicit overrides
// have been checked and found not to apply.
type Strategy string

const (
	AlwaysPassthrough Strategy = "always_passthrough"
	AlwaysRlm         Strategy = "always_rlm"
	Heuristic         Strategy = "heuristic"
	Llm               Strategy = "llm"
)

// Decision is the outcome of one routing call, carrying enough detail to
// populate a RouterDecision trace without the router depending on
// internal/trace.
type Decision struct {
	Route           Route
	Rationale       []string
	Confidence      float64
	CapturedRequest string
	Method          string
	DurationMs      int64
}

func (d Decision) IsRlm() bool { return d.Route == Rlm }

// Config configures a Router.
type Config struct {
	Strategy      Strategy
	RouterModel   string
	RouterTimeout time.Duration
}

// DefaultRouterTimeout bounds how long the Llm strategy waits for the
// router backend before falling back to Passthrough.
const DefaultRouterTimeout = 2 * time.Second

func DefaultConfig() Config {
	return Config{Strategy: Llm, RouterTimeout: DefaultRouterTimeout}
}

// Router applies the explicit overrides, then the configured Strategy.
type Router struct {
	config      Config
	routerBE  backend.Backend
	heuristic *heuristicMatcher
}

// NewRouter constructs a Router. routerBE may be nil unless config.Strategy
// is Llm, in which case every Llm decision falls back to Passthrough (the
// same fallback used when the configured backend errors or times out).
func NewRouter(config Config, routerBE backend.Backend) *Router {
	if config.RouterTimeout <= 0 {
		config.RouterTimeout = DefaultRouterTimeout
	}
	return &Router{config: config, routerBE: routerBE, heuristic: newHeuristicMatcher()}
}

// Decide applies the explicit overrides (JSON flag, then text triggers)
// and, failing those, the configured strategy. The router never mutates
// req; callers forward the caller's request unchanged regardless of the
// decision.
func (r *Router) Decide(ctx context.Context, req wire.CompletionRequest) Decision {
	start := time.Now()
	text := req.LastUserText()

	if req.IsRecursive() {
		return r.finish(Rlm, "json_override", []string{"request.muninn.recursive == true"}, 1.0, text, start)
	}
	if hasPassthroughTrigger(text) {
		return r.finish(Passthrough, "passthrough_trigger", []string{"text starts a line with @muninn passthrough"}, 1.0, text, start)
	}
	if hasExploreTrigger(text) {
		return r.finish(Rlm, "explore_trigger", []string{"text starts a line with @muninn explore"}, 1.0, text, start)
	}

	switch r.config.Strategy {
	case AlwaysPassthrough:
		return r.finish(Passthrough, "forced_passthrough", []string{"strategy: AlwaysPassthrough"}, 1.0, text, start)
	case AlwaysRlm:
		return r.finish(Rlm, "forced_rlm", []string{"strategy: AlwaysRlm"}, 1.0, text, start)
	case Heuristic:
		if match, ok := r.heuristic.match(text); ok {
			return r.finish(Rlm, "heuristic", []string{"matched trigger: " + match}, 0.8, text, start)
		}
		return r.finish(Passthrough, "heuristic", []string{"no trigger matched"}, 0.6, text, start)
	default: // Llm
		route, rationale, confidence := r.routeViaLlm(ctx, text)
		return r.finish(route, "llm", rationale, confidence, text, start)
	}
}

func (r *Router) finish(route Route, method string, rationale []string, confidence float64, text string, start time.Time) Decision {
	return Decision{
		Route:           route,
		Rationale:       rationale,
		Confidence:      confidence,
		CapturedRequest: text,
		Method:          method,
		DurationMs:      time.Since(start).Milliseconds(),
	}
}
