package trace

import (
	"context"
	"sync"
	"time"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// Collector accumulates one RequestTrace for the lifetime of a single
// proxied request. It is safe for concurrent use: the engine's
// backend/tool-dispatch sites and the proxy's own handler goroutine may
// all touch it, the same mutex-guarded, many-writers shape
// internal/logbuf.Buffer uses.
type Collector struct {
	mu        sync.Mutex
	traceID   string
	startedAt time.Time
	decision  *RouterDecision
	rlm       *RlmTrace
	cycle     *CycleTrace // the cycle currently open, if any
}

// NewCollector starts a collector for one request.
func NewCollector(traceID string) *Collector {
	return &Collector{traceID: traceID, startedAt: time.Now()}
}

// RecordRouterDecision attaches the router's outcome to the trace.
func (c *Collector) RecordRouterDecision(d RouterDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decision = &d
}

// StartCycle satisfies internal/engine.Recorder: it opens a new cycle
// record at the given depth. Structural satisfaction — this package never
// imports internal/engine.
func (c *Collector) StartCycle(depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rlm == nil {
		c.rlm = &RlmTrace{}
	}
	c.cycle = &CycleTrace{Depth: depth}
}

// EndCycle closes the cycle opened by StartCycle, recording the backend's
// response (or error) and latency.
func (c *Collector) EndCycle(resp *wire.CompletionResponse, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle == nil {
		c.cycle = &CycleTrace{}
	}
	c.cycle.LatencyMs = latency.Milliseconds()
	if err != nil {
		c.cycle.Error = err.Error()
	} else if resp != nil {
		c.cycle.StopReason = string(resp.StopReason)
		c.cycle.InputTokens = resp.Usage.InputTokens
		c.cycle.OutputTokens = resp.Usage.OutputTokens
	}
	c.rlm.Cycles = append(c.rlm.Cycles, *c.cycle)
	c.cycle = nil
}

// RecordToolCall appends one tool dispatch to the cycle currently open.
// If no cycle is open (the engine dispatches tools after EndCycle) the call
// is recorded against the most recently closed cycle, or against a
// synthetic cycle when none exists yet, so no tool trace is silently
// dropped.
func (c *Collector) RecordToolCall(name, arguments string, success bool, resultPreview string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tt := ToolTrace{Name: name, Arguments: arguments, Result: resultPreview, Success: success, DurationMs: duration.Milliseconds()}
	if !success {
		tt.Error = resultPreview
	}
	if c.cycle != nil {
		c.cycle.ToolCalls = append(c.cycle.ToolCalls, tt)
		return
	}
	if c.rlm == nil {
		c.rlm = &RlmTrace{}
	}
	if len(c.rlm.Cycles) == 0 {
		c.rlm.Cycles = append(c.rlm.Cycles, CycleTrace{})
	}
	last := &c.rlm.Cycles[len(c.rlm.Cycles)-1]
	last.ToolCalls = append(last.ToolCalls, tt)
}

// RecordExplorationSummary attaches the engine's final counters, used by
// Finalize to populate RlmTrace's totals.
func (c *Collector) RecordExplorationSummary(depthReached, tokensUsed, toolCalls int, terminatedBy string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rlm == nil {
		c.rlm = &RlmTrace{}
	}
	c.rlm.DepthReached = depthReached
	c.rlm.TokensUsed = tokensUsed
	c.rlm.ToolCalls = toolCalls
	c.rlm.TerminatedBy = terminatedBy
}

// Finalize produces the terminal RequestTrace, ready to be written.
func (c *Collector) Finalize() RequestTrace {
	c.mu.Lock()
	defer c.mu.Unlock()
	return RequestTrace{
		TraceID:         c.traceID,
		Timestamp:       c.startedAt,
		RouterDecision:  c.decision,
		RlmTrace:        c.rlm,
		TotalDurationMs: time.Since(c.startedAt).Milliseconds(),
	}
}

type contextKey struct{}

// WithCollector returns a context carrying c as task-local state, rather
// than threading an explicit parameter through every call.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the Collector stored by WithCollector, or nil if
// none was set — call sites outside an active request (tests, the router
// strategy's own backend call) must tolerate a nil Collector.
func FromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(contextKey{}).(*Collector)
	return c
}
