// Package trace records a structured account of one proxied request: the
// router's decision, every RLM cycle and tool call if the request went
// through the engine, and the total time spent. Grounded on
// original_source's crates/muninn-tracing (types.rs, collector.rs,
// writer.rs), narrowed from that crate's generic Trace/Span model to the
// concrete shapes this proxy actually produces.
package trace

import "time"

// RouterDecision mirrors the router's own Decision, captured verbatim for
// the trace record rather than re-derived from it.
type RouterDecision struct {
	Route           string   `json:"route"`
	Method          string   `json:"method"`
	Rationale       []string `json:"rationale"`
	Confidence      float64  `json:"confidence"`
	CapturedRequest string   `json:"captured_request"`
	DurationMs      int64    `json:"duration_ms"`
}

// ToolTrace records one tool dispatch within an RLM cycle.
type ToolTrace struct {
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	Result     string `json:"result"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// CycleTrace records one backend call inside an RLM run: its latency and
// token usage, the stop reason it returned, and the tool calls that
// followed it.
type CycleTrace struct {
	Depth       int         `json:"depth"`
	LatencyMs   int64       `json:"latency_ms"`
	StopReason  string      `json:"stop_reason,omitempty"`
	InputTokens int         `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	Error       string      `json:"error,omitempty"`
	ToolCalls   []ToolTrace `json:"tool_calls,omitempty"`
}

// RlmTrace is present only when a request was routed to the engine.
type RlmTrace struct {
	Cycles       []CycleTrace `json:"cycles"`
	DepthReached int          `json:"depth_reached"`
	TokensUsed   int          `json:"tokens_used"`
	ToolCalls    int          `json:"tool_calls"`
	TerminatedBy string       `json:"terminated_by,omitempty"`
}

// RequestTrace is the unit written to disk: exactly one JSON object per
// proxied request.
type RequestTrace struct {
	TraceID         string          `json:"trace_id"`
	Timestamp       time.Time       `json:"timestamp"`
	RouterDecision  *RouterDecision `json:"router_decision,omitempty"`
	RlmTrace        *RlmTrace       `json:"rlm_trace,omitempty"`
	TotalDurationMs int64           `json:"total_duration_ms"`
}
