package router

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/h1v3-io/muninn/internal/backend"
	"github.com/h1v3-io/muninn/pkg/wire"
)

func req(text string) wire.CompletionRequest {
	return wire.CompletionRequest{Model: "m", MaxTokens: 10, Messages: []wire.Message{wire.UserMessage(text)}}
}

// Property 6 — the JSON flag takes precedence over every other signal, including
// a passthrough text trigger present in the same message.
func TestDecideJSONOverrideWinsOverTextTrigger(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysPassthrough}, nil)
	request := req("@muninn passthrough\nplease just run the tests")
	request.Muninn = &wire.MuninnConfig{Recursive: true}

	d := r.Decide(context.Background(), request)
	if !d.IsRlm() {
		t.Fatalf("expected rlm, got %s (method=%s)", d.Route, d.Method)
	}
	if d.Method != "json_override" {
		t.Fatalf("expected method=json_override, got %s", d.Method)
	}
}

func TestDecideExploreTextTriggerForcesRlm(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysPassthrough}, nil)
	d := r.Decide(context.Background(), req("@muninn explore\nhow does auth work"))
	if !d.IsRlm() {
		t.Fatalf("expected rlm, got %s", d.Route)
	}
	if d.Method != "explore_trigger" {
		t.Fatalf("expected method=explore_trigger, got %s", d.Method)
	}
}

func TestDecidePassthroughTextTriggerForcesPassthrough(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysRlm}, nil)
	d := r.Decide(context.Background(), req("@muninn passthrough\nexplore the codebase"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough, got %s", d.Route)
	}
	if d.Method != "passthrough_trigger" {
		t.Fatalf("expected method=passthrough_trigger, got %s", d.Method)
	}
}

// Explicit triggers must start a line; a mention mid-sentence never fires.
func TestDecideTriggerMustStartLine(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysPassthrough}, nil)
	d := r.Decide(context.Background(), req("can you run @muninn explore for me please"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough since trigger is not at line start, got %s", d.Route)
	}
}

func TestDecideAlwaysPassthroughStrategy(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysPassthrough}, nil)
	d := r.Decide(context.Background(), req("how does the router work"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough, got %s", d.Route)
	}
}

func TestDecideAlwaysRlmStrategy(t *testing.T) {
	r := NewRouter(Config{Strategy: AlwaysRlm}, nil)
	d := r.Decide(context.Background(), req("hello"))
	if !d.IsRlm() {
		t.Fatalf("expected rlm, got %s", d.Route)
	}
}

func TestDecideHeuristicMatchesTrigger(t *testing.T) {
	r := NewRouter(Config{Strategy: Heuristic}, nil)
	for _, text := range []string{
		"find all callers of parse()",
		"can you trace how requests flow through the server",
		"what are the implementations of the Backend interface",
		"how does authentication work here",
	} {
		d := r.Decide(context.Background(), req(text))
		if !d.IsRlm() {
			t.Fatalf("expected rlm for %q, got %s", text, d.Route)
		}
	}
}

func TestDecideHeuristicNoMatchPassesThrough(t *testing.T) {
	r := NewRouter(Config{Strategy: Heuristic}, nil)
	d := r.Decide(context.Background(), req("run the test suite and show me the output"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough, got %s", d.Route)
	}
}

// The router never fails the request: under the Llm strategy any backend
// failure resolves to Passthrough.
func TestDecideLlmStrategyFallsBackOnBackendError(t *testing.T) {
	mb := backend.NewMockBackend()
	mb.QueueError(0, errBoom{})
	r := NewRouter(Config{Strategy: Llm}, mb)

	d := r.Decide(context.Background(), req("explain the architecture"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough fallback, got %s", d.Route)
	}
	if d.Method != "llm" {
		t.Fatalf("expected method=llm, got %s", d.Method)
	}
}

func TestDecideLlmStrategyNoBackendConfiguredFallsBack(t *testing.T) {
	r := NewRouter(Config{Strategy: Llm}, nil)
	d := r.Decide(context.Background(), req("find all implementations of Backend"))
	if d.IsRlm() {
		t.Fatalf("expected passthrough since no router backend is configured, got %s", d.Route)
	}
}

func TestDecideLlmStrategyUsesToolDecision(t *testing.T) {
	mb := backend.NewMockBackend(wire.CompletionResponse{
		ID: "r1",
		Content: []wire.ContentBlock{
			wire.ToolUseBlock("t1", "route_decision", json.RawMessage(`{"route":"rlm","reason":"needs source exploration"}`)),
		},
		StopReason: wire.StopToolUse,
	})
	r := NewRouter(Config{Strategy: Llm}, mb)

	d := r.Decide(context.Background(), req("how does the scheduler pick the next job"))
	if !d.IsRlm() {
		t.Fatalf("expected rlm, got %s", d.Route)
	}

	calls := mb.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly one router backend call, got %d", len(calls))
	}
	if calls[0].ToolChoice == nil || calls[0].ToolChoice.Name != "route_decision" {
		t.Fatalf("expected tool_choice forcing route_decision")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
