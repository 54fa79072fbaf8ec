package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/h1v3-io/muninn/pkg/wire"
)

func TestCollectorFinalizeIncludesRouterDecision(t *testing.T) {
	c := NewCollector("trace-1")
	c.RecordRouterDecision(RouterDecision{Route: "rlm", Method: "explore_trigger"})

	rt := c.Finalize()
	if rt.TraceID != "trace-1" {
		t.Fatalf("expected trace_id=trace-1, got %s", rt.TraceID)
	}
	if rt.RouterDecision == nil || rt.RouterDecision.Route != "rlm" {
		t.Fatalf("expected router decision to be recorded")
	}
	if rt.RlmTrace != nil {
		t.Fatalf("expected no rlm trace when no cycle was ever started")
	}
}

func TestCollectorRecordsCyclesAndToolCalls(t *testing.T) {
	c := NewCollector("trace-2")

	c.StartCycle(0)
	c.RecordToolCall("echo", `{"text":"hi"}`, true, "hi", 5*time.Millisecond)
	c.EndCycle(&wire.CompletionResponse{StopReason: wire.StopToolUse, Usage: wire.Usage{InputTokens: 10, OutputTokens: 3}}, 20*time.Millisecond, nil)

	c.StartCycle(1)
	c.EndCycle(&wire.CompletionResponse{StopReason: wire.StopEndTurn, Usage: wire.Usage{InputTokens: 5, OutputTokens: 2}}, 15*time.Millisecond, nil)

	c.RecordExplorationSummary(1, 20, 1, "natural")

	rt := c.Finalize()
	if rt.RlmTrace == nil {
		t.Fatalf("expected an rlm trace")
	}
	if len(rt.RlmTrace.Cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(rt.RlmTrace.Cycles))
	}
	if len(rt.RlmTrace.Cycles[0].ToolCalls) != 1 {
		t.Fatalf("expected the first cycle to carry the tool call")
	}
	if rt.RlmTrace.TerminatedBy != "natural" {
		t.Fatalf("expected terminated_by=natural, got %s", rt.RlmTrace.TerminatedBy)
	}
}

func TestWriterAppendsOneLinePerTrace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions", "s1", "traces.jsonl")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	if err := w.Write(RequestTrace{TraceID: "a"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(RequestTrace{TraceID: "b"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var ids []string
	for scanner.Scan() {
		var rt RequestTrace
		if err := json.Unmarshal(scanner.Bytes(), &rt); err != nil {
			t.Fatalf("unmarshal line: %v", err)
		}
		ids = append(ids, rt.TraceID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("expected [a b], got %v", ids)
	}
}

func TestFromContextReturnsNilWhenUnset(t *testing.T) {
	if c := FromContext(context.Background()); c != nil {
		t.Fatalf("expected nil collector on a bare context")
	}
}
