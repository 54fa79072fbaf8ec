package tool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/h1v3-io/muninn/internal/tool"
	"github.com/h1v3-io/muninn/internal/tool/testtool"
)

func TestRegistryExecuteDispatchesByName(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(testtool.Echo{})

	result := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	if result.IsError() {
		t.Fatalf("expected success, got error result %q", result.ErrorMessage)
	}
	if result.ToWireContent().ToText() != "hi" {
		t.Fatalf("expected echoed text, got %q", result.ToWireContent().ToText())
	}
}

func TestRegistryExecuteUnknownToolFoldsToErrorResult(t *testing.T) {
	r := tool.NewRegistry()

	result := r.Execute(context.Background(), "nonexistent", json.RawMessage(`{}`))
	if !result.IsError() {
		t.Fatalf("expected an error result for an unknown tool")
	}
}

func TestRegistryExecuteToolSideErrorFoldsToErrorResult(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(testtool.AlwaysFail{Message: "boom"})

	result := r.Execute(context.Background(), "always_fail", json.RawMessage(`{}`))
	if !result.IsError() {
		t.Fatalf("expected an error result")
	}
	if result.ErrorMessage != "boom" {
		t.Fatalf("expected error message 'boom', got %q", result.ErrorMessage)
	}
}

func TestRegistryRegisterReplacesSameName(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(testtool.Echo{})
	r.Register(testtool.Echo{})

	if r.Len() != 1 {
		t.Fatalf("expected registering the same name twice to replace, not duplicate, got len=%d", r.Len())
	}
}

func TestRegistryUnregisterRemovesTool(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(testtool.Echo{})
	r.Unregister("echo")

	if r.Has("echo") {
		t.Fatalf("expected echo to be removed")
	}
}

func TestRegistryDefinitionsSortedByName(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(testtool.AlwaysFail{})
	r.Register(testtool.Echo{})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Name != "always_fail" || defs[1].Name != "echo" {
		t.Fatalf("expected definitions sorted by name, got %v", []string{defs[0].Name, defs[1].Name})
	}
}

func TestResultVariants(t *testing.T) {
	if tool.TextResult("x").IsError() {
		t.Fatalf("text result should not be an error")
	}
	if !tool.ErrorResult("bad").IsError() {
		t.Fatalf("error result should be an error")
	}

	jr := tool.JSONResult(map[string]int{"n": 1})
	if jr.ToWireContent().ToText() != `{"n":1}` {
		t.Fatalf("unexpected JSON result serialization: %q", jr.ToWireContent().ToText())
	}

	fr := tool.FileResult("out.txt", []byte("hello"))
	if fr.ToWireContent().ToText() != "out.txt (5 bytes)" {
		t.Fatalf("unexpected file result description: %q", fr.ToWireContent().ToText())
	}
}
