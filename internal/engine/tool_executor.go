package engine

import (
	"context"
	"time"

	"github.com/h1v3-io/muninn/internal/tool"
	"github.com/h1v3-io/muninn/pkg/wire"
)

// ToolCallObserver is notified after each individual tool dispatch, used
// to feed a Recorder without ToolExecutor depending on the trace package.
type ToolCallObserver func(name string, arguments string, success bool, resultPreview string, duration time.Duration)

// ToolExecutor dispatches every tool_use block in one assistant turn
// against a registry and collects the resulting tool_result blocks.
// Grounded on original_source's engine/tool_executor.rs: a tool-side error
// becomes an is_error=true result folded back to the model rather than
// aborting exploration, since tool.Registry.Execute already never returns
// a bare error for that reason.
type ToolExecutor struct {
	registry *tool.Registry
	observer ToolCallObserver
}

func NewToolExecutor(registry *tool.Registry) *ToolExecutor {
	return &ToolExecutor{registry: registry}
}

// WithObserver attaches a callback invoked after every individual tool
// dispatch.
func (e *ToolExecutor) WithObserver(obs ToolCallObserver) *ToolExecutor {
	e.observer = obs
	return e
}

const resultPreviewMaxLen = 500

// Execute runs every ToolUse block in resp.Content in order and returns
// one ToolResult block per call, in the same order — the pairing
// Anthropic's wire contract requires.
func (e *ToolExecutor) Execute(ctx context.Context, resp wire.CompletionResponse) []wire.ContentBlock {
	uses := resp.ToolUses()
	results := make([]wire.ContentBlock, 0, len(uses))
	for _, use := range uses {
		start := time.Now()
		result := e.registry.Execute(ctx, use.Name, use.Input)
		duration := time.Since(start)
		if e.observer != nil {
			e.observer(use.Name, string(use.Input), !result.IsError(), previewResult(result), duration)
		}
		results = append(results, wire.ToolResultBlock(use.ID, result.ToWireContent(), result.IsError()))
	}
	return results
}

func previewResult(r tool.Result) string {
	text := r.ToWireContent().ToText()
	if len(text) <= resultPreviewMaxLen {
		return text
	}
	return text[:resultPreviewMaxLen] + "... [truncated]"
}
