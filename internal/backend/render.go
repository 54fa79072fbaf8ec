package backend

import (
	"iter"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// RenderFinalMessage turns a complete CompletionResponse into the SSE event
// sequence Anthropic's streaming contract expects for one assistant turn:
// message_start, then content_block_start/delta(s)/stop per block, then
// message_delta carrying the final stop_reason and usage, then
// message_stop. This is the exact sequence internal/proxy's RLM path uses
// to re-emit the engine's final answer when streaming was requested, and
// it doubles as
// MockBackend's own Stream implementation so tests exercise one code path
// for both.
func RenderFinalMessage(resp wire.CompletionResponse) iter.Seq2[wire.StreamEvent, error] {
	return func(yield func(wire.StreamEvent, error) bool) {
		start := wire.MessageStartPayload{}
		start.Message.ID = resp.ID
		start.Message.Model = resp.Model
		start.Message.Role = wire.RoleAssistant
		start.Message.Content = nil
		start.Message.Usage = wire.Usage{InputTokens: resp.Usage.InputTokens}
		if !yield(wire.StreamEvent{Type: wire.EventMessageStart, Data: start}, nil) {
			return
		}

		for i, block := range resp.Content {
			startPayload := wire.ContentBlockStartPayload{Index: i, ContentBlock: emptyBlockOfSameType(block)}
			if !yield(wire.StreamEvent{Type: wire.EventContentBlockStart, Data: startPayload}, nil) {
				return
			}

			for _, delta := range deltasForBlock(block) {
				payload := wire.ContentBlockDeltaPayload{Index: i, Delta: delta}
				if !yield(wire.StreamEvent{Type: wire.EventContentBlockDelta, Data: payload}, nil) {
					return
				}
			}

			if !yield(wire.StreamEvent{Type: wire.EventContentBlockStop, Data: wire.ContentBlockStopPayload{Index: i}}, nil) {
				return
			}
		}

		msgDelta := wire.MessageDeltaPayload{Usage: resp.Usage}
		msgDelta.Delta.StopReason = resp.StopReason
		if !yield(wire.StreamEvent{Type: wire.EventMessageDelta, Data: msgDelta}, nil) {
			return
		}
		yield(wire.StreamEvent{Type: wire.EventMessageStop}, nil)
	}
}

func emptyBlockOfSameType(b wire.ContentBlock) wire.ContentBlock {
	switch b.Type {
	case wire.BlockToolUse:
		return wire.ToolUseBlock(b.ID, b.Name, nil)
	case wire.BlockToolResult:
		return wire.ToolResultBlock(b.ToolUseID, wire.Content{}, b.IsError)
	default:
		return wire.TextBlock("")
	}
}

// deltasForBlock chunks a block's content into one or more deltas. Text is
// emitted as a single text_delta — clients must tolerate arbitrary
// chunking of text deltas, so single-chunk is a valid chunking.
func deltasForBlock(b wire.ContentBlock) []wire.Delta {
	switch b.Type {
	case wire.BlockText:
		if b.Text == "" {
			return nil
		}
		return []wire.Delta{{Type: wire.DeltaText, Text: b.Text}}
	case wire.BlockToolUse:
		if len(b.Input) == 0 {
			return nil
		}
		return []wire.Delta{{Type: wire.DeltaJSON, PartialJSON: string(b.Input)}}
	default:
		return nil
	}
}
