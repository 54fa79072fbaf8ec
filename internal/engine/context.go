// Package engine implements the recursive exploration loop: the state
// machine that alternates LLM completions with tool execution inside one
// RLM-routed request, bounded by internal/budget. Reworked from an
// async-recursive reference shape into an explicit Go for-loop with
// checked state transitions.
package engine

import (
	"github.com/h1v3-io/muninn/internal/budget"
	"github.com/h1v3-io/muninn/pkg/wire"
)

// lastTurnWarning is injected as a user message when the budget manager
// reports the next cycle is the model's last, nudging it to synthesize an
// answer instead of requesting another tool call it will never see
// executed.
const lastTurnWarning = "This is your final turn before the exploration budget is exhausted. " +
	"Stop calling tools and respond now with the best answer you can give based on what you have already learned."

// ExplorationContext exclusively owns the append-only message list for one
// RLM run, plus the request-scoped budget manager. Nothing outside this
// package mutates the message list directly.
type ExplorationContext struct {
	original wire.CompletionRequest
	messages []wire.Message
	budget   *budget.Manager
}

// NewExplorationContext seeds a context from the inbound request. The
// message list starts as a copy of the request's own messages; every
// subsequent cycle appends to it, never replaces it.
func NewExplorationContext(req wire.CompletionRequest, config budget.Config) *ExplorationContext {
	messages := make([]wire.Message, len(req.Messages))
	copy(messages, req.Messages)
	return &ExplorationContext{
		original: req,
		messages: messages,
		budget:   budget.NewManager(config),
	}
}

// BuildRequest snapshots the current message list into a non-streaming,
// muninn-stripped CompletionRequest suitable for one backend call — the
// shape S2 CallBackend sends.
func (c *ExplorationContext) BuildRequest() wire.CompletionRequest {
	messages := make([]wire.Message, len(c.messages))
	copy(messages, c.messages)
	return wire.CompletionRequest{
		Model:         c.original.Model,
		Messages:      messages,
		System:        c.original.System,
		MaxTokens:     c.original.MaxTokens,
		Temperature:   c.original.Temperature,
		TopP:          c.original.TopP,
		StopSequences: c.original.StopSequences,
		Tools:         c.original.Tools,
		ToolChoice:    c.original.ToolChoice,
		Stream:        false,
		Muninn:        nil,
	}
}

// Budget exposes the underlying budget.Manager for pre-call checks and
// usage recording.
func (c *ExplorationContext) Budget() *budget.Manager { return c.budget }

// AppendAssistantTurn records the model's response content as an
// assistant message, the first half of one tool-use cycle.
func (c *ExplorationContext) AppendAssistantTurn(content []wire.ContentBlock) {
	c.messages = append(c.messages, wire.Message{Role: wire.RoleAssistant, Content: wire.BlocksContent(content...)})
}

// AppendToolResults records the outcomes of dispatching every tool_use
// block from the prior assistant turn, closing that cycle. Anthropic's
// wire contract requires every tool_use to be answered by exactly one
// tool_result in the very next user message.
func (c *ExplorationContext) AppendToolResults(results []wire.ContentBlock) {
	c.messages = append(c.messages, wire.Message{Role: wire.RoleUser, Content: wire.BlocksContent(results...)})
}

// InjectLastTurnWarning appends a synthetic user message urging the model
// to answer now, used when the budget manager reports the depth limit is
// one cycle away.
func (c *ExplorationContext) InjectLastTurnWarning() {
	c.messages = append(c.messages, wire.UserMessage(lastTurnWarning))
}

// Finalize attaches the accumulated exploration counters to a terminal
// response, the step every exit path from the loop funnels through. Any
// reason other than a natural model stop or hitting the model's own
// max_tokens means the loop cut the cycle short itself, so the response
// handed to the client must report stop_reason=end_turn rather than
// whatever mid-cycle reason (e.g. tool_use) the backend's last reply
// carried — there is no next cycle to answer a dangling tool_use.
func (c *ExplorationContext) Finalize(resp wire.CompletionResponse, reason budget.Reason) wire.CompletionResponse {
	if reason != budget.ReasonNatural && reason != budget.ReasonModelMaxTokens {
		resp.StopReason = wire.StopEndTurn
	}
	summary := c.budget.Summary(reason)
	resp.Muninn = &wire.ResponseMuninn{
		Exploration: &wire.Exploration{
			DepthReached: summary.DepthReached,
			TokensUsed:   summary.TokensUsed,
			ToolCalls:    summary.ToolCalls,
			DurationMs:   summary.DurationMs,
			TerminatedBy: string(summary.TerminatedBy),
		},
	}
	return resp
}

// FinalizeBreach synthesizes a terminal response for a budget breach
// detected before any further model call — there is no CompletionResponse
// to attach counters to yet, so one is built from the last assistant text
// seen, or a generic notice if the exploration never got that far.
func (c *ExplorationContext) FinalizeBreach(reason budget.Reason) wire.CompletionResponse {
	resp := wire.CompletionResponse{
		Model:      c.original.Model,
		Content:    []wire.ContentBlock{wire.TextBlock(c.lastAssistantText())},
		StopReason: wire.StopEndTurn,
	}
	return c.Finalize(resp, reason)
}

func (c *ExplorationContext) lastAssistantText() string {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == wire.RoleAssistant {
			if text := c.messages[i].Content.ToText(); text != "" {
				return text
			}
			return "[exploration budget exhausted before a final answer was reached]"
		}
	}
	return "[exploration budget exhausted before a final answer was reached]"
}
