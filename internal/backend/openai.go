package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// OpenAIBackend implements Backend for any OpenAI-compatible chat
// completions API (OpenAI, OpenRouter, DeepSeek, Groq, etc). Translates
// between wire.CompletionRequest/wire.CompletionResponse and OpenAI's
// chat.completions dialect; tool_use/tool_result blocks round-trip through
// OpenAI's tool_calls convention rather than being dropped.
type OpenAIBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type OpenAIOption func(*OpenAIBackend)

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(b *OpenAIBackend) { b.baseURL = url }
}

func WithOpenAIModel(model string) OpenAIOption {
	return func(b *OpenAIBackend) { b.model = model }
}

func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(b *OpenAIBackend) { b.client = c }
}

func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIBackend {
	b := &OpenAIBackend{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: "https://api.openai.com/v1",
		apiKey:  apiKey,
		model:   "gpt-4o",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Complete(ctx context.Context, req wire.CompletionRequest) (*wire.CompletionResponse, error) {
	body := b.toOpenAIRequest(req, false)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := b.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if err := classifyStatus(resp.StatusCode, resp.Header, respBody); err != nil {
		return nil, err
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	return fromOpenAIResponse(&oaiResp, body.Model)
}

// Stream translates into OpenAI's chunked-delta SSE dialect and re-encodes
// each chunk as Muninn's own StreamEvent shape. OpenAI emits only text and
// accumulating tool_call argument fragments; content_block boundaries are
// synthesized from choice deltas rather than carried natively.
func (b *OpenAIBackend) Stream(ctx context.Context, req wire.CompletionRequest) iter.Seq2[wire.StreamEvent, error] {
	return func(yield func(wire.StreamEvent, error) bool) {
		body := b.toOpenAIRequest(req, true)
		payload, err := json.Marshal(body)
		if err != nil {
			yield(wire.StreamEvent{}, fmt.Errorf("openai: marshal request: %w", err))
			return
		}

		httpReq, err := b.newRequest(ctx, payload)
		if err != nil {
			yield(wire.StreamEvent{}, err)
			return
		}
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := b.client.Do(httpReq)
		if err != nil {
			yield(wire.StreamEvent{}, classifyTransportError(ctx, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			yield(wire.StreamEvent{}, classifyStatus(resp.StatusCode, resp.Header, respBody))
			return
		}

		acc := newOpenAIStreamAccumulator(body.Model)
		if !yield(wire.StreamEvent{Type: wire.EventMessageStart, Data: acc.messageStart()}, nil) {
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var chunk openaiStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				yield(wire.StreamEvent{}, fmt.Errorf("openai: parse stream chunk: %w", err))
				return
			}
			for _, ev := range acc.apply(chunk) {
				if !yield(ev, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			yield(wire.StreamEvent{}, classifyTransportError(ctx, err))
			return
		}
		for _, ev := range acc.finalize() {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

func (b *OpenAIBackend) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	return httpReq, nil
}

// --- OpenAI wire format ---

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiTool struct {
	Type     string             `json:"type"`
	Function openaiToolFunction `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openaiToolCallFunction `json:"function"`
}

type openaiToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiStreamChunk struct {
	ID      string              `json:"id"`
	Choices []openaiStreamChoice `json:"choices"`
	Usage   *openaiUsage        `json:"usage,omitempty"`
}

type openaiStreamChoice struct {
	Delta        openaiStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openaiStreamDelta struct {
	Content   string                 `json:"content,omitempty"`
	ToolCalls []openaiStreamToolCall `json:"tool_calls,omitempty"`
}

type openaiStreamToolCall struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id,omitempty"`
	Function openaiToolCallFunction `json:"function,omitempty"`
}

// --- Conversion: wire -> OpenAI ---

func (b *OpenAIBackend) toOpenAIRequest(req wire.CompletionRequest, stream bool) openaiRequest {
	model := req.Model
	if model == "" {
		model = b.model
	}

	out := openaiRequest{Model: model, Stream: stream}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature != nil {
		out.Temperature = req.Temperature
	}

	if req.System != "" {
		out.Messages = append(out.Messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessages(m)...)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openaiTool{
			Type: "function",
			Function: openaiToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}

// toOpenAIMessages expands one wire.Message into one or more OpenAI
// messages: a tool_result block becomes its own role:"tool" message since
// OpenAI has no inline tool-result content type.
func toOpenAIMessages(m wire.Message) []openaiMessage {
	role := string(m.Role)
	blocks := m.Content.AsBlocks()

	var assistantMsg *openaiMessage
	var out []openaiMessage
	for _, block := range blocks {
		switch block.Type {
		case wire.BlockText:
			if assistantMsg == nil {
				assistantMsg = &openaiMessage{Role: role}
			}
			assistantMsg.Content += block.Text
		case wire.BlockToolUse:
			if assistantMsg == nil {
				assistantMsg = &openaiMessage{Role: role}
			}
			args, _ := json.Marshal(block.Input)
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, openaiToolCall{
				ID:   block.ID,
				Type: "function",
				Function: openaiToolCallFunction{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		case wire.BlockToolResult:
			out = append(out, openaiMessage{
				Role:       "tool",
				Content:    block.Result.ToText(),
				ToolCallID: block.ToolUseID,
			})
		}
	}
	if assistantMsg != nil {
		out = append([]openaiMessage{*assistantMsg}, out...)
	}
	if len(out) == 0 {
		out = append(out, openaiMessage{Role: role, Content: m.Content.ToText()})
	}
	return out
}

// --- Conversion: OpenAI -> wire ---

func fromOpenAIResponse(resp *openaiResponse, model string) (*wire.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices in response")
	}
	choice := resp.Choices[0]

	var blocks []wire.ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, wire.TextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"_raw": tc.Function.Arguments}
		}
		input, _ := json.Marshal(args)
		blocks = append(blocks, wire.ToolUseBlock(tc.ID, tc.Function.Name, input))
	}

	return &wire.CompletionResponse{
		ID:         resp.ID,
		Model:      model,
		Content:    blocks,
		StopReason: fromOpenAIFinishReason(choice.FinishReason),
		Usage: wire.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func fromOpenAIFinishReason(reason string) wire.StopReason {
	switch reason {
	case "tool_calls":
		return wire.StopToolUse
	case "length":
		return wire.StopMaxTokens
	case "stop":
		return wire.StopEndTurn
	default:
		return wire.StopEndTurn
	}
}

// openaiStreamAccumulator assembles OpenAI's per-token delta chunks into
// Muninn's content_block_start/delta/stop sequence, tracking one open
// block (text or tool_use) at a time since OpenAI never interleaves them
// within a single choice.
type openaiStreamAccumulator struct {
	messageID     string
	model         string
	blockIndex    int
	blockOpen     bool
	openBlockType wire.BlockType
	toolCallID    string
	toolCallName  string
	finishReason  string
	usage         wire.Usage
}

func newOpenAIStreamAccumulator(model string) *openaiStreamAccumulator {
	return &openaiStreamAccumulator{model: model, blockIndex: -1}
}

func (a *openaiStreamAccumulator) messageStart() wire.MessageStartPayload {
	p := wire.MessageStartPayload{}
	p.Message.Model = a.model
	p.Message.Role = wire.RoleAssistant
	return p
}

func (a *openaiStreamAccumulator) apply(chunk openaiStreamChunk) []wire.StreamEvent {
	if a.messageID == "" && chunk.ID != "" {
		a.messageID = chunk.ID
	}
	if chunk.Usage != nil {
		a.usage = wire.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
	}
	if len(chunk.Choices) == 0 {
		return nil
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != nil {
		a.finishReason = *choice.FinishReason
	}

	var events []wire.StreamEvent
	delta := choice.Delta

	if delta.Content != "" {
		if !a.blockOpen || a.openBlockType != wire.BlockText {
			events = append(events, a.closeOpenBlock()...)
			a.blockIndex++
			a.blockOpen = true
			a.openBlockType = wire.BlockText
			events = append(events, wire.StreamEvent{
				Type: wire.EventContentBlockStart,
				Data: wire.ContentBlockStartPayload{Index: a.blockIndex, ContentBlock: wire.TextBlock("")},
			})
		}
		events = append(events, wire.StreamEvent{
			Type: wire.EventContentBlockDelta,
			Data: wire.ContentBlockDeltaPayload{Index: a.blockIndex, Delta: wire.Delta{Type: wire.DeltaText, Text: delta.Content}},
		})
	}

	for _, tc := range delta.ToolCalls {
		if tc.ID != "" {
			events = append(events, a.closeOpenBlock()...)
			a.blockIndex++
			a.blockOpen = true
			a.openBlockType = wire.BlockToolUse
			a.toolCallID = tc.ID
			a.toolCallName = tc.Function.Name
			events = append(events, wire.StreamEvent{
				Type: wire.EventContentBlockStart,
				Data: wire.ContentBlockStartPayload{Index: a.blockIndex, ContentBlock: wire.ToolUseBlock(tc.ID, tc.Function.Name, nil)},
			})
		}
		if tc.Function.Arguments != "" {
			events = append(events, wire.StreamEvent{
				Type: wire.EventContentBlockDelta,
				Data: wire.ContentBlockDeltaPayload{Index: a.blockIndex, Delta: wire.Delta{Type: wire.DeltaJSON, PartialJSON: tc.Function.Arguments}},
			})
		}
	}

	return events
}

func (a *openaiStreamAccumulator) closeOpenBlock() []wire.StreamEvent {
	if !a.blockOpen {
		return nil
	}
	a.blockOpen = false
	return []wire.StreamEvent{{Type: wire.EventContentBlockStop, Data: wire.ContentBlockStopPayload{Index: a.blockIndex}}}
}

func (a *openaiStreamAccumulator) finalize() []wire.StreamEvent {
	events := a.closeOpenBlock()
	msgDelta := wire.MessageDeltaPayload{Usage: a.usage}
	msgDelta.Delta.StopReason = fromOpenAIFinishReason(a.finishReason)
	events = append(events, wire.StreamEvent{Type: wire.EventMessageDelta, Data: msgDelta})
	events = append(events, wire.StreamEvent{Type: wire.EventMessageStop})
	return events
}
