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
	"strconv"
	"strings"
	"time"

	"github.com/h1v3-io/muninn/pkg/wire"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicBackend talks the Anthropic Messages API directly. Because
// Muninn's own wire format is Anthropic-shaped, this backend needs no
// translation layer beyond auth headers and SSE framing — a generic
// provider abstraction would translate a ChatRequest into Anthropic's
// dialect; here the request IS the dialect.
type AnthropicBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type AnthropicOption func(*AnthropicBackend)

func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(b *AnthropicBackend) { b.baseURL = url }
}

func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(b *AnthropicBackend) { b.client = c }
}

func NewAnthropic(apiKey string, opts ...AnthropicOption) *AnthropicBackend {
	b := &AnthropicBackend{
		client:  &http.Client{Timeout: 120 * time.Second},
		baseURL: "https://api.anthropic.com",
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Complete(ctx context.Context, req wire.CompletionRequest) (*wire.CompletionResponse, error) {
	req.Stream = false
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	if err := classifyStatus(resp.StatusCode, resp.Header, body); err != nil {
		return nil, err
	}

	var out wire.CompletionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	return &out, nil
}

// Stream issues a streaming completion and parses the upstream SSE byte
// stream back into wire.StreamEvent values, forwarding them verbatim —
// the shape Anthropic's own dialect already uses, so no event translation
// is needed (only byte-level SSE parsing).
func (b *AnthropicBackend) Stream(ctx context.Context, req wire.CompletionRequest) iter.Seq2[wire.StreamEvent, error] {
	return func(yield func(wire.StreamEvent, error) bool) {
		req.Stream = true
		payload, err := json.Marshal(req)
		if err != nil {
			yield(wire.StreamEvent{}, fmt.Errorf("anthropic: marshal request: %w", err))
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
			body, _ := io.ReadAll(resp.Body)
			yield(wire.StreamEvent{}, classifyStatus(resp.StatusCode, resp.Header, body))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var eventType string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				ev, perr := parseAnthropicSSELine(wire.EventType(eventType), data)
				if perr != nil {
					yield(wire.StreamEvent{}, perr)
					return
				}
				if !yield(ev, nil) {
					return
				}
			case line == "":
				continue
			}
		}
		if err := scanner.Err(); err != nil {
			yield(wire.StreamEvent{}, classifyTransportError(ctx, err))
		}
	}
}

func (b *AnthropicBackend) newRequest(ctx context.Context, payload []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	return httpReq, nil
}

func parseAnthropicSSELine(eventType wire.EventType, data string) (wire.StreamEvent, error) {
	switch eventType {
	case wire.EventMessageStart:
		var p wire.MessageStartPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse message_start: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventMessageStart, Data: p}, nil
	case wire.EventContentBlockStart:
		var p wire.ContentBlockStartPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse content_block_start: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventContentBlockStart, Data: p}, nil
	case wire.EventContentBlockDelta:
		var p wire.ContentBlockDeltaPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse content_block_delta: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventContentBlockDelta, Data: p}, nil
	case wire.EventContentBlockStop:
		var p wire.ContentBlockStopPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse content_block_stop: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventContentBlockStop, Data: p}, nil
	case wire.EventMessageDelta:
		var p wire.MessageDeltaPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse message_delta: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventMessageDelta, Data: p}, nil
	case wire.EventError:
		var p wire.ErrorPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return wire.StreamEvent{}, fmt.Errorf("anthropic: parse error event: %w", err)
		}
		return wire.StreamEvent{Type: wire.EventError, Data: p}, nil
	case wire.EventMessageStop:
		return wire.StreamEvent{Type: wire.EventMessageStop}, nil
	default: // ping and any unrecognized event types pass through inert
		return wire.StreamEvent{Type: wire.EventPing}, nil
	}
}

func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &CanceledError{}
	}
	return &NetworkError{Err: err}
}

func classifyStatus(status int, header http.Header, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Message: string(body)}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterSeconds(header)}
	case status == http.StatusBadRequest:
		return &BadRequestError{Message: string(body)}
	case status >= 500:
		return &Upstream5xxError{Status: status, Body: string(body)}
	default:
		return &BadRequestError{Message: fmt.Sprintf("unexpected status %d: %s", status, body)}
	}
}

// retryAfterSeconds parses a Retry-After header value in seconds, if
// present and numeric.
func retryAfterSeconds(h http.Header) *int {
	v := h.Get("Retry-After")
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
