package backend

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/h1v3-io/muninn/pkg/wire"
)

const (
	ollamaDefaultBaseURL = "http://localhost:11434/v1"
	ollamaDefaultModel   = "gpt-oss:20b"
	ollamaDefaultTimeout = 600 * time.Second
)

// OllamaBackend talks to a local Ollama instance over its OpenAI-compatible
// /v1/chat/completions endpoint. Grounded on original_source's
// crates/muninn-rlm/src/ollama.rs: same default base URL, same default
// model, same longer timeout for local inference, and the same choice to
// request non-streaming completions and replay them as a single-chunk
// event sequence rather than parse Ollama's own streaming format — the
// Rust reference left true streaming as a TODO, and nothing about Ollama's
// local dialect makes chunked delta parsing worth the complexity here.
//
// Wire translation is delegated to OpenAIBackend's request/response
// conversion since Ollama's /v1 surface is OpenAI's dialect; only the
// defaults, the timeout, and the health check differ.
type OllamaBackend struct {
	inner  *OpenAIBackend
	client *http.Client
	health string
}

type OllamaOption func(*OllamaBackend)

func WithOllamaBaseURL(url string) OllamaOption {
	return func(b *OllamaBackend) {
		b.inner = NewOpenAI("", WithOpenAIBaseURL(url), WithOpenAIModel(b.inner.model), WithOpenAIHTTPClient(b.inner.client))
		b.health = strings.TrimSuffix(url, "/v1") + "/api/tags"
	}
}

func WithOllamaModel(model string) OllamaOption {
	return func(b *OllamaBackend) {
		b.inner = NewOpenAI("", WithOpenAIBaseURL(b.inner.baseURL), WithOpenAIModel(model), WithOpenAIHTTPClient(b.inner.client))
	}
}

// NewOllama creates an OllamaBackend pointed at a local instance. No API
// key is required; Ollama's OpenAI-compatible endpoint ignores the
// Authorization header entirely.
func NewOllama(opts ...OllamaOption) *OllamaBackend {
	client := &http.Client{Timeout: ollamaDefaultTimeout}
	b := &OllamaBackend{
		inner:  NewOpenAI("", WithOpenAIBaseURL(ollamaDefaultBaseURL), WithOpenAIModel(ollamaDefaultModel), WithOpenAIHTTPClient(client)),
		client: client,
		health: "http://localhost:11434/api/tags",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) Complete(ctx context.Context, req wire.CompletionRequest) (*wire.CompletionResponse, error) {
	return b.inner.Complete(ctx, req)
}

// Stream completes the request in full, then replays it through
// RenderFinalMessage as one event burst: one content block per response
// block, each text block carried by a single delta.
func (b *OllamaBackend) Stream(ctx context.Context, req wire.CompletionRequest) iter.Seq2[wire.StreamEvent, error] {
	return func(yield func(wire.StreamEvent, error) bool) {
		resp, err := b.Complete(ctx, req)
		if err != nil {
			yield(wire.StreamEvent{}, err)
			return
		}
		for ev, _ := range RenderFinalMessage(*resp) {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// HealthCheck hits Ollama's native /api/tags endpoint to confirm the
// instance is reachable, mirroring the Rust reference's health_check.
func (b *OllamaBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.health, nil)
	if err != nil {
		return fmt.Errorf("ollama: build health check request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &Upstream5xxError{Status: resp.StatusCode, Body: "ollama health check failed"}
	}
	return nil
}
