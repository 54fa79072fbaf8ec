// Package backend abstracts over LLM providers behind a single contract:
// complete, stream, name. The engine and proxy depend only on the Backend
// interface — never on a concrete provider — so a request
// can be served by Anthropic, OpenAI, Ollama, or a scripted MockBackend
// without any other component noticing.
package backend

import (
	"context"
	"iter"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// Backend is the capability set every LLM provider realizes.
type Backend interface {
	// Complete runs a single non-streaming completion.
	Complete(ctx context.Context, req wire.CompletionRequest) (*wire.CompletionResponse, error)
	// Stream runs a single completion and yields ordered StreamEvents.
	Stream(ctx context.Context, req wire.CompletionRequest) iter.Seq2[wire.StreamEvent, error]
	// Name identifies this backend in traces.
	Name() string
}
