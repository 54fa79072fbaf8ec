package backend

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// MockBackend consumes a pre-scripted queue of CompletionResponses in
// order, one per Complete call. Used for deterministic engine and proxy
// tests — a scripted test double following the same "queue of canned
// responses, pop on call" shape used elsewhere in this codebase for
// exercising retry and stop-reason branches without a live provider.
type MockBackend struct {
	mu        sync.Mutex
	responses []wire.CompletionResponse
	calls     []wire.CompletionRequest
	errs      []error // parallel to responses; non-nil entries are returned instead
}

// NewMockBackend creates a MockBackend that will return the given responses
// in order, one per call to Complete or Stream.
func NewMockBackend(responses ...wire.CompletionResponse) *MockBackend {
	return &MockBackend{responses: responses}
}

// QueueError arranges for the Nth call (0-indexed) to return err.
// Responses are indexed by call number, so the scripted response at index
// N, if any, is skipped rather than handed to the next call.
func (m *MockBackend) QueueError(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= n {
		m.errs = append(m.errs, nil)
	}
	m.errs[n] = err
}

func (m *MockBackend) Name() string { return "mock" }

// Calls returns every request Complete/Stream was invoked with, in order.
func (m *MockBackend) Calls() []wire.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wire.CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockBackend) Complete(_ context.Context, req wire.CompletionRequest) (*wire.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.calls)
	m.calls = append(m.calls, req)

	if idx < len(m.errs) && m.errs[idx] != nil {
		return nil, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return nil, fmt.Errorf("mock backend: no scripted response for call %d", idx)
	}
	resp := m.responses[idx]
	return &resp, nil
}

// Stream replays the next scripted response as a minimal event sequence:
// message_start, one content_block_start/delta/stop per block, then
// message_delta/message_stop. It never chunks text into multiple deltas —
// callers that need chunking behavior should assert on Complete instead.
func (m *MockBackend) Stream(ctx context.Context, req wire.CompletionRequest) iter.Seq2[wire.StreamEvent, error] {
	return func(yield func(wire.StreamEvent, error) bool) {
		resp, err := m.Complete(ctx, req)
		if err != nil {
			yield(wire.StreamEvent{Type: wire.EventError, Data: wire.ErrorPayload{Type: "api_error", Message: err.Error()}}, nil)
			yield(wire.StreamEvent{Type: wire.EventMessageStop}, nil)
			return
		}
		for ev, _ := range RenderFinalMessage(*resp) {
			if !yield(ev, nil) {
				return
			}
		}
	}
}
