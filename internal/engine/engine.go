package engine

import (
	"context"
	"time"

	"github.com/h1v3-io/muninn/internal/backend"
	"github.com/h1v3-io/muninn/internal/budget"
	"github.com/h1v3-io/muninn/internal/tool"
	"github.com/h1v3-io/muninn/pkg/wire"
)

// Recorder receives the per-cycle events the engine produces, so tracing
// can live entirely outside this package (internal/trace.Collector
// satisfies this interface structurally — no import of internal/trace
// here, keeping the dependency direction trace→engine's types, not the
// reverse). A nil Recorder is valid: every call site on Engine guards for
// it.
type Recorder interface {
	StartCycle(depth int)
	EndCycle(resp *wire.CompletionResponse, latency time.Duration, err error)
	RecordToolCall(name string, arguments string, success bool, resultPreview string, duration time.Duration)
}

// Engine runs the recursive exploration loop: check budget, call the
// backend, dispatch on stop reason, execute tools, repeat, finalize. It is
// implemented as an explicit Go for-loop rather than reentrant recursion
// so the call stack stays bounded and cancellation and tracing stay
// straightforward.
type Engine struct {
	backend  backend.Backend
	executor *ToolExecutor
	recorder Recorder
}

func NewEngine(be backend.Backend, registry *tool.Registry) *Engine {
	return &Engine{backend: be, executor: NewToolExecutor(registry)}
}

// WithRecorder attaches a Recorder used for the lifetime of this Engine.
// It also wires the executor's per-tool-call observer to the recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	e.executor = e.executor.WithObserver(func(name, arguments string, success bool, preview string, d time.Duration) {
		r.RecordToolCall(name, arguments, success, preview, d)
	})
	return e
}

// Run executes one exploration to completion, returning the terminal
// CompletionResponse with muninn.exploration populated. It never returns
// a budget breach as an error — breach is a normal terminal state (§4.3).
// It returns an error only for a backend failure or context cancellation,
// both of which terminate the current cycle and propagate.
func (e *Engine) Run(ctx context.Context, req wire.CompletionRequest, config budget.Config) (*wire.CompletionResponse, error) {
	ec := NewExplorationContext(req, config)

	for {
		// S1 CheckBudget
		if reason := ec.Budget().CheckPreCall(); reason != nil {
			resp := ec.FinalizeBreach(*reason)
			return &resp, nil
		}

		if ec.Budget().IsLastTurn() {
			ec.InjectLastTurnWarning()
		}

		if err := ctx.Err(); err != nil {
			resp := ec.FinalizeBreach(budget.ReasonCanceled)
			return &resp, err
		}

		// S2 CallBackend
		if e.recorder != nil {
			e.recorder.StartCycle(ec.Budget().Depth())
		}
		cycleStart := time.Now()
		resp, err := e.backend.Complete(ctx, ec.BuildRequest())
		latency := time.Since(cycleStart)
		if e.recorder != nil {
			e.recorder.EndCycle(resp, latency, err)
		}
		if err != nil {
			return nil, err
		}

		ec.Budget().RecordUsage(resp.Usage.Total(), 0)
		ec.AppendAssistantTurn(resp.Content)

		// S3 Dispatch on stop_reason
		switch resp.StopReason {
		case wire.StopEndTurn, wire.StopSequence:
			final := ec.Finalize(*resp, budget.ReasonNatural)
			return &final, nil
		case wire.StopMaxTokens:
			final := ec.Finalize(*resp, budget.ReasonModelMaxTokens)
			return &final, nil
		case wire.StopToolUse:
			if ec.Budget().WouldExceedDepth() {
				ec.Budget().IncrementDepth()
				final := ec.Finalize(*resp, budget.ReasonDepth)
				return &final, nil
			}
			results := e.executor.Execute(ctx, *resp)
			ec.AppendToolResults(results)
			ec.Budget().RecordUsage(0, len(results))
			ec.Budget().IncrementDepth()
		default:
			final := ec.Finalize(*resp, budget.ReasonNatural)
			return &final, nil
		}
	}
}

