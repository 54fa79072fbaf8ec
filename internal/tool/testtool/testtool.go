// Package testtool provides small deterministic fixture tools used only
// by engine, registry and proxy tests — an echo tool and a scripted-failure
// tool, in the same spirit as internal/backend.MockBackend: infrastructure
// for testing the shape of tool dispatch, not a shipped capability.
package testtool

import (
	"context"
	"encoding/json"

	"github.com/h1v3-io/muninn/internal/tool"
)

// Echo returns its "text" input field back as a text Result.
type Echo struct{}

func (Echo) Name() string        { return "echo" }
func (Echo) Description() string { return "Returns the given text unchanged" }
func (Echo) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func (Echo) Execute(_ context.Context, input json.RawMessage) (tool.Result, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return tool.ErrorResult("invalid input: " + err.Error()), nil
	}
	return tool.TextResult(args.Text), nil
}

// AlwaysFail returns a scripted Go error every time it's called, used to
// exercise the engine's is_error=true folding path.
type AlwaysFail struct {
	Message string
}

func (t AlwaysFail) Name() string        { return "always_fail" }
func (t AlwaysFail) Description() string { return "Always fails with a scripted message" }
func (t AlwaysFail) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t AlwaysFail) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	msg := t.Message
	if msg == "" {
		msg = "scripted failure"
	}
	return tool.Result{}, errScripted(msg)
}

type errScripted string

func (e errScripted) Error() string { return string(e) }
