// Package tool defines the capability surface the RLM engine dispatches
// tool_use blocks against, and the registry that holds concrete
// implementations by name. Concrete tools (filesystem, graph, mcp,
// web-fetch) are not shipped here — only the interface and registry shape,
// plus the small fixtures internal/tool/testtool uses to exercise it.
package tool

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/h1v3-io/muninn/pkg/wire"
)

// Tool is the capability every RLM-dispatchable tool implements. Execute
// returns a structured Result rather than a bare (string, error) so a
// tool can report JSON or file content without the caller re-parsing a
// string.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Execute(ctx context.Context, input json.RawMessage) (Result, error)
}

// ResultKind identifies which variant of Result is populated.
type ResultKind string

const (
	ResultText  ResultKind = "text"
	ResultJSON  ResultKind = "json"
	ResultFile  ResultKind = "file"
	ResultError ResultKind = "error"
)

// Result is what a Tool hands back to the engine. Exactly one of the
// variant fields is meaningful, selected by Kind.
type Result struct {
	Kind ResultKind

	Text string // ResultText

	JSON any // ResultJSON

	FileName    string // ResultFile
	FileContent []byte // ResultFile

	ErrorMessage string // ResultError
}

func TextResult(text string) Result { return Result{Kind: ResultText, Text: text} }

func JSONResult(v any) Result { return Result{Kind: ResultJSON, JSON: v} }

func FileResult(name string, content []byte) Result {
	return Result{Kind: ResultFile, FileName: name, FileContent: content}
}

func ErrorResult(message string) Result { return Result{Kind: ResultError, ErrorMessage: message} }

// IsError reports whether this result represents a tool-side failure, used
// to set tool_result.is_error on the wire.
func (r Result) IsError() bool { return r.Kind == ResultError }

// ToWireContent projects a Result into the wire.Content a tool_result
// block carries. JSON results are serialized to text; file results
// describe themselves by name and size rather than embedding raw bytes,
// since the Anthropic content model has no binary-attachment variant.
func (r Result) ToWireContent() wire.Content {
	switch r.Kind {
	case ResultJSON:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return wire.TextContent("error serializing tool result: " + err.Error())
		}
		return wire.TextContent(string(b))
	case ResultFile:
		return wire.TextContent(r.FileName + " (" + strconv.Itoa(len(r.FileContent)) + " bytes)")
	case ResultError:
		return wire.TextContent(r.ErrorMessage)
	default:
		return wire.TextContent(r.Text)
	}
}
