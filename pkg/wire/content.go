// Package wire holds the Anthropic-Messages-API-compatible value types that
// cross the Muninn proxy boundary: requests, responses, content blocks, tool
// definitions, and the `muninn` extension. Nothing in this package knows
// about routing, budgets, or HTTP — it is pure data, serialized exactly as
// the wire protocol requires.
package wire

import "encoding/json"

// BlockType identifies the variant of a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged union over the three block variants the proxy
// understands. Only the fields relevant to Type are populated; the others
// are zero. Marshaling emits exactly the fields Anthropic expects for that
// variant.
type ContentBlock struct {
	Type BlockType

	// Text
	Text string

	// ToolUse
	ID    string
	Name  string
	Input json.RawMessage // opaque structured value: object, array, or scalar

	// ToolResult
	ToolUseID string
	Result    Content // text or nested blocks
	IsError   bool
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID string, result Content, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Result: result, IsError: isError}
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockToolUse:
		input := b.Input
		if input == nil {
			input = json.RawMessage("{}")
		}
		return json.Marshal(struct {
			Type  BlockType       `json:"type"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}{b.Type, b.ID, b.Name, input})
	case BlockToolResult:
		return json.Marshal(struct {
			Type      BlockType `json:"type"`
			ToolUseID string    `json:"tool_use_id"`
			Content   Content   `json:"content"`
			IsError   bool      `json:"is_error,omitempty"`
		}{b.Type, b.ToolUseID, b.Result, b.IsError})
	default: // BlockText
		return json.Marshal(struct {
			Type BlockType `json:"type"`
			Text string    `json:"text"`
		}{BlockText, b.Text})
	}
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      BlockType       `json:"type"`
		Text      string          `json:"text"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Input     json.RawMessage `json:"input"`
		ToolUseID string          `json:"tool_use_id"`
		Content   Content         `json:"content"`
		IsError   bool            `json:"is_error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Type = raw.Type
	b.Text = raw.Text
	b.ID = raw.ID
	b.Name = raw.Name
	b.Input = raw.Input
	b.ToolUseID = raw.ToolUseID
	b.Result = raw.Content
	b.IsError = raw.IsError
	return nil
}

// Content is either a bare string or an ordered list of ContentBlock values.
// IsScalar remembers which form was decoded so re-marshaling round-trips
// exactly, matching whichever shape the caller originally sent.
type Content struct {
	IsScalar bool
	Scalar   string
	Blocks   []ContentBlock
}

// TextContent builds a scalar-string Content, the common case for plain
// user/assistant turns.
func TextContent(text string) Content {
	return Content{IsScalar: true, Scalar: text}
}

// BlocksContent builds a block-sequence Content.
func BlocksContent(blocks ...ContentBlock) Content {
	return Content{Blocks: blocks}
}

// AsBlocks normalizes Content to a block slice, wrapping a scalar string in
// a single Text block, regardless of which form was originally decoded.
func (c Content) AsBlocks() []ContentBlock {
	if c.IsScalar {
		return []ContentBlock{TextBlock(c.Scalar)}
	}
	return c.Blocks
}

// ToText concatenates the text of every Text block in order. Non-text
// blocks (ToolUse, ToolResult) are skipped. Used by the router and by
// tracing to project a conversation down to plain text.
func (c Content) ToText() string {
	if c.IsScalar {
		return c.Scalar
	}
	var out string
	for _, b := range c.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsScalar {
		return json.Marshal(c.Scalar)
	}
	if c.Blocks == nil {
		return json.Marshal([]ContentBlock{})
	}
	return json.Marshal(c.Blocks)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.IsScalar = true
		c.Scalar = s
		c.Blocks = nil
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	c.IsScalar = false
	c.Scalar = ""
	c.Blocks = blocks
	return nil
}
