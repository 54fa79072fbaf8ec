package wire

// EventType identifies an SSE event variant, mirroring Anthropic's
// streaming contract.
type EventType string

const (
	EventMessageStart      EventType = "message_start"
	EventContentBlockStart EventType = "content_block_start"
	EventContentBlockDelta EventType = "content_block_delta"
	EventContentBlockStop  EventType = "content_block_stop"
	EventMessageDelta      EventType = "message_delta"
	EventMessageStop       EventType = "message_stop"
	EventPing              EventType = "ping"
	EventError             EventType = "error"
)

// DeltaType identifies the variant of a content_block_delta payload.
type DeltaType string

const (
	DeltaText DeltaType = "text_delta"
	DeltaJSON DeltaType = "input_json_delta"
)

// Delta is the union payload of a content_block_delta event.
type Delta struct {
	Type         DeltaType `json:"type"`
	Text         string    `json:"text,omitempty"`
	PartialJSON  string    `json:"partial_json,omitempty"`
}

// MessageStartPayload is the body of a message_start event.
type MessageStartPayload struct {
	Message struct {
		ID      string         `json:"id"`
		Model   string         `json:"model"`
		Role    Role           `json:"role"`
		Content []ContentBlock `json:"content"`
		Usage   Usage          `json:"usage"`
	} `json:"message"`
}

// ContentBlockStartPayload is the body of a content_block_start event.
type ContentBlockStartPayload struct {
	Index        int          `json:"index"`
	ContentBlock ContentBlock `json:"content_block"`
}

// ContentBlockDeltaPayload is the body of a content_block_delta event.
type ContentBlockDeltaPayload struct {
	Index int   `json:"index"`
	Delta Delta `json:"delta"`
}

// ContentBlockStopPayload is the body of a content_block_stop event.
type ContentBlockStopPayload struct {
	Index int `json:"index"`
}

// MessageDeltaPayload is the body of a message_delta event.
type MessageDeltaPayload struct {
	Delta struct {
		StopReason StopReason `json:"stop_reason"`
	} `json:"delta"`
	Usage Usage `json:"usage"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamEvent is one SSE event: a type tag plus its JSON-encodable payload.
type StreamEvent struct {
	Type EventType
	Data any
}
