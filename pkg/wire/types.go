package wire

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: TextContent(text)}
}

func AssistantMessage(content Content) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolDefinition describes a tool the model may call.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolChoice constrains how the model must use tools. Mirrors Anthropic's
// {type: "auto"|"any"|"tool", name?}.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

func ForceAnyTool() *ToolChoice { return &ToolChoice{Type: "any"} }

func ForceTool(name string) *ToolChoice { return &ToolChoice{Type: "tool", Name: name} }

// StopReason is why the model stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopSequence     StopReason = "stop_sequence"
	StopToolUse      StopReason = "tool_use"
)

// BudgetConfig bounds one RLM run. All fields are optional pointers: nil
// means "use the process default" (see internal/budget), never a silent
// zero limit.
type BudgetConfig struct {
	MaxDepth        *int   `json:"max_depth,omitempty"`
	MaxTokens       *int   `json:"max_tokens,omitempty"`
	MaxToolCalls    *int   `json:"max_tool_calls,omitempty"`
	MaxDurationSecs *int64 `json:"max_duration_secs,omitempty"`
}

// MuninnConfig is the proxy-specific extension carried on CompletionRequest.
// It is the only addition to the Anthropic wire format and is optional:
// requests that omit it get whatever the router's configured strategy
// decides.
type MuninnConfig struct {
	Recursive bool          `json:"recursive,omitempty"`
	Budget    *BudgetConfig `json:"budget,omitempty"`
}

// Exploration carries the counters the RLM engine accumulated, attached to
// a CompletionResponse as muninn.exploration.
type Exploration struct {
	DepthReached  int    `json:"depth_reached"`
	TokensUsed    int    `json:"tokens_used"`
	ToolCalls     int    `json:"tool_calls"`
	DurationMs    int64  `json:"duration_ms"`
	TerminatedBy  string `json:"terminated_by"`
}

// ResponseMuninn wraps Exploration the way it is nested on the wire.
type ResponseMuninn struct {
	Exploration *Exploration `json:"exploration,omitempty"`
}

// Usage is token accounting for a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// CompletionRequest is a Muninn-extended Anthropic Messages API request.
type CompletionRequest struct {
	Model         string           `json:"model"`
	Messages      []Message        `json:"messages"`
	System        string           `json:"system,omitempty"`
	MaxTokens     int              `json:"max_tokens"`
	Temperature   *float64         `json:"temperature,omitempty"`
	TopP          *float64         `json:"top_p,omitempty"`
	StopSequences []string         `json:"stop_sequences,omitempty"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	ToolChoice    *ToolChoice      `json:"tool_choice,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
	Muninn        *MuninnConfig    `json:"muninn,omitempty"`
}

// IsRecursive reports whether the caller explicitly asked for RLM via the
// JSON extension, the highest-precedence override the router checks
// before any strategy runs.
func (r CompletionRequest) IsRecursive() bool {
	return r.Muninn != nil && r.Muninn.Recursive
}

// LastUserText returns the text projection (ToText) of the last message
// with role=user, or "" if there is none. Used by the router.
func (r CompletionRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content.ToText()
		}
	}
	return ""
}

// WithoutMuninn returns a copy of the request with the muninn extension
// stripped, so it can be forwarded upstream unmodified — no provider
// needs to know it exists.
func (r CompletionRequest) WithoutMuninn() CompletionRequest {
	out := r
	out.Muninn = nil
	return out
}

// CompletionResponse is a Muninn-extended Anthropic Messages API response.
type CompletionResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	Content    []ContentBlock  `json:"content"`
	StopReason StopReason      `json:"stop_reason"`
	Usage      Usage           `json:"usage"`
	Muninn     *ResponseMuninn `json:"muninn,omitempty"`
}

// ToText concatenates the Text blocks of the response content, in order.
func (r CompletionResponse) ToText() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns every ToolUse block in the response, in order.
func (r CompletionResponse) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}
