package domain

// Credentials identifies one upstream account. The bridge treats credentials
// as caller-owned input: nothing here is persisted, and a fresh copy is bound
// to each call by the accounts registry.
type Credentials struct {
	// AccessToken may carry a "::"-delimited prefix from the desktop client's
	// session blob; the identity layer strips it before use.
	AccessToken string `json:"access_token"`
	MachineID   string `json:"machine_id"`
	GhostMode   bool   `json:"ghost_mode"`
}

// ChatMessage represents one chat message as supplied by the client CLI.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCallRef  `json:"tool_calls,omitempty"`
}

// ToolCallRef is a completed tool invocation: either one the assistant made
// earlier in the conversation, or the folded result of a streamed call.
type ToolCallRef struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the function name and its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDeclaration is the normalized tool shape the wire layer consumes.
// The front door accepts both the nested function.* shape and the flat
// name/description/input_schema shape and folds them into this one.
type ToolDeclaration struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ParameterSchema any    `json:"parameters"`
}

// CanonicalRequest is one normalized chat call on its way to the bridge.
type CanonicalRequest struct {
	Model           string            `json:"model"`
	Messages        []ChatMessage     `json:"messages"`
	Tools           []ToolDeclaration `json:"tools,omitempty"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty"`
	Stream          bool              `json:"stream"`

	// Account and Credentials are bound by the front door after account
	// selection; they never round-trip through JSON.
	Account     string      `json:"-"`
	Credentials Credentials `json:"-"`

	// UserAgent is the User-Agent header from the incoming request,
	// kept for the usage ledger.
	UserAgent string `json:"-"`
}

// AssistantMessage is the message half of a completed choice.
type AssistantMessage struct {
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Reasoning string        `json:"reasoning_content,omitempty"`
	ToolCalls []ToolCallRef `json:"tool_calls,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// Usage represents token usage. The upstream protocol reports none, so these
// are estimates from the tokens package.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CanonicalResponse represents a complete non-streaming response.
type CanonicalResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ToolCallChunk represents a partial tool execution inside a stream. Index is
// stable for a given call id across all of its fragments.
type ToolCallChunk struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function,omitempty"`
}

// CanonicalEvent represents a streaming event.
type CanonicalEvent struct {
	Role          string         // set once on the first event of a stream
	ContentDelta  string         // text fragment
	ThinkingDelta string         // reasoning fragment
	ToolCall      *ToolCallChunk // partial tool execution data
	FinishReason  string         // set on the terminal event
	Usage         *Usage         // terminal event carries the usage estimate
	Error         error          // in-stream errors
}

// Model describes a model entry exposed via the front door.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// ModelList is the canonical model listing response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
