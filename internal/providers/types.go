package providers

// Message is one entry in a chat transcript.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // for role="tool" responses
}

// ToolCall mirrors the OpenAI wire format. Arguments stays a raw JSON
// string so a call round-trips through the transcript unchanged.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"` // "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall names the requested function and carries its arguments
// as the JSON string the model produced.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Type     string         `json:"type"` // "function"
	Function FunctionSchema `json:"function"`
}

// FunctionSchema is the JSON-Schema description of one function tool.
type FunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Endpoint identifies one OpenAI-compatible chat endpoint together with
// the model served from it. BaseURL is the full chat-completions URL.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Model   string
	Alias   string
}
