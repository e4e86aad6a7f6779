// Package llm defines the model-agnostic reasoning-engine abstraction.
// All types here are shared between the provider interface and adapters.
package llm

import "encoding/json"

// Message represents a single entry in a conversation transcript.
type Message struct {
	Role    string // "system" | "user" | "assistant" | "tool"
	Content string

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall

	// ToolCallID and ToolName are set on "tool" role messages carrying a
	// tool result back to the model. ToolCallID matches the originating
	// ToolCall.ID so the model can correlate results with requests.
	ToolCallID string
	ToolName   string
}

// ToolSpec describes one invocable tool to the model:
// name, human description, and a JSON Schema for the arguments.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is an opaque correlation identifier, unique within one response.
	// Providers that do not issue IDs (Ollama) get synthetic ones from the adapter.
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
// When ToolCalls is non-empty the model wants tools executed before it can
// continue; Content may still carry interim commentary.
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string // "stop" | "length" | "tool_calls" | "error"
	Tokens     int    // total tokens consumed (prompt + completion), 0 if unknown
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string // e.g. "llama3.2:3b"
	Provider  string // e.g. "ollama"
	Version   string
	MaxTokens int // maximum context window size
}
