// Provider interface. Adapters (Ollama today, cloud vendors later) implement
// it so the application is never coupled to a specific LLM vendor.
package llm

import "context"

// Provider is the model-agnostic interface for chat-based reasoning.
type Provider interface {
	// ChatCompletion performs a non-streaming chat completion.
	// The returned response may request tool calls via ChatResponse.ToolCalls.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}
