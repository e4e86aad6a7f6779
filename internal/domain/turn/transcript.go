package turn

import (
	"encoding/json"

	"github.com/jaykumar-cb/buster/internal/infra/llm"
)

// Transcript accumulates the conversation fed to the reasoning engine.
// After each turn it appends the assistant's tool-call message followed by
// one tool-result message per call, in request order, so the model sees a
// complete and ordered record.
type Transcript struct {
	messages []llm.Message
}

// NewTranscript starts a transcript, optionally with a system prompt.
func NewTranscript(systemPrompt string) *Transcript {
	t := &Transcript{}
	if systemPrompt != "" {
		t.messages = append(t.messages, llm.Message{Role: "system", Content: systemPrompt})
	}
	return t
}

// AddUser appends a user message.
func (t *Transcript) AddUser(content string) {
	t.messages = append(t.messages, llm.Message{Role: "user", Content: content})
}

// AddAssistant appends an assistant message, with or without tool calls.
func (t *Transcript) AddAssistant(content string, toolCalls []llm.ToolCall) {
	t.messages = append(t.messages, llm.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddTurn appends one tool-result message per result, in request order.
// Failures are encoded as a JSON error object so the model can distinguish
// them from payloads and self-correct.
func (t *Transcript) AddTurn(tn Turn) {
	for _, res := range tn.Results {
		t.messages = append(t.messages, llm.Message{
			Role:       "tool",
			Content:    resultContent(res),
			ToolCallID: res.CallID,
			ToolName:   res.Name,
		})
	}
}

// Messages returns a copy of the transcript for a chat request.
func (t *Transcript) Messages() []llm.Message {
	out := make([]llm.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages accumulated so far.
func (t *Transcript) Len() int {
	return len(t.messages)
}

func resultContent(res Result) string {
	if res.Status == StatusOK {
		if len(res.Payload) == 0 {
			return "{}"
		}
		return string(res.Payload)
	}
	raw, err := json.Marshal(map[string]any{
		"error": res.Failure,
	})
	if err != nil {
		return `{"error":{"kind":"execution","message":"unencodable failure"}}`
	}
	return string(raw)
}

// RequestsFromToolCalls maps provider tool calls onto dispatch requests,
// preserving order.
func RequestsFromToolCalls(calls []llm.ToolCall) []Request {
	out := make([]Request, len(calls))
	for i, c := range calls {
		out[i] = Request{CallID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}
