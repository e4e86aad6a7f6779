package turn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaykumar-cb/buster/internal/infra/llm"
)

func TestTranscript_OrderedToolResults(t *testing.T) {
	tr := NewTranscript("You are an analytics copilot.")
	tr.AddUser("How is revenue trending?")

	calls := []llm.ToolCall{
		{ID: "call_0", Name: "lookup_metric", Arguments: raw(`{"name":"revenue"}`)},
		{ID: "call_1", Name: "list_dashboards", Arguments: raw(`{}`)},
	}
	tr.AddAssistant("", calls)

	tr.AddTurn(Turn{
		Requests: RequestsFromToolCalls(calls),
		Results: []Result{
			{CallID: "call_0", Name: "lookup_metric", Status: StatusOK, Payload: raw(`{"metric":"revenue"}`)},
			{CallID: "call_1", Name: "list_dashboards", Status: StatusError, Failure: &Failure{Kind: FailureExecution, Message: "db down"}},
		},
	})

	msgs := tr.Messages()
	require.Len(t, msgs, 5)

	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 2)

	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "call_0", msgs[3].ToolCallID)
	assert.Equal(t, "lookup_metric", msgs[3].ToolName)
	assert.Equal(t, `{"metric":"revenue"}`, msgs[3].Content)

	assert.Equal(t, "tool", msgs[4].Role)
	assert.Equal(t, "call_1", msgs[4].ToolCallID)
	assert.Contains(t, msgs[4].Content, `"kind":"execution"`)
	assert.Contains(t, msgs[4].Content, "db down")
}

func TestTranscript_EmptyPayloadBecomesEmptyObject(t *testing.T) {
	tr := NewTranscript("")
	tr.AddTurn(Turn{
		Results: []Result{
			{CallID: "call_0", Name: "noop", Status: StatusOK},
		},
	})

	msgs := tr.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "{}", msgs[0].Content)
}

func TestTranscript_MessagesReturnsCopy(t *testing.T) {
	tr := NewTranscript("")
	tr.AddUser("hello")

	msgs := tr.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hello", tr.Messages()[0].Content)
	assert.Equal(t, 1, tr.Len())
}

func TestRequestsFromToolCalls(t *testing.T) {
	calls := []llm.ToolCall{
		{ID: "call_0", Name: "a", Arguments: raw(`{"x":1}`)},
		{ID: "call_1", Name: "b"},
	}
	reqs := RequestsFromToolCalls(calls)
	require.Len(t, reqs, 2)
	assert.Equal(t, "call_0", reqs[0].CallID)
	assert.Equal(t, "a", reqs[0].Name)
	assert.JSONEq(t, `{"x":1}`, string(reqs[0].Arguments))
	assert.Equal(t, "call_1", reqs[1].CallID)
}
