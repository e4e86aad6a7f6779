package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/jaykumar-cb/buster/internal/domain/audit"
	"github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/domain/turn"
	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/internal/infra/llm"
)

// scriptedProvider replays canned responses in order and records every
// request it receives.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	err       error
	requests  []llm.ChatRequest
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.ChatResponse{Content: "done"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// scriptedDispatcher answers every request with a fixed per-capability result.
type scriptedDispatcher struct {
	results map[string]turn.Result
	turns   [][]turn.Request
}

func (d *scriptedDispatcher) Run(_ context.Context, _ *tool.ExecContext, requests []turn.Request) turn.Turn {
	d.turns = append(d.turns, requests)
	tn := turn.Turn{Requests: requests, Results: make([]turn.Result, len(requests))}
	for i, req := range requests {
		res, ok := d.results[req.Name]
		if !ok {
			res = turn.Result{Status: turn.StatusOK, Payload: json.RawMessage(`{}`)}
		}
		res.CallID = req.CallID
		res.Name = req.Name
		tn.Results[i] = res
	}
	return tn
}

type recordedAudit struct {
	actions  []string
	outcomes []audit.Outcome
}

func (a *recordedAudit) LogAction(_ context.Context, _, _ string, _ audit.ActorType, action string, _ any, outcome audit.Outcome) error {
	a.actions = append(a.actions, action)
	a.outcomes = append(a.outcomes, outcome)
	return nil
}

type echoCapability struct {
	name string
}

func (c *echoCapability) Name() string { return c.name }

func (c *echoCapability) Descriptor() tool.Descriptor {
	return tool.Descriptor{Name: c.name, Description: "echo", Kind: tool.KindRead}
}

func (c *echoCapability) Execute(_ context.Context, args json.RawMessage, _ *tool.ExecContext) (json.RawMessage, error) {
	return args, nil
}

func chatRegistry(t *testing.T, names ...string) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	for _, name := range names {
		if err := r.Register(&echoCapability{name: name}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	r.Seal()
	return r
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func collectChunks(t *testing.T, ch <-chan StreamChunk) []StreamChunk {
	t.Helper()
	var chunks []StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatalf("stream did not close, got %d chunks so far", len(chunks))
		}
	}
}

func chunkTypes(chunks []StreamChunk) []string {
	types := make([]string, len(chunks))
	for i, c := range chunks {
		types[i] = c.Type
	}
	return types
}

func TestChatEmptyQuery(t *testing.T) {
	svc := NewChatService(&scriptedProvider{}, &scriptedDispatcher{}, chatRegistry(t), nil, nil, 5, quietLogger())

	_, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "   "})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestChatPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{Content: "Revenue is trending up."},
	}}
	auditLog := &recordedAudit{}
	svc := NewChatService(provider, &scriptedDispatcher{}, chatRegistry(t), auditLog, nil, 5, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "how is revenue?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	chunks := collectChunks(t, ch)

	if len(chunks) != 5 {
		t.Fatalf("expected 4 tokens + done, got %v", chunkTypes(chunks))
	}
	var answer strings.Builder
	for _, c := range chunks[:4] {
		if c.Type != "token" {
			t.Fatalf("expected token chunk, got %q", c.Type)
		}
		answer.WriteString(c.Delta)
	}
	if got := strings.TrimSpace(answer.String()); got != "Revenue is trending up." {
		t.Errorf("answer = %q", got)
	}
	last := chunks[len(chunks)-1]
	if last.Type != "done" || !last.Done {
		t.Errorf("expected terminal done chunk, got %+v", last)
	}
	if len(auditLog.actions) != 1 || auditLog.actions[0] != audit.ActionChatCompleted {
		t.Errorf("audit actions = %v", auditLog.actions)
	}
	if auditLog.outcomes[0] != audit.OutcomeSuccess {
		t.Errorf("audit outcome = %v", auditLog.outcomes[0])
	}
}

func TestChatToolLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "lookup_metric", Arguments: json.RawMessage(`{"name":"revenue"}`)}}},
		{Content: "Revenue is $1.2M."},
	}}
	d := &scriptedDispatcher{results: map[string]turn.Result{
		"lookup_metric": {Status: turn.StatusOK, Payload: json.RawMessage(`{"metric":{"name":"revenue"}}`)},
	}}
	svc := NewChatService(provider, d, chatRegistry(t, "lookup_metric"), nil, nil, 5, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "how is revenue?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	chunks := collectChunks(t, ch)

	types := chunkTypes(chunks)
	want := []string{"tool_call", "tool_result", "token", "token", "token", "done"}
	if len(types) != len(want) {
		t.Fatalf("chunk types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("chunk[%d] = %q, want %q (%v)", i, types[i], want[i], types)
		}
	}
	if got := chunks[0].Meta["capability"]; got != "lookup_metric" {
		t.Errorf("tool_call capability = %v", got)
	}
	if got := chunks[1].Meta["status"]; got != turn.StatusOK {
		t.Errorf("tool_result status = %v", got)
	}

	if len(d.turns) != 1 || len(d.turns[0]) != 1 || d.turns[0][0].Name != "lookup_metric" {
		t.Fatalf("dispatched turns = %+v", d.turns)
	}

	// The second completion must carry the assistant tool calls and the
	// tool result in the transcript.
	if len(provider.requests) != 2 {
		t.Fatalf("provider calls = %d", len(provider.requests))
	}
	second := provider.requests[1].Messages
	if len(second) != 4 {
		t.Fatalf("second transcript has %d messages", len(second))
	}
	if second[2].Role != "assistant" || len(second[2].ToolCalls) != 1 {
		t.Errorf("message[2] = %+v", second[2])
	}
	if second[3].Role != "tool" || second[3].ToolCallID != "call_0" {
		t.Errorf("message[3] = %+v", second[3])
	}
	if len(provider.requests[0].Tools) != 1 || provider.requests[0].Tools[0].Name != "lookup_metric" {
		t.Errorf("tool specs = %+v", provider.requests[0].Tools)
	}
}

func TestChatStepBudgetExhausted(t *testing.T) {
	loop := &llm.ChatResponse{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "lookup_metric", Arguments: json.RawMessage(`{}`)}}}
	provider := &scriptedProvider{responses: []*llm.ChatResponse{loop, loop, loop, loop}}
	auditLog := &recordedAudit{}
	svc := NewChatService(provider, &scriptedDispatcher{}, chatRegistry(t, "lookup_metric"), auditLog, nil, 2, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "loop forever"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	chunks := collectChunks(t, ch)

	last := chunks[len(chunks)-1]
	if last.Type != "error" || !strings.Contains(last.Error, "step budget") {
		t.Fatalf("expected step budget error, got %+v", last)
	}
	if len(provider.requests) != 3 {
		t.Errorf("provider calls = %d, want 3", len(provider.requests))
	}
	if auditLog.outcomes[len(auditLog.outcomes)-1] != audit.OutcomeError {
		t.Errorf("audit outcome = %v", auditLog.outcomes)
	}
}

func TestChatProviderError(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	svc := NewChatService(provider, &scriptedDispatcher{}, chatRegistry(t), nil, nil, 5, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "hello"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	chunks := collectChunks(t, ch)

	if len(chunks) != 1 || chunks[0].Type != "error" {
		t.Fatalf("chunks = %v", chunkTypes(chunks))
	}
	if !strings.Contains(chunks[0].Error, "reasoning engine unavailable") {
		t.Errorf("error = %q", chunks[0].Error)
	}
}

func TestChatFollowupEndsConversation(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: tool.BuiltinAskFollowup, Arguments: json.RawMessage(`{"question":"Which region?"}`)}}},
	}}
	d := &scriptedDispatcher{results: map[string]turn.Result{
		tool.BuiltinAskFollowup: {Status: turn.StatusOK, Payload: json.RawMessage(`{"question":"Which region?","awaiting_input":true}`)},
	}}
	svc := NewChatService(provider, d, chatRegistry(t, tool.BuiltinAskFollowup), nil, nil, 5, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "show sales"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	chunks := collectChunks(t, ch)

	types := chunkTypes(chunks)
	want := []string{"tool_call", "tool_result", "followup", "done"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("chunk types = %v, want %v", types, want)
	}
	payload, _ := chunks[2].Meta["payload"].(string)
	if !strings.Contains(payload, "Which region?") {
		t.Errorf("followup payload = %q", payload)
	}
	if len(provider.requests) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.requests))
	}
}

// waitingProvider parks until the conversation context is cancelled, the
// way a real completion call behaves when the client hangs up mid-request.
type waitingProvider struct{}

func (waitingProvider) ChatCompletion(ctx context.Context, _ llm.ChatRequest) (*llm.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestChatAbandonedReaderDoesNotLeakGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	svc := NewChatService(waitingProvider{}, &scriptedDispatcher{}, chatRegistry(t), nil, nil, 5, quietLogger())

	ch, err := svc.Chat(ctx, ChatInput{WorkspaceID: "ws-1", UserID: "u-1", Query: "hello"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	// Disconnect without draining a single chunk. The streaming goroutine
	// must still unwind instead of parking on its error send.
	cancel()
	_ = ch
}

func TestChatPublishesTurnEvents(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "lookup_metric", Arguments: json.RawMessage(`{}`)}}},
		{Content: "done"},
	}}
	bus := eventbus.New()
	events := bus.Subscribe(eventbus.TopicTurnCompleted)
	svc := NewChatService(provider, &scriptedDispatcher{}, chatRegistry(t, "lookup_metric"), nil, bus, 5, quietLogger())

	ch, err := svc.Chat(context.Background(), ChatInput{WorkspaceID: "ws-7", UserID: "u-3", Query: "check metrics"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	collectChunks(t, ch)

	select {
	case ev := <-events:
		tc, ok := ev.Payload.(eventbus.TurnCompleted)
		if !ok {
			t.Fatalf("payload type %T", ev.Payload)
		}
		if tc.WorkspaceID != "ws-7" || tc.UserID != "u-3" || tc.Steps != 1 {
			t.Errorf("event = %+v", tc)
		}
	case <-time.After(time.Second):
		t.Fatal("no turn event published")
	}
}
