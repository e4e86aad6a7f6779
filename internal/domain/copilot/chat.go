// Package copilot runs the conversation between the user, the reasoning
// engine, and the tool runtime. One Chat call is a loop: ask the model,
// dispatch whatever tool calls it emits, feed the results back, repeat
// until it answers in plain text or the step budget runs out.
package copilot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaykumar-cb/buster/internal/domain/audit"
	"github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/domain/turn"
	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/internal/infra/llm"
)

const systemPrompt = "You are Buster, an analytics copilot. Use the available tools to " +
	"ground every answer in the workspace's metrics, dashboards, and datasets. " +
	"Ask a followup question when the request is ambiguous. Never invent numbers."

// ErrEmptyQuery is returned when Chat is called without a question.
var ErrEmptyQuery = errors.New("query must not be empty")

type chatProvider interface {
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

type dispatcher interface {
	Run(ctx context.Context, ec *tool.ExecContext, requests []turn.Request) turn.Turn
}

type auditLogger interface {
	LogAction(ctx context.Context, workspaceID, actorID string, actorType audit.ActorType, action string, details any, outcome audit.Outcome) error
}

// ChatService orchestrates multi-turn tool-assisted conversations.
type ChatService struct {
	provider   chatProvider
	dispatcher dispatcher
	registry   *tool.Registry
	audit      auditLogger
	bus        *eventbus.Bus
	maxSteps   int
	log        *logrus.Entry
}

// ChatInput is one user question with the identity it runs under.
type ChatInput struct {
	WorkspaceID string
	UserID      string
	Query       string
}

// StreamChunk is one streamed event of a chat response.
type StreamChunk struct {
	Type  string         `json:"type"` // "token" | "tool_call" | "tool_result" | "followup" | "done" | "error"
	Delta string         `json:"delta,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Done  bool           `json:"done,omitempty"`
	Error string         `json:"error,omitempty"`
}

func NewChatService(provider chatProvider, d dispatcher, registry *tool.Registry, auditSvc auditLogger, bus *eventbus.Bus, maxSteps int, log *logrus.Entry) *ChatService {
	if maxSteps < 1 {
		maxSteps = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ChatService{
		provider:   provider,
		dispatcher: d,
		registry:   registry,
		audit:      auditSvc,
		bus:        bus,
		maxSteps:   maxSteps,
		log:        log,
	}
}

// Chat answers one question, streaming progress over the returned channel.
// The channel is closed when the conversation ends, on error, or when the
// model asks the user a followup question.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (<-chan StreamChunk, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, ErrEmptyQuery
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		s.run(ctx, in, ch)
	}()
	return ch, nil
}

func (s *ChatService) run(ctx context.Context, in ChatInput, ch chan<- StreamChunk) {
	tr := turn.NewTranscript(systemPrompt)
	tr.AddUser(in.Query)

	specs := toolSpecs(s.registry.Descriptors())
	ec := &tool.ExecContext{WorkspaceID: in.WorkspaceID, UserID: in.UserID}

	steps := 0
	for {
		resp, err := s.provider.ChatCompletion(ctx, llm.ChatRequest{
			Messages:    tr.Messages(),
			Tools:       specs,
			Temperature: 0.2,
			MaxTokens:   1024,
		})
		if err != nil {
			s.log.WithError(err).Error("chat completion failed")
			s.logChat(ctx, in, steps, audit.OutcomeError)
			s.emit(ctx, ch, StreamChunk{Type: "error", Error: "reasoning engine unavailable"})
			return
		}

		if len(resp.ToolCalls) == 0 {
			if !s.streamAnswer(ctx, ch, resp.Content) {
				return
			}
			s.logChat(ctx, in, steps, audit.OutcomeSuccess)
			s.emit(ctx, ch, StreamChunk{Type: "done", Done: true, Meta: map[string]any{
				"steps": steps,
				"at":    time.Now().UTC().Format(time.RFC3339),
			}})
			return
		}

		steps++
		if steps > s.maxSteps {
			s.log.WithField("steps", steps).Warn("step budget exhausted")
			s.logChat(ctx, in, steps, audit.OutcomeError)
			s.emit(ctx, ch, StreamChunk{Type: "error", Error: "step budget exhausted before a final answer"})
			return
		}

		tr.AddAssistant(resp.Content, resp.ToolCalls)
		for _, call := range resp.ToolCalls {
			ok := s.emit(ctx, ch, StreamChunk{Type: "tool_call", Meta: map[string]any{
				"call_id":    call.ID,
				"capability": call.Name,
			}})
			if !ok {
				return
			}
		}

		tn := s.dispatcher.Run(ctx, ec, turn.RequestsFromToolCalls(resp.ToolCalls))
		tr.AddTurn(tn)

		for _, res := range tn.Results {
			meta := map[string]any{
				"call_id":    res.CallID,
				"capability": res.Name,
				"status":     res.Status,
			}
			if res.Failure != nil {
				meta["failure_kind"] = string(res.Failure.Kind)
			}
			if !s.emit(ctx, ch, StreamChunk{Type: "tool_result", Meta: meta}) {
				return
			}
		}

		if s.bus != nil {
			s.bus.Publish(eventbus.TopicTurnCompleted, eventbus.TurnCompleted{
				WorkspaceID: in.WorkspaceID,
				UserID:      in.UserID,
				Steps:       steps,
			})
		}

		if question, ok := pendingFollowup(tn); ok {
			s.logChat(ctx, in, steps, audit.OutcomeSuccess)
			if !s.emit(ctx, ch, StreamChunk{Type: "followup", Meta: question}) {
				return
			}
			s.emit(ctx, ch, StreamChunk{Type: "done", Done: true, Meta: map[string]any{"steps": steps}})
			return
		}

		if ctx.Err() != nil {
			s.logChat(ctx, in, steps, audit.OutcomeError)
			s.emit(ctx, ch, StreamChunk{Type: "error", Error: "conversation cancelled"})
			return
		}
	}
}

// emit sends one chunk unless the conversation context is gone. The SSE
// handler stops reading when the client disconnects, so a plain send here
// would park this goroutine forever. A false return means stop streaming.
func (s *ChatService) emit(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *ChatService) streamAnswer(ctx context.Context, ch chan<- StreamChunk, content string) bool {
	for _, tk := range strings.Fields(content) {
		if !s.emit(ctx, ch, StreamChunk{Type: "token", Delta: tk + " "}) {
			return false
		}
	}
	return true
}

func (s *ChatService) logChat(ctx context.Context, in ChatInput, steps int, outcome audit.Outcome) {
	if s.audit == nil {
		return
	}
	_ = s.audit.LogAction(ctx, in.WorkspaceID, in.UserID, audit.ActorTypeUser, audit.ActionChatCompleted, map[string]any{
		"query": in.Query,
		"steps": steps,
	}, outcome)
}

// pendingFollowup reports whether the turn contains a successful
// ask_followup call, and if so returns its payload for the client.
func pendingFollowup(tn turn.Turn) (map[string]any, bool) {
	for _, res := range tn.Results {
		if res.Name == tool.BuiltinAskFollowup && res.Status == turn.StatusOK {
			return map[string]any{"payload": string(res.Payload)}, true
		}
	}
	return nil, false
}

func toolSpecs(descriptors []tool.Descriptor) []llm.ToolSpec {
	specs := make([]llm.ToolSpec, len(descriptors))
	for i, d := range descriptors {
		specs[i] = llm.ToolSpec{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		}
	}
	return specs
}
