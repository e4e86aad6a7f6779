package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jaykumar-cb/buster/internal/domain/copilot"
)

// ChatService streams copilot answers for a workspace question.
type ChatService interface {
	Chat(ctx context.Context, in copilot.ChatInput) (<-chan copilot.StreamChunk, error)
}

// SuggestService proposes starter questions from the catalog.
type SuggestService interface {
	SuggestQuestions(ctx context.Context, in copilot.SuggestQuestionsInput) ([]copilot.SuggestedQuestion, error)
}

// ChatHandler handles copilot HTTP requests.
type ChatHandler struct {
	chat    ChatService
	suggest SuggestService
}

func NewChatHandler(chat ChatService, suggest SuggestService) *ChatHandler {
	return &ChatHandler{chat: chat, suggest: suggest}
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Query string `json:"query"`
}

// chatRequestError maps a pre-stream failure to an HTTP status. Once the
// SSE stream has started the status line is already written, so errors
// after that point travel inside the stream instead.
type chatRequestError struct {
	status  int
	message string
}

func (e *chatRequestError) Error() string { return e.message }

// Chat handles POST /api/v1/chat. The response is a Server-Sent Events
// stream of chunks, one JSON object per "data:" line.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ch, err := h.prepareChatStream(w, r)
	if err != nil {
		var reqErr *chatRequestError
		if errors.As(err, &reqErr) {
			writeError(w, reqErr.status, reqErr.message)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start chat")
		return
	}

	h.streamChunks(w, r, ch)
}

// prepareChatStream validates the request and starts the copilot run.
// No response bytes are written until it returns successfully.
func (h *ChatHandler) prepareChatStream(w http.ResponseWriter, r *http.Request) (<-chan copilot.StreamChunk, error) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		return nil, &chatRequestError{status: http.StatusUnauthorized, message: "missing workspace context"}
	}
	userID, err := getUserID(r.Context())
	if err != nil {
		return nil, &chatRequestError{status: http.StatusUnauthorized, message: "missing user context"}
	}

	var req ChatRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		return nil, &chatRequestError{status: http.StatusBadRequest, message: "invalid request body"}
	}

	ch, err := h.chat.Chat(r.Context(), copilot.ChatInput{
		WorkspaceID: wsID,
		UserID:      userID,
		Query:       req.Query,
	})
	if err != nil {
		if errors.Is(err, copilot.ErrEmptyQuery) {
			return nil, &chatRequestError{status: http.StatusBadRequest, message: "query is required"}
		}
		return nil, err
	}
	return ch, nil
}

func (h *ChatHandler) streamChunks(w http.ResponseWriter, r *http.Request, ch <-chan copilot.StreamChunk) {
	w.Header().Set(headerContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(chunk)
			if err != nil {
				continue
			}
			fmt.Fprintf(bw, "data: %s\n\n", payload)
			bw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// SuggestQuestions handles GET /api/v1/chat/suggestions.
func (h *ChatHandler) SuggestQuestions(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}
	userID, err := getUserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	questions, err := h.suggest.SuggestQuestions(r.Context(), copilot.SuggestQuestionsInput{
		WorkspaceID: wsID,
		UserID:      userID,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to suggest questions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questions": questions,
		"count":     len(questions),
	})
}
