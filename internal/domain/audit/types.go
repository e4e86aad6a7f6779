package audit

import (
	"encoding/json"
	"time"
)

// ActorType identifies who performed an audited action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAgent  ActorType = "agent"
	ActorTypeSystem ActorType = "system"
)

// Outcome is the result of an audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeDenied  Outcome = "denied"
	OutcomeError   Outcome = "error"
)

// Well-known actions recorded by the runtime.
const (
	ActionTurnCompleted     = "turn.completed"
	ActionChatCompleted     = "chat.completed"
	ActionUserRegistered    = "user.registered"
	ActionUserLoggedIn      = "user.logged_in"
	ActionAnnotationCreated = "annotation.created"
)

// Event is a single audit log entry. Events are immutable: once written
// they are never updated or deleted.
type Event struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	ActorID     string          `json:"actor_id"`
	ActorType   ActorType       `json:"actor_type"`
	Action      string          `json:"action"`
	EntityType  *string         `json:"entity_type,omitempty"`
	EntityID    *string         `json:"entity_id,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	Outcome     Outcome         `json:"outcome"`
	TraceID     *string         `json:"trace_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
