// Package tool defines the capability contract of the copilot runtime:
// named, schema-described operations that the model invokes by emitting
// tool calls. The registry holds the capability set; the turn package
// dispatches batches of calls against it.
package tool

import (
	"context"
	"encoding/json"
)

// Capability kinds. Kind is advisory metadata surfaced in descriptors;
// the dispatcher treats all kinds the same.
const (
	KindRead            = "read"
	KindWrite           = "write"
	KindUserInteraction = "user_interaction"
)

// Descriptor is the externally visible description of a capability.
// InputSchema is a JSON Schema document for the arguments object; it is
// handed verbatim to LLM providers and transport adapters.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ExecContext carries the identity a capability executes under. It is
// resolved once per turn by the caller and shared by every call in the
// batch; capabilities must not mutate it.
type ExecContext struct {
	WorkspaceID string
	UserID      string
}

// Capability is one executable operation. Execute receives the raw
// arguments object (already schema-validated by the dispatcher) and
// returns a JSON payload. Implementations must honor ctx cancellation
// and must not retain args or ec past the call.
type Capability interface {
	Name() string
	Descriptor() Descriptor
	Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (json.RawMessage, error)
}
