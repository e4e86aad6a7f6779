// Package turn executes batches of model-issued tool calls. One turn is:
// the model emits N calls, the dispatcher runs them concurrently under a
// bound, and exactly N results come back in request order. The model never
// sees a partial turn.
package turn

import (
	"encoding/json"
	"time"
)

// Result statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// FailureKind classifies why a call produced no payload.
type FailureKind string

const (
	FailureUnknownCapability FailureKind = "unknown_capability"
	FailureValidation        FailureKind = "validation"
	FailureExecution         FailureKind = "execution"
	FailureCancelled         FailureKind = "cancelled"
)

// Request is one tool call as issued by the model. CallID correlates the
// eventual result back to the call; it must be unique within the turn.
type Request struct {
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Failure describes an unsuccessful call. Message is safe to show the
// model: validation failures carry enough detail for self-correction,
// execution failures never leak internals beyond the capability's own
// error text.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Result is the outcome of one request. Exactly one of Payload or Failure
// is set. Elapsed covers execution only; short-circuited calls report zero.
type Result struct {
	CallID  string          `json:"callId"`
	Name    string          `json:"name"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Turn pairs a request batch with its aggregated results. Results[i]
// always corresponds to Requests[i].
type Turn struct {
	Requests []Request `json:"requests"`
	Results  []Result  `json:"results"`
}

// OK reports whether every call in the turn succeeded.
func (t Turn) OK() bool {
	for _, r := range t.Results {
		if r.Status != StatusOK {
			return false
		}
	}
	return true
}
