package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	ErrDuplicateCapability = errors.New("capability already registered")
	ErrUnknownCapability   = errors.New("unknown capability")
	ErrRegistryClosed      = errors.New("registry is sealed")
	ErrValidationFailed    = errors.New("argument validation failed")
)

type registeredCapability struct {
	cap    Capability
	schema *jsonschema.Resolved
}

// Registry is the capability catalog. Registration happens during startup;
// Seal freezes the set before the first dispatch so the capability surface
// advertised to the model can never drift mid-conversation.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]registeredCapability
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]registeredCapability)}
}

// Register adds a capability under its descriptor name. The descriptor's
// input schema is compiled here; a schema that does not compile rejects
// the registration rather than surfacing later during dispatch.
func (r *Registry) Register(c Capability) error {
	if c == nil {
		return fmt.Errorf("register capability: nil capability")
	}
	name := strings.TrimSpace(c.Name())
	if name == "" {
		return fmt.Errorf("register capability: empty name")
	}

	resolved, err := compileSchema(c.Descriptor().InputSchema)
	if err != nil {
		return fmt.Errorf("register capability %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryClosed, name)
	}
	if _, exists := r.caps[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCapability, name)
	}
	r.caps[name] = registeredCapability{cap: c, schema: resolved}
	return nil
}

// Seal closes the registry for further registration. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.caps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	return rc.cap, nil
}

// ValidateArgs checks a raw arguments document against the named
// capability's compiled schema.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) error {
	r.mu.RLock()
	rc, ok := r.caps[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	return validateArgs(rc.schema, args)
}

// Descriptors returns every registered descriptor sorted by name, for
// deterministic export to LLM providers and transport adapters.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		out = append(out, r.caps[name].cap.Descriptor())
	}
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
