// Provider router. Selects a Provider at request time.
// Currently a pass-through to the configured default; fallback chains and
// budget-aware routing can slot in here without touching callers.
package llm

import (
	"context"
	"fmt"
	"sync"
)

// Router selects a Provider for each request.
type Router struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]Provider, defaultProvider string) *Router {
	// the map is copied; the caller keeps no reference to it.
	ps := make(map[string]Provider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Register adds (or replaces) a provider under the given key.
// Safe to call while requests are being routed.
func (r *Router) Register(key string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = p
}

// Route returns the provider for the current request.
// Returns an error if the default provider is not registered.
func (r *Router) Route(_ context.Context) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", r.defaultProvider, r.keys())
	}
	return p, nil
}

// ChatCompletion routes the request and delegates to the selected provider,
// so a Router can stand in anywhere a Provider is expected.
func (r *Router) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p, err := r.Route(ctx)
	if err != nil {
		return nil, err
	}
	return p.ChatCompletion(ctx, req)
}

// ModelInfo reports the default provider's metadata, or a zero value when
// the default is not registered.
func (r *Router) ModelInfo() ModelMeta {
	p, err := r.Route(context.Background())
	if err != nil {
		return ModelMeta{}
	}
	return p.ModelInfo()
}

// HealthCheck probes the default provider.
func (r *Router) HealthCheck(ctx context.Context) error {
	p, err := r.Route(ctx)
	if err != nil {
		return err
	}
	return p.HealthCheck(ctx)
}

// keys expects r.mu to be held.
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	return out
}
