package llm

import (
	"context"
	"sync"
	"testing"
)

type stubProvider struct{ id string }

func (s *stubProvider) ChatCompletion(context.Context, ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: s.id}, nil
}
func (s *stubProvider) ModelInfo() ModelMeta           { return ModelMeta{ID: s.id} }
func (s *stubProvider) HealthCheck(context.Context) error { return nil }

func TestRouter_RoutesToDefault(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]Provider{"ollama": &stubProvider{id: "ollama"}}, "ollama")
	p, err := r.Route(context.Background())
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if p.ModelInfo().ID != "ollama" {
		t.Errorf("routed to wrong provider: %s", p.ModelInfo().ID)
	}
}

func TestRouter_MissingDefaultFails(t *testing.T) {
	t.Parallel()

	r := NewRouter(nil, "missing")
	if _, err := r.Route(context.Background()); err == nil {
		t.Fatal("expected error for unregistered default provider")
	}
}

func TestRouter_ChatCompletionDelegates(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]Provider{"ollama": &stubProvider{id: "ollama"}}, "ollama")
	resp, err := r.ChatCompletion(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "ollama" {
		t.Errorf("delegated to wrong provider: %s", resp.Content)
	}

	missing := NewRouter(nil, "missing")
	if _, err := missing.ChatCompletion(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error when default provider is unregistered")
	}
}

func TestRouter_RegisterReplaces(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]Provider{"a": &stubProvider{id: "old"}}, "a")
	r.Register("a", &stubProvider{id: "new"})

	p, err := r.Route(context.Background())
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if p.ModelInfo().ID != "new" {
		t.Errorf("expected replaced provider, got %s", p.ModelInfo().ID)
	}
}

func TestRouter_ConcurrentRegisterAndRoute(t *testing.T) {
	t.Parallel()

	r := NewRouter(map[string]Provider{"ollama": &stubProvider{id: "ollama"}}, "ollama")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("ollama", &stubProvider{id: "ollama"})
		}()
		go func() {
			defer wg.Done()
			if _, err := r.Route(context.Background()); err != nil {
				t.Errorf("Route failed: %v", err)
			}
		}()
	}
	wg.Wait()
}
