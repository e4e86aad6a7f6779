package ctxkeys

import (
	"context"
	"errors"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), WorkspaceID, "ws-analytics")
	got, ok := ctx.Value(WorkspaceID).(string)
	if !ok {
		t.Fatalf("expected string value")
	}
	if got != "ws-analytics" {
		t.Fatalf("expected ws-analytics, got %q", got)
	}
}

func TestWorkspaceAndUser_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), WorkspaceID, "ws-1")
	ctx = WithValue(ctx, UserID, "user-1")

	ws, err := Workspace(ctx)
	if err != nil || ws != "ws-1" {
		t.Fatalf("Workspace = %q, %v", ws, err)
	}
	user, err := User(ctx)
	if err != nil || user != "user-1" {
		t.Fatalf("User = %q, %v", user, err)
	}
}

func TestWorkspaceAndUser_MissingOrEmpty(t *testing.T) {
	t.Parallel()

	if _, err := Workspace(context.Background()); !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("expected ErrNoWorkspace, got %v", err)
	}
	if _, err := User(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}

	ctx := WithValue(context.Background(), WorkspaceID, "")
	if _, err := Workspace(ctx); !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("expected ErrNoWorkspace for empty value, got %v", err)
	}
}

func TestWithValue_KeysDoNotCollide(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), WorkspaceID, "ws-1")
	ctx = WithValue(ctx, UserID, "user-1")

	if got := ctx.Value(WorkspaceID); got != "ws-1" {
		t.Fatalf("expected ws-1, got %v", got)
	}
	if got := ctx.Value(UserID); got != "user-1" {
		t.Fatalf("expected user-1, got %v", got)
	}
	if got := ctx.Value("workspace_id"); got != nil {
		t.Fatalf("plain string key must not resolve typed value, got %v", got)
	}
}
