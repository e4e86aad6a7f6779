// Package ctxkeys holds the request identity carried through the API layer.
// It lives in a leaf package to avoid import cycles between api and
// api/handlers.
package ctxkeys

import (
	"context"
	"errors"
)

// Key is the unexported named type for all API context keys.
// Using a named type avoids collisions with string keys from other packages
// at runtime (context.Value compares both type and value).
type Key string

const (
	// WorkspaceID is the context key for the active workspace.
	// Injected by AuthMiddleware from JWT claims, read by all handlers.
	WorkspaceID Key = "workspace_id"

	// UserID is the context key for the authenticated user.
	UserID Key = "user_id"
)

var (
	// ErrNoWorkspace is returned when no workspace identity is in the context.
	ErrNoWorkspace = errors.New("missing workspace_id in context")

	// ErrNoUser is returned when no user identity is in the context.
	ErrNoUser = errors.New("missing user_id in context")
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// Workspace returns the workspace the request runs under.
func Workspace(ctx context.Context) (string, error) {
	wsID, ok := ctx.Value(WorkspaceID).(string)
	if !ok || wsID == "" {
		return "", ErrNoWorkspace
	}
	return wsID, nil
}

// User returns the authenticated user behind the request.
func User(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserID).(string)
	if !ok || userID == "" {
		return "", ErrNoUser
	}
	return userID, nil
}
