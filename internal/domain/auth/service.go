// Package auth implements registration and login: workspace creation,
// password hashing, and JWT issuance.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaykumar-cb/buster/internal/domain/audit"
	pkgauth "github.com/jaykumar-cb/buster/pkg/auth"
	"github.com/jaykumar-cb/buster/pkg/uuid"
)

// ErrInvalidCredentials is returned by Login for any credential failure.
// A single error for both wrong email and wrong password avoids revealing
// whether an email exists.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailAlreadyExists is returned by Register when the email is taken.
var ErrEmailAlreadyExists = errors.New("email already registered")

// RegisterInput creates a new workspace with its first user.
type RegisterInput struct {
	Email         string
	Password      string
	DisplayName   string
	WorkspaceName string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Result is returned after a successful Register or Login. Token is a
// signed JWT carrying the UserID and WorkspaceID claims.
type Result struct {
	Token       string
	UserID      string
	WorkspaceID string
}

type auditLogger interface {
	LogAction(ctx context.Context, workspaceID, actorID string, actorType audit.ActorType, action string, details any, outcome audit.Outcome) error
}

// Service is the authentication service backed by SQLite.
type Service struct {
	db    *sql.DB
	audit auditLogger
}

func NewService(db *sql.DB, auditSvc auditLogger) *Service {
	return &Service{db: db, audit: auditSvc}
}

// Register creates a workspace and its first user atomically, then issues
// a JWT. The password is bcrypt-hashed before storage.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if in.Email == "" || in.Password == "" || in.WorkspaceName == "" {
		return nil, fmt.Errorf("register: email, password and workspace_name are required")
	}

	hash, err := pkgauth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	workspaceID := uuid.NewV7().String()
	userID := uuid.NewV7().String()
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("register: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO workspace (id, name, created_at) VALUES (?, ?, ?)
	`, workspaceID, in.WorkspaceName, now); err != nil {
		return nil, fmt.Errorf("register: create workspace: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO app_user (id, workspace_id, email, password_hash, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userID, workspaceID, in.Email, hash, nullableString(in.DisplayName), now); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("register: create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("register: commit: %w", err)
	}

	token, err := pkgauth.GenerateJWT(userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("register: generate jwt: %w", err)
	}

	s.logAuth(ctx, workspaceID, userID, audit.ActionUserRegistered, audit.OutcomeSuccess, nil)

	return &Result{Token: token, UserID: userID, WorkspaceID: workspaceID}, nil
}

// Login verifies credentials and issues a JWT. Every failure path returns
// ErrInvalidCredentials; bcrypt gives constant-time comparison.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	var userID, workspaceID, passwordHash string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, password_hash
		FROM app_user
		WHERE email = ?
		LIMIT 1
	`, in.Email).Scan(&userID, &workspaceID, &passwordHash)
	if err != nil {
		s.logAuth(ctx, "unknown", "unknown", audit.ActionUserLoggedIn, audit.OutcomeError, map[string]string{"reason": "user_not_found"})
		return nil, ErrInvalidCredentials
	}

	if !pkgauth.VerifyPassword(passwordHash, in.Password) {
		s.logAuth(ctx, workspaceID, userID, audit.ActionUserLoggedIn, audit.OutcomeError, map[string]string{"reason": "invalid_password"})
		return nil, ErrInvalidCredentials
	}

	token, err := pkgauth.GenerateJWT(userID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("login: generate jwt: %w", err)
	}

	s.logAuth(ctx, workspaceID, userID, audit.ActionUserLoggedIn, audit.OutcomeSuccess, nil)

	return &Result{Token: token, UserID: userID, WorkspaceID: workspaceID}, nil
}

func (s *Service) logAuth(ctx context.Context, workspaceID, userID, action string, outcome audit.Outcome, details any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.LogAction(ctx, workspaceID, userID, audit.ActorTypeUser, action, details, outcome)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
