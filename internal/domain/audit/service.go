package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jaykumar-cb/buster/pkg/uuid"
)

// Service provides append-only audit logging. Log is the only write path;
// there are no updates and no deletes.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Log writes one audit event. Missing IDs and timestamps are filled in.
func (s *Service) Log(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewV7().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_event (
			id, workspace_id, actor_id, actor_type, action,
			entity_type, entity_id, details, outcome, trace_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.WorkspaceID,
		event.ActorID,
		string(event.ActorType),
		event.Action,
		event.EntityType,
		event.EntityID,
		string(details),
		string(event.Outcome),
		event.TraceID,
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("log audit event: %w", err)
	}
	return nil
}

// LogAction is the common-case helper: it marshals details and fills in
// identity fields.
func (s *Service) LogAction(ctx context.Context, workspaceID, actorID string, actorType ActorType, action string, details any, outcome Outcome) error {
	var detailsJSON json.RawMessage
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("log audit event: marshal details: %w", err)
		}
		detailsJSON = raw
	}
	return s.Log(ctx, &Event{
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		ActorType:   actorType,
		Action:      action,
		Details:     detailsJSON,
		Outcome:     outcome,
	})
}

// ListByWorkspace returns a workspace's audit events newest first, plus the
// total count for pagination.
func (s *Service) ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]*Event, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, actor_type, action,
		       entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event
		WHERE workspace_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0, limit)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		events = append(events, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, 0, rowsErr
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM audit_event WHERE workspace_id = ?
	`, workspaceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	return events, total, nil
}

// ListByEntity returns the audit trail of one entity, newest first.
func (s *Service) ListByEntity(ctx context.Context, workspaceID, entityType, entityID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, actor_type, action,
		       entity_type, entity_id, details, outcome, trace_id, created_at
		FROM audit_event
		WHERE workspace_id = ? AND entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, workspaceID, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events by entity: %w", err)
	}
	defer rows.Close()

	events := make([]*Event, 0, limit)
	for rows.Next() {
		e, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return events, nil
}

type eventScanner interface {
	Scan(dest ...any) error
}

func scanEvent(scan eventScanner) (*Event, error) {
	var (
		e          Event
		actorType  string
		entityType sql.NullString
		entityID   sql.NullString
		details    string
		outcome    string
		traceID    sql.NullString
		createdAt  string
	)

	if err := scan.Scan(
		&e.ID,
		&e.WorkspaceID,
		&e.ActorID,
		&actorType,
		&e.Action,
		&entityType,
		&entityID,
		&details,
		&outcome,
		&traceID,
		&createdAt,
	); err != nil {
		return nil, err
	}

	e.ActorType = ActorType(actorType)
	e.Outcome = Outcome(outcome)
	e.Details = json.RawMessage(details)
	if entityType.Valid {
		e.EntityType = &entityType.String
	}
	if entityID.Valid {
		e.EntityID = &entityID.String
	}
	if traceID.Valid {
		e.TraceID = &traceID.String
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}
