package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/pkg/uuid"
)

// Annotation is a note a user or the copilot attaches to a metric.
type Annotation struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	MetricID    string    `json:"metricId"`
	AuthorID    string    `json:"authorId"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateAnnotationInput describes a new annotation.
type CreateAnnotationInput struct {
	WorkspaceID string
	MetricID    string
	AuthorID    string
	Body        string
}

// AnnotationService provides annotation reads and writes.
type AnnotationService struct {
	db  *sql.DB
	bus *eventbus.Bus
}

func NewAnnotationService(db *sql.DB, bus *eventbus.Bus) *AnnotationService {
	return &AnnotationService{db: db, bus: bus}
}

func (s *AnnotationService) Create(ctx context.Context, in CreateAnnotationInput) (*Annotation, error) {
	if in.WorkspaceID == "" || in.MetricID == "" || in.Body == "" {
		return nil, fmt.Errorf("create annotation: workspace_id, metric_id and body are required")
	}

	// The target metric must exist and belong to the same workspace.
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM metric WHERE id = ? AND workspace_id = ?
	`, in.MetricID, in.WorkspaceID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}
	if exists == 0 {
		return nil, ErrMetricNotFound
	}

	a := &Annotation{
		ID:          uuid.NewV7().String(),
		WorkspaceID: in.WorkspaceID,
		MetricID:    in.MetricID,
		AuthorID:    in.AuthorID,
		Body:        in.Body,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO annotation (id, workspace_id, metric_id, author_id, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.WorkspaceID, a.MetricID, a.AuthorID, a.Body, a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create annotation: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicCatalogChanged, eventbus.CatalogChange{
			WorkspaceID: a.WorkspaceID,
			EntityType:  "annotation",
			EntityID:    a.ID,
		})
	}
	return a, nil
}

// ListForMetric returns a metric's annotations, newest first.
func (s *AnnotationService) ListForMetric(ctx context.Context, workspaceID, metricID string) ([]*Annotation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, metric_id, author_id, body, created_at
		FROM annotation
		WHERE workspace_id = ? AND metric_id = ?
		ORDER BY created_at DESC
	`, workspaceID, metricID)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := make([]*Annotation, 0)
	for rows.Next() {
		var (
			a         Annotation
			createdAt string
		)
		if scanErr := rows.Scan(&a.ID, &a.WorkspaceID, &a.MetricID, &a.AuthorID, &a.Body, &createdAt); scanErr != nil {
			return nil, scanErr
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &a)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return out, nil
}
