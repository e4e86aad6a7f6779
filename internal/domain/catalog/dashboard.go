package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jaykumar-cb/buster/pkg/uuid"
)

// Dashboard is a named collection of metrics in a workspace.
type Dashboard struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	MetricIDs   []string  `json:"metricIds"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateDashboardInput describes a new dashboard.
type CreateDashboardInput struct {
	WorkspaceID string
	Name        string
	Description string
	MetricIDs   []string
}

// DashboardService provides dashboard reads and writes.
type DashboardService struct {
	db *sql.DB
}

func NewDashboardService(db *sql.DB) *DashboardService {
	return &DashboardService{db: db}
}

func (s *DashboardService) Create(ctx context.Context, in CreateDashboardInput) (*Dashboard, error) {
	if in.WorkspaceID == "" || in.Name == "" {
		return nil, fmt.Errorf("create dashboard: workspace_id and name are required")
	}
	if in.MetricIDs == nil {
		in.MetricIDs = []string{}
	}

	metricIDs, err := json.Marshal(in.MetricIDs)
	if err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}

	d := &Dashboard{
		ID:          uuid.NewV7().String(),
		WorkspaceID: in.WorkspaceID,
		Name:        in.Name,
		MetricIDs:   in.MetricIDs,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if in.Description != "" {
		d.Description = &in.Description
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dashboard (id, workspace_id, name, description, metric_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.WorkspaceID, d.Name, d.Description, string(metricIDs), d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}
	return d, nil
}

// Get fetches a dashboard by id within a workspace.
func (s *DashboardService) Get(ctx context.Context, workspaceID, id string) (*Dashboard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, description, metric_ids, created_at, updated_at
		FROM dashboard
		WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)

	d, err := scanDashboard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDashboardNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// List returns all dashboards in a workspace ordered by name.
func (s *DashboardService) List(ctx context.Context, workspaceID string) ([]*Dashboard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, description, metric_ids, created_at, updated_at
		FROM dashboard
		WHERE workspace_id = ?
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}
	defer rows.Close()

	out := make([]*Dashboard, 0)
	for rows.Next() {
		d, scanErr := scanDashboard(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, d)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return out, nil
}

func scanDashboard(scan rowScanner) (*Dashboard, error) {
	var (
		d           Dashboard
		description sql.NullString
		metricIDs   string
		createdAt   string
		updatedAt   string
	)

	if err := scan.Scan(&d.ID, &d.WorkspaceID, &d.Name, &description, &metricIDs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if description.Valid {
		d.Description = &description.String
	}
	if err := json.Unmarshal([]byte(metricIDs), &d.MetricIDs); err != nil {
		return nil, fmt.Errorf("decode dashboard metric ids: %w", err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &d, nil
}
