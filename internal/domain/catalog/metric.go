// Package catalog holds the business-logic services for the analytics
// workspace: metrics, dashboards, datasets, and annotations.
//
// These services are the shared handler layer: tool capabilities and
// transport adapters (REST, MCP) both call them with explicit typed inputs.
// Nothing in here may depend on how it was invoked.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jaykumar-cb/buster/pkg/uuid"
)

var (
	ErrMetricNotFound    = errors.New("metric not found")
	ErrDashboardNotFound = errors.New("dashboard not found")
	ErrDatasetNotFound   = errors.New("dataset not found")
)

// Metric is a named measure tracked in a workspace.
type Metric struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Unit        *string   `json:"unit,omitempty"`
	LastValue   *float64  `json:"lastValue,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MetricPoint is a single observation of a metric.
type MetricPoint struct {
	ID         string    `json:"id"`
	MetricID   string    `json:"metricId"`
	RecordedAt time.Time `json:"recordedAt"`
	Value      float64   `json:"value"`
}

// CreateMetricInput describes a new metric.
type CreateMetricInput struct {
	WorkspaceID string
	Name        string
	Description string
	Unit        string
}

// LookupMetricOutput bundles a metric with its most recent points.
type LookupMetricOutput struct {
	Metric Metric        `json:"metric"`
	Points []MetricPoint `json:"points"`
}

// MetricService provides metric reads and writes.
type MetricService struct {
	db *sql.DB
}

func NewMetricService(db *sql.DB) *MetricService {
	return &MetricService{db: db}
}

func (s *MetricService) Create(ctx context.Context, in CreateMetricInput) (*Metric, error) {
	if in.WorkspaceID == "" || in.Name == "" {
		return nil, fmt.Errorf("create metric: workspace_id and name are required")
	}

	m := &Metric{
		ID:          uuid.NewV7().String(),
		WorkspaceID: in.WorkspaceID,
		Name:        in.Name,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if in.Description != "" {
		m.Description = &in.Description
	}
	if in.Unit != "" {
		m.Unit = &in.Unit
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric (id, workspace_id, name, description, unit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.WorkspaceID, m.Name, m.Description, m.Unit, m.CreatedAt.Format(time.RFC3339), m.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create metric: %w", err)
	}
	return m, nil
}

// RecordPoint appends an observation and refreshes the metric's cached last value.
func (s *MetricService) RecordPoint(ctx context.Context, metricID string, recordedAt time.Time, value float64) (*MetricPoint, error) {
	p := &MetricPoint{
		ID:         uuid.NewV7().String(),
		MetricID:   metricID,
		RecordedAt: recordedAt.UTC(),
		Value:      value,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_point (id, metric_id, recorded_at, value)
		VALUES (?, ?, ?, ?)
	`, p.ID, p.MetricID, p.RecordedAt.Format(time.RFC3339), p.Value)
	if err != nil {
		return nil, fmt.Errorf("record metric point: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE metric SET last_value = ?, updated_at = ? WHERE id = ?
	`, p.Value, time.Now().UTC().Format(time.RFC3339), metricID)
	if err != nil {
		return nil, fmt.Errorf("update metric last value: %w", err)
	}
	return p, nil
}

// Lookup fetches a metric by name within a workspace, including its most
// recent points (newest first, capped at pointLimit; 0 means default 30).
func (s *MetricService) Lookup(ctx context.Context, workspaceID, name string, pointLimit int) (*LookupMetricOutput, error) {
	if pointLimit <= 0 {
		pointLimit = 30
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, description, unit, last_value, created_at, updated_at
		FROM metric
		WHERE workspace_id = ? AND name = ?
	`, workspaceID, name)

	m, err := scanMetric(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMetricNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric_id, recorded_at, value
		FROM metric_point
		WHERE metric_id = ?
		ORDER BY recorded_at DESC
		LIMIT ?
	`, m.ID, pointLimit)
	if err != nil {
		return nil, fmt.Errorf("lookup metric points: %w", err)
	}
	defer rows.Close()

	points := make([]MetricPoint, 0, pointLimit)
	for rows.Next() {
		var (
			p          MetricPoint
			recordedAt string
		)
		if scanErr := rows.Scan(&p.ID, &p.MetricID, &recordedAt, &p.Value); scanErr != nil {
			return nil, scanErr
		}
		p.RecordedAt, _ = time.Parse(time.RFC3339, recordedAt)
		points = append(points, p)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return &LookupMetricOutput{Metric: *m, Points: points}, nil
}

// ResolveID maps a metric name to its id within a workspace.
func (s *MetricService) ResolveID(ctx context.Context, workspaceID, name string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM metric WHERE workspace_id = ? AND name = ?
	`, workspaceID, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMetricNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve metric: %w", err)
	}
	return id, nil
}

// List returns all metrics in a workspace ordered by name.
func (s *MetricService) List(ctx context.Context, workspaceID string) ([]*Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, description, unit, last_value, created_at, updated_at
		FROM metric
		WHERE workspace_id = ?
		ORDER BY name ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	out := make([]*Metric, 0)
	for rows.Next() {
		m, scanErr := scanMetric(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, m)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return out, nil
}

// RecomputeLastValues resets every metric's cached last_value to its newest
// recorded point. Used by the background refresher to repair drift after
// out-of-order point inserts. Returns the number of metrics updated.
func (s *MetricService) RecomputeLastValues(ctx context.Context, workspaceID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE metric SET last_value = (
			SELECT p.value FROM metric_point p
			WHERE p.metric_id = metric.id
			ORDER BY p.recorded_at DESC
			LIMIT 1
		)
		WHERE workspace_id = ?
		  AND EXISTS (SELECT 1 FROM metric_point p WHERE p.metric_id = metric.id)
	`, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("recompute last values: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetric(scan rowScanner) (*Metric, error) {
	var (
		m           Metric
		description sql.NullString
		unit        sql.NullString
		lastValue   sql.NullFloat64
		createdAt   string
		updatedAt   string
	)

	if err := scan.Scan(&m.ID, &m.WorkspaceID, &m.Name, &description, &unit, &lastValue, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if description.Valid {
		m.Description = &description.String
	}
	if unit.Valid {
		m.Unit = &unit.String
	}
	if lastValue.Valid {
		m.LastValue = &lastValue.Float64
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &m, nil
}
