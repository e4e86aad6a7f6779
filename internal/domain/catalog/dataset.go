package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/pkg/uuid"
)

// Dataset is a catalog entry describing a queryable data model. YMLContent
// carries the full semantic-layer definition handed to the model verbatim.
type Dataset struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	Name         string    `json:"name"`
	DatabaseName *string   `json:"databaseName,omitempty"`
	SchemaName   *string   `json:"schemaName,omitempty"`
	Description  *string   `json:"description,omitempty"`
	YMLContent   string    `json:"ymlContent"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateDatasetInput describes a new dataset.
type CreateDatasetInput struct {
	WorkspaceID  string
	Name         string
	DatabaseName string
	SchemaName   string
	Description  string
	YMLContent   string
}

// DatasetSearchInput carries the three ways a caller narrows the catalog.
// All lists are optional; an entirely empty input matches nothing.
type DatasetSearchInput struct {
	SpecificQueries   []string `json:"specific_queries,omitempty"`
	ExploratoryTopics []string `json:"exploratory_topics,omitempty"`
	ValueSearchTerms  []string `json:"value_search_terms,omitempty"`
}

// DatasetMatch is one search hit with its relevance score.
type DatasetMatch struct {
	Dataset Dataset `json:"dataset"`
	Score   int     `json:"score"`
}

// DatasetService provides catalog search and dataset reads.
type DatasetService struct {
	db  *sql.DB
	bus *eventbus.Bus
}

func NewDatasetService(db *sql.DB, bus *eventbus.Bus) *DatasetService {
	return &DatasetService{db: db, bus: bus}
}

func (s *DatasetService) Create(ctx context.Context, in CreateDatasetInput) (*Dataset, error) {
	if in.WorkspaceID == "" || in.Name == "" {
		return nil, fmt.Errorf("create dataset: workspace_id and name are required")
	}

	d := &Dataset{
		ID:          uuid.NewV7().String(),
		WorkspaceID: in.WorkspaceID,
		Name:        in.Name,
		YMLContent:  in.YMLContent,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if in.DatabaseName != "" {
		d.DatabaseName = &in.DatabaseName
	}
	if in.SchemaName != "" {
		d.SchemaName = &in.SchemaName
	}
	if in.Description != "" {
		d.Description = &in.Description
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dataset (id, workspace_id, name, database_name, schema_name, description, yml_content, search_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.WorkspaceID, d.Name, d.DatabaseName, d.SchemaName, d.Description, d.YMLContent, SearchText(d.Name, in.Description, d.YMLContent),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicCatalogChanged, eventbus.CatalogChange{
			WorkspaceID: d.WorkspaceID,
			EntityType:  "dataset",
			EntityID:    d.ID,
		})
	}
	return d, nil
}

// Get fetches a dataset by id within a workspace.
func (s *DatasetService) Get(ctx context.Context, workspaceID, id string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, database_name, schema_name, description, yml_content, created_at, updated_at
		FROM dataset
		WHERE workspace_id = ? AND id = ?
	`, workspaceID, id)

	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDatasetNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Search matches datasets against the input's terms. Every query, topic,
// and value term is tokenized; a dataset scores one point per distinct
// token found in its search text. Results are ordered by score (desc),
// then name, and capped at limit (0 means default 20).
func (s *DatasetService) Search(ctx context.Context, workspaceID string, in DatasetSearchInput, limit int) ([]DatasetMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	tokens := searchTokens(in)
	if len(tokens) == 0 {
		return []DatasetMatch{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, database_name, schema_name, description, yml_content, search_text, created_at, updated_at
		FROM dataset
		WHERE workspace_id = ?
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("search datasets: %w", err)
	}
	defer rows.Close()

	matches := make([]DatasetMatch, 0)
	for rows.Next() {
		var (
			d            Dataset
			databaseName sql.NullString
			schemaName   sql.NullString
			description  sql.NullString
			ymlContent   sql.NullString
			searchText   string
			createdAt    string
			updatedAt    string
		)
		if scanErr := rows.Scan(&d.ID, &d.WorkspaceID, &d.Name, &databaseName, &schemaName, &description, &ymlContent, &searchText, &createdAt, &updatedAt); scanErr != nil {
			return nil, scanErr
		}
		if databaseName.Valid {
			d.DatabaseName = &databaseName.String
		}
		if schemaName.Valid {
			d.SchemaName = &schemaName.String
		}
		if description.Valid {
			d.Description = &description.String
		}
		d.YMLContent = ymlContent.String
		d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

		score := 0
		for _, tok := range tokens {
			if strings.Contains(searchText, tok) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, DatasetMatch{Dataset: d, Score: score})
		}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Dataset.Name < matches[j].Dataset.Name
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// RefreshSearchText recomputes the denormalized search column for every
// dataset in a workspace. The cron refresher calls this after catalog
// changes so searches stay consistent with edited yml content.
func (s *DatasetService) RefreshSearchText(ctx context.Context, workspaceID string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, yml_content
		FROM dataset
		WHERE workspace_id = ?
	`, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("refresh search text: %w", err)
	}
	defer rows.Close()

	type rec struct {
		id, name, yml string
		description   sql.NullString
	}
	recs := make([]rec, 0)
	for rows.Next() {
		var r rec
		if scanErr := rows.Scan(&r.id, &r.name, &r.description, &r.yml); scanErr != nil {
			return 0, scanErr
		}
		recs = append(recs, r)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return 0, rowsErr
	}

	updated := 0
	for _, r := range recs {
		_, execErr := s.db.ExecContext(ctx, `
			UPDATE dataset SET search_text = ? WHERE id = ?
		`, SearchText(r.name, r.description.String, r.yml), r.id)
		if execErr != nil {
			return updated, fmt.Errorf("refresh search text: %w", execErr)
		}
		updated++
	}
	return updated, nil
}

// SearchText builds the lowercase haystack a dataset is matched against.
func SearchText(parts ...string) string {
	return strings.ToLower(strings.Join(parts, "\n"))
}

func searchTokens(in DatasetSearchInput) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	add := func(phrases []string) {
		for _, phrase := range phrases {
			for _, tok := range strings.Fields(strings.ToLower(phrase)) {
				if len(tok) < 3 {
					continue
				}
				if _, ok := seen[tok]; ok {
					continue
				}
				seen[tok] = struct{}{}
				tokens = append(tokens, tok)
			}
		}
	}
	add(in.SpecificQueries)
	add(in.ExploratoryTopics)
	add(in.ValueSearchTerms)
	return tokens
}

func scanDataset(scan rowScanner) (*Dataset, error) {
	var (
		d            Dataset
		databaseName sql.NullString
		schemaName   sql.NullString
		description  sql.NullString
		ymlContent   sql.NullString
		createdAt    string
		updatedAt    string
	)

	if err := scan.Scan(&d.ID, &d.WorkspaceID, &d.Name, &databaseName, &schemaName, &description, &ymlContent, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if databaseName.Valid {
		d.DatabaseName = &databaseName.String
	}
	if schemaName.Valid {
		d.SchemaName = &schemaName.String
	}
	if description.Valid {
		d.Description = &description.String
	}
	d.YMLContent = ymlContent.String
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &d, nil
}
