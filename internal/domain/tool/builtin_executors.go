package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

var ErrBuiltinExecutionFailed = errors.New("builtin capability execution failed")

// SearchDataCatalogCapability finds datasets relevant to a question. The
// result carries each dataset's full yml definition so the model can reason
// about dimensions and measures without a second round trip.
type SearchDataCatalogCapability struct {
	datasets *catalog.DatasetService
}

func NewSearchDataCatalogCapability(datasets *catalog.DatasetService) *SearchDataCatalogCapability {
	return &SearchDataCatalogCapability{datasets: datasets}
}

func (c *SearchDataCatalogCapability) Name() string { return BuiltinSearchDataCatalog }

func (c *SearchDataCatalogCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinSearchDataCatalog,
		Description: "Search the data catalog for datasets relevant to the user's question. Provide specific queries, broader exploratory topics, or concrete values to search for.",
		Kind:        KindRead,
		InputSchema: json.RawMessage(`{"type":"object","properties":{"specific_queries":{"type":"array","items":{"type":"string"},"description":"Full natural-language questions the user wants answered"},"exploratory_topics":{"type":"array","items":{"type":"string"},"description":"Broader topics to explore when the user's intent is vague"},"value_search_terms":{"type":"array","items":{"type":"string"},"description":"Concrete values (names, categories, ids) expected to appear in the data"},"limit":{"type":"integer","minimum":1,"maximum":50,"description":"Maximum number of datasets to return"}},"additionalProperties":false}`),
	}
}

type searchDataCatalogArgs struct {
	SpecificQueries   []string `json:"specific_queries"`
	ExploratoryTopics []string `json:"exploratory_topics"`
	ValueSearchTerms  []string `json:"value_search_terms"`
	Limit             int      `json:"limit"`
}

func (c *SearchDataCatalogCapability) Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.datasets == nil {
		return nil, fmt.Errorf("%w: dataset service not configured", ErrBuiltinExecutionFailed)
	}

	var in searchDataCatalogArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments", ErrBuiltinExecutionFailed)
	}

	matches, err := c.datasets.Search(ctx, ec.WorkspaceID, catalog.DatasetSearchInput{
		SpecificQueries:   in.SpecificQueries,
		ExploratoryTopics: in.ExploratoryTopics,
		ValueSearchTerms:  in.ValueSearchTerms,
	}, in.Limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search datasets: %v", ErrBuiltinExecutionFailed, err)
	}

	type datasetResult struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		YMLContent  string `json:"yml_content"`
		Score       int    `json:"score"`
	}
	results := make([]datasetResult, 0, len(matches))
	for _, m := range matches {
		r := datasetResult{
			ID:         m.Dataset.ID,
			Name:       m.Dataset.Name,
			YMLContent: m.Dataset.YMLContent,
			Score:      m.Score,
		}
		if m.Dataset.Description != nil {
			r.Description = *m.Dataset.Description
		}
		results = append(results, r)
	}

	return json.Marshal(map[string]any{
		"datasets": results,
		"count":    len(results),
	})
}

// LookupMetricCapability fetches a metric by name with its recent points.
type LookupMetricCapability struct {
	metrics *catalog.MetricService
}

func NewLookupMetricCapability(metrics *catalog.MetricService) *LookupMetricCapability {
	return &LookupMetricCapability{metrics: metrics}
}

func (c *LookupMetricCapability) Name() string { return BuiltinLookupMetric }

func (c *LookupMetricCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinLookupMetric,
		Description: "Fetch a metric by name, including its most recent recorded values.",
		Kind:        KindRead,
		InputSchema: json.RawMessage(`{"type":"object","required":["name"],"properties":{"name":{"type":"string","description":"Exact metric name"},"point_limit":{"type":"integer","minimum":1,"maximum":365,"description":"How many recent points to include"}},"additionalProperties":false}`),
	}
}

type lookupMetricArgs struct {
	Name       string `json:"name"`
	PointLimit int    `json:"point_limit"`
}

func (c *LookupMetricCapability) Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.metrics == nil {
		return nil, fmt.Errorf("%w: metric service not configured", ErrBuiltinExecutionFailed)
	}

	var in lookupMetricArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments", ErrBuiltinExecutionFailed)
	}

	out, err := c.metrics.Lookup(ctx, ec.WorkspaceID, in.Name, in.PointLimit)
	if errors.Is(err, catalog.ErrMetricNotFound) {
		return nil, fmt.Errorf("%w: no metric named %q", ErrBuiltinExecutionFailed, in.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lookup metric: %v", ErrBuiltinExecutionFailed, err)
	}
	return json.Marshal(out)
}

// ListMetricsCapability lists every metric in the workspace.
type ListMetricsCapability struct {
	metrics *catalog.MetricService
}

func NewListMetricsCapability(metrics *catalog.MetricService) *ListMetricsCapability {
	return &ListMetricsCapability{metrics: metrics}
}

func (c *ListMetricsCapability) Name() string { return BuiltinListMetrics }

func (c *ListMetricsCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinListMetrics,
		Description: "List all metrics tracked in the workspace with their latest values.",
		Kind:        KindRead,
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
	}
}

func (c *ListMetricsCapability) Execute(ctx context.Context, _ json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.metrics == nil {
		return nil, fmt.Errorf("%w: metric service not configured", ErrBuiltinExecutionFailed)
	}
	metrics, err := c.metrics.List(ctx, ec.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: list metrics: %v", ErrBuiltinExecutionFailed, err)
	}
	return json.Marshal(map[string]any{
		"metrics": metrics,
		"count":   len(metrics),
	})
}

// ListDashboardsCapability lists every dashboard in the workspace.
type ListDashboardsCapability struct {
	dashboards *catalog.DashboardService
}

func NewListDashboardsCapability(dashboards *catalog.DashboardService) *ListDashboardsCapability {
	return &ListDashboardsCapability{dashboards: dashboards}
}

func (c *ListDashboardsCapability) Name() string { return BuiltinListDashboards }

func (c *ListDashboardsCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinListDashboards,
		Description: "List all dashboards in the workspace.",
		Kind:        KindRead,
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`),
	}
}

func (c *ListDashboardsCapability) Execute(ctx context.Context, _ json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.dashboards == nil {
		return nil, fmt.Errorf("%w: dashboard service not configured", ErrBuiltinExecutionFailed)
	}
	dashboards, err := c.dashboards.List(ctx, ec.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("%w: list dashboards: %v", ErrBuiltinExecutionFailed, err)
	}
	return json.Marshal(map[string]any{
		"dashboards": dashboards,
		"count":      len(dashboards),
	})
}

// GetDashboardCapability fetches one dashboard by id.
type GetDashboardCapability struct {
	dashboards *catalog.DashboardService
}

func NewGetDashboardCapability(dashboards *catalog.DashboardService) *GetDashboardCapability {
	return &GetDashboardCapability{dashboards: dashboards}
}

func (c *GetDashboardCapability) Name() string { return BuiltinGetDashboard }

func (c *GetDashboardCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinGetDashboard,
		Description: "Fetch a dashboard by id, including the metrics it contains.",
		Kind:        KindRead,
		InputSchema: json.RawMessage(`{"type":"object","required":["dashboard_id"],"properties":{"dashboard_id":{"type":"string"}},"additionalProperties":false}`),
	}
}

type getDashboardArgs struct {
	DashboardID string `json:"dashboard_id"`
}

func (c *GetDashboardCapability) Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.dashboards == nil {
		return nil, fmt.Errorf("%w: dashboard service not configured", ErrBuiltinExecutionFailed)
	}

	var in getDashboardArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments", ErrBuiltinExecutionFailed)
	}

	d, err := c.dashboards.Get(ctx, ec.WorkspaceID, in.DashboardID)
	if errors.Is(err, catalog.ErrDashboardNotFound) {
		return nil, fmt.Errorf("%w: no dashboard with id %q", ErrBuiltinExecutionFailed, in.DashboardID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get dashboard: %v", ErrBuiltinExecutionFailed, err)
	}
	return json.Marshal(d)
}

// CreateAnnotationCapability attaches a note to a metric on the user's behalf.
type CreateAnnotationCapability struct {
	annotations *catalog.AnnotationService
}

func NewCreateAnnotationCapability(annotations *catalog.AnnotationService) *CreateAnnotationCapability {
	return &CreateAnnotationCapability{annotations: annotations}
}

func (c *CreateAnnotationCapability) Name() string { return BuiltinCreateAnnotation }

func (c *CreateAnnotationCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinCreateAnnotation,
		Description: "Attach an annotation to a metric, e.g. to record the cause of an anomaly.",
		Kind:        KindWrite,
		InputSchema: json.RawMessage(`{"type":"object","required":["metric_id","body"],"properties":{"metric_id":{"type":"string"},"body":{"type":"string","description":"The annotation text"}},"additionalProperties":false}`),
	}
}

type createAnnotationArgs struct {
	MetricID string `json:"metric_id"`
	Body     string `json:"body"`
}

func (c *CreateAnnotationCapability) Execute(ctx context.Context, args json.RawMessage, ec *ExecContext) (json.RawMessage, error) {
	if c.annotations == nil {
		return nil, fmt.Errorf("%w: annotation service not configured", ErrBuiltinExecutionFailed)
	}

	var in createAnnotationArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments", ErrBuiltinExecutionFailed)
	}

	a, err := c.annotations.Create(ctx, catalog.CreateAnnotationInput{
		WorkspaceID: ec.WorkspaceID,
		MetricID:    in.MetricID,
		AuthorID:    ec.UserID,
		Body:        in.Body,
	})
	if errors.Is(err, catalog.ErrMetricNotFound) {
		return nil, fmt.Errorf("%w: no metric with id %q", ErrBuiltinExecutionFailed, in.MetricID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create annotation: %v", ErrBuiltinExecutionFailed, err)
	}
	return json.Marshal(map[string]any{
		"annotation_id": a.ID,
		"created_at":    a.CreatedAt,
	})
}

// AskFollowupCapability lets the model ask the user a clarifying question.
// It performs no work itself: the payload is surfaced to the client, which
// renders the question and feeds the answer back as the next user message.
type AskFollowupCapability struct{}

func NewAskFollowupCapability() *AskFollowupCapability {
	return &AskFollowupCapability{}
}

func (c *AskFollowupCapability) Name() string { return BuiltinAskFollowup }

func (c *AskFollowupCapability) Descriptor() Descriptor {
	return Descriptor{
		Name:        BuiltinAskFollowup,
		Description: "Ask the user a clarifying question when their request is ambiguous. Optionally offer answer choices.",
		Kind:        KindUserInteraction,
		InputSchema: json.RawMessage(`{"type":"object","required":["question"],"properties":{"question":{"type":"string"},"options":{"type":"array","items":{"type":"string"},"description":"Suggested answers the user can pick from"}},"additionalProperties":false}`),
	}
}

type askFollowupArgs struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

func (c *AskFollowupCapability) Execute(_ context.Context, args json.RawMessage, _ *ExecContext) (json.RawMessage, error) {
	var in askFollowupArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid arguments", ErrBuiltinExecutionFailed)
	}
	if in.Options == nil {
		in.Options = []string{}
	}
	return json.Marshal(map[string]any{
		"question":       in.Question,
		"options":        in.Options,
		"awaiting_input": true,
	})
}
