package tool

import (
	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

// Built-in capability names. These are the operations the copilot ships
// with; deployments may register additional capabilities before Seal.
const (
	BuiltinSearchDataCatalog = "search_data_catalog"
	BuiltinLookupMetric      = "lookup_metric"
	BuiltinListMetrics       = "list_metrics"
	BuiltinListDashboards    = "list_dashboards"
	BuiltinGetDashboard      = "get_dashboard"
	BuiltinCreateAnnotation  = "create_annotation"
	BuiltinAskFollowup       = "ask_followup"
)

// BuiltinServices bundles the catalog services the built-in capabilities
// execute against.
type BuiltinServices struct {
	Metrics     *catalog.MetricService
	Dashboards  *catalog.DashboardService
	Datasets    *catalog.DatasetService
	Annotations *catalog.AnnotationService
}

// RegisterBuiltins registers every built-in capability on the registry.
// The caller seals the registry afterwards.
func RegisterBuiltins(registry *Registry, services BuiltinServices) error {
	caps := []Capability{
		NewSearchDataCatalogCapability(services.Datasets),
		NewLookupMetricCapability(services.Metrics),
		NewListMetricsCapability(services.Metrics),
		NewListDashboardsCapability(services.Dashboards),
		NewGetDashboardCapability(services.Dashboards),
		NewCreateAnnotationCapability(services.Annotations),
		NewAskFollowupCapability(),
	}
	for _, c := range caps {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
