// Route registration and go-chi router setup.
// Public routes (/health, /auth/*) need no token; /api/v1/* requires a JWT.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jaykumar-cb/buster/internal/api/handlers"
	apmiddleware "github.com/jaykumar-cb/buster/internal/api/middleware"
	domainaudit "github.com/jaykumar-cb/buster/internal/domain/audit"
	domainauth "github.com/jaykumar-cb/buster/internal/domain/auth"
	"github.com/jaykumar-cb/buster/internal/domain/catalog"
	copilotdomain "github.com/jaykumar-cb/buster/internal/domain/copilot"
	tooldomain "github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/domain/turn"
	"github.com/jaykumar-cb/buster/internal/infra/config"
	"github.com/jaykumar-cb/buster/internal/infra/eventbus"
	"github.com/jaykumar-cb/buster/internal/infra/llm"
	"github.com/jaykumar-cb/buster/internal/infra/logging"
)

// Services bundles the long-lived domain services the router wires up.
// The caller keeps a reference for lifecycle concerns (the event bus,
// the capability registry exported to the MCP server, the refresher).
type Services struct {
	Bus      *eventbus.Bus
	Registry *tooldomain.Registry
	Metrics  *catalog.MetricService
	Datasets *catalog.DatasetService
}

// NewRouter creates a chi router with all routes wired to the given DB
// and configuration.
func NewRouter(db *sql.DB, cfg config.Config) (*chi.Mux, *Services, error) {
	r := chi.NewRouter()
	auditService := domainaudit.NewService(db)

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check, used by load balancers and probes.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(domainauth.NewService(db, auditService))
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	// ===== SHARED SERVICES =====

	bus := eventbus.New()
	metricSvc := catalog.NewMetricService(db)
	dashboardSvc := catalog.NewDashboardService(db)
	datasetSvc := catalog.NewDatasetService(db, bus)
	annotationSvc := catalog.NewAnnotationService(db, bus)

	registry := tooldomain.NewRegistry()
	if err := tooldomain.RegisterBuiltins(registry, tooldomain.BuiltinServices{
		Metrics:     metricSvc,
		Dashboards:  dashboardSvc,
		Datasets:    datasetSvc,
		Annotations: annotationSvc,
	}); err != nil {
		return nil, nil, err
	}
	registry.Seal()

	llmRouter := llm.NewRouter(map[string]llm.Provider{
		"ollama": llm.NewOllamaProvider(cfg.LLM.BaseURL, cfg.LLM.ChatModel),
	}, cfg.LLM.Provider)

	dispatcher := turn.NewDispatcher(registry, cfg.Tools.MaxConcurrency, cfg.Tools.CallTimeout.Std(), logging.Named("dispatcher"))
	chatSvc := copilotdomain.NewChatService(llmRouter, dispatcher, registry, auditService, bus, cfg.Tools.MaxTurnSteps, logging.Named("copilot"))
	suggestSvc := copilotdomain.NewSuggestService(llmRouter, metricSvc, dashboardSvc, auditService)

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apmiddleware.AuthMiddleware)
		r.Use(apmiddleware.AuditMiddleware(auditService))

		metricHandler := handlers.NewMetricHandler(metricSvc)
		annotationHandler := handlers.NewAnnotationHandler(annotationSvc, metricSvc)
		r.Route("/metrics", func(r chi.Router) {
			r.Post("/", metricHandler.CreateMetric)                       // POST /api/v1/metrics
			r.Get("/", metricHandler.ListMetrics)                         // GET /api/v1/metrics
			r.Get("/{name}", metricHandler.LookupMetric)                  // GET /api/v1/metrics/{name}
			r.Post("/{name}/points", metricHandler.RecordPoint)           // POST /api/v1/metrics/{name}/points
			r.Get("/{name}/annotations", annotationHandler.ListForMetric) // GET /api/v1/metrics/{name}/annotations
		})

		dashboardHandler := handlers.NewDashboardHandler(dashboardSvc)
		r.Route("/dashboards", func(r chi.Router) {
			r.Post("/", dashboardHandler.CreateDashboard)
			r.Get("/", dashboardHandler.ListDashboards)
			r.Get("/{id}", dashboardHandler.GetDashboard)
		})

		datasetHandler := handlers.NewDatasetHandler(datasetSvc)
		r.Route("/datasets", func(r chi.Router) {
			r.Post("/", datasetHandler.CreateDataset)
			r.Get("/{id}", datasetHandler.GetDataset)
		})
		r.Post("/catalog/search", datasetHandler.SearchCatalog) // POST /api/v1/catalog/search

		r.Post("/annotations", annotationHandler.CreateAnnotation) // POST /api/v1/annotations

		toolHandler := handlers.NewToolHandler(registry)
		r.Get("/tools", toolHandler.ListTools) // GET /api/v1/tools

		chatHandler := handlers.NewChatHandler(chatSvc, suggestSvc)
		r.Route("/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Chat)                       // POST /api/v1/chat (SSE)
			r.Get("/suggestions", chatHandler.SuggestQuestions) // GET /api/v1/chat/suggestions
		})

		auditHandler := handlers.NewAuditHandler(auditService)
		r.Get("/audit", auditHandler.ListEvents) // GET /api/v1/audit
	})

	services := &Services{
		Bus:      bus,
		Registry: registry,
		Metrics:  metricSvc,
		Datasets: datasetSvc,
	}
	return r, services, nil
}
