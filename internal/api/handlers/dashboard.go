package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

// DashboardHandler handles dashboard HTTP requests.
type DashboardHandler struct {
	dashboards *catalog.DashboardService
}

func NewDashboardHandler(dashboards *catalog.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// CreateDashboardRequest is the request body for POST /api/v1/dashboards.
type CreateDashboardRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	MetricIDs   []string `json:"metricIds,omitempty"`
}

// CreateDashboard handles POST /api/v1/dashboards.
func (h *DashboardHandler) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	var req CreateDashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	d, err := h.dashboards.Create(r.Context(), catalog.CreateDashboardInput{
		WorkspaceID: wsID,
		Name:        req.Name,
		Description: req.Description,
		MetricIDs:   req.MetricIDs,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create dashboard")
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// ListDashboards handles GET /api/v1/dashboards.
func (h *DashboardHandler) ListDashboards(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	dashboards, err := h.dashboards.List(r.Context(), wsID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dashboards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dashboards": dashboards,
		"count":      len(dashboards),
	})
}

// GetDashboard handles GET /api/v1/dashboards/{id}.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	d, err := h.dashboards.Get(r.Context(), wsID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrDashboardNotFound) {
			writeError(w, http.StatusNotFound, "dashboard not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get dashboard")
		return
	}

	writeJSON(w, http.StatusOK, d)
}
