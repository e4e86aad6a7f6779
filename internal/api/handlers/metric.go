// HTTP handlers for workspace metrics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

// MetricHandler handles metric HTTP requests.
type MetricHandler struct {
	metrics *catalog.MetricService
}

func NewMetricHandler(metrics *catalog.MetricService) *MetricHandler {
	return &MetricHandler{metrics: metrics}
}

// CreateMetricRequest is the request body for POST /api/v1/metrics.
type CreateMetricRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// RecordPointRequest is the request body for POST /api/v1/metrics/{id}/points.
type RecordPointRequest struct {
	RecordedAt time.Time `json:"recordedAt"`
	Value      float64   `json:"value"`
}

// CreateMetric handles POST /api/v1/metrics.
func (h *MetricHandler) CreateMetric(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	var req CreateMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	m, err := h.metrics.Create(r.Context(), catalog.CreateMetricInput{
		WorkspaceID: wsID,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create metric")
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

// ListMetrics handles GET /api/v1/metrics.
func (h *MetricHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	metrics, err := h.metrics.List(r.Context(), wsID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list metrics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": metrics,
		"count":   len(metrics),
	})
}

// LookupMetric handles GET /api/v1/metrics/{name}.
// The optional "points" query parameter caps how many recent points return.
func (h *MetricHandler) LookupMetric(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	name := chi.URLParam(r, "name")
	pointLimit := 0
	if n, convErr := strconv.Atoi(r.URL.Query().Get("points")); convErr == nil && n > 0 {
		pointLimit = n
	}

	out, err := h.metrics.Lookup(r.Context(), wsID, name, pointLimit)
	if err != nil {
		if errors.Is(err, catalog.ErrMetricNotFound) {
			writeError(w, http.StatusNotFound, "metric not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up metric")
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// RecordPoint handles POST /api/v1/metrics/{name}/points. The metric is
// resolved by name within the caller's workspace before the write.
func (h *MetricHandler) RecordPoint(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	var req RecordPointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecordedAt.IsZero() {
		req.RecordedAt = time.Now().UTC()
	}

	metricID, err := h.metrics.ResolveID(r.Context(), wsID, chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, catalog.ErrMetricNotFound) {
			writeError(w, http.StatusNotFound, "metric not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record point")
		return
	}

	p, err := h.metrics.RecordPoint(r.Context(), metricID, req.RecordedAt, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record point")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}
