package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

// AnnotationHandler handles annotation HTTP requests.
type AnnotationHandler struct {
	annotations *catalog.AnnotationService
	metrics     *catalog.MetricService
}

func NewAnnotationHandler(annotations *catalog.AnnotationService, metrics *catalog.MetricService) *AnnotationHandler {
	return &AnnotationHandler{annotations: annotations, metrics: metrics}
}

// CreateAnnotationRequest is the request body for POST /api/v1/annotations.
type CreateAnnotationRequest struct {
	MetricID string `json:"metricId"`
	Body     string `json:"body"`
}

// CreateAnnotation handles POST /api/v1/annotations.
func (h *AnnotationHandler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}
	userID, err := getUserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req CreateAnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MetricID == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "metricId and body are required")
		return
	}

	a, err := h.annotations.Create(r.Context(), catalog.CreateAnnotationInput{
		WorkspaceID: wsID,
		MetricID:    req.MetricID,
		AuthorID:    userID,
		Body:        req.Body,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrMetricNotFound) {
			writeError(w, http.StatusNotFound, "metric not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create annotation")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// ListForMetric handles GET /api/v1/metrics/{name}/annotations. The
// metric is resolved by name within the caller's workspace.
func (h *AnnotationHandler) ListForMetric(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	metricID, err := h.metrics.ResolveID(r.Context(), wsID, chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, catalog.ErrMetricNotFound) {
			writeError(w, http.StatusNotFound, "metric not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list annotations")
		return
	}

	annotations, err := h.annotations.ListForMetric(r.Context(), wsID, metricID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list annotations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"annotations": annotations,
		"count":       len(annotations),
	})
}
