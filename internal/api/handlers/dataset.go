package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
)

// DatasetHandler handles dataset and catalog search HTTP requests.
type DatasetHandler struct {
	datasets *catalog.DatasetService
}

func NewDatasetHandler(datasets *catalog.DatasetService) *DatasetHandler {
	return &DatasetHandler{datasets: datasets}
}

// CreateDatasetRequest is the request body for POST /api/v1/datasets.
type CreateDatasetRequest struct {
	Name         string `json:"name"`
	DatabaseName string `json:"databaseName,omitempty"`
	SchemaName   string `json:"schemaName,omitempty"`
	Description  string `json:"description,omitempty"`
	YMLContent   string `json:"ymlContent,omitempty"`
}

// SearchCatalogRequest is the request body for POST /api/v1/catalog/search.
type SearchCatalogRequest struct {
	SpecificQueries   []string `json:"specific_queries,omitempty"`
	ExploratoryTopics []string `json:"exploratory_topics,omitempty"`
	ValueSearchTerms  []string `json:"value_search_terms,omitempty"`
	Limit             int      `json:"limit,omitempty"`
}

// CreateDataset handles POST /api/v1/datasets.
func (h *DatasetHandler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	d, err := h.datasets.Create(r.Context(), catalog.CreateDatasetInput{
		WorkspaceID:  wsID,
		Name:         req.Name,
		DatabaseName: req.DatabaseName,
		SchemaName:   req.SchemaName,
		Description:  req.Description,
		YMLContent:   req.YMLContent,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create dataset")
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// GetDataset handles GET /api/v1/datasets/{id}.
func (h *DatasetHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	d, err := h.datasets.Get(r.Context(), wsID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrDatasetNotFound) {
			writeError(w, http.StatusNotFound, "dataset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get dataset")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// SearchCatalog handles POST /api/v1/catalog/search.
func (h *DatasetHandler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	var req SearchCatalogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.SpecificQueries) == 0 && len(req.ExploratoryTopics) == 0 && len(req.ValueSearchTerms) == 0 {
		writeError(w, http.StatusBadRequest, "at least one search input is required")
		return
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPaginationLimit {
		limit = defaultPaginationLimit
	}

	matches, err := h.datasets.Search(r.Context(), wsID, catalog.DatasetSearchInput{
		SpecificQueries:   req.SpecificQueries,
		ExploratoryTopics: req.ExploratoryTopics,
		ValueSearchTerms:  req.ValueSearchTerms,
	}, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search catalog")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}
