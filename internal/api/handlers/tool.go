package handlers

import (
	"net/http"

	"github.com/jaykumar-cb/buster/internal/domain/tool"
)

// ToolHandler exposes the capability registry over HTTP.
type ToolHandler struct {
	registry *tool.Registry
}

func NewToolHandler(registry *tool.Registry) *ToolHandler {
	return &ToolHandler{registry: registry}
}

// ListTools handles GET /api/v1/tools.
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	descriptors := h.registry.Descriptors()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": descriptors,
		"count": len(descriptors),
	})
}
