package handlers

import (
	"context"
	"net/http"

	domainaudit "github.com/jaykumar-cb/buster/internal/domain/audit"
)

// AuditService reads the workspace audit trail.
type AuditService interface {
	ListByWorkspace(ctx context.Context, workspaceID string, limit, offset int) ([]*domainaudit.Event, int, error)
}

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	audit AuditService
}

func NewAuditHandler(audit AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// ListEvents handles GET /api/v1/audit.
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing workspace context")
		return
	}

	page := parsePaginationParams(r)
	events, total, err := h.audit.ListByWorkspace(r.Context(), wsID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}
