// HTTP audit middleware for protected routes.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jaykumar-cb/buster/internal/api/ctxkeys"
	domainaudit "github.com/jaykumar-cb/buster/internal/domain/audit"
)

// AuditLogger is the minimal contract used by AuditMiddleware.
// domainaudit.Service satisfies this interface.
type AuditLogger interface {
	Log(ctx context.Context, event *domainaudit.Event) error
}

// AuditMiddleware logs protected HTTP requests into audit_event.
// Expected order in router: AuthMiddleware -> AuditMiddleware -> handlers.
func AuditMiddleware(logger AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil {
				next.ServeHTTP(w, r)
				return
			}

			workspaceID, ok := getStringContext(r.Context(), ctxkeys.WorkspaceID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := getStringContext(r.Context(), ctxkeys.UserID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(recorder, r)

			action, entityType, entityID := actionFromRequest(r.Method, r.URL.Path)
			details, _ := json.Marshal(map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": recorder.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})

			event := &domainaudit.Event{
				WorkspaceID: workspaceID,
				ActorID:     userID,
				ActorType:   domainaudit.ActorTypeUser,
				Action:      action,
				EntityType:  entityType,
				EntityID:    entityID,
				Details:     details,
				Outcome:     outcomeFromStatus(recorder.statusCode),
			}
			if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
				event.TraceID = &reqID
			}
			_ = logger.Log(r.Context(), event)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush lets streaming handlers keep flushing through the recorder.
func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func getStringContext(ctx context.Context, key ctxkeys.Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func outcomeFromStatus(statusCode int) domainaudit.Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return domainaudit.OutcomeSuccess
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return domainaudit.OutcomeDenied
	default:
		return domainaudit.OutcomeError
	}
}

func actionFromRequest(method, path string) (string, *string, *string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "api" || segments[1] != "v1" {
		action := strings.ToLower(method) + "_request"
		return action, nil, nil
	}

	entityType := singularEntity(segments[2])
	if entityType == "" {
		action := strings.ToLower(method) + "_request"
		return action, nil, nil
	}

	if len(segments) == 3 {
		action := actionForCollection(method, entityType)
		return action, strPtr(entityType), nil
	}

	entityID := segments[3]
	action := actionForEntity(method, entityType)
	return action, strPtr(entityType), strPtr(entityID)
}

func singularEntity(entity string) string {
	entityMap := map[string]string{
		"metrics":     "metric",
		"dashboards":  "dashboard",
		"datasets":    "dataset",
		"catalog":     "catalog",
		"annotations": "annotation",
		"tools":       "tool",
		"chat":        "chat",
		"audit":       "audit_event",
	}

	if value, ok := entityMap[entity]; ok {
		return value
	}
	return ""
}

func actionForCollection(method, entity string) string {
	if method == http.MethodPost {
		return "create_" + entity
	}
	if method == http.MethodGet {
		return "list_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func actionForEntity(method, entity string) string {
	if method == http.MethodGet {
		return "get_" + entity
	}
	if method == http.MethodPut || method == http.MethodPatch {
		return "update_" + entity
	}
	if method == http.MethodDelete {
		return "delete_" + entity
	}
	if method == http.MethodPost {
		return "create_" + entity
	}
	return strings.ToLower(method) + "_" + entity
}

func strPtr(v string) *string {
	return &v
}
