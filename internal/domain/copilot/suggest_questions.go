package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jaykumar-cb/buster/internal/domain/audit"
	"github.com/jaykumar-cb/buster/internal/domain/catalog"
	"github.com/jaykumar-cb/buster/internal/domain/tool"
	"github.com/jaykumar-cb/buster/internal/infra/llm"
)

var (
	errSuggestionsParseFail = errors.New("could not parse suggested questions")
	jsonFenceRe             = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// Suggestions only ever point at read capabilities.
var allowedSuggestionTools = map[string]struct{}{
	tool.BuiltinLookupMetric:      {},
	tool.BuiltinSearchDataCatalog: {},
	tool.BuiltinGetDashboard:      {},
	tool.BuiltinListDashboards:    {},
}

// SuggestedQuestion is one question the copilot proposes to the user, with
// the capability that would answer it.
type SuggestedQuestion struct {
	Question   string         `json:"question"`
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params"`
}

// SuggestQuestionsInput identifies the workspace to suggest for.
type SuggestQuestionsInput struct {
	WorkspaceID string
	UserID      string
}

// SuggestService proposes starter questions from the workspace's catalog.
type SuggestService struct {
	provider   chatProvider
	metrics    *catalog.MetricService
	dashboards *catalog.DashboardService
	audit      auditLogger
}

func NewSuggestService(provider chatProvider, metrics *catalog.MetricService, dashboards *catalog.DashboardService, auditSvc auditLogger) *SuggestService {
	return &SuggestService{provider: provider, metrics: metrics, dashboards: dashboards, audit: auditSvc}
}

// SuggestQuestions returns up to three analytics questions grounded in the
// workspace's metrics and dashboards.
func (s *SuggestService) SuggestQuestions(ctx context.Context, in SuggestQuestionsInput) ([]SuggestedQuestion, error) {
	metrics, err := s.metrics.List(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}
	dashboards, err := s.dashboards.List(ctx, in.WorkspaceID)
	if err != nil {
		return nil, err
	}

	prompt := buildSuggestPrompt(metrics, dashboards)
	resp, err := s.provider.ChatCompletion(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are Buster, an analytics copilot. Return only valid JSON."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   600,
	})
	if err != nil {
		return nil, err
	}

	questions, err := parseSuggestedQuestions(resp.Content)
	if err != nil {
		return nil, err
	}
	questions = dedupeQuestions(questions, 3)
	if len(questions) == 0 {
		return nil, errSuggestionsParseFail
	}

	if s.audit != nil {
		_ = s.audit.LogAction(ctx, in.WorkspaceID, in.UserID, audit.ActorTypeAgent, "copilot.suggest_questions", map[string]any{
			"generated": len(questions),
		}, audit.OutcomeSuccess)
	}

	return questions, nil
}

func buildSuggestPrompt(metrics []*catalog.Metric, dashboards []*catalog.Dashboard) string {
	b := strings.Builder{}
	b.WriteString("Workspace metrics:\n")
	for _, m := range metrics {
		b.WriteString("- ")
		b.WriteString(m.Name)
		if m.Unit != nil {
			b.WriteString(" (")
			b.WriteString(*m.Unit)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("Dashboards:\n")
	for _, d := range dashboards {
		b.WriteString("- ")
		b.WriteString(d.Name)
		b.WriteString("\n")
	}
	b.WriteString("\nTask: Suggest exactly 3 analytics questions a user of this workspace might ask next.")
	b.WriteString("\nRespond ONLY with JSON in this format:")
	b.WriteString(` {"questions":[{"question":"...","capability":"lookup_metric|search_data_catalog|get_dashboard|list_dashboards","params":{}}]}`)
	return b.String()
}

// parseSuggestedQuestions is deliberately forgiving: models wrap JSON in
// prose or code fences, so every plausible candidate substring is tried.
func parseSuggestedQuestions(raw string) ([]SuggestedQuestion, error) {
	for _, candidate := range extractJSONCandidates(raw) {
		questions, err := decodeSuggestedQuestions(candidate)
		if err == nil && len(questions) > 0 {
			return questions, nil
		}
	}
	return nil, errSuggestionsParseFail
}

func extractJSONCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	candidates := make([]string, 0, 4)
	if trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	for _, match := range jsonFenceRe.FindAllStringSubmatch(trimmed, -1) {
		if len(match) > 1 && strings.TrimSpace(match[1]) != "" {
			candidates = append(candidates, strings.TrimSpace(match[1]))
		}
	}
	candidates = appendRangeCandidate(candidates, trimmed, "[", "]")
	candidates = appendRangeCandidate(candidates, trimmed, "{", "}")
	return dedupeStrings(candidates)
}

func appendRangeCandidate(candidates []string, input, open, shut string) []string {
	start, end := strings.Index(input, open), strings.LastIndex(input, shut)
	if start < 0 || end <= start {
		return candidates
	}
	return append(candidates, strings.TrimSpace(input[start:end+1]))
}

func decodeSuggestedQuestions(candidate string) ([]SuggestedQuestion, error) {
	var list []SuggestedQuestion
	if err := json.Unmarshal([]byte(candidate), &list); err == nil {
		return sanitizeQuestions(list), nil
	}

	var envelope struct {
		Questions []SuggestedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		return nil, err
	}
	return sanitizeQuestions(envelope.Questions), nil
}

func sanitizeQuestions(questions []SuggestedQuestion) []SuggestedQuestion {
	clean := make([]SuggestedQuestion, 0, len(questions))
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		q.Capability = strings.TrimSpace(q.Capability)
		if q.Question == "" || q.Capability == "" {
			continue
		}
		if _, ok := allowedSuggestionTools[q.Capability]; !ok {
			continue
		}
		if q.Params == nil {
			q.Params = map[string]any{}
		}
		clean = append(clean, q)
	}
	return clean
}

func dedupeQuestions(questions []SuggestedQuestion, max int) []SuggestedQuestion {
	out := make([]SuggestedQuestion, 0, max)
	seen := map[string]struct{}{}
	for _, q := range questions {
		if len(out) >= max {
			break
		}
		key := strings.ToLower(q.Question)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
