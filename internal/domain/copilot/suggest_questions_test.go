package copilot

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/jaykumar-cb/buster/internal/domain/catalog"
	"github.com/jaykumar-cb/buster/internal/infra/llm"
	"github.com/jaykumar-cb/buster/internal/infra/sqlite"
)

const suggestWorkspaceID = "ws-suggest"

func suggestTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.NewDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.MigrateUp(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = db.Exec(`INSERT INTO workspace (id, name) VALUES (?, ?)`, suggestWorkspaceID, "Suggest Workspace")
	if err != nil {
		t.Fatalf("seed workspace: %v", err)
	}
	return db
}

func seedSuggestCatalog(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()

	metrics := catalog.NewMetricService(db)
	if _, err := metrics.Create(ctx, catalog.CreateMetricInput{
		WorkspaceID: suggestWorkspaceID,
		Name:        "monthly_revenue",
		Unit:        "USD",
	}); err != nil {
		t.Fatalf("seed metric: %v", err)
	}

	dashboards := catalog.NewDashboardService(db)
	if _, err := dashboards.Create(ctx, catalog.CreateDashboardInput{
		WorkspaceID: suggestWorkspaceID,
		Name:        "Sales Overview",
	}); err != nil {
		t.Fatalf("seed dashboard: %v", err)
	}
}

func TestSuggestQuestions(t *testing.T) {
	db := suggestTestDB(t)
	seedSuggestCatalog(t, db)

	provider := &scriptedProvider{responses: []*llm.ChatResponse{{Content: "Here you go:\n```json\n" +
		`{"questions":[` +
		`{"question":"How is monthly_revenue trending?","capability":"lookup_metric","params":{"name":"monthly_revenue"}},` +
		`{"question":"How is monthly_revenue trending?","capability":"lookup_metric","params":{"name":"monthly_revenue"}},` +
		`{"question":"Delete all annotations","capability":"create_annotation","params":{}},` +
		`{"question":"What does the Sales Overview show?","capability":"get_dashboard","params":{}}` +
		`]}` + "\n```"}}}

	auditLog := &recordedAudit{}
	svc := NewSuggestService(provider, catalog.NewMetricService(db), catalog.NewDashboardService(db), auditLog)

	questions, err := svc.SuggestQuestions(context.Background(), SuggestQuestionsInput{
		WorkspaceID: suggestWorkspaceID,
		UserID:      "user-1",
	})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}

	// Duplicate collapsed, write capability filtered out.
	if len(questions) != 2 {
		t.Fatalf("got %d questions: %+v", len(questions), questions)
	}
	if questions[0].Capability != "lookup_metric" || questions[1].Capability != "get_dashboard" {
		t.Errorf("capabilities = %q, %q", questions[0].Capability, questions[1].Capability)
	}
	if questions[0].Params["name"] != "monthly_revenue" {
		t.Errorf("params = %v", questions[0].Params)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("provider calls = %d", len(provider.requests))
	}
	prompt := provider.requests[0].Messages[1].Content
	if !strings.Contains(prompt, "monthly_revenue") || !strings.Contains(prompt, "Sales Overview") {
		t.Errorf("prompt missing catalog names:\n%s", prompt)
	}
	if !strings.Contains(prompt, "(USD)") {
		t.Errorf("prompt missing metric unit:\n%s", prompt)
	}

	if len(auditLog.actions) != 1 || auditLog.actions[0] != "copilot.suggest_questions" {
		t.Errorf("audit actions = %v", auditLog.actions)
	}
}

func TestSuggestQuestionsBareArray(t *testing.T) {
	db := suggestTestDB(t)
	seedSuggestCatalog(t, db)

	provider := &scriptedProvider{responses: []*llm.ChatResponse{{
		Content: `[{"question":"Search revenue datasets","capability":"search_data_catalog","params":{"specific_queries":["revenue"]}}]`,
	}}}
	svc := NewSuggestService(provider, catalog.NewMetricService(db), catalog.NewDashboardService(db), nil)

	questions, err := svc.SuggestQuestions(context.Background(), SuggestQuestionsInput{WorkspaceID: suggestWorkspaceID})
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if len(questions) != 1 || questions[0].Capability != "search_data_catalog" {
		t.Fatalf("questions = %+v", questions)
	}
}

func TestSuggestQuestionsUnparseable(t *testing.T) {
	db := suggestTestDB(t)
	seedSuggestCatalog(t, db)

	provider := &scriptedProvider{responses: []*llm.ChatResponse{{
		Content: "I would suggest looking at revenue, but I cannot produce JSON today.",
	}}}
	svc := NewSuggestService(provider, catalog.NewMetricService(db), catalog.NewDashboardService(db), nil)

	_, err := svc.SuggestQuestions(context.Background(), SuggestQuestionsInput{WorkspaceID: suggestWorkspaceID})
	if !errors.Is(err, errSuggestionsParseFail) {
		t.Fatalf("expected parse failure, got %v", err)
	}
}

func TestSuggestQuestionsProviderError(t *testing.T) {
	db := suggestTestDB(t)

	provider := &scriptedProvider{err: errors.New("model offline")}
	svc := NewSuggestService(provider, catalog.NewMetricService(db), catalog.NewDashboardService(db), nil)

	_, err := svc.SuggestQuestions(context.Background(), SuggestQuestionsInput{WorkspaceID: suggestWorkspaceID})
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestExtractJSONCandidates(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"fenced", "prose before\n```json\n{\"questions\":[]}\n```\nafter", `{"questions":[]}`},
		{"plain fence", "```\n[1,2]\n```", "[1,2]"},
		{"embedded object", `the answer is {"questions":[]} thanks`, `{"questions":[]}`},
		{"embedded array", `sure: [{"question":"x"}] done`, `[{"question":"x"}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidates := extractJSONCandidates(tc.input)
			found := false
			for _, c := range candidates {
				if c == tc.want {
					found = true
				}
			}
			if !found {
				t.Errorf("candidates %q missing %q", candidates, tc.want)
			}
		})
	}
}

func TestSanitizeQuestions(t *testing.T) {
	in := []SuggestedQuestion{
		{Question: "  padded  ", Capability: " lookup_metric "},
		{Question: "", Capability: "lookup_metric"},
		{Question: "no capability", Capability: ""},
		{Question: "write attempt", Capability: "create_annotation"},
	}
	out := sanitizeQuestions(in)
	if len(out) != 1 {
		t.Fatalf("sanitized = %+v", out)
	}
	if out[0].Question != "padded" || out[0].Capability != "lookup_metric" {
		t.Errorf("out[0] = %+v", out[0])
	}
	if out[0].Params == nil {
		t.Error("params not defaulted")
	}
}
