package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

type stubCompleter struct {
	reply string
	calls int
}

func (c *stubCompleter) Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error) {
	c.calls++
	return c.reply, nil
}

const testAnswer = `Quantization reduces model weight precision from 32-bit floats to
smaller integer representations, which shrinks memory footprint and speeds up
inference on commodity hardware. For a product team this means cheaper serving
and the option to run models on-device, at the cost of a small accuracy drop
that must be measured against the target quality bar before shipping anything
to real users in production environments.`

func newTestServer(t *testing.T, completer learn.Completer) (*Server, store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "learnloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	usage := llm.NewUsage("2026-03-10", cfg.LLM.GradeModel, cfg.LLM.BulkModel, cfg.LLM.FallbackRPD, nil)
	grader := learn.NewGrader(completer, usage, learn.GraderConfig{})
	return New(st, nil, grader, usage, cfg, zap.NewNop()), st
}

func seedTopic(t *testing.T, st store.Store, depth int) *learn.Topic {
	t.Helper()
	topic := &learn.Topic{
		ID:           "t-1",
		Name:         "Model Quantization",
		Category:     learn.CategoryMLEngineering,
		CurrentDepth: depth,
		Status:       learn.StatusActive,
		SourceURL:    "https://example.com/quantization",
		CreatedAt:    time.Now().UTC(),
		LastActive:   time.Now().UTC(),
	}
	if err := st.UpsertTopic(context.Background(), topic); err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	return topic
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{})
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingKey(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{})
	s.cfg.Server.APIKey = "secret"

	rec := httptest.NewRecorder()
	s.auth(s.handleTopics)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/topics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/topics", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.auth(s.handleTopics)(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d, want 200", rec.Code)
	}
}

func TestListTopicsFiltersByStatus(t *testing.T) {
	s, st := newTestServer(t, &stubCompleter{})
	seedTopic(t, st, 1)

	rec := httptest.NewRecorder()
	s.handleTopics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/topics?status=active", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	rec = httptest.NewRecorder()
	s.handleTopics(rec, httptest.NewRequest(http.MethodGet, "/api/v1/topics?status=completed", nil))
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 0 {
		t.Errorf("completed count = %d, want 0", body.Count)
	}
}

func TestGradeAdvancesAndPersists(t *testing.T) {
	completer := &stubCompleter{reply: `{"concept_clarity": 22, "technical_correctness": 21,
		"application_thinking": 20, "ai_pm_relevance": 22, "feedback": "Solid answer."}`}
	s, st := newTestServer(t, completer)
	seedTopic(t, st, 2)

	payload := `{"topic_id": "t-1", "answer": ` + mustJSON(t, testAnswer) + `}`
	rec := httptest.NewRecorder()
	s.handleGrade(rec, httptest.NewRequest(http.MethodPost, "/api/v1/grade", strings.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var result learn.GradeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Decision != learn.DecisionAdvance {
		t.Errorf("decision = %q, want advance", result.Decision)
	}
	if result.NewDepth != 3 {
		t.Errorf("new depth = %d, want 3", result.NewDepth)
	}

	stored, err := st.GetTopic(context.Background(), "t-1")
	if err != nil {
		t.Fatalf("reload topic: %v", err)
	}
	if stored.CurrentDepth != 3 {
		t.Errorf("persisted depth = %d, want 3", stored.CurrentDepth)
	}
	if len(stored.History) != 1 {
		t.Errorf("history length = %d, want 1", len(stored.History))
	}
}

func TestGradeRejectsShortAnswer(t *testing.T) {
	completer := &stubCompleter{}
	s, st := newTestServer(t, completer)
	seedTopic(t, st, 1)

	rec := httptest.NewRecorder()
	s.handleGrade(rec, httptest.NewRequest(http.MethodPost, "/api/v1/grade",
		strings.NewReader(`{"topic_id": "t-1", "answer": "too short"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if completer.calls != 0 {
		t.Errorf("model called %d times for a rejected answer", completer.calls)
	}
}

func TestGradeUnknownTopic(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{})
	rec := httptest.NewRecorder()
	s.handleGrade(rec, httptest.NewRequest(http.MethodPost, "/api/v1/grade",
		strings.NewReader(`{"topic_id": "nope", "answer": "x"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGradeCompletedTopicConflicts(t *testing.T) {
	s, st := newTestServer(t, &stubCompleter{})
	topic := seedTopic(t, st, 5)
	topic.Status = learn.StatusCompleted
	if err := st.UpsertTopic(context.Background(), topic); err != nil {
		t.Fatalf("update topic: %v", err)
	}

	payload := `{"topic_id": "t-1", "answer": ` + mustJSON(t, testAnswer) + `}`
	rec := httptest.NewRecorder()
	s.handleGrade(rec, httptest.NewRequest(http.MethodPost, "/api/v1/grade", strings.NewReader(payload)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestDashboard(t *testing.T) {
	s, st := newTestServer(t, &stubCompleter{})
	seedTopic(t, st, 1)

	rec := httptest.NewRecorder()
	s.handleDashboard(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["mode"] != string(learn.ModeNormal) {
		t.Errorf("mode = %v, want %q", body["mode"], learn.ModeNormal)
	}
	if body["quota"] != float64(5) {
		t.Errorf("quota = %v, want 5", body["quota"])
	}
}

func TestReportsListsSavedQuarters(t *testing.T) {
	s, st := newTestServer(t, &stubCompleter{})
	ctx := context.Background()

	report := learn.BuildQuarterlyReport(nil, learn.NewMetrics(),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	if _, err := st.SaveQuarterlyReport(ctx, report); err != nil {
		t.Fatalf("save report: %v", err)
	}

	rec := httptest.NewRecorder()
	s.handleReports(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Count   int                      `json:"count"`
		Reports []*learn.QuarterlyReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Count != 1 || len(body.Reports) != 1 || body.Reports[0].Quarter != "Q1 2026" {
		t.Fatalf("body = %+v, want one Q1 2026 report", body)
	}
}

func TestIngestRejectsBadSlot(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{})
	rec := httptest.NewRecorder()
	s.handleIngest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ingest?slot=noon", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}
