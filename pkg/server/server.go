package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/logging"
	"github.com/ashwinpj/learnloop/internal/pipeline"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

// Server provides the HTTP API.
type Server struct {
	store  store.Store
	pipe   *pipeline.Pipeline
	grader *learn.Grader
	usage  *llm.Usage
	cfg    *config.Config
	log    *zap.Logger
	now    func() time.Time
}

// New creates a new HTTP server.
func New(st store.Store, pipe *pipeline.Pipeline, grader *learn.Grader, usage *llm.Usage, cfg *config.Config, log *zap.Logger) *Server {
	return &Server{
		store:  st,
		pipe:   pipe,
		grader: grader,
		usage:  usage,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/topics", s.auth(s.handleTopics))
	mux.HandleFunc("/api/v1/topics/", s.auth(s.handleTopic))
	mux.HandleFunc("/api/v1/grade", s.auth(s.handleGrade))
	mux.HandleFunc("/api/v1/dashboard", s.auth(s.handleDashboard))
	mux.HandleFunc("/api/v1/ingest", s.auth(s.handleIngest))
	mux.HandleFunc("/api/v1/reports", s.auth(s.handleReports))

	port := s.cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("learnloop server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

// auth guards an endpoint with the configured API key. With no key
// configured the API is open (local single-user deployments).
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if key := s.cfg.Server.APIKey; key != "" && r.Header.Get("X-API-Key") != key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing API key"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.ListOpts{Limit: 200}
	if v := r.URL.Query().Get("status"); v != "" {
		opts.Status = learn.Status(v)
	}
	if v := r.URL.Query().Get("category"); v != "" {
		opts.Category = learn.Category(v)
	}

	topics, err := s.store.ListTopics(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/topics/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing topic id"})
		return
	}

	topic, err := s.store.GetTopic(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

type gradeRequest struct {
	TopicID string `json:"topic_id"`
	Answer  string `json:"answer"`
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.TopicID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic_id is required"})
		return
	}

	ctx := r.Context()
	topic, err := s.store.GetTopic(ctx, req.TopicID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "topic not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	cache, err := s.store.LoadGradeCache(ctx, s.cfg.Learning.GradingCacheTTL)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := s.grader.CheckSubmission(topic, req.Answer, cache); err != nil {
		switch {
		case errors.Is(err, learn.ErrAnswerTooShort):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("answer must be at least %d words", learn.MinAnswerWords),
			})
		case errors.Is(err, learn.ErrTopicCompleted), errors.Is(err, learn.ErrTopicArchived):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, learn.ErrAnswerRepeated):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return
	}

	result, err := s.grader.Grade(ctx, topic, req.Answer, cache)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	// Cache first: a persisted grade must never be lost to a topic write
	// failure, and cache-hit bookkeeping must stick too.
	if err := s.store.SaveGradeCache(ctx, cache); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !result.Cached {
		if err := s.store.UpsertTopic(ctx, topic); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if err := s.store.SaveDoc(ctx, store.DocUsage, s.usage); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	logging.Grading(s.log, result.TopicID, result.Depth, result.Score,
		string(result.Decision), result.ModelUsed, result.Cached)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	reports, err := s.store.ListQuarterlyReports(r.Context(), 20)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx := r.Context()
	metrics, err := s.store.LoadMetrics(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	topics, err := s.store.ListTopics(ctx, store.ListOpts{Limit: 1000})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	byStatus := make(map[learn.Status]int)
	byCategory := make(map[learn.Category]int)
	for _, t := range topics {
		byStatus[t.Status]++
		byCategory[t.Category]++
	}

	feedHealth, err := s.store.ListFeedHealth(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	discards, err := s.store.ListDiscards(ctx, 25)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	recent := metrics.DailyAverages
	if len(recent) > 7 {
		recent = recent[len(recent)-7:]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":               metrics.Mode,
		"quota":              learn.QuotaFor(metrics.Mode),
		"streak":             metrics.StreakCount,
		"longest_streak":     metrics.LongestStreak,
		"topics_by_status":   byStatus,
		"topics_by_category": byCategory,
		"drought_counters":   metrics.DroughtCounters,
		"daily_averages":     recent,
		"mode_history":       metrics.ModeHistory,
		"feed_health":        feedHealth,
		"recent_discards":    discards,
		"usage":              s.usage,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	date := s.now().In(s.cfg.Schedule.Location()).Format("2006-01-02")
	slot := learn.Slot(r.URL.Query().Get("slot"))

	var err error
	switch slot {
	case learn.SlotMorning, learn.SlotMidday, learn.SlotEvening:
		err = s.pipe.RunSlot(r.Context(), date, slot)
	case pipeline.SlotEndOfDay:
		err = s.pipe.EndOfDay(r.Context(), date)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "slot must be one of morning, midday, evening, end_of_day",
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slot": slot, "status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
