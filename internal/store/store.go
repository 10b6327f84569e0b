package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ashwinpj/learnloop/pkg/learn"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// State doc names.
const (
	DocMetrics    = "metrics"
	DocUsage      = "usage"
	DocGradeCache = "grading_cache"
	DocCarryQueue = "carry_queue"
)

// ListOpts controls topic listing.
type ListOpts struct {
	Status   learn.Status
	Category learn.Category
	Limit    int
}

// Discard records one rejected candidate for the dashboard.
type Discard struct {
	ID          int64     `db:"id" json:"id"`
	URL         string    `db:"url" json:"url"`
	Title       string    `db:"title" json:"title"`
	Reason      string    `db:"reason" json:"reason"`
	DiscardedAt time.Time `db:"discarded_at" json:"discarded_at"`
}

// FeedHealth is the failure-tracking row for one feed.
type FeedHealth struct {
	URL                 string       `db:"url" json:"url"`
	Name                string       `db:"name" json:"name"`
	ConsecutiveFailures int          `db:"consecutive_failures" json:"consecutive_failures"`
	Enabled             bool         `db:"enabled" json:"enabled"`
	LastSuccess         sql.NullTime `db:"last_success" json:"-"`
	LastError           string       `db:"last_error" json:"last_error,omitempty"`
}

// Store is the persistence interface.
type Store interface {
	UpsertTopic(ctx context.Context, t *learn.Topic) error
	GetTopic(ctx context.Context, id string) (*learn.Topic, error)
	ListTopics(ctx context.Context, opts ListOpts) ([]*learn.Topic, error)
	ArchiveTopic(ctx context.Context, t *learn.Topic, reason string, at time.Time) error
	ListArchivedTopics(ctx context.Context, limit int) ([]*learn.Topic, error)

	LoadMetrics(ctx context.Context) (*learn.Metrics, error)
	SaveMetrics(ctx context.Context, m *learn.Metrics) error
	LoadGradeCache(ctx context.Context, ttlDays int) (*learn.GradeCache, error)
	SaveGradeCache(ctx context.Context, c *learn.GradeCache) error
	LoadCarryQueue(ctx context.Context) ([]learn.Candidate, error)
	SaveCarryQueue(ctx context.Context, queue []learn.Candidate) error
	LoadDoc(ctx context.Context, name string, v any) error
	SaveDoc(ctx context.Context, name string, v any) error

	MarkURLProcessed(ctx context.Context, urlHash, url string, at time.Time) error
	IsURLProcessed(ctx context.Context, urlHash string, since time.Time) (bool, error)
	PruneProcessedURLs(ctx context.Context, before time.Time) (int64, error)

	AddDiscard(ctx context.Context, d *Discard) error
	ListDiscards(ctx context.Context, limit int) ([]Discard, error)
	TrimDiscards(ctx context.Context, maxEntries int) error

	SlotRan(ctx context.Context, date string, slot learn.Slot) (bool, error)
	MarkSlotRun(ctx context.Context, date string, slot learn.Slot, at time.Time) error

	DigestSent(ctx context.Context, date string) (bool, error)
	MarkDigestSent(ctx context.Context, date string, at time.Time) error

	SaveQuarterlyReport(ctx context.Context, r *learn.QuarterlyReport) (saved bool, err error)
	ListQuarterlyReports(ctx context.Context, limit int) ([]*learn.QuarterlyReport, error)

	RecordFeedResult(ctx context.Context, url, name string, success bool, errMsg string, disableAfter int) (disabled bool, err error)
	FeedEnabled(ctx context.Context, url string) (bool, error)
	ListFeedHealth(ctx context.Context) ([]FeedHealth, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertTopic(ctx context.Context, t *learn.Topic) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal topic %s: %w", t.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO topics (id, category, status, current_depth, mastery_score, title, last_active, created_at, doc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			status = excluded.status,
			current_depth = excluded.current_depth,
			mastery_score = excluded.mastery_score,
			last_active = excluded.last_active,
			doc = excluded.doc
	`, t.ID, t.Category, t.Status, t.CurrentDepth, t.MasteryScore, t.Name,
		t.LastActive, t.CreatedAt, string(doc))
	if err != nil {
		return fmt.Errorf("upsert topic %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTopic(ctx context.Context, id string) (*learn.Topic, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, "SELECT doc FROM topics WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("topic %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get topic %s: %w", id, err)
	}

	var t learn.Topic
	if err := json.Unmarshal([]byte(doc), &t); err != nil {
		return nil, fmt.Errorf("decode topic %s: %w", id, err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTopics(ctx context.Context, opts ListOpts) ([]*learn.Topic, error) {
	query := "SELECT doc FROM topics WHERE 1=1"
	var args []any

	if opts.Status != "" {
		query += " AND status = ?"
		args = append(args, opts.Status)
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}

	query += " ORDER BY last_active DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 200
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var docs []string
	if err := s.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	topics := make([]*learn.Topic, 0, len(docs))
	for _, doc := range docs {
		var t learn.Topic
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("decode topic: %w", err)
		}
		topics = append(topics, &t)
	}
	return topics, nil
}

// ArchiveTopic moves a topic into the archive table in one transaction.
func (s *SQLiteStore) ArchiveTopic(ctx context.Context, t *learn.Topic, reason string, at time.Time) error {
	t.Status = learn.StatusArchived
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal topic %s: %w", t.ID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive topic %s: %w", t.ID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO archived_topics (id, category, title, archived_at, reason, doc)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.Category, t.Name, at, reason, string(doc)); err != nil {
		return fmt.Errorf("archive topic %s: %w", t.ID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM topics WHERE id = ?", t.ID); err != nil {
		return fmt.Errorf("archive topic %s: %w", t.ID, err)
	}
	return tx.Commit()
}

// ListArchivedTopics returns archived topics, most recently archived first.
func (s *SQLiteStore) ListArchivedTopics(ctx context.Context, limit int) ([]*learn.Topic, error) {
	if limit <= 0 {
		limit = 200
	}
	var docs []string
	err := s.db.SelectContext(ctx, &docs,
		"SELECT doc FROM archived_topics ORDER BY archived_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list archived topics: %w", err)
	}

	topics := make([]*learn.Topic, 0, len(docs))
	for _, doc := range docs {
		var t learn.Topic
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, fmt.Errorf("decode archived topic: %w", err)
		}
		topics = append(topics, &t)
	}
	return topics, nil
}

// SaveQuarterlyReport persists a report unless one already exists for the
// same quarter. Returns whether the report was written.
func (s *SQLiteStore) SaveQuarterlyReport(ctx context.Context, r *learn.QuarterlyReport) (bool, error) {
	doc, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("marshal report %s: %w", r.Quarter, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quarterly_reports (quarter, generated_at, doc) VALUES (?, ?, ?)
		ON CONFLICT(quarter) DO NOTHING
	`, r.Quarter, r.GeneratedAt, string(doc))
	if err != nil {
		return false, fmt.Errorf("save report %s: %w", r.Quarter, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save report %s: %w", r.Quarter, err)
	}
	return n > 0, nil
}

// ListQuarterlyReports returns saved reports, newest first.
func (s *SQLiteStore) ListQuarterlyReports(ctx context.Context, limit int) ([]*learn.QuarterlyReport, error) {
	if limit <= 0 {
		limit = 20
	}
	var docs []string
	err := s.db.SelectContext(ctx, &docs,
		"SELECT doc FROM quarterly_reports ORDER BY generated_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	reports := make([]*learn.QuarterlyReport, 0, len(docs))
	for _, doc := range docs {
		var r learn.QuarterlyReport
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		reports = append(reports, &r)
	}
	return reports, nil
}

// LoadDoc reads one singleton state document. Returns ErrNotFound when the
// document has never been written.
func (s *SQLiteStore) LoadDoc(ctx context.Context, name string, v any) error {
	var doc string
	err := s.db.GetContext(ctx, &doc, "SELECT doc FROM state_docs WHERE name = ?", name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("doc %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load doc %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("decode doc %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) SaveDoc(ctx context.Context, name string, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal doc %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO state_docs (name, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, name, string(doc), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save doc %s: %w", name, err)
	}
	return nil
}

// LoadMetrics returns the persisted metrics, or a fresh instance on first run.
func (s *SQLiteStore) LoadMetrics(ctx context.Context) (*learn.Metrics, error) {
	m := learn.NewMetrics()
	err := s.LoadDoc(ctx, DocMetrics, m)
	if errors.Is(err, ErrNotFound) {
		return learn.NewMetrics(), nil
	}
	if err != nil {
		return nil, err
	}
	if m.DroughtCounters == nil {
		m.DroughtCounters = make(map[learn.Category]int)
	}
	if m.WeeklyDistribution == nil {
		m.WeeklyDistribution = make(map[string]map[learn.Category]int)
	}
	return m, nil
}

func (s *SQLiteStore) SaveMetrics(ctx context.Context, m *learn.Metrics) error {
	return s.SaveDoc(ctx, DocMetrics, m)
}

// LoadGradeCache returns the persisted grading cache, or an empty one.
func (s *SQLiteStore) LoadGradeCache(ctx context.Context, ttlDays int) (*learn.GradeCache, error) {
	c := learn.NewGradeCache(ttlDays)
	err := s.LoadDoc(ctx, DocGradeCache, c)
	if errors.Is(err, ErrNotFound) {
		return learn.NewGradeCache(ttlDays), nil
	}
	if err != nil {
		return nil, err
	}
	if c.Entries == nil {
		c.Entries = make(map[string]*learn.CacheEntry)
	}
	c.TTLDays = ttlDays
	return c, nil
}

func (s *SQLiteStore) SaveGradeCache(ctx context.Context, c *learn.GradeCache) error {
	return s.SaveDoc(ctx, DocGradeCache, c)
}

// LoadCarryQueue returns the evening carry-over queue, empty on first run.
func (s *SQLiteStore) LoadCarryQueue(ctx context.Context) ([]learn.Candidate, error) {
	var queue []learn.Candidate
	err := s.LoadDoc(ctx, DocCarryQueue, &queue)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return queue, nil
}

func (s *SQLiteStore) SaveCarryQueue(ctx context.Context, queue []learn.Candidate) error {
	if queue == nil {
		queue = []learn.Candidate{}
	}
	return s.SaveDoc(ctx, DocCarryQueue, queue)
}

func (s *SQLiteStore) MarkURLProcessed(ctx context.Context, urlHash, url string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO processed_urls (url_hash, url, processed_at) VALUES (?, ?, ?)
	`, urlHash, url, at)
	if err != nil {
		return fmt.Errorf("mark url processed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) IsURLProcessed(ctx context.Context, urlHash string, since time.Time) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM processed_urls WHERE url_hash = ? AND processed_at >= ?",
		urlHash, since)
	if err != nil {
		return false, fmt.Errorf("check url processed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) PruneProcessedURLs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM processed_urls WHERE processed_at < ?", before)
	if err != nil {
		return 0, fmt.Errorf("prune processed urls: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLiteStore) AddDiscard(ctx context.Context, d *Discard) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO discards (url, title, reason, discarded_at) VALUES (?, ?, ?, ?)
	`, d.URL, d.Title, d.Reason, d.DiscardedAt)
	if err != nil {
		return fmt.Errorf("add discard: %w", err)
	}
	d.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListDiscards(ctx context.Context, limit int) ([]Discard, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []Discard
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM discards ORDER BY discarded_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list discards: %w", err)
	}
	return out, nil
}

// TrimDiscards keeps only the newest maxEntries rows.
func (s *SQLiteStore) TrimDiscards(ctx context.Context, maxEntries int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM discards WHERE id NOT IN (
			SELECT id FROM discards ORDER BY discarded_at DESC LIMIT ?
		)
	`, maxEntries)
	if err != nil {
		return fmt.Errorf("trim discards: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SlotRan(ctx context.Context, date string, slot learn.Slot) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM runs WHERE date = ? AND slot = ?", date, string(slot))
	if err != nil {
		return false, fmt.Errorf("check slot run: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkSlotRun(ctx context.Context, date string, slot learn.Slot, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO runs (date, slot, ran_at) VALUES (?, ?, ?)",
		date, string(slot), at)
	if err != nil {
		return fmt.Errorf("mark slot run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DigestSent(ctx context.Context, date string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM digests WHERE date = ?", date)
	if err != nil {
		return false, fmt.Errorf("check digest: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkDigestSent(ctx context.Context, date string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO digests (date, sent_at) VALUES (?, ?)", date, at)
	if err != nil {
		return fmt.Errorf("mark digest sent: %w", err)
	}
	return nil
}

// RecordFeedResult updates a feed's consecutive-failure counter. A success
// resets it; a failure increments it and disables the feed once it reaches
// disableAfter. Returns whether the feed is now disabled.
func (s *SQLiteStore) RecordFeedResult(ctx context.Context, url, name string, success bool, errMsg string, disableAfter int) (bool, error) {
	if success {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO feed_health (url, name, consecutive_failures, enabled, last_success, last_error)
			VALUES (?, ?, 0, 1, ?, '')
			ON CONFLICT(url) DO UPDATE SET
				consecutive_failures = 0, last_success = excluded.last_success, last_error = ''
		`, url, name, time.Now().UTC())
		if err != nil {
			return false, fmt.Errorf("record feed success %s: %w", url, err)
		}
		return false, nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feed_health (url, name, consecutive_failures, enabled, last_error)
		VALUES (?, ?, 1, 1, ?)
		ON CONFLICT(url) DO UPDATE SET
			consecutive_failures = feed_health.consecutive_failures + 1,
			last_error = excluded.last_error
	`, url, name, errMsg)
	if err != nil {
		return false, fmt.Errorf("record feed failure %s: %w", url, err)
	}

	var failures int
	if err := s.db.GetContext(ctx, &failures,
		"SELECT consecutive_failures FROM feed_health WHERE url = ?", url); err != nil {
		return false, fmt.Errorf("record feed failure %s: %w", url, err)
	}
	if disableAfter > 0 && failures >= disableAfter {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE feed_health SET enabled = 0 WHERE url = ?", url); err != nil {
			return false, fmt.Errorf("disable feed %s: %w", url, err)
		}
		return true, nil
	}
	return false, nil
}

// FeedEnabled reports whether a feed may be fetched. Unknown feeds are enabled.
func (s *SQLiteStore) FeedEnabled(ctx context.Context, url string) (bool, error) {
	var enabled bool
	err := s.db.GetContext(ctx, &enabled,
		"SELECT enabled FROM feed_health WHERE url = ?", url)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check feed enabled %s: %w", url, err)
	}
	return enabled, nil
}

func (s *SQLiteStore) ListFeedHealth(ctx context.Context) ([]FeedHealth, error) {
	var out []FeedHealth
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM feed_health ORDER BY consecutive_failures DESC, name")
	if err != nil {
		return nil, fmt.Errorf("list feed health: %w", err)
	}
	return out, nil
}
