package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/digest"
	"github.com/ashwinpj/learnloop/pkg/feed"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

type captureNotifier struct {
	sent []*digest.Digest
	fail bool
}

func (n *captureNotifier) Name() string { return "capture" }

func (n *captureNotifier) Send(ctx context.Context, d *digest.Digest) error {
	if n.fail {
		return context.DeadlineExceeded
	}
	n.sent = append(n.sent, d)
	return nil
}

// newTestPipeline builds a pipeline over a temp store with no feed sources,
// so slot runs never touch the network or an LLM.
func newTestPipeline(t *testing.T, notifiers ...digest.Notifier) (*Pipeline, store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "learnloop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Feeds.Sources = nil
	usage := llm.NewUsage("2026-03-10", cfg.LLM.GradeModel, cfg.LLM.BulkModel, cfg.LLM.FallbackRPD, nil)
	p := New(cfg, st, feed.NewFetcher(cfg.Feeds), nil, nil, usage, notifiers, zap.NewNop())
	return p, st
}

func seedGradedTopic(t *testing.T, st store.Store, id string, score float64, date string) *learn.Topic {
	t.Helper()
	when, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	topic := &learn.Topic{
		ID:           id,
		Name:         "Topic " + id,
		Category:     learn.CategoryMLOps,
		CurrentDepth: 2,
		MasteryScore: score,
		Status:       learn.StatusActive,
		CreatedAt:    when,
		LastActive:   when,
		History: []learn.HistoryEntry{
			{Date: when, Depth: 2, Score: score, Decision: learn.DecisionAdvance},
		},
	}
	if err := st.UpsertTopic(context.Background(), topic); err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	return topic
}

func TestRunSlotIdempotent(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	if err := p.RunSlot(ctx, "2026-03-10", learn.SlotMorning); err != nil {
		t.Fatalf("first run: %v", err)
	}
	ran, err := st.SlotRan(ctx, "2026-03-10", learn.SlotMorning)
	if err != nil || !ran {
		t.Fatalf("slot not recorded: ran=%v err=%v", ran, err)
	}
	if err := p.RunSlot(ctx, "2026-03-10", learn.SlotMorning); err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func TestRunSlotPausedSkipsIngestion(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	metrics := learn.NewMetrics()
	metrics.ConsecutiveNeutralDays = 8
	if err := st.SaveMetrics(ctx, metrics); err != nil {
		t.Fatalf("save metrics: %v", err)
	}

	if err := p.RunSlot(ctx, "2026-03-10", learn.SlotMorning); err != nil {
		t.Fatalf("run: %v", err)
	}
	// The slot is still marked so the scheduler does not retry all day.
	ran, err := st.SlotRan(ctx, "2026-03-10", learn.SlotMorning)
	if err != nil || !ran {
		t.Fatalf("paused slot not marked: ran=%v err=%v", ran, err)
	}
}

func TestEndOfDayRecordsAverageAndArchivesCompleted(t *testing.T) {
	notifier := &captureNotifier{}
	p, st := newTestPipeline(t, notifier)
	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	seedGradedTopic(t, st, "a", 80, today)
	seedGradedTopic(t, st, "b", 60, today)
	done := seedGradedTopic(t, st, "c", 90, today)
	done.Status = learn.StatusCompleted
	if err := st.UpsertTopic(ctx, done); err != nil {
		t.Fatalf("complete topic: %v", err)
	}

	if err := p.EndOfDay(ctx, today); err != nil {
		t.Fatalf("end of day: %v", err)
	}

	metrics, err := st.LoadMetrics(ctx)
	if err != nil {
		t.Fatalf("load metrics: %v", err)
	}
	if len(metrics.DailyAverages) != 1 {
		t.Fatalf("daily averages = %d entries, want 1", len(metrics.DailyAverages))
	}
	avg := metrics.DailyAverages[0]
	if avg.TopicsGraded != 3 {
		t.Errorf("graded = %d, want 3", avg.TopicsGraded)
	}
	if want := (80.0 + 60.0 + 90.0) / 3; avg.AvgMastery != want {
		t.Errorf("avg = %.2f, want %.2f", avg.AvgMastery, want)
	}

	if _, err := st.GetTopic(ctx, "c"); err == nil {
		t.Error("completed topic still in active set after maintenance")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("digest sent %d times, want 1", len(notifier.sent))
	}
	d := notifier.sent[0]
	if d.GradedToday != 3 {
		t.Errorf("digest graded = %d, want 3", d.GradedToday)
	}
	if d.Streak != 1 {
		t.Errorf("streak = %d, want 1 on first digest", d.Streak)
	}

	// Idempotent: re-running the same date changes nothing.
	if err := p.EndOfDay(ctx, today); err != nil {
		t.Fatalf("second end of day: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("digest re-sent on replay")
	}
}

func TestEndOfDayRevertsTimedOutReteaching(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	topic := seedGradedTopic(t, st, "r", 30, today)
	topic.Status = learn.StatusReteaching
	topic.RetriesUsed = 2
	entered := time.Now().AddDate(0, 0, -15)
	topic.ReteachingEnteredAt = &entered
	if err := st.UpsertTopic(ctx, topic); err != nil {
		t.Fatalf("update topic: %v", err)
	}

	if err := p.EndOfDay(ctx, today); err != nil {
		t.Fatalf("end of day: %v", err)
	}

	got, err := st.GetTopic(ctx, "r")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != learn.StatusActive {
		t.Errorf("status = %s, want active after reteaching timeout", got.Status)
	}
	if got.ReteachingEnteredAt != nil {
		t.Error("reteaching timestamp not cleared")
	}
	if got.RetriesUsed != 0 {
		t.Errorf("retries = %d, want 0", got.RetriesUsed)
	}
}

func TestEndOfDayRecentReteachingUntouched(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	topic := seedGradedTopic(t, st, "r", 30, today)
	topic.Status = learn.StatusReteaching
	entered := time.Now().AddDate(0, 0, -3)
	topic.ReteachingEnteredAt = &entered
	if err := st.UpsertTopic(ctx, topic); err != nil {
		t.Fatalf("update topic: %v", err)
	}

	if err := p.EndOfDay(ctx, today); err != nil {
		t.Fatalf("end of day: %v", err)
	}

	got, err := st.GetTopic(ctx, "r")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != learn.StatusReteaching {
		t.Errorf("status = %s, want reteaching to persist inside the window", got.Status)
	}
}

func TestQuarterlyReportGeneratedOncePerQuarter(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	seedGradedTopic(t, st, "q1", 82, "2026-03-30")
	done := seedGradedTopic(t, st, "q2", 90, "2026-03-28")
	if err := st.ArchiveTopic(ctx, done, "completed", time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}
	metrics := learn.NewMetrics()
	metrics.LongestStreak = 9

	if err := p.quarterlyReport(ctx, "2026-04-01", metrics); err != nil {
		t.Fatalf("report: %v", err)
	}
	reports, err := st.ListQuarterlyReports(ctx, 10)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	r := reports[0]
	if r.Quarter != "Q1 2026" || r.PeriodStart != "2026-01-01" || r.PeriodEnd != "2026-04-01" {
		t.Errorf("period = %s %s..%s", r.Quarter, r.PeriodStart, r.PeriodEnd)
	}
	if r.TopicsCovered != 2 {
		t.Errorf("covered = %d, want 2 including the archived topic", r.TopicsCovered)
	}
	if r.StreakMax != 9 {
		t.Errorf("streak max = %d, want 9", r.StreakMax)
	}

	// Replaying the boundary day keeps the first report.
	if err := p.quarterlyReport(ctx, "2026-04-01", metrics); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if reports, _ = st.ListQuarterlyReports(ctx, 10); len(reports) != 1 {
		t.Errorf("replay wrote a duplicate report: %d", len(reports))
	}
}

func TestQuarterlyReportSkipsMidQuarterDates(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	if err := p.quarterlyReport(ctx, "2026-03-10", learn.NewMetrics()); err != nil {
		t.Fatalf("report: %v", err)
	}
	if reports, _ := st.ListQuarterlyReports(ctx, 10); len(reports) != 0 {
		t.Errorf("mid-quarter date generated a report")
	}
}

func TestSendDigestAllNotifiersFail(t *testing.T) {
	notifier := &captureNotifier{fail: true}
	p, st := newTestPipeline(t, notifier)
	ctx := context.Background()
	today := time.Now().Format("2006-01-02")

	// Delivery failure is non-fatal for the day close-out.
	if err := p.EndOfDay(ctx, today); err != nil {
		t.Fatalf("end of day: %v", err)
	}
	sent, err := st.DigestSent(ctx, today)
	if err != nil {
		t.Fatalf("digest sent check: %v", err)
	}
	if sent {
		t.Error("digest marked sent though every notifier failed")
	}
}

func TestYesterdayOf(t *testing.T) {
	if got := yesterdayOf("2026-03-01"); got != "2026-02-28" {
		t.Errorf("yesterdayOf = %q, want 2026-02-28", got)
	}
	if got := yesterdayOf("bogus"); got != "" {
		t.Errorf("yesterdayOf(bogus) = %q, want empty", got)
	}
}
