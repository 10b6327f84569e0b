package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/logging"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/digest"
	"github.com/ashwinpj/learnloop/pkg/learn"
)

// SlotEndOfDay is the maintenance slot recorded in the runs table.
const SlotEndOfDay learn.Slot = "end_of_day"

// EndOfDay closes out one learning day: it feeds the day's grading average
// into the adaptive mode engine, runs topic maintenance and cache eviction,
// and sends the daily digest. Idempotent per date.
func (p *Pipeline) EndOfDay(ctx context.Context, date string) error {
	ran, err := p.store.SlotRan(ctx, date, SlotEndOfDay)
	if err != nil {
		return err
	}
	if ran {
		return nil
	}

	metrics, err := p.store.LoadMetrics(ctx)
	if err != nil {
		return err
	}

	avg, graded, err := p.dailyAverage(ctx, date)
	if err != nil {
		return err
	}

	before := metrics.Mode
	p.modeEngine.Update(metrics, date, avg, graded)
	if metrics.Mode != before {
		change := metrics.ModeHistory[len(metrics.ModeHistory)-1]
		logging.ModeTransition(p.log, string(change.From), string(change.To), change.Reason)
	}
	metrics.RecordDailyAverage(date, avg, graded)

	if err := p.topicMaintenance(ctx); err != nil {
		return err
	}
	if err := p.evictCaches(ctx); err != nil {
		return err
	}

	if err := p.quarterlyReport(ctx, date, metrics); err != nil {
		// A failed report must not block the day's close-out.
		p.log.Warn("quarterly report failed", zap.String("date", date), zap.Error(err))
	}

	if err := p.sendDigest(ctx, date, metrics, avg, graded); err != nil {
		// Digest failure must not lose the day's metrics.
		p.log.Warn("digest delivery failed", zap.String("date", date), zap.Error(err))
	}

	if err := p.store.SaveMetrics(ctx, metrics); err != nil {
		return err
	}
	return p.store.MarkSlotRun(ctx, date, SlotEndOfDay, p.now())
}

// dailyAverage computes the mean score over all fresh grades dated today.
func (p *Pipeline) dailyAverage(ctx context.Context, date string) (float64, int, error) {
	topics, err := p.store.ListTopics(ctx, store.ListOpts{Limit: 1000})
	if err != nil {
		return 0, 0, err
	}

	var sum float64
	var n int
	for _, t := range topics {
		for _, h := range t.History {
			if h.Cached || h.Date.Format("2006-01-02") != date {
				continue
			}
			sum += h.Score
			n++
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

// topicMaintenance reverts timed-out reteaching topics and archives
// completed or long-inactive ones.
func (p *Pipeline) topicMaintenance(ctx context.Context) error {
	now := p.now()
	reteachingTimeout := time.Duration(p.cfg.Cleanup.ReteachingTimeoutDays) * 24 * time.Hour
	inactiveCutoff := now.AddDate(0, 0, -p.cfg.Cleanup.ArchiveInactiveDays)

	topics, err := p.store.ListTopics(ctx, store.ListOpts{Limit: 1000})
	if err != nil {
		return err
	}

	for _, t := range topics {
		switch t.Status {
		case learn.StatusReteaching:
			if t.ReteachingEnteredAt == nil {
				// No timestamp to age against; start the clock now.
				entered := now
				t.ReteachingEnteredAt = &entered
				if err := p.store.UpsertTopic(ctx, t); err != nil {
					return err
				}
				continue
			}
			if now.Sub(*t.ReteachingEnteredAt) >= reteachingTimeout {
				t.Status = learn.StatusActive
				t.ReteachingEnteredAt = nil
				t.RetriesUsed = 0
				t.LastUpdated = now
				p.log.Info("reteaching timed out, reverted to active",
					zap.String("topic_id", t.ID), zap.String("topic", t.Name))
				if err := p.store.UpsertTopic(ctx, t); err != nil {
					return err
				}
			}

		case learn.StatusCompleted:
			if err := p.store.ArchiveTopic(ctx, t, "completed", now); err != nil {
				return err
			}

		case learn.StatusActive:
			if t.LastActive.Before(inactiveCutoff) {
				p.log.Info("archiving inactive topic",
					zap.String("topic_id", t.ID), zap.String("topic", t.Name))
				if err := p.store.ArchiveTopic(ctx, t, "inactive", now); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// evictCaches expires the grading cache, prunes old processed URLs, and
// trims the discard log.
func (p *Pipeline) evictCaches(ctx context.Context) error {
	now := p.now()

	cache, err := p.store.LoadGradeCache(ctx, p.cfg.Learning.GradingCacheTTL)
	if err != nil {
		return err
	}
	if removed := cache.Evict(p.cfg.Learning.MaxCacheEntries, now); removed > 0 {
		p.log.Info("grading cache evicted", zap.Int("removed", removed))
	}
	if err := p.store.SaveGradeCache(ctx, cache); err != nil {
		return err
	}

	if _, err := p.store.PruneProcessedURLs(ctx, now.AddDate(0, 0, -urlDedupTTLDays)); err != nil {
		return err
	}
	return p.store.TrimDiscards(ctx, p.cfg.Cleanup.DiscardedMaxEntries)
}

// quarterlyReport closes out the previous quarter on the first day of a new
// one. SaveQuarterlyReport keeps at most one report per quarter, so re-runs
// on the boundary day are no-ops.
func (p *Pipeline) quarterlyReport(ctx context.Context, date string, metrics *learn.Metrics) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return err
	}
	if !learn.QuarterBoundary(day) {
		return nil
	}

	active, err := p.store.ListTopics(ctx, store.ListOpts{Limit: 1000})
	if err != nil {
		return err
	}
	archived, err := p.store.ListArchivedTopics(ctx, 1000)
	if err != nil {
		return err
	}

	report := learn.BuildQuarterlyReport(append(active, archived...), metrics, day)
	saved, err := p.store.SaveQuarterlyReport(ctx, report)
	if err != nil {
		return err
	}
	if saved {
		p.log.Info("quarterly report generated",
			zap.String("quarter", report.Quarter),
			zap.Int("topics_covered", report.TopicsCovered),
			zap.Float64("avg_mastery", report.AvgMasteryOverall))
	}
	return nil
}

// sendDigest builds and fans out the daily digest, then updates the streak.
func (p *Pipeline) sendDigest(ctx context.Context, date string, metrics *learn.Metrics, avg float64, graded int) error {
	if !p.digests.HasNotifiers() {
		return nil
	}
	sent, err := p.store.DigestSent(ctx, date)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	newToday, err := p.topicsCreatedOn(ctx, date)
	if err != nil {
		return err
	}

	d := &digest.Digest{
		Date:        date,
		Mode:        metrics.Mode,
		Quota:       learn.QuotaFor(metrics.Mode),
		NewTopics:   newToday,
		GradedToday: graded,
		AvgMastery:  avg,
		Paused:      p.modeEngine.Paused(metrics),
	}

	yesterdaySent, err := p.store.DigestSent(ctx, yesterdayOf(date))
	if err != nil {
		return err
	}
	d.Streak = digest.UpdateStreak(metrics, date, yesterdaySent)

	delivered, sendErr := p.digests.Broadcast(ctx, d)
	if delivered == 0 {
		return sendErr
	}
	if sendErr != nil {
		p.log.Warn("partial digest delivery", zap.String("date", date), zap.Error(sendErr))
	}
	return p.store.MarkDigestSent(ctx, date, p.now())
}

func (p *Pipeline) topicsCreatedOn(ctx context.Context, date string) ([]*learn.Topic, error) {
	topics, err := p.store.ListTopics(ctx, store.ListOpts{Limit: 1000})
	if err != nil {
		return nil, err
	}
	var out []*learn.Topic
	for _, t := range topics {
		if t.CreatedAt.Format("2006-01-02") == date {
			out = append(out, t)
		}
	}
	return out, nil
}
