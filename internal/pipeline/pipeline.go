// Package pipeline orchestrates the scheduled slot runs: fetch, dedup,
// score, summarize, select, and the end-of-day maintenance pass.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/logging"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/digest"
	"github.com/ashwinpj/learnloop/pkg/feed"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

// urlDedupTTLDays is how long a processed URL blocks re-ingestion.
const urlDedupTTLDays = 2190

// Pipeline wires the ingestion stages together over the store.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	fetcher    *feed.Fetcher
	scorer     *Scorer
	summarizer *Summarizer
	selector   *learn.Selector
	modeEngine *learn.ModeEngine
	usage      *llm.Usage
	digests    *digest.Manager
	log        *zap.Logger
	now        func() time.Time
}

// New assembles a pipeline from its collaborators.
func New(cfg *config.Config, st store.Store, fetcher *feed.Fetcher, scorer *Scorer, summarizer *Summarizer, usage *llm.Usage, notifiers []digest.Notifier, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		fetcher:    fetcher,
		scorer:     scorer,
		summarizer: summarizer,
		selector: learn.NewSelector(learn.SelectorConfig{
			DroughtDays: cfg.Learning.DroughtDays,
			QueueCap:    cfg.Learning.CarryQueueCap,
		}),
		modeEngine: learn.NewModeEngine(
			cfg.Learning.AdvanceThreshold,
			cfg.Learning.RecoveryThreshold,
			cfg.Learning.PauseNeutralDays,
		),
		usage:   usage,
		digests: digest.NewManager(notifiers),
		log:     log,
		now:     time.Now,
	}
}

// RunSlot executes one ingestion slot for the given date. Re-running an
// already executed (date, slot) is a no-op.
func (p *Pipeline) RunSlot(ctx context.Context, date string, slot learn.Slot) error {
	ran, err := p.store.SlotRan(ctx, date, slot)
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

	// Ingestion is suspended while the learner is away; the pause alert
	// goes out from the end-of-day pass.
	if p.modeEngine.Paused(metrics) {
		p.log.Info("ingestion paused",
			zap.String("date", date),
			zap.Int("neutral_days", metrics.ConsecutiveNeutralDays))
		return p.store.MarkSlotRun(ctx, date, slot, p.now())
	}

	carryOver, err := p.store.LoadCarryQueue(ctx)
	if err != nil {
		return err
	}

	articles := p.fetchArticles(ctx)
	candidates := p.buildCandidates(ctx, articles)

	selected, newCarry := p.selector.Select(candidates, carryOver, metrics, slot)
	for _, t := range selected {
		if err := p.store.UpsertTopic(ctx, t); err != nil {
			return err
		}
	}
	if slot == learn.SlotEvening || len(carryOver) > 0 {
		if err := p.store.SaveCarryQueue(ctx, newCarry); err != nil {
			return err
		}
	}
	if err := p.store.SaveMetrics(ctx, metrics); err != nil {
		return err
	}
	if err := p.store.SaveDoc(ctx, store.DocUsage, p.usage); err != nil {
		return err
	}

	logging.SlotRun(p.log, date, string(slot), len(selected), len(newCarry))
	return p.store.MarkSlotRun(ctx, date, slot, p.now())
}

// fetchArticles pulls all enabled feeds and records per-feed health.
func (p *Pipeline) fetchArticles(ctx context.Context) []feed.Article {
	skip := func(url string) bool {
		enabled, err := p.store.FeedEnabled(ctx, url)
		if err != nil {
			return false
		}
		return !enabled
	}

	articles, results := p.fetcher.FetchAll(ctx, skip)
	for _, r := range results {
		logging.FeedFetch(p.log, r.Source.Name, r.Source.Tier, r.Found, r.Kept, r.Err)
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		disabled, err := p.store.RecordFeedResult(ctx, r.Source.URL, r.Source.Name,
			r.Err == nil, errMsg, p.cfg.Feeds.AutoDisableFailures)
		if err != nil {
			p.log.Warn("feed health update failed", zap.String("feed", r.Source.Name), zap.Error(err))
		}
		if disabled {
			p.log.Warn("feed auto-disabled", zap.String("feed", r.Source.Name))
		}
	}
	return articles
}

// buildCandidates runs dedup, scoring, and summarization over fetched
// articles. Per-article failures discard the article, never the batch.
func (p *Pipeline) buildCandidates(ctx context.Context, articles []feed.Article) []learn.Candidate {
	now := p.now()
	dedupWindow := now.AddDate(0, 0, -urlDedupTTLDays)

	existingTitles := p.activeTopicTitles(ctx)
	var candidates []learn.Candidate

	for _, a := range articles {
		seen, err := p.store.IsURLProcessed(ctx, a.URLHash, dedupWindow)
		if err != nil {
			p.log.Warn("url dedup check failed", zap.String("url", a.URL), zap.Error(err))
			continue
		}
		if seen {
			continue
		}

		if feed.DuplicateTitle(a.Title, existingTitles) {
			p.discard(ctx, a, "duplicate_title")
			continue
		}

		if n := len([]rune(a.Description)); n < p.cfg.Feeds.MinArticleWords/4 {
			// Too little text to score meaningfully; leave the URL unmarked
			// so a fuller version can come around later.
			continue
		}

		scores, err := p.scorer.Score(ctx, a)
		if err != nil {
			p.log.Warn("scoring failed", zap.String("url", a.URL), zap.Error(err))
			continue
		}
		// Scored articles never re-enter the pipeline, accepted or not.
		if err := p.store.MarkURLProcessed(ctx, a.URLHash, a.URL, now); err != nil {
			p.log.Warn("mark url processed failed", zap.String("url", a.URL), zap.Error(err))
		}

		if reason := p.scorer.Reject(scores); reason != "" {
			p.discard(ctx, a, reason)
			continue
		}

		summary, err := p.summarizer.Summarize(ctx, a)
		if err != nil {
			p.log.Warn("summarization failed", zap.String("url", a.URL), zap.Error(err))
			p.discard(ctx, a, "summarization_failed")
			continue
		}

		existingTitles = append(existingTitles, a.Title)
		candidates = append(candidates, learn.Candidate{
			URL:         a.URL,
			URLHash:     a.URLHash,
			Title:       a.Title,
			SourceName:  a.SourceName,
			SourceTier:  a.SourceTier,
			Category:    learn.Category(a.CategoryBias),
			Scores:      scores.Map(),
			AvgScore:    scores.Avg(),
			Credibility: scores.Credibility,
			Summary:     summary,
			AddedAt:     now,
		})
	}
	return candidates
}

func (p *Pipeline) activeTopicTitles(ctx context.Context) []string {
	var titles []string
	for _, status := range []learn.Status{learn.StatusActive, learn.StatusReteaching} {
		topics, err := p.store.ListTopics(ctx, store.ListOpts{Status: status, Limit: 500})
		if err != nil {
			p.log.Warn("list topics for dedup failed", zap.Error(err))
			continue
		}
		for _, t := range topics {
			titles = append(titles, t.Name)
		}
	}
	return titles
}

func (p *Pipeline) discard(ctx context.Context, a feed.Article, reason string) {
	d := &store.Discard{URL: a.URL, Title: a.Title, Reason: reason, DiscardedAt: p.now()}
	if err := p.store.AddDiscard(ctx, d); err != nil {
		p.log.Warn("record discard failed", zap.String("url", a.URL), zap.Error(err))
	}
}

// yesterdayOf returns the calendar day before an ISO date string.
func yesterdayOf(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}
