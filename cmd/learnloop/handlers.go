package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinpj/learnloop/internal/config"
	"github.com/ashwinpj/learnloop/internal/logging"
	"github.com/ashwinpj/learnloop/internal/pipeline"
	"github.com/ashwinpj/learnloop/internal/scheduler"
	"github.com/ashwinpj/learnloop/internal/store"
	"github.com/ashwinpj/learnloop/pkg/digest"
	"github.com/ashwinpj/learnloop/pkg/feed"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
	"github.com/ashwinpj/learnloop/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles the wired components every command needs.
type app struct {
	cfg   *config.Config
	store *store.SQLiteStore
	llm   *llm.Client
	usage *llm.Usage
	log   *zap.Logger
	pipe  *pipeline.Pipeline
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("info")
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := llm.NewClient(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL)
	usage, err := loadUsage(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	scorer := pipeline.NewScorer(
		client.Metered(usage, "combined_scoring").WithLogger(log),
		cfg.LLM.BulkModel,
		cfg.Learning.MinRelevanceScore,
		cfg.Learning.MinCredibility,
	)
	summarizer := pipeline.NewSummarizer(client.Metered(usage, "summarization").WithLogger(log), cfg.LLM.BulkModel)
	fetcher := feed.NewFetcher(cfg.Feeds)
	pipe := pipeline.New(cfg, db, fetcher, scorer, summarizer, usage, buildNotifiers(cfg), log)

	return &app{cfg: cfg, store: db, llm: client, usage: usage, log: log, pipe: pipe}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
	a.store.Close()
}

// loadUsage restores the persisted usage tracker, starting fresh on the
// first run, and rolls daily counters over to today.
func loadUsage(ctx context.Context, db store.Store, cfg *config.Config) (*llm.Usage, error) {
	prices := make(map[string]llm.Pricing, len(cfg.LLM.Pricing))
	for model, p := range cfg.LLM.Pricing {
		prices[model] = llm.Pricing{InputPerToken: p.InputPerToken, OutputPerToken: p.OutputPerToken}
	}

	today := time.Now().In(cfg.Schedule.Location()).Format("2006-01-02")
	usage := llm.NewUsage(today, cfg.LLM.GradeModel, cfg.LLM.BulkModel, cfg.LLM.FallbackRPD, prices)

	err := db.LoadDoc(ctx, store.DocUsage, usage)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	usage.Rollover(today)
	return usage, nil
}

func buildNotifiers(cfg *config.Config) []digest.Notifier {
	var notifiers []digest.Notifier

	if cfg.Digest.Slack.Enabled && cfg.Digest.Slack.WebhookURL != "" {
		notifiers = append(notifiers, digest.NewSlack(cfg.Digest.Slack.WebhookURL))
	}
	if cfg.Digest.Discord.Enabled && cfg.Digest.Discord.WebhookURL != "" {
		notifiers = append(notifiers, digest.NewDiscord(cfg.Digest.Discord.WebhookURL))
	}
	if cfg.Digest.Webhook.Enabled && cfg.Digest.Webhook.URL != "" {
		notifiers = append(notifiers, digest.NewWebhook(cfg.Digest.Webhook.URL, cfg.Digest.Webhook.Secret))
	}

	return notifiers
}

func (a *app) grader() *learn.Grader {
	return learn.NewGrader(
		a.llm.Metered(a.usage, "grading").WithLogger(a.log),
		a.usage,
		learn.GraderConfig{
			AdvanceThreshold: a.cfg.Learning.AdvanceThreshold,
			MaxRetries:       a.cfg.Learning.MaxRetriesPerDepth,
			ReteachModel:     a.cfg.LLM.BulkModel,
		},
	)
}

func runIngest(slotFlag string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	loc := a.cfg.Schedule.Location()
	now := time.Now().In(loc)
	date := now.Format("2006-01-02")

	slot := learn.Slot(slotFlag)
	if slot == "" {
		slot = scheduler.New(a.pipe, a.cfg.Schedule).CurrentSlot(now)
		if slot == "" {
			return fmt.Errorf("no slot active at %s; pass --slot explicitly", now.Format("15:04"))
		}
	}

	switch slot {
	case learn.SlotMorning, learn.SlotMidday, learn.SlotEvening:
		err = a.pipe.RunSlot(ctx, date, slot)
	case pipeline.SlotEndOfDay:
		err = a.pipe.EndOfDay(ctx, date)
	default:
		return fmt.Errorf("unknown slot %q", slot)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", slot, err)
	}

	fmt.Fprintf(os.Stderr, "slot %s done for %s\n", slot, date)
	return nil
}

func runTopics(jsonOutput bool, status, category string, limit int) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	topics, err := a.store.ListTopics(ctx, store.ListOpts{
		Status:   learn.Status(status),
		Category: learn.Category(category),
		Limit:    limit,
	})
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(topics)
	}

	if len(topics) == 0 {
		fmt.Println("no topics found (try running an ingestion slot first: learnloop ingest)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEPTH\tSCORE\tSTATUS\tCATEGORY\tNAME")
	for _, t := range topics {
		fmt.Fprintf(w, "%s\t%d/5\t%.1f\t%s\t%s\t%s\n",
			t.ID, t.CurrentDepth, t.MasteryScore, t.Status, t.Category, t.Name)
	}
	return w.Flush()
}

func runGrade(topicID, answerFile string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var raw []byte
	if answerFile != "" {
		raw, err = os.ReadFile(answerFile)
	} else {
		fmt.Fprintln(os.Stderr, "reading answer from stdin (end with Ctrl-D)...")
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read answer: %w", err)
	}
	answer := string(raw)

	topic, err := a.store.GetTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("topic %s: %w", topicID, err)
	}

	cache, err := a.store.LoadGradeCache(ctx, a.cfg.Learning.GradingCacheTTL)
	if err != nil {
		return fmt.Errorf("load grade cache: %w", err)
	}

	grader := a.grader()
	if err := grader.CheckSubmission(topic, answer, cache); err != nil {
		return err
	}

	result, err := grader.Grade(ctx, topic, answer, cache)
	if err != nil {
		return fmt.Errorf("grade: %w", err)
	}

	if err := a.store.SaveGradeCache(ctx, cache); err != nil {
		return fmt.Errorf("save grade cache: %w", err)
	}
	if !result.Cached {
		if err := a.store.UpsertTopic(ctx, topic); err != nil {
			return fmt.Errorf("save topic: %w", err)
		}
		if err := a.store.SaveDoc(ctx, store.DocUsage, a.usage); err != nil {
			return fmt.Errorf("save usage: %w", err)
		}
	}

	printGradeResult(result, topic)
	return nil
}

func printGradeResult(r *learn.GradeResult, topic *learn.Topic) {
	fmt.Printf("%s (depth %d/5)\n\n", r.TopicName, r.Depth)
	fmt.Printf("score: %.1f/100\n", r.Score)
	fmt.Printf("  concept clarity:       %.1f/25\n", r.Breakdown.ConceptClarity)
	fmt.Printf("  technical correctness: %.1f/25\n", r.Breakdown.TechnicalCorrectness)
	fmt.Printf("  application thinking:  %.1f/25\n", r.Breakdown.ApplicationThinking)
	fmt.Printf("  ai pm relevance:       %.1f/25\n", r.Breakdown.AIPMRelevance)
	fmt.Printf("\ndecision: %s\n", r.Decision)
	if r.Feedback != "" {
		fmt.Printf("feedback: %s\n", r.Feedback)
	}
	if r.Decision == learn.DecisionRetry {
		fmt.Printf("retries remaining: %d\n", r.RetriesRemaining)
	}
	if r.QualityWarning != "" {
		fmt.Printf("note: %s\n", r.QualityWarning)
	}
	if r.Message != "" {
		fmt.Printf("%s\n", r.Message)
	}

	if r.Decision == learn.DecisionReteach && len(topic.History) > 0 {
		if plan := topic.History[len(topic.History)-1].Reteach; plan != nil {
			fmt.Println("\nreteaching plan:")
			for _, sc := range plan.SubConcepts {
				fmt.Printf("  - %s: %s\n", sc.Name, sc.Explanation)
			}
			if plan.ReteachQuestion != "" {
				fmt.Printf("  question: %s\n", plan.ReteachQuestion)
			}
		}
	}
}

func runStatus() error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	metrics, err := a.store.LoadMetrics(ctx)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}
	engine := learn.NewModeEngine(
		a.cfg.Learning.AdvanceThreshold,
		a.cfg.Learning.RecoveryThreshold,
		a.cfg.Learning.PauseNeutralDays,
	)

	fmt.Printf("mode:            %s (quota %d topics/day)\n", metrics.Mode, learn.QuotaFor(metrics.Mode))
	if engine.Paused(metrics) {
		fmt.Println("ingestion:       PAUSED (no grading activity)")
	}
	fmt.Printf("streak:          %d days (longest %d)\n", metrics.StreakCount, metrics.LongestStreak)
	fmt.Printf("low-score days:  %d\n", metrics.ConsecutiveLowDays)
	fmt.Printf("neutral days:    %d\n", metrics.ConsecutiveNeutralDays)

	if len(metrics.DroughtCounters) > 0 {
		fmt.Println("category drought:")
		for _, cat := range learn.AllCategories() {
			fmt.Printf("  %-18s %d days\n", cat, metrics.DroughtCounters[cat])
		}
	}

	month := time.Now().In(a.cfg.Schedule.Location()).Format("2006-01")
	if mc, ok := a.usage.Monthly[month]; ok {
		fmt.Printf("api cost (%s): $%.4f (%d in / %d out tokens)\n",
			month, mc.CostUSD, mc.InputTokens, mc.OutputTokens)
	}
	for model, n := range a.usage.RPD {
		fmt.Printf("requests today:  %s = %d\n", model, n)
	}
	return nil
}

func runServe(port int) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if port != 0 {
		a.cfg.Server.Port = port
	}

	srv := server.New(a.store, a.pipe, a.grader(), a.usage, a.cfg, a.log)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if port != 0 {
		a.cfg.Server.Port = port
	}

	sched := scheduler.New(a.pipe, a.cfg.Schedule)
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	srv := server.New(a.store, a.pipe, a.grader(), a.usage, a.cfg, a.log)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}
