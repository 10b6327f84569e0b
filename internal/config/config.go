package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	LLM      LLMConfig      `yaml:"llm"`
	Learning LearningConfig `yaml:"learning"`
	Digest   DigestConfig   `yaml:"digest"`
	Server   ServerConfig   `yaml:"server"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig configures the daily slot windows. Hours are local to
// Timezone; a slot fires once per day inside its window.
type ScheduleConfig struct {
	Timezone     string `yaml:"timezone"`
	TickInterval string `yaml:"tick_interval"`
	MorningStart int    `yaml:"morning_start"`
	MorningEnd   int    `yaml:"morning_end"`
	MiddayStart  int    `yaml:"midday_start"`
	MiddayEnd    int    `yaml:"midday_end"`
	EveningStart int    `yaml:"evening_start"`
	EveningEnd   int    `yaml:"evening_end"`
	EndOfDayHour int    `yaml:"end_of_day_hour"`
}

// ParseTickInterval returns the scheduler tick as time.Duration.
func (s ScheduleConfig) ParseTickInterval() time.Duration {
	d, err := time.ParseDuration(s.TickInterval)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// Location resolves the configured timezone, falling back to UTC.
func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FeedsConfig configures the RSS source catalog and fetch limits.
type FeedsConfig struct {
	Sources             []FeedSource `yaml:"sources"`
	ArticleDateGateDays int          `yaml:"article_date_gate_days"`
	MaxArxivPerCycle    int          `yaml:"max_arxiv_per_cycle"`
	ArxivKeywords       []string     `yaml:"arxiv_keywords"`
	AutoDisableFailures int          `yaml:"auto_disable_failures"`
	BlockedDomains      []string     `yaml:"blocked_domains"`
	MinArticleWords     int          `yaml:"min_article_words"`
	MaxArticleWords     int          `yaml:"max_article_words"`
}

// FeedSource is one RSS feed entry. Tier 1 is highest priority; CategoryBias
// is the default learning category for the feed's articles.
type FeedSource struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Tier         int    `yaml:"tier"`
	CategoryBias string `yaml:"category_bias"`
}

// LLMConfig configures the model provider and the two-model split: a
// stronger model for grading, a cheaper one for bulk scoring and summaries.
type LLMConfig struct {
	Provider    string             `yaml:"provider"` // "openai" or "anthropic"
	APIKey      string             `yaml:"api_key"`
	BaseURL     string             `yaml:"base_url"` // custom endpoint (optional)
	GradeModel  string             `yaml:"grade_model"`
	BulkModel   string             `yaml:"bulk_model"`
	FallbackRPD int                `yaml:"fallback_rpd"` // grade-model daily request cap
	Pricing     map[string]Pricing `yaml:"pricing"`
}

// Pricing is the per-token price for one model.
type Pricing struct {
	InputPerToken  float64 `yaml:"input_per_token"`
	OutputPerToken float64 `yaml:"output_per_token"`
}

// LearningConfig configures selection, grading, and adaptive mode thresholds.
type LearningConfig struct {
	AdvanceThreshold   float64 `yaml:"advance_threshold"`
	RecoveryThreshold  float64 `yaml:"recovery_threshold"`
	MaxRetriesPerDepth int     `yaml:"max_retries_per_depth"`
	PauseNeutralDays   int     `yaml:"pause_neutral_days"`
	DroughtDays        int     `yaml:"drought_days"`
	CarryQueueCap      int     `yaml:"carry_queue_cap"`
	MinRelevanceScore  float64 `yaml:"min_relevance_score"`
	MinCredibility     float64 `yaml:"min_credibility_score"`
	GradingCacheTTL    int     `yaml:"grading_cache_ttl_days"`
	MaxCacheEntries    int     `yaml:"max_cache_entries"`
}

// CleanupConfig configures the end-of-day maintenance thresholds.
type CleanupConfig struct {
	ReteachingTimeoutDays int `yaml:"reteaching_timeout_days"`
	ArchiveInactiveDays   int `yaml:"archive_inactive_days"`
	DiscardedMaxEntries   int `yaml:"discarded_max_entries"`
}

// DigestConfig configures evening digest destinations.
type DigestConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook delivery.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook delivery.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook delivery.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Default returns a Config with sensible defaults, including the full
// tiered feed catalog.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./learnloop.db"},
		Schedule: ScheduleConfig{
			Timezone:     "Asia/Kolkata",
			TickInterval: "10m",
			MorningStart: 6, MorningEnd: 10,
			MiddayStart: 10, MiddayEnd: 14,
			EveningStart: 14, EveningEnd: 19,
			EndOfDayHour: 21,
		},
		Feeds: FeedsConfig{
			Sources:             DefaultFeedCatalog(),
			ArticleDateGateDays: 7,
			MaxArxivPerCycle:    10,
			ArxivKeywords: []string{
				"product", "deployment", "production", "recommendation",
				"ranking", "serving", "inference", "optimization",
				"fine-tuning", "RLHF", "alignment", "evaluation", "benchmark",
			},
			AutoDisableFailures: 5,
			MinArticleWords:     200,
			MaxArticleWords:     5000,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			GradeModel:  "gpt-5-mini",
			BulkModel:   "gpt-5-nano",
			FallbackRPD: 90,
			Pricing: map[string]Pricing{
				"gpt-5-mini": {InputPerToken: 0.25e-6, OutputPerToken: 2.0e-6},
				"gpt-5-nano": {InputPerToken: 0.05e-6, OutputPerToken: 0.4e-6},
			},
		},
		Learning: LearningConfig{
			AdvanceThreshold:   70,
			RecoveryThreshold:  75,
			MaxRetriesPerDepth: 2,
			PauseNeutralDays:   7,
			DroughtDays:        7,
			CarryQueueCap:      5,
			MinRelevanceScore:  6.5,
			MinCredibility:     6.0,
			GradingCacheTTL:    30,
			MaxCacheEntries:    1000,
		},
		Cleanup: CleanupConfig{
			ReteachingTimeoutDays: 14,
			ArchiveInactiveDays:   90,
			DiscardedMaxEntries:   500,
		},
		Digest: DigestConfig{},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEARNLOOP_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEARNLOOP_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "openai"
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		cfg.LLM.Provider = "anthropic"
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Digest.Slack.WebhookURL = v
		cfg.Digest.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Digest.Discord.WebhookURL = v
		cfg.Digest.Discord.Enabled = true
	}
}
