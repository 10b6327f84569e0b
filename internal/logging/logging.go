// Package logging provides the structured event log. Events are append-only
// JSON lines; operational noise stays on stderr in the callers.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Level accepts zap's textual levels
// ("debug", "info", ...); anything unparseable falls back to info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// FeedFetch records one RSS fetch attempt.
func FeedFetch(log *zap.Logger, source string, tier int, found, kept int, err error) {
	fields := []zap.Field{
		zap.String("event", "feed_fetch"),
		zap.String("source", source),
		zap.Int("tier", tier),
		zap.Int("articles_found", found),
		zap.Int("articles_kept", kept),
	}
	if err != nil {
		log.Warn("feed fetch failed", append(fields, zap.Error(err))...)
		return
	}
	log.Info("feed fetched", fields...)
}

// Grading records one fresh grading decision.
func Grading(log *zap.Logger, topicID string, depth int, score float64, decision, model string, cached bool) {
	log.Info("answer graded",
		zap.String("event", "grading"),
		zap.String("topic_id", topicID),
		zap.Int("depth", depth),
		zap.Float64("score", score),
		zap.String("decision", decision),
		zap.String("model", model),
		zap.Bool("cached", cached),
	)
}

// ModeTransition records an adaptive mode change.
func ModeTransition(log *zap.Logger, from, to, reason string) {
	log.Info("mode transition",
		zap.String("event", "mode_transition"),
		zap.String("from", from),
		zap.String("to", to),
		zap.String("reason", reason),
	)
}

// LLMCall records one model invocation with its estimated cost.
func LLMCall(log *zap.Logger, model, operation string, inputTokens, outputTokens int, costUSD float64) {
	log.Info("llm call",
		zap.String("event", "llm_call"),
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Int("input_tokens", inputTokens),
		zap.Int("output_tokens", outputTokens),
		zap.Float64("cost_usd", costUSD),
	)
}

// SlotRun records one scheduler slot execution.
func SlotRun(log *zap.Logger, date, slot string, selected, carried int) {
	log.Info("slot run",
		zap.String("event", "slot_run"),
		zap.String("date", date),
		zap.String("slot", slot),
		zap.Int("topics_selected", selected),
		zap.Int("carried_over", carried),
	)
}
