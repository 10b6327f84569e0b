package llm

import (
	"math"
	"testing"
)

func testUsage() *Usage {
	return NewUsage("2026-03-10", "gpt-5-mini", "gpt-5-nano", 90, map[string]Pricing{
		"gpt-5-mini": {InputPerToken: 0.25e-6, OutputPerToken: 2.0e-6},
		"gpt-5-nano": {InputPerToken: 0.05e-6, OutputPerToken: 0.4e-6},
	})
}

func TestUsageRecordTracksCost(t *testing.T) {
	u := testUsage()

	cost := u.Record("2026-03", "gpt-5-mini", "grading", 1000, 500)
	want := 1000*0.25e-6 + 500*2.0e-6
	if math.Abs(cost-want) > 1e-12 {
		t.Errorf("cost = %g, want %g", cost, want)
	}
	if u.RPD["gpt-5-mini"] != 1 {
		t.Errorf("rpd = %d, want 1", u.RPD["gpt-5-mini"])
	}

	u.Record("2026-03", "gpt-5-mini", "grading", 1000, 500)
	month := u.Monthly["2026-03"]
	if month.InputTokens != 2000 || month.OutputTokens != 1000 {
		t.Errorf("month totals = %d/%d", month.InputTokens, month.OutputTokens)
	}
	op := month.ByOperation["grading"]
	if op == nil || op.Count != 2 {
		t.Fatalf("operation breakdown = %+v", op)
	}
}

func TestUsageRolloverResetsDailyOnly(t *testing.T) {
	u := testUsage()
	u.Record("2026-03", "gpt-5-mini", "grading", 100, 100)

	u.Rollover("2026-03-10")
	if u.RPD["gpt-5-mini"] != 1 {
		t.Error("same-day rollover reset the counter")
	}

	u.Rollover("2026-03-11")
	if u.RPD["gpt-5-mini"] != 0 {
		t.Error("new-day rollover kept the counter")
	}
	if u.Monthly["2026-03"] == nil {
		t.Error("rollover dropped monthly totals")
	}
}

func TestGradingModelFallback(t *testing.T) {
	u := testUsage()

	model, warning := u.GradingModel()
	if model != "gpt-5-mini" || warning != "" {
		t.Fatalf("under limit: model=%s warning=%q", model, warning)
	}

	u.RPD["gpt-5-mini"] = 90
	model, warning = u.GradingModel()
	if model != "gpt-5-nano" {
		t.Fatalf("at limit: model = %s, want the bulk model", model)
	}
	if warning == "" {
		t.Error("fallback carries no quality warning")
	}
}

func TestCostUnknownModelIsZero(t *testing.T) {
	u := testUsage()
	if c := u.Cost("unpriced-model", 1000, 1000); c != 0 {
		t.Errorf("unpriced model cost = %g, want 0", c)
	}
}
