package llm

import "fmt"

// Pricing is the USD cost per token for one model.
type Pricing struct {
	InputPerToken  float64 `yaml:"input_per_token" json:"input_per_token"`
	OutputPerToken float64 `yaml:"output_per_token" json:"output_per_token"`
}

// MonthCost accumulates token and dollar totals for one calendar month.
type MonthCost struct {
	InputTokens  int                `json:"total_input_tokens"`
	OutputTokens int                `json:"total_output_tokens"`
	CostUSD      float64            `json:"total_cost_usd"`
	ByOperation  map[string]*OpCost `json:"calls_by_operation,omitempty"`
}

// OpCost tracks per-operation call counts and token totals within a month.
type OpCost struct {
	Count        int `json:"count"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Usage tracks per-model daily request counts and monthly token costs.
// It is persisted alongside the rest of the pipeline state; the date field
// lets a loader reset the daily counters when the calendar day changes.
type Usage struct {
	Date    string                `json:"date"`
	RPD     map[string]int        `json:"daily_rpd"`
	Monthly map[string]*MonthCost `json:"monthly_cost_tracker,omitempty"`

	GradeModel  string             `json:"-"`
	BulkModel   string             `json:"-"`
	FallbackRPD int                `json:"-"`
	Prices      map[string]Pricing `json:"-"`
}

// NewUsage creates a usage tracker for the given day.
func NewUsage(date, gradeModel, bulkModel string, fallbackRPD int, prices map[string]Pricing) *Usage {
	if fallbackRPD <= 0 {
		fallbackRPD = 90
	}
	return &Usage{
		Date:        date,
		RPD:         make(map[string]int),
		Monthly:     make(map[string]*MonthCost),
		GradeModel:  gradeModel,
		BulkModel:   bulkModel,
		FallbackRPD: fallbackRPD,
		Prices:      prices,
	}
}

// Rollover resets the daily request counters when the date has changed.
func (u *Usage) Rollover(date string) {
	if u.Date != date {
		u.Date = date
		u.RPD = make(map[string]int)
	}
}

// Record logs one API call: increments the model's daily request count and
// adds token cost to the month bucket. Returns the call's cost in USD.
func (u *Usage) Record(month, model, operation string, inputTokens, outputTokens int) float64 {
	if u.RPD == nil {
		u.RPD = make(map[string]int)
	}
	u.RPD[model]++

	cost := u.Cost(model, inputTokens, outputTokens)
	if u.Monthly == nil {
		u.Monthly = make(map[string]*MonthCost)
	}
	mc, ok := u.Monthly[month]
	if !ok {
		mc = &MonthCost{ByOperation: make(map[string]*OpCost)}
		u.Monthly[month] = mc
	}
	mc.InputTokens += inputTokens
	mc.OutputTokens += outputTokens
	mc.CostUSD += cost
	if mc.ByOperation == nil {
		mc.ByOperation = make(map[string]*OpCost)
	}
	op, ok := mc.ByOperation[operation]
	if !ok {
		op = &OpCost{}
		mc.ByOperation[operation] = op
	}
	op.Count++
	op.InputTokens += inputTokens
	op.OutputTokens += outputTokens
	return cost
}

// Cost computes the USD cost of one call. Unknown models price at zero.
func (u *Usage) Cost(model string, inputTokens, outputTokens int) float64 {
	p, ok := u.Prices[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)*p.InputPerToken + float64(outputTokens)*p.OutputPerToken
}

// GradingModel picks the model for a grading call. Once the preferred
// grading model's daily request count reaches the fallback threshold, the
// bulk model is substituted and a quality warning is returned with it.
func (u *Usage) GradingModel() (model string, qualityWarning string) {
	if u.RPD[u.GradeModel] >= u.FallbackRPD {
		warning := fmt.Sprintf(
			"Graded with lighter model due to daily rate limit (%d requests to %s today)",
			u.RPD[u.GradeModel], u.GradeModel,
		)
		return u.BulkModel, warning
	}
	return u.GradeModel, ""
}
