package learn

// Mode is the adaptive difficulty level controlling the daily topic quota.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeReduced3 Mode = "reduced_3"
	ModeReduced2 Mode = "reduced_2"
	ModeMinimal  Mode = "minimal"
)

// ModeConfig holds one mode's quota and transition thresholds. An empty
// StepDown/StepUp means no transition exists in that direction.
type ModeConfig struct {
	Quota             int
	LowDaysToStepDown int
	StepDown          Mode
	RecoveryDaysUp    int
	StepUp            Mode
}

// modeTable is the single source of truth for all mode thresholds.
var modeTable = map[Mode]ModeConfig{
	ModeNormal:   {Quota: 5, LowDaysToStepDown: 5, StepDown: ModeReduced3},
	ModeReduced3: {Quota: 3, LowDaysToStepDown: 10, StepDown: ModeReduced2, RecoveryDaysUp: 3, StepUp: ModeNormal},
	ModeReduced2: {Quota: 2, LowDaysToStepDown: 15, StepDown: ModeMinimal, RecoveryDaysUp: 3, StepUp: ModeReduced3},
	ModeMinimal:  {Quota: 1, RecoveryDaysUp: 3, StepUp: ModeReduced2},
}

// QuotaFor returns the daily topic quota for a mode. Unknown modes fall
// back to the normal quota.
func QuotaFor(m Mode) int {
	if cfg, ok := modeTable[m]; ok {
		return cfg.Quota
	}
	return modeTable[ModeNormal].Quota
}

// ConfigFor returns the mode's configuration entry.
func ConfigFor(m Mode) ModeConfig {
	if cfg, ok := modeTable[m]; ok {
		return cfg
	}
	return modeTable[ModeNormal]
}

// DailyAverage is one day's aggregate grading outcome.
type DailyAverage struct {
	Date         string  `json:"date"`
	AvgMastery   float64 `json:"avg_mastery"`
	TopicsGraded int     `json:"topics_graded"`
}

// ModeChange records one adaptive mode transition with its trigger reason.
type ModeChange struct {
	Date   string `json:"date"`
	From   Mode   `json:"from_mode"`
	To     Mode   `json:"to_mode"`
	Reason string `json:"reason"`
}

// Metrics is the process-wide mode and streak state. One instance per
// deployment; callers own its lifecycle and persistence.
type Metrics struct {
	Mode                    Mode                        `json:"current_topic_mode"`
	ConsecutiveLowDays      int                         `json:"consecutive_low_days"`
	ConsecutiveRecoveryDays int                         `json:"consecutive_recovery_days"`
	ConsecutiveNeutralDays  int                         `json:"consecutive_neutral_days"`
	DailyAverages           []DailyAverage              `json:"daily_mastery_averages,omitempty"`
	WeeklyDistribution      map[string]map[Category]int `json:"weekly_category_distribution,omitempty"`
	DroughtCounters         map[Category]int            `json:"category_drought_counter,omitempty"`
	ModeHistory             []ModeChange                `json:"topic_reduction_history,omitempty"`
	StreakCount             int                         `json:"streak_count"`
	StreakStartDate         string                      `json:"streak_start_date,omitempty"`
	LongestStreak           int                         `json:"longest_streak"`
}

// NewMetrics returns metrics in the initial (normal) state.
func NewMetrics() *Metrics {
	return &Metrics{
		Mode:               ModeNormal,
		WeeklyDistribution: make(map[string]map[Category]int),
		DroughtCounters:    make(map[Category]int),
	}
}

// maxDailyAverages bounds the rolling daily-average log.
const maxDailyAverages = 90

// RecordDailyAverage appends one day's mastery average to the rolling log.
// Idempotent per date; the log is capped at the most recent 90 entries.
func (m *Metrics) RecordDailyAverage(date string, avg float64, graded int) {
	for _, e := range m.DailyAverages {
		if e.Date == date {
			return
		}
	}
	m.DailyAverages = append(m.DailyAverages, DailyAverage{
		Date:         date,
		AvgMastery:   avg,
		TopicsGraded: graded,
	})
	if n := len(m.DailyAverages); n > maxDailyAverages {
		m.DailyAverages = m.DailyAverages[n-maxDailyAverages:]
	}
}
