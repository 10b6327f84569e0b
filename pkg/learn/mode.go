package learn

import "fmt"

// ModeEngine is the adaptive difficulty state machine. It maps a stream of
// daily (mastery average, topics graded) observations onto a Mode and the
// rolling day counters in Metrics. Callers invoke Update at most once per
// calendar day; the engine itself is stateless about dates.
type ModeEngine struct {
	advanceThreshold  float64
	recoveryThreshold float64
	pauseNeutralDays  int
}

// NewModeEngine creates a mode engine. Zero arguments fall back to the
// defaults (advance 70, recovery 75, pause after 7 neutral days).
func NewModeEngine(advanceThreshold, recoveryThreshold float64, pauseNeutralDays int) *ModeEngine {
	if advanceThreshold == 0 {
		advanceThreshold = 70
	}
	if recoveryThreshold == 0 {
		recoveryThreshold = 75
	}
	if pauseNeutralDays == 0 {
		pauseNeutralDays = 7
	}
	return &ModeEngine{
		advanceThreshold:  advanceThreshold,
		recoveryThreshold: recoveryThreshold,
		pauseNeutralDays:  pauseNeutralDays,
	}
}

// Update classifies one day and applies the resulting counter and mode
// changes to m. Returns the (possibly updated) current mode.
//
// A day with zero graded topics is neutral: only the neutral counter moves
// and the mode never changes. An active day is recovery (avg >= recovery
// threshold), low (avg < advance threshold), or mediocre (anything else);
// a mediocre day decays both decisive counters by one, floored at zero,
// instead of resetting them.
func (e *ModeEngine) Update(m *Metrics, date string, todayAvg float64, topicsGraded int) Mode {
	if topicsGraded == 0 {
		m.ConsecutiveNeutralDays++
		return m.Mode
	}

	m.ConsecutiveNeutralDays = 0
	old := m.Mode
	cfg := ConfigFor(m.Mode)

	switch {
	case todayAvg >= e.recoveryThreshold:
		m.ConsecutiveRecoveryDays++
		m.ConsecutiveLowDays = 0
		if cfg.StepUp != "" && m.ConsecutiveRecoveryDays >= cfg.RecoveryDaysUp {
			m.Mode = cfg.StepUp
			m.ConsecutiveRecoveryDays = 0
			m.ModeHistory = append(m.ModeHistory, ModeChange{
				Date:   date,
				From:   old,
				To:     cfg.StepUp,
				Reason: fmt.Sprintf("%d_consecutive_recovery_days_avg_%.1f", cfg.RecoveryDaysUp, todayAvg),
			})
		}

	case todayAvg < e.advanceThreshold:
		m.ConsecutiveLowDays++
		m.ConsecutiveRecoveryDays = 0
		if cfg.StepDown != "" && m.ConsecutiveLowDays >= cfg.LowDaysToStepDown {
			m.Mode = cfg.StepDown
			m.ConsecutiveLowDays = 0
			m.ModeHistory = append(m.ModeHistory, ModeChange{
				Date:   date,
				From:   old,
				To:     cfg.StepDown,
				Reason: fmt.Sprintf("%d_consecutive_low_days_avg_%.1f", cfg.LowDaysToStepDown, todayAvg),
			})
		}

	default:
		// Mediocre day: slow progress toward both thresholds, don't reset it.
		m.ConsecutiveLowDays = max(0, m.ConsecutiveLowDays-1)
		m.ConsecutiveRecoveryDays = max(0, m.ConsecutiveRecoveryDays-1)
	}

	return m.Mode
}

// Paused reports whether the learner has been inactive long enough to
// trigger a pause alert. Advisory only; the mode never changes on pause.
func (e *ModeEngine) Paused(m *Metrics) bool {
	return m.ConsecutiveNeutralDays >= e.pauseNeutralDays
}
