// Package digest delivers the end-of-day learning summary to the
// configured destinations.
package digest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwinpj/learnloop/pkg/learn"
)

// Digest is one day's learning summary.
type Digest struct {
	Date        string         `json:"date"`
	Mode        learn.Mode     `json:"mode"`
	Quota       int            `json:"quota"`
	NewTopics   []*learn.Topic `json:"new_topics,omitempty"`
	GradedToday int            `json:"graded_today"`
	AvgMastery  float64        `json:"avg_mastery"`
	Streak      int            `json:"streak"`
	Paused      bool           `json:"paused"`
}

// Notifier delivers digests to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, d *Digest) error
}

// Manager broadcasts a digest to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a digest manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a digest to all registered notifiers. It returns how
// many deliveries succeeded alongside the joined failures, so a caller can
// treat a partial delivery as sent.
func (m *Manager) Broadcast(ctx context.Context, d *Digest) (int, error) {
	var errs []error
	delivered := 0
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
			continue
		}
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// MasteryLevel labels a mastery score for display.
func MasteryLevel(score float64) string {
	switch {
	case score >= 80:
		return "expert"
	case score >= 60:
		return "proficient"
	case score >= 40:
		return "developing"
	default:
		return "novice"
	}
}

// UpdateStreak advances the delivery streak for a day about to be sent.
// The streak only continues when yesterday's digest went out; otherwise
// today starts a new one. Returns the updated streak.
func UpdateStreak(m *learn.Metrics, today string, yesterdaySent bool) int {
	if yesterdaySent {
		m.StreakCount++
	} else {
		m.StreakCount = 1
		m.StreakStartDate = today
	}
	if m.StreakCount > m.LongestStreak {
		m.LongestStreak = m.StreakCount
	}
	return m.StreakCount
}

// headline renders the one-line summary shared by the notifiers.
func headline(d *Digest) string {
	if d.Paused {
		return fmt.Sprintf("Learning paused — no activity recently. %d topics waiting.", len(d.NewTopics))
	}
	return fmt.Sprintf("Daily learning digest — %s", d.Date)
}

// bodyLines renders the shared digest body.
func bodyLines(d *Digest) string {
	body := fmt.Sprintf("Mode: %s (quota %d/day) | Graded today: %d", d.Mode, d.Quota, d.GradedToday)
	if d.GradedToday > 0 {
		body += fmt.Sprintf(" | Avg mastery: %.1f (%s)", d.AvgMastery, MasteryLevel(d.AvgMastery))
	}
	if d.Streak > 0 {
		body += fmt.Sprintf(" | Streak: %d days", d.Streak)
	}
	return body
}
