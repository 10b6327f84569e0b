package digest

import (
	"testing"

	"github.com/ashwinpj/learnloop/pkg/learn"
)

func TestUpdateStreak(t *testing.T) {
	m := learn.NewMetrics()

	if got := UpdateStreak(m, "2026-03-10", false); got != 1 {
		t.Fatalf("first day streak = %d, want 1", got)
	}
	if m.StreakStartDate != "2026-03-10" {
		t.Errorf("streak start = %s", m.StreakStartDate)
	}

	if got := UpdateStreak(m, "2026-03-11", true); got != 2 {
		t.Fatalf("consecutive day streak = %d, want 2", got)
	}
	if m.LongestStreak != 2 {
		t.Errorf("longest streak = %d, want 2", m.LongestStreak)
	}

	// A gap resets the streak but keeps the record.
	if got := UpdateStreak(m, "2026-03-15", false); got != 1 {
		t.Fatalf("streak after gap = %d, want 1", got)
	}
	if m.LongestStreak != 2 {
		t.Errorf("longest streak lost on reset: %d", m.LongestStreak)
	}
}

func TestMasteryLevel(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{85, "expert"}, {80, "expert"}, {70, "proficient"},
		{45, "developing"}, {10, "novice"},
	}
	for _, tc := range cases {
		if got := MasteryLevel(tc.score); got != tc.want {
			t.Errorf("MasteryLevel(%.0f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestHeadlinePaused(t *testing.T) {
	d := &Digest{Date: "2026-03-10", Paused: true}
	if got := headline(d); got == "" || got == headline(&Digest{Date: "2026-03-10"}) {
		t.Errorf("paused headline not distinct: %q", got)
	}
}
