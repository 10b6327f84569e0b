package learn

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// QuarterlyReport aggregates one quarter of learning activity. Reports are
// generated on the first day of the following quarter and kept forever.
type QuarterlyReport struct {
	Quarter              string               `json:"quarter"`
	PeriodStart          string               `json:"period_start"`
	PeriodEnd            string               `json:"period_end"`
	TopicsCovered        int                  `json:"topics_covered"`
	TopicsCompleted      int                  `json:"topics_completed"`
	TopicsAttempted      int                  `json:"topics_attempted"`
	AvgMasteryOverall    float64              `json:"avg_mastery_overall"`
	AvgMasteryByCategory map[Category]float64 `json:"avg_mastery_by_category,omitempty"`
	DepthDistribution    map[string]int       `json:"depth_progression"`
	WeakestCategories    []Category           `json:"weakest_categories,omitempty"`
	StrongestCategories  []Category           `json:"strongest_categories,omitempty"`
	LearningVelocity     float64              `json:"learning_velocity"`
	StreakMax            int                  `json:"streak_max"`
	TopicReductionDays   int                  `json:"topic_reduction_days"`
	ReteachCount         int                  `json:"reteach_count"`
	GeneratedAt          time.Time            `json:"generated_at"`
}

// QuarterLabel formats the quarter containing t, e.g. "Q3 2026".
func QuarterLabel(t time.Time) string {
	return fmt.Sprintf("Q%d %d", (int(t.Month())-1)/3+1, t.Year())
}

// QuarterBoundary reports whether t falls on the first day of a quarter.
func QuarterBoundary(t time.Time) bool {
	switch t.Month() {
	case time.January, time.April, time.July, time.October:
		return t.Day() == 1
	}
	return false
}

// PreviousQuarterStart returns the first day of the quarter before the one
// containing t.
func PreviousQuarterStart(t time.Time) time.Time {
	month := time.Month(((int(t.Month())-1)/3)*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location()).AddDate(0, -3, 0)
}

// BuildQuarterlyReport summarizes the quarter that ended just before now.
// topics must hold both live and archived topics; archived ones whose
// history closes with a final-depth advance still count as completed.
func BuildQuarterlyReport(topics []*Topic, m *Metrics, now time.Time) *QuarterlyReport {
	r := &QuarterlyReport{
		Quarter:           QuarterLabel(PreviousQuarterStart(now)),
		PeriodStart:       PreviousQuarterStart(now).Format("2006-01-02"),
		PeriodEnd:         now.Format("2006-01-02"),
		TopicsCovered:     len(topics),
		DepthDistribution: make(map[string]int, MaxDepth),
		StreakMax:         m.LongestStreak,
		GeneratedAt:       now,
	}

	var scoreSum float64
	var scored int
	catSum := make(map[Category]float64)
	catN := make(map[Category]int)
	advanced := 0

	for _, t := range topics {
		if completedMastery(t) {
			r.TopicsCompleted++
		}
		if len(t.History) > 0 {
			r.TopicsAttempted++
		}
		if t.CurrentDepth > 1 {
			advanced++
		}
		if t.MasteryScore > 0 {
			scoreSum += t.MasteryScore
			scored++
			catSum[t.Category] += t.MasteryScore
			catN[t.Category]++
		}
		depth := t.CurrentDepth
		if depth < 1 {
			depth = 1
		} else if depth > MaxDepth {
			depth = MaxDepth
		}
		r.DepthDistribution[fmt.Sprintf("%d", depth)]++

		for _, h := range t.History {
			if h.Decision == DecisionReteach {
				r.ReteachCount++
				break
			}
		}
	}

	if scored > 0 {
		r.AvgMasteryOverall = round1(scoreSum / float64(scored))
	}
	if len(catN) > 0 {
		r.AvgMasteryByCategory = make(map[Category]float64, len(catN))
		for cat, n := range catN {
			r.AvgMasteryByCategory[cat] = round1(catSum[cat] / float64(n))
		}
		r.WeakestCategories, r.StrongestCategories = rankCategories(r.AvgMasteryByCategory)
	}
	if r.TopicsAttempted > 0 {
		r.LearningVelocity = round2(float64(advanced) / float64(r.TopicsAttempted))
	}

	for _, change := range m.ModeHistory {
		if change.To != ModeNormal {
			r.TopicReductionDays++
		}
	}
	return r
}

// completedMastery treats an archived topic whose last grade was a
// final-depth advance as completed; archiving overwrites the status.
func completedMastery(t *Topic) bool {
	if t.Status == StatusCompleted {
		return true
	}
	if t.Status != StatusArchived || len(t.History) == 0 {
		return false
	}
	last := t.History[len(t.History)-1]
	return last.Decision == DecisionAdvance && last.Depth == MaxDepth
}

// rankCategories returns the two lowest and two highest scoring categories,
// worst-first and best-first respectively.
func rankCategories(avgs map[Category]float64) (weakest, strongest []Category) {
	cats := make([]Category, 0, len(avgs))
	for cat := range avgs {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if avgs[cats[i]] != avgs[cats[j]] {
			return avgs[cats[i]] < avgs[cats[j]]
		}
		return cats[i] < cats[j]
	})

	n := len(cats)
	if n > 2 {
		weakest = cats[:2]
	} else {
		weakest = cats
	}
	strongest = make([]Category, 0, 2)
	for i := n - 1; i >= 0 && len(strongest) < 2; i-- {
		strongest = append(strongest, cats[i])
	}
	return weakest, strongest
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round2(f float64) float64 { return math.Round(f*100) / 100 }
