package learn

import (
	"fmt"
	"sort"
	"time"
)

// Slot identifies which scheduled ingestion window a run belongs to.
type Slot string

const (
	SlotMorning Slot = "morning"
	SlotMidday  Slot = "midday"
	SlotEvening Slot = "evening"
)

// SelectorConfig tunes topic selection. Zero values take the defaults.
type SelectorConfig struct {
	DroughtDays int // days without a pick before a category is force-selected
	QueueCap    int // carry-over queue size, filled on the evening slot only
}

func (c *SelectorConfig) applyDefaults() {
	if c.DroughtDays == 0 {
		c.DroughtDays = 7
	}
	if c.QueueCap == 0 {
		c.QueueCap = 5
	}
}

// Selector turns scored candidates into new topics, enforcing the daily
// quota, weekly category balance, and category drought recovery.
type Selector struct {
	cfg     SelectorConfig
	now     func() time.Time
	weekKey func(time.Time) string
}

// NewSelector creates a selector.
func NewSelector(cfg SelectorConfig) *Selector {
	cfg.applyDefaults()
	return &Selector{cfg: cfg, now: time.Now, weekKey: isoWeek}
}

func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Select picks up to the current mode's quota of topics from the carry-over
// queue and fresh candidates, carry-over first. It mutates the metrics
// drought counters and weekly distribution, and returns the topics created
// plus the new carry-over queue (populated on the evening slot only).
//
// An empty pool still ages every category's drought counter: a day where
// nothing arrived is still a day without a pick.
func (s *Selector) Select(candidates, carryOver []Candidate, m *Metrics, slot Slot) ([]*Topic, []Candidate) {
	now := s.now()

	pool := mergePool(carryOver, candidates)
	if len(pool) == 0 {
		for _, cat := range AllCategories() {
			m.DroughtCounters[cat]++
		}
		return nil, nil
	}

	quota := QuotaFor(m.Mode)
	week := s.weekKey(now)

	// Guard against one category dominating the week: snapshot this week's
	// counts up front so picks inside this run don't block each other.
	snapshot := make(map[Category]int, len(m.WeeklyDistribution[week]))
	total := 0
	for cat, n := range m.WeeklyDistribution[week] {
		snapshot[cat] = n
		total += n
	}
	// The average runs over categories seen this week, not all five, so a
	// lopsided week raises the limit instead of diluting it.
	weeklyAvg := 0.0
	if len(snapshot) > 0 {
		weeklyAvg = float64(total) / float64(len(snapshot))
	}
	guardLimit := max(2.0, 2*weeklyAvg)

	// Carry-over sits ahead of fresh candidates, and the sort is stable, so
	// queued items win every tie against new arrivals.
	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].SourceTier != pool[j].SourceTier {
			return pool[i].SourceTier < pool[j].SourceTier
		}
		return pool[i].AvgScore > pool[j].AvgScore
	})

	used := make([]bool, len(pool))
	picked := make(map[Category]bool)
	var selected []*Topic

	take := func(i int) {
		used[i] = true
		picked[pool[i].Category] = true
		selected = append(selected, NewTopic(pool[i], now))
	}

	// The single most starved category jumps the line and ignores the
	// balance guard. One forced pick per run keeps the quota for merit.
	if forced, ok := s.mostStarved(m); ok && len(selected) < quota {
		for i := range pool {
			if !used[i] && pool[i].Category == forced {
				take(i)
				break
			}
		}
	}

	for i := range pool {
		if len(selected) >= quota {
			break
		}
		if used[i] {
			continue
		}
		if float64(snapshot[pool[i].Category]) > guardLimit {
			continue
		}
		take(i)
	}

	for _, cat := range AllCategories() {
		if picked[cat] {
			m.DroughtCounters[cat] = 0
		} else {
			m.DroughtCounters[cat]++
		}
	}
	if len(selected) > 0 {
		if m.WeeklyDistribution[week] == nil {
			m.WeeklyDistribution[week] = make(map[Category]int)
		}
		for _, t := range selected {
			m.WeeklyDistribution[week][t.Category]++
		}
	}

	var newCarry []Candidate
	if slot == SlotEvening {
		for i := range pool {
			if used[i] {
				continue
			}
			if len(newCarry) >= s.cfg.QueueCap {
				break
			}
			newCarry = append(newCarry, pool[i])
		}
	}

	return selected, newCarry
}

// mostStarved returns the category whose drought counter is highest among
// those at or past the drought threshold, or false when none qualifies.
func (s *Selector) mostStarved(m *Metrics) (Category, bool) {
	var best Category
	bestDays := 0
	for _, cat := range AllCategories() {
		days := m.DroughtCounters[cat]
		if days < s.cfg.DroughtDays || days <= bestDays {
			continue
		}
		best, bestDays = cat, days
	}
	return best, bestDays > 0
}

// mergePool prepends the carry-over queue to fresh candidates, dropping
// duplicates by URL hash (carry-over entries win).
func mergePool(carryOver, candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(carryOver)+len(candidates))
	pool := make([]Candidate, 0, len(carryOver)+len(candidates))
	for _, c := range carryOver {
		if c.URLHash != "" && seen[c.URLHash] {
			continue
		}
		seen[c.URLHash] = true
		pool = append(pool, c)
	}
	for _, c := range candidates {
		if c.URLHash != "" && seen[c.URLHash] {
			continue
		}
		seen[c.URLHash] = true
		pool = append(pool, c)
	}
	return pool
}
