package learn

import (
	"fmt"
	"testing"
	"time"
)

func testSelector() *Selector {
	s := NewSelector(SelectorConfig{})
	s.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }
	s.weekKey = func(time.Time) string { return "2026-W11" }
	return s
}

func candidate(title string, cat Category, tier int, avg float64) Candidate {
	return Candidate{
		URL:        "https://example.com/" + title,
		URLHash:    "hash-" + title,
		Title:      title,
		SourceTier: tier,
		Category:   cat,
		AvgScore:   avg,
	}
}

func manyCandidates(n int, cat Category) []Candidate {
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidate(fmt.Sprintf("%s-%d", cat, i), cat, 2, 7.0))
	}
	return out
}

func TestSelectRespectsQuota(t *testing.T) {
	s := testSelector()
	m := NewMetrics()

	selected, _ := s.Select(manyCandidates(12, CategoryMLEngineering), nil, m, SlotMorning)
	if len(selected) != QuotaFor(ModeNormal) {
		t.Fatalf("selected %d topics in normal mode, want %d", len(selected), QuotaFor(ModeNormal))
	}

	m2 := NewMetrics()
	m2.Mode = ModeMinimal
	selected, _ = s.Select(manyCandidates(12, CategoryMLEngineering), nil, m2, SlotMorning)
	if len(selected) != 1 {
		t.Fatalf("selected %d topics in minimal mode, want 1", len(selected))
	}
}

func TestSelectOrdersByTierThenScore(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	pool := []Candidate{
		candidate("low-score-tier1", CategoryMLOps, 1, 6.0),
		candidate("high-score-tier3", CategoryAIEthics, 3, 9.5),
		candidate("high-score-tier1", CategoryMLEngineering, 1, 9.0),
	}
	m.Mode = ModeReduced2 // quota 2

	selected, _ := s.Select(pool, nil, m, SlotMorning)
	if len(selected) != 2 {
		t.Fatalf("selected %d, want 2", len(selected))
	}
	if selected[0].Name != "high-score-tier1" || selected[1].Name != "low-score-tier1" {
		t.Errorf("order = [%s, %s], want tier-1 pair first", selected[0].Name, selected[1].Name)
	}
}

func TestSelectCarryOverWinsTies(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal

	carried := candidate("carried", CategoryMLOps, 2, 7.0)
	fresh := candidate("fresh", CategoryMLEngineering, 2, 7.0)

	selected, _ := s.Select([]Candidate{fresh}, []Candidate{carried}, m, SlotMorning)
	if len(selected) != 1 || selected[0].Name != "carried" {
		t.Fatalf("carry-over lost an equal-priority tie: %+v", selected)
	}
}

func TestSelectEmptyPoolStillAgesDroughtCounters(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.DroughtCounters[CategoryAIEthics] = 3

	selected, carry := s.Select(nil, nil, m, SlotMorning)
	if selected != nil || carry != nil {
		t.Fatalf("empty pool produced output: %v / %v", selected, carry)
	}
	for _, cat := range AllCategories() {
		want := 1
		if cat == CategoryAIEthics {
			want = 4
		}
		if m.DroughtCounters[cat] != want {
			t.Errorf("drought[%s] = %d, want %d", cat, m.DroughtCounters[cat], want)
		}
	}
}

func TestSelectDroughtForcesCategory(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal
	m.DroughtCounters[CategoryAIEthics] = 7

	pool := []Candidate{
		candidate("shiny", CategoryMLEngineering, 1, 9.9),
		candidate("starved", CategoryAIEthics, 3, 4.0),
	}
	selected, _ := s.Select(pool, nil, m, SlotMorning)
	if len(selected) != 1 || selected[0].Category != CategoryAIEthics {
		t.Fatalf("starved category not force-picked: %+v", selected)
	}
	if m.DroughtCounters[CategoryAIEthics] != 0 {
		t.Errorf("drought counter not reset after forced pick: %d", m.DroughtCounters[CategoryAIEthics])
	}
	if m.DroughtCounters[CategoryMLEngineering] != 1 {
		t.Errorf("unpicked category counter = %d, want 1", m.DroughtCounters[CategoryMLEngineering])
	}
}

func TestSelectWeeklyGuardSkipsDominantCategory(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal
	// Three categories seen this week, avg 8/3: limit max(2, 16/3) = 5.33,
	// so the category sitting at 6 is over it.
	m.WeeklyDistribution["2026-W11"] = map[Category]int{
		CategoryMLEngineering: 6,
		CategoryMLOps:         1,
		CategoryAIEthics:      1,
	}

	pool := []Candidate{
		candidate("dominant", CategoryMLEngineering, 1, 9.9),
		candidate("fallback", CategoryMLOps, 3, 5.0),
	}
	selected, _ := s.Select(pool, nil, m, SlotMorning)
	if len(selected) != 1 || selected[0].Category != CategoryMLOps {
		t.Fatalf("dominant category not skipped: %+v", selected)
	}

	// A forced drought pick ignores the guard.
	m.WeeklyDistribution["2026-W11"][CategoryMLEngineering] = 8 // back over the limit
	m.DroughtCounters[CategoryMLEngineering] = 7
	selected, _ = s.Select([]Candidate{candidate("dominant2", CategoryMLEngineering, 1, 9.9)}, nil, m, SlotMorning)
	if len(selected) != 1 || selected[0].Category != CategoryMLEngineering {
		t.Fatalf("drought pick blocked by weekly guard: %+v", selected)
	}
}

func TestSelectWeeklyGuardAveragesOverSeenCategories(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal
	// One category carries the whole week: avg 10 over the single seen
	// category, limit 20, so 10 picks don't trip the guard.
	m.WeeklyDistribution["2026-W11"] = map[Category]int{CategoryMLEngineering: 10}

	pool := []Candidate{
		candidate("dominant", CategoryMLEngineering, 1, 9.9),
		candidate("fallback", CategoryMLOps, 3, 5.0),
	}
	selected, _ := s.Select(pool, nil, m, SlotMorning)
	if len(selected) != 1 || selected[0].Category != CategoryMLEngineering {
		t.Fatalf("under-limit dominant category skipped: %+v", selected)
	}
}

func TestSelectDroughtForcesMostStarvedCategory(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal
	m.DroughtCounters[CategoryMLEngineering] = 7
	m.DroughtCounters[CategoryInfrastructure] = 9

	pool := []Candidate{
		candidate("starved", CategoryMLEngineering, 1, 9.0),
		candidate("starveder", CategoryInfrastructure, 3, 4.0),
	}
	selected, _ := s.Select(pool, nil, m, SlotMorning)
	if len(selected) == 0 || selected[0].Category != CategoryInfrastructure {
		t.Fatalf("forced pick = %+v, want the longest-starved category first", selected)
	}
}

func TestSelectEveningFillsCarryQueue(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	pool := manyCandidates(12, CategoryProductStrategy)

	_, carry := s.Select(pool, nil, m, SlotMorning)
	if carry != nil {
		t.Fatalf("morning slot queued %d candidates", len(carry))
	}

	m2 := NewMetrics()
	_, carry = s.Select(pool, nil, m2, SlotEvening)
	if len(carry) != 5 {
		t.Fatalf("evening carry queue = %d, want 5 (12 pool - 5 picked, capped)", len(carry))
	}
}

func TestSelectDeduplicatesByURLHash(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeReduced2

	dup := candidate("same", CategoryInfrastructure, 2, 7.0)
	selected, _ := s.Select([]Candidate{dup, dup}, []Candidate{dup}, m, SlotMorning)
	if len(selected) != 1 {
		t.Fatalf("duplicate URL selected twice: %d topics", len(selected))
	}
}

func TestSelectInitializesNewTopics(t *testing.T) {
	s := testSelector()
	m := NewMetrics()
	m.Mode = ModeMinimal

	selected, _ := s.Select([]Candidate{candidate("fresh", CategoryMLOps, 1, 8.0)}, nil, m, SlotMidday)
	if len(selected) != 1 {
		t.Fatalf("selected %d, want 1", len(selected))
	}
	topic := selected[0]
	if topic.ID == "" || topic.CurrentDepth != 1 || topic.Status != StatusActive || topic.MasteryScore != 0 {
		t.Errorf("new topic badly initialized: %+v", topic)
	}
	if m.WeeklyDistribution["2026-W11"][CategoryMLOps] != 1 {
		t.Errorf("weekly distribution not updated: %+v", m.WeeklyDistribution)
	}
}
