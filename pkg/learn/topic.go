package learn

import (
	"time"

	"github.com/google/uuid"
)

// Category is one of the fixed learning categories a topic belongs to.
type Category string

const (
	CategoryMLEngineering   Category = "ml_engineering"
	CategoryProductStrategy Category = "product_strategy"
	CategoryMLOps           Category = "mlops"
	CategoryAIEthics        Category = "ai_ethics"
	CategoryInfrastructure  Category = "infrastructure"
)

// AllCategories returns every known category.
func AllCategories() []Category {
	return []Category{
		CategoryMLEngineering,
		CategoryProductStrategy,
		CategoryMLOps,
		CategoryAIEthics,
		CategoryInfrastructure,
	}
}

// Status is a topic's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
	StatusReteaching Status = "reteaching"
)

// Decision is the grading outcome applied to a topic.
type Decision string

const (
	DecisionAdvance Decision = "advance"
	DecisionRetry   Decision = "retry"
	DecisionReteach Decision = "reteach"
)

// MaxDepth is the final mastery depth. Advancing past it completes the topic.
const MaxDepth = 5

// Summary is the structured study summary generated from an article.
type Summary struct {
	WhyItMatters        string            `json:"why_it_matters"`
	CoreMechanism       string            `json:"core_mechanism"`
	ProductApplications string            `json:"product_applications"`
	RisksLimitations    string            `json:"risks_limitations"`
	KeyTakeaways        []string          `json:"key_takeaways,omitempty"`
	TLDR                string            `json:"tldr"`
	Glossary            map[string]string `json:"glossary,omitempty"`
}

// SubConcept is one simplified concept in a reteaching plan.
type SubConcept struct {
	Name        string `json:"name"`
	Explanation string `json:"explanation"`
}

// ReteachContent is a simplified breakdown generated when a topic enters reteaching.
type ReteachContent struct {
	SubConcepts     []SubConcept `json:"sub_concepts"`
	ReteachQuestion string       `json:"reteach_question"`
}

// HistoryEntry records one grading attempt. The history is append-only.
type HistoryEntry struct {
	Date       time.Time       `json:"date"`
	Depth      int             `json:"depth"`
	Score      float64         `json:"score"`
	AnswerHash string          `json:"answer_hash"`
	Decision   Decision        `json:"decision"`
	Feedback   string          `json:"feedback"`
	ModelUsed  string          `json:"model_used"`
	Cached     bool            `json:"cached"`
	Reteach    *ReteachContent `json:"reteach_content,omitempty"`
}

// Topic is a unit of learning content derived from one article, tracked
// through depths 1-5. Progression fields are mutated only by the Grader.
type Topic struct {
	ID                  string         `json:"topic_id"`
	Name                string         `json:"topic_name"`
	Category            Category       `json:"category"`
	CurrentDepth        int            `json:"current_depth"`
	MasteryScore        float64        `json:"mastery_score"`
	Status              Status         `json:"status"`
	RetriesUsed         int            `json:"retries_used"`
	SourceURL           string         `json:"source_url"`
	SourceTitle         string         `json:"source_title"`
	SourceTier          int            `json:"source_tier"`
	Credibility         float64        `json:"credibility_score"`
	CreatedAt           time.Time      `json:"created_at"`
	LastUpdated         time.Time      `json:"last_updated"`
	LastActive          time.Time      `json:"last_active"`
	ReteachingEnteredAt *time.Time     `json:"reteaching_entered_at,omitempty"`
	Summary             Summary        `json:"summary"`
	History             []HistoryEntry `json:"history,omitempty"`
}

// Candidate is a scored and summarized article eligible for topic selection.
// The same shape is queued as evening carry-over: it carries everything
// needed to re-enter selection without re-fetching or re-summarizing.
type Candidate struct {
	URL         string             `json:"url"`
	URLHash     string             `json:"url_hash"`
	Title       string             `json:"title"`
	SourceName  string             `json:"source_name"`
	SourceTier  int                `json:"source_tier"`
	Category    Category           `json:"category"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	AvgScore    float64            `json:"avg_score"`
	Credibility float64            `json:"credibility"`
	Summary     Summary            `json:"summary"`
	AddedAt     time.Time          `json:"added_at"`
}

// NewTopic converts a selected candidate into a fresh topic at depth 1.
func NewTopic(c Candidate, now time.Time) *Topic {
	return &Topic{
		ID:           uuid.NewString(),
		Name:         c.Title,
		Category:     c.Category,
		CurrentDepth: 1,
		MasteryScore: 0,
		Status:       StatusActive,
		SourceURL:    c.URL,
		SourceTitle:  c.Title,
		SourceTier:   c.SourceTier,
		Credibility:  c.Credibility,
		CreatedAt:    now,
		LastUpdated:  now,
		LastActive:   now,
		Summary:      c.Summary,
	}
}

// Terminal reports whether the topic can no longer be graded.
func (t *Topic) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusArchived
}
