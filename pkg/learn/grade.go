package learn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ashwinpj/learnloop/pkg/llm"
)

// Completer produces a raw model reply for a prompt. Implementations own
// retries, rate accounting, and transport; failures must surface as errors.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int, temperature float64) (string, error)
}

// ModelPicker selects the scoring model, substituting a lighter model with
// a quality warning once the preferred one hits its daily request limit.
type ModelPicker interface {
	GradingModel() (model, qualityWarning string)
}

// Validation errors returned by CheckSubmission.
var (
	ErrTopicCompleted = errors.New("topic is already completed")
	ErrTopicArchived  = errors.New("topic is archived and cannot be graded")
	ErrAnswerTooShort = errors.New("answer is below the minimum word count")
	ErrAnswerRepeated = errors.New("this exact answer has already been submitted too many times")
)

// MinAnswerWords is the minimum accepted answer length.
const MinAnswerWords = 50

// maxRepeatSubmissions is the hard limit on re-submitting an identical
// answer for the same topic and depth.
const maxRepeatSubmissions = 3

// Breakdown is the four-dimension rubric; each dimension is 0-25 points.
type Breakdown struct {
	ConceptClarity       float64 `json:"concept_clarity"`
	TechnicalCorrectness float64 `json:"technical_correctness"`
	ApplicationThinking  float64 `json:"application_thinking"`
	AIPMRelevance        float64 `json:"ai_pm_relevance"`
}

// Total sums the rubric dimensions into the 0-100 score.
func (b Breakdown) Total() float64 {
	return b.ConceptClarity + b.TechnicalCorrectness + b.ApplicationThinking + b.AIPMRelevance
}

// GradeResult is the response for one grading attempt. Depth is the depth
// the answer was graded at; NewDepth is the depth after any advancement.
type GradeResult struct {
	TopicID          string    `json:"topic_id"`
	TopicName        string    `json:"topic_name"`
	Depth            int       `json:"depth"`
	Score            float64   `json:"score"`
	Breakdown        Breakdown `json:"breakdown"`
	Feedback         string    `json:"feedback"`
	Decision         Decision  `json:"decision"`
	NewDepth         int       `json:"new_depth"`
	RetriesRemaining int       `json:"retries_remaining"`
	ModelUsed        string    `json:"model_used"`
	QualityWarning   string    `json:"quality_warning,omitempty"`
	Cached           bool      `json:"cached"`
	Message          string    `json:"message,omitempty"`
}

// GraderConfig tunes the grading engine. Zero values take the defaults.
type GraderConfig struct {
	AdvanceThreshold float64 // score at or above which the topic advances
	ReteachThreshold float64 // score below which reteaching is immediate
	MaxRetries       int     // retries allowed per depth before reteaching
	MaxAnswerChars   int     // answer truncation for the scoring prompt
	GradeMaxTokens   int
	ReteachMaxTokens int
	ReteachModel     string // lighter model used for reteach generation
}

func (c *GraderConfig) applyDefaults() {
	if c.AdvanceThreshold == 0 {
		c.AdvanceThreshold = 70
	}
	if c.ReteachThreshold == 0 {
		c.ReteachThreshold = 40
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxAnswerChars == 0 {
		c.MaxAnswerChars = 800
	}
	if c.GradeMaxTokens == 0 {
		c.GradeMaxTokens = 400
	}
	if c.ReteachMaxTokens == 0 {
		c.ReteachMaxTokens = 500
	}
}

// Grader scores free-text answers against the mastery rubric and applies
// the resulting decision to the topic's progression state.
type Grader struct {
	llm    Completer
	models ModelPicker
	cfg    GraderConfig
	now    func() time.Time
}

// NewGrader creates a grading engine.
func NewGrader(completer Completer, models ModelPicker, cfg GraderConfig) *Grader {
	cfg.applyDefaults()
	return &Grader{llm: completer, models: models, cfg: cfg, now: time.Now}
}

const gradingPrompt = `You are an expert AI PM educator grading a student answer.

TOPIC: %s
DEPTH LEVEL: %d/5

TOPIC CONTEXT (from summary):
%s

STUDENT ANSWER:
%s

Grade on a 4-dimension rubric (0-25 points each, total 100):

1. concept_clarity (0-25): Does the student clearly understand and explain the core concept?
2. technical_correctness (0-25): Are the technical details accurate and precise?
3. application_thinking (0-25): Does the student demonstrate how to apply this in product work?
4. ai_pm_relevance (0-25): Is the response relevant to the work of an AI PM?

Respond ONLY with JSON:
{
  "concept_clarity": <0-25>,
  "technical_correctness": <0-25>,
  "application_thinking": <0-25>,
  "ai_pm_relevance": <0-25>,
  "feedback": "<1-2 sentences of specific, constructive feedback>"
}`

const reteachPrompt = `You are an AI PM educator. A student has failed to master a topic at depth %d.
Break it down into simpler sub-concepts to help them re-engage.

TOPIC: %s
DEPTH: %d/5

ORIGINAL SUMMARY:
%s

Produce a reteaching plan:
{
  "sub_concepts": [
    {"name": "<concept>", "explanation": "<simple explanation in 2-3 sentences>"}
  ],
  "reteach_question": "<A simpler question to help the student engage with the fundamentals>"
}

Include 3-5 sub-concepts. Plain English only. Respond ONLY with JSON.`

// CheckSubmission runs the caller-side validations that must reject a
// grading request before it reaches Grade: minimum answer length, terminal
// topic state, and the identical-answer repeat limit.
func (g *Grader) CheckSubmission(topic *Topic, answer string, cache *GradeCache) error {
	if len(strings.Fields(answer)) < MinAnswerWords {
		return ErrAnswerTooShort
	}
	switch topic.Status {
	case StatusCompleted:
		return ErrTopicCompleted
	case StatusArchived:
		return ErrTopicArchived
	}
	if cache.SubmissionCount(topic.ID, topic.CurrentDepth, answer, g.now()) >= maxRepeatSubmissions {
		return ErrAnswerRepeated
	}
	return nil
}

// Grade scores one answer for a topic. A live cache entry short-circuits
// into a display-only response: the entry's submission counter moves, the
// topic never does. A fresh grade is cached before the topic is mutated so
// the cached record keeps the pre-advancement depth.
func (g *Grader) Grade(ctx context.Context, topic *Topic, answer string, cache *GradeCache) (*GradeResult, error) {
	now := g.now()

	if entry := cache.Get(topic.ID, topic.CurrentDepth, answer, now); entry != nil {
		// Cache bookkeeping only; the topic itself stays untouched.
		entry.SubmissionCount++
		return g.cachedResult(topic, entry), nil
	}

	model, qualityWarning := g.models.GradingModel()

	// Truncation counts runes so a multi-byte character never gets split.
	truncated := answer
	if runes := []rune(truncated); len(runes) > g.cfg.MaxAnswerChars {
		truncated = string(runes[:g.cfg.MaxAnswerChars])
	}
	prompt := fmt.Sprintf(gradingPrompt, topic.Name, topic.CurrentDepth, summaryContext(topic.Summary), truncated)

	raw, err := g.llm.Complete(ctx, model, prompt, g.cfg.GradeMaxTokens, 0)
	if err != nil {
		return nil, fmt.Errorf("grade %s: %w", topic.ID, err)
	}

	breakdown, feedback, err := parseRubric(raw)
	if err != nil {
		return nil, fmt.Errorf("grade %s: %w", topic.ID, err)
	}

	score := breakdown.Total()
	decision := g.decide(score, topic.RetriesUsed)

	cache.Put(topic.ID, topic.CurrentDepth, answer, CachedResult{
		Score:     score,
		Breakdown: breakdown,
		Feedback:  feedback,
		Decision:  decision,
		ModelUsed: model,
	}, now)

	var reteach *ReteachContent
	if decision == DecisionReteach {
		// Best effort; the grade stands even without a reteaching plan.
		reteach = g.generateReteach(ctx, topic)
	}

	preDepth := topic.CurrentDepth
	g.apply(topic, decision, score, HashAnswer(answer), feedback, model, reteach, now)

	return &GradeResult{
		TopicID:          topic.ID,
		TopicName:        topic.Name,
		Depth:            preDepth,
		Score:            math.Round(score*10) / 10,
		Breakdown:        breakdown,
		Feedback:         feedback,
		Decision:         decision,
		NewDepth:         topic.CurrentDepth,
		RetriesRemaining: max(0, g.cfg.MaxRetries-topic.RetriesUsed),
		ModelUsed:        model,
		QualityWarning:   qualityWarning,
	}, nil
}

// cachedResult builds the display-only response for a cache hit.
func (g *Grader) cachedResult(topic *Topic, entry *CacheEntry) *GradeResult {
	r := entry.Result
	return &GradeResult{
		TopicID:          topic.ID,
		TopicName:        topic.Name,
		Depth:            topic.CurrentDepth,
		Score:            r.Score,
		Breakdown:        r.Breakdown,
		Feedback:         r.Feedback,
		Decision:         r.Decision,
		NewDepth:         topic.CurrentDepth,
		RetriesRemaining: max(0, g.cfg.MaxRetries-topic.RetriesUsed),
		ModelUsed:        r.ModelUsed,
		Cached:           true,
		Message:          "Cached result — no progress changes applied. Modify your answer for a fresh evaluation.",
	}
}

// decide maps a score and the retries already spent at this depth onto a
// grading decision.
func (g *Grader) decide(score float64, retriesUsed int) Decision {
	switch {
	case score >= g.cfg.AdvanceThreshold:
		return DecisionAdvance
	case score < g.cfg.ReteachThreshold:
		return DecisionReteach
	case retriesUsed < g.cfg.MaxRetries:
		return DecisionRetry
	default:
		return DecisionReteach
	}
}

// apply mutates the topic's progression state for one fresh grade. The
// mastery score is always the latest grade, never an average.
func (g *Grader) apply(topic *Topic, decision Decision, score float64, answerHash, feedback, model string, reteach *ReteachContent, now time.Time) {
	topic.MasteryScore = score
	topic.LastActive = now
	topic.LastUpdated = now

	topic.History = append(topic.History, HistoryEntry{
		Date:       now,
		Depth:      topic.CurrentDepth,
		Score:      score,
		AnswerHash: answerHash,
		Decision:   decision,
		Feedback:   feedback,
		ModelUsed:  model,
		Reteach:    reteach,
	})

	switch decision {
	case DecisionAdvance:
		topic.RetriesUsed = 0
		if topic.CurrentDepth >= MaxDepth {
			topic.Status = StatusCompleted
			topic.ReteachingEnteredAt = nil
		} else {
			topic.CurrentDepth++
			if topic.Status == StatusReteaching {
				topic.Status = StatusActive
				topic.ReteachingEnteredAt = nil
			}
		}

	case DecisionRetry:
		topic.RetriesUsed++

	case DecisionReteach:
		topic.RetriesUsed = 0
		topic.Status = StatusReteaching
		entered := now
		topic.ReteachingEnteredAt = &entered
	}
}

// generateReteach asks the lighter model for a simplified sub-concept
// breakdown. Failure is non-fatal; the history entry just goes without one.
func (g *Grader) generateReteach(ctx context.Context, topic *Topic) *ReteachContent {
	model := g.cfg.ReteachModel
	if model == "" {
		model, _ = g.models.GradingModel()
	}
	prompt := fmt.Sprintf(reteachPrompt, topic.CurrentDepth, topic.Name, topic.CurrentDepth, summaryContext(topic.Summary))

	raw, err := g.llm.Complete(ctx, model, prompt, g.cfg.ReteachMaxTokens, 0.3)
	if err != nil {
		return nil
	}
	var content ReteachContent
	if err := llm.ExtractJSON(raw, &content); err != nil {
		return nil
	}
	return &content
}

// summaryContext renders the topic summary into grading prompt context.
func summaryContext(s Summary) string {
	return fmt.Sprintf(
		"Why it matters: %s\nCore mechanism: %s\nApplications: %s\nTL;DR: %s",
		s.WhyItMatters, s.CoreMechanism, s.ProductApplications, s.TLDR,
	)
}

// parseRubric extracts the four rubric dimensions and feedback from a raw
// model reply. Each dimension is clamped to [0,25]; missing or malformed
// dimensions default to zero rather than failing the grade.
func parseRubric(raw string) (Breakdown, string, error) {
	var parsed map[string]any
	if err := llm.ExtractJSON(raw, &parsed); err != nil {
		return Breakdown{}, "", err
	}

	b := Breakdown{
		ConceptClarity:       rubricDim(parsed, "concept_clarity"),
		TechnicalCorrectness: rubricDim(parsed, "technical_correctness"),
		ApplicationThinking:  rubricDim(parsed, "application_thinking"),
		AIPMRelevance:        rubricDim(parsed, "ai_pm_relevance"),
	}

	feedback := "No feedback available."
	if f, ok := parsed["feedback"].(string); ok && f != "" {
		feedback = f
	}
	return b, feedback, nil
}

func rubricDim(parsed map[string]any, key string) float64 {
	v, ok := parsed[key].(float64)
	if !ok {
		return 0
	}
	return clamp(v, 0, 25)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
