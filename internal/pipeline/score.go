package pipeline

import (
	"context"
	"fmt"

	"github.com/ashwinpj/learnloop/pkg/feed"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

// Scores is the combined relevance and credibility assessment of one
// article. The five relevance dimensions are 1-10.
type Scores struct {
	RelevanceToAIPM  float64 `json:"relevance_to_ai_pm"`
	TechnicalDepth   float64 `json:"technical_depth"`
	Actionability    float64 `json:"actionability"`
	Novelty          float64 `json:"novelty"`
	RecencyRelevance float64 `json:"recency_relevance"`
	Credibility      float64 `json:"credibility"`
	IsPromotional    bool    `json:"is_promotional"`
}

// Avg returns the mean of the five relevance dimensions.
func (s Scores) Avg() float64 {
	return (s.RelevanceToAIPM + s.TechnicalDepth + s.Actionability + s.Novelty + s.RecencyRelevance) / 5
}

// Map returns the dimensions as a map for persistence on the candidate.
func (s Scores) Map() map[string]float64 {
	return map[string]float64{
		"relevance_to_ai_pm": s.RelevanceToAIPM,
		"technical_depth":    s.TechnicalDepth,
		"actionability":      s.Actionability,
		"novelty":            s.Novelty,
		"recency_relevance":  s.RecencyRelevance,
		"credibility":        s.Credibility,
	}
}

// Scorer runs the single combined scoring call per article.
type Scorer struct {
	llm            learn.Completer
	model          string
	minRelevance   float64
	minCredibility float64
	maxTokens      int
}

// NewScorer creates a scorer using the bulk model.
func NewScorer(completer learn.Completer, model string, minRelevance, minCredibility float64) *Scorer {
	return &Scorer{
		llm:            completer,
		model:          model,
		minRelevance:   minRelevance,
		minCredibility: minCredibility,
		maxTokens:      300,
	}
}

const scoringPrompt = `You are an expert AI product manager content curator. Score an article on relevance and credibility.

SCORING DIMENSIONS (1-10 each):
1. relevance_to_ai_pm: How relevant is this to an AI Product Manager's daily work?
2. technical_depth: Appropriate technical depth (avoids both oversimplification and excessive academic jargon)?
3. actionability: Does it provide actionable insights or frameworks?
4. novelty: Does it present new ideas or perspectives (not just rehashing basics)?
5. recency_relevance: Is the topic current and relevant to the present AI landscape?
6. credibility: Is the source and content credible? (Author expertise, sourcing, methodology)
7. is_promotional: Is this primarily marketing/promotional content? (true/false)

Respond ONLY with valid JSON matching this schema:
{
  "relevance_to_ai_pm": <1-10>,
  "technical_depth": <1-10>,
  "actionability": <1-10>,
  "novelty": <1-10>,
  "recency_relevance": <1-10>,
  "credibility": <1-10>,
  "is_promotional": <true|false>
}

ARTICLE TO SCORE:
Title: %s
Source: %s (Tier %d)
Content:
---
%s
---`

// Score runs the combined scoring call for one article.
func (sc *Scorer) Score(ctx context.Context, a feed.Article) (Scores, error) {
	prompt := fmt.Sprintf(scoringPrompt, a.Title, a.SourceName, a.SourceTier, a.Description)
	raw, err := sc.llm.Complete(ctx, sc.model, prompt, sc.maxTokens, 0)
	if err != nil {
		return Scores{}, fmt.Errorf("score %s: %w", a.URL, err)
	}
	var s Scores
	if err := llm.ExtractJSON(raw, &s); err != nil {
		return Scores{}, fmt.Errorf("score %s: %w", a.URL, err)
	}
	return s, nil
}

// Reject applies the acceptance rules. Returns the rejection reason, or ""
// when the article passes.
func (sc *Scorer) Reject(s Scores) string {
	if s.IsPromotional {
		return "promotional_content"
	}
	if s.Credibility < sc.minCredibility {
		return fmt.Sprintf("low_credibility:%.1f", s.Credibility)
	}
	if avg := s.Avg(); avg < sc.minRelevance {
		return fmt.Sprintf("low_relevance:%.1f", avg)
	}
	return ""
}
