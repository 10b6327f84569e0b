package pipeline

import (
	"context"
	"fmt"

	"github.com/ashwinpj/learnloop/pkg/feed"
	"github.com/ashwinpj/learnloop/pkg/learn"
	"github.com/ashwinpj/learnloop/pkg/llm"
)

// Summarizer produces the structured study summary for an accepted article.
type Summarizer struct {
	llm       learn.Completer
	model     string
	maxTokens int
}

// NewSummarizer creates a summarizer using the bulk model.
func NewSummarizer(completer learn.Completer, model string) *Summarizer {
	return &Summarizer{llm: completer, model: model, maxTokens: 600}
}

const summaryPrompt = `You are an AI PM educator. Write a structured study summary of this article
for an AI Product Manager. Use ONLY information present in the article text below; do not add
external knowledge or speculation.

ARTICLE:
Title: %s
Source: %s
Text:
---
%s
---

Respond ONLY with JSON:
{
  "why_it_matters": "<2-3 sentences on why an AI PM should care>",
  "core_mechanism": "<2-3 sentences explaining how it works>",
  "product_applications": "<2-3 sentences on where this applies in product work>",
  "risks_limitations": "<1-2 sentences on risks or limitations>",
  "key_takeaways": ["<takeaway>", "..."],
  "tldr": "<one sentence>",
  "glossary": {"<term>": "<plain-English definition>"}
}`

// Summarize generates the study summary for one article.
func (sm *Summarizer) Summarize(ctx context.Context, a feed.Article) (learn.Summary, error) {
	prompt := fmt.Sprintf(summaryPrompt, a.Title, a.SourceName, a.Description)
	raw, err := sm.llm.Complete(ctx, sm.model, prompt, sm.maxTokens, 0.3)
	if err != nil {
		return learn.Summary{}, fmt.Errorf("summarize %s: %w", a.URL, err)
	}
	var s learn.Summary
	if err := llm.ExtractJSON(raw, &s); err != nil {
		return learn.Summary{}, fmt.Errorf("summarize %s: %w", a.URL, err)
	}
	return s, nil
}
