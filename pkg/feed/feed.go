// Package feed fetches the tiered RSS catalog and turns entries into
// candidate articles for the learning pipeline.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ashwinpj/learnloop/internal/config"
)

// Article is one feed entry that survived the fetch-time filters. It is not
// yet deduplicated, scored, or summarized.
type Article struct {
	URL          string
	URLHash      string
	Title        string
	SourceName   string
	SourceTier   int
	CategoryBias string
	Published    time.Time
	Description  string
}

// Result is the outcome of fetching one feed, for health tracking.
type Result struct {
	Source config.FeedSource
	Found  int
	Kept   int
	Err    error
}

// Fetcher pulls articles from the configured RSS sources.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
	cfg    config.FeedsConfig
	now    func() time.Time
}

// NewFetcher creates a fetcher over the given feed configuration.
func NewFetcher(cfg config.FeedsConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		cfg:    cfg,
		now:    time.Now,
	}
}

// FetchAll fetches every source in tier order, skipping any for which skip
// returns true (auto-disabled feeds). The arXiv cap is shared across all
// arXiv sources in one cycle. Per-feed failures are reported in the results,
// never propagated.
func (f *Fetcher) FetchAll(ctx context.Context, skip func(url string) bool) ([]Article, []Result) {
	sources := make([]config.FeedSource, len(f.cfg.Sources))
	copy(sources, f.cfg.Sources)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Tier < sources[j].Tier })

	var all []Article
	var results []Result
	arxivBudget := f.cfg.MaxArxivPerCycle

	for _, src := range sources {
		if skip != nil && skip(src.URL) {
			continue
		}
		articles, found, err := f.fetchFeed(ctx, src, &arxivBudget)
		results = append(results, Result{Source: src, Found: found, Kept: len(articles), Err: err})
		all = append(all, articles...)
	}
	return all, results
}

func (f *Fetcher) fetchFeed(ctx context.Context, src config.FeedSource, arxivBudget *int) ([]Article, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create feed request %s: %w", src.Name, err)
	}
	req.Header.Set("User-Agent", "learnloop/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch feed %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("feed %s status %d", src.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	isArxiv := strings.Contains(strings.ToLower(src.URL), "arxiv.org")
	gateDays := f.cfg.ArticleDateGateDays
	if gateDays <= 0 {
		gateDays = 7
	}
	cutoff := f.now().AddDate(0, 0, -gateDays)

	var articles []Article
	for _, entry := range parsed.Items {
		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link == "" || entry.Title == "" {
			continue
		}
		if f.blocked(link) {
			continue
		}

		if isArxiv {
			if *arxivBudget <= 0 {
				break
			}
			if !f.passesArxivFilter(entry.Title, entry.Description) {
				continue
			}
		}

		published := f.now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}

		if isArxiv {
			*arxivBudget--
		}

		articles = append(articles, Article{
			URL:          link,
			URLHash:      HashURL(link),
			Title:        strings.TrimSpace(entry.Title),
			SourceName:   src.Name,
			SourceTier:   src.Tier,
			CategoryBias: src.CategoryBias,
			Published:    published,
			Description:  truncate(entry.Description, 500),
		})
	}

	return articles, len(parsed.Items), nil
}

// blocked matches the link's host against the blocked-domain list.
func (f *Fetcher) blocked(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range f.cfg.BlockedDomains {
		if host == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// passesArxivFilter keeps only preprints whose title or abstract mentions a
// product-relevant keyword.
func (f *Fetcher) passesArxivFilter(title, abstract string) bool {
	combined := strings.ToLower(title + " " + abstract)
	for _, kw := range f.cfg.ArxivKeywords {
		if strings.Contains(combined, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
