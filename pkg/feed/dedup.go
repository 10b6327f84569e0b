package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// titleSimilarityThreshold is the Jaccard index above which two titles are
// considered the same story.
const titleSimilarityThreshold = 0.5

// HashURL returns the SHA-256 hex digest of a URL, used for exact dedup.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// DuplicateTitle reports whether title is near-identical to any of the
// existing titles, by Jaccard similarity over significant tokens.
func DuplicateTitle(title string, existing []string) bool {
	tokens := significantTokens(title)
	for _, other := range existing {
		if jaccardSimilarity(tokens, significantTokens(other)) >= titleSimilarityThreshold {
			return true
		}
	}
	return false
}

// significantTokens extracts meaningful words from a title.
func significantTokens(title string) []string {
	stopwords := map[string]bool{
		"a": true, "an": true, "the": true, "and": true, "or": true,
		"but": true, "in": true, "on": true, "at": true, "to": true,
		"for": true, "of": true, "with": true, "by": true, "from": true,
		"is": true, "are": true, "was": true, "were": true, "be": true,
		"been": true, "being": true, "have": true, "has": true, "had": true,
		"do": true, "does": true, "did": true, "will": true, "would": true,
		"could": true, "should": true, "may": true, "might": true,
		"this": true, "that": true, "these": true, "those": true,
		"it": true, "its": true, "i": true, "we": true, "you": true,
		"he": true, "she": true, "they": true, "my": true, "your": true,
		"how": true, "what": true, "when": true, "where": true, "why": true,
		"not": true, "no": true, "new": true, "just": true, "about": true,
		"up": true, "out": true, "if": true, "so": true, "can": true,
		"all": true, "more": true, "also": true, "than": true, "very": true,
	}

	words := strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, w := range words {
		if len(w) >= 2 && !stopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// jaccardSimilarity returns the Jaccard index of two token sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := make(map[string]bool)
	for _, t := range a {
		setA[t] = true
	}

	setB := make(map[string]bool)
	for _, t := range b {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
