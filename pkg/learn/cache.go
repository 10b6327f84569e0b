package learn

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// CachedResult is the grading outcome stored in the cache. It reflects the
// depth the answer was graded at, never a later advancement.
type CachedResult struct {
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Feedback  string    `json:"feedback"`
	Decision  Decision  `json:"decision"`
	ModelUsed string    `json:"model_used"`
}

// CacheEntry is one grading cache record with TTL and a submission counter
// used by the caller-side repeat-answer limit.
type CacheEntry struct {
	AddedAt         time.Time    `json:"added_at"`
	TTLDays         int          `json:"ttl_days"`
	SubmissionCount int          `json:"submission_count"`
	Result          CachedResult `json:"result"`
}

func (e *CacheEntry) expired(now time.Time) bool {
	return now.After(e.AddedAt.AddDate(0, 0, e.TTLDays))
}

// GradeCache caches grading results keyed by (topic id, depth, normalized
// answer). A hit is display-only: it must never re-trigger topic mutation.
type GradeCache struct {
	Entries map[string]*CacheEntry `json:"grading_cache"`
	TTLDays int                    `json:"ttl_days"`
}

// NewGradeCache creates an empty cache with the given TTL in days
// (default 30).
func NewGradeCache(ttlDays int) *GradeCache {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &GradeCache{Entries: make(map[string]*CacheEntry), TTLDays: ttlDays}
}

// HashAnswer returns the SHA-256 hash of the normalized (trimmed,
// lowercased) answer text.
func HashAnswer(answer string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(answer))))
	return hex.EncodeToString(sum[:])
}

// CacheKey derives the composite cache key for a grading attempt.
func CacheKey(topicID string, depth int, answer string) string {
	combined := fmt.Sprintf("%s:%d:%s", topicID, depth, HashAnswer(answer))
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

// Get returns the live entry for (topicID, depth, answer), or nil. Expired
// entries are dropped on access.
func (c *GradeCache) Get(topicID string, depth int, answer string, now time.Time) *CacheEntry {
	key := CacheKey(topicID, depth, answer)
	entry, ok := c.Entries[key]
	if !ok {
		return nil
	}
	if entry.expired(now) {
		delete(c.Entries, key)
		return nil
	}
	return entry
}

// Put stores a grading result, carrying forward and incrementing the
// submission counter if the key was already present.
func (c *GradeCache) Put(topicID string, depth int, answer string, result CachedResult, now time.Time) *CacheEntry {
	key := CacheKey(topicID, depth, answer)
	count := 1
	if existing, ok := c.Entries[key]; ok {
		count = existing.SubmissionCount + 1
	}
	entry := &CacheEntry{
		AddedAt:         now,
		TTLDays:         c.TTLDays,
		SubmissionCount: count,
		Result:          result,
	}
	c.Entries[key] = entry
	return entry
}

// SubmissionCount returns how many times this exact answer was submitted
// for this topic and depth. Zero when no live entry exists.
func (c *GradeCache) SubmissionCount(topicID string, depth int, answer string, now time.Time) int {
	entry := c.Get(topicID, depth, answer, now)
	if entry == nil {
		return 0
	}
	return entry.SubmissionCount
}

// Evict removes expired entries and, if the cache still exceeds maxEntries,
// the oldest surviving entries first. Returns the number removed.
func (c *GradeCache) Evict(maxEntries int, now time.Time) int {
	removed := 0
	for key, entry := range c.Entries {
		if entry.expired(now) {
			delete(c.Entries, key)
			removed++
		}
	}
	if maxEntries > 0 && len(c.Entries) > maxEntries {
		keys := make([]string, 0, len(c.Entries))
		for key := range c.Entries {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool {
			return c.Entries[keys[i]].AddedAt.Before(c.Entries[keys[j]].AddedAt)
		})
		overage := len(keys) - maxEntries
		for _, key := range keys[:overage] {
			delete(c.Entries, key)
			removed++
		}
	}
	return removed
}
