// Package scraper implements listing fetching, keyword matching and the
// discovery cycle.
package scraper

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// KeywordMatcher tests titles against a fixed keyword set in a single pass.
// Matching is case-insensitive substring containment, OR-combined.
// An empty keyword set never matches.
type KeywordMatcher struct {
	matcher *ahocorasick.Matcher
}

// NewKeywordMatcher compiles keywords. Blank keywords are ignored.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	normalized := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		normalized = append(normalized, kw)
	}

	if len(normalized) == 0 {
		return &KeywordMatcher{}
	}
	return &KeywordMatcher{matcher: ahocorasick.NewStringMatcher(normalized)}
}

// Match reports whether any keyword occurs in title. Safe for concurrent use.
func (m *KeywordMatcher) Match(title string) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	return len(m.matcher.MatchThreadSafe([]byte(strings.ToLower(title)))) > 0
}

// Matches is the one-shot form of KeywordMatcher.Match.
func Matches(title string, keywords []string) bool {
	return NewKeywordMatcher(keywords).Match(title)
}
