// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"sort"
	"strings"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// Ranking boosts added to a candidate's prior.
const (
	titleBoost    = 0.3
	authorBoost   = 0.2
	languageBoost = 0.2
	documentBoost = 0.1
)

// Rank scores every candidate against intent and returns a new slice sorted
// by descending score. Equal scores keep their discovery order. The input
// slice is not modified.
func Rank(cands []types.CandidateBook, intent types.QueryIntent) []types.CandidateBook {
	out := make([]types.CandidateBook, len(cands))
	copy(out, cands)

	wantTitle := fold(intent.Title)
	wantAuthor := fold(intent.Author)
	wantLang := fold(intent.Language)

	for i := range out {
		c := &out[i]
		score := c.RelevanceScore

		if overlaps(fold(c.Title), wantTitle) {
			score += titleBoost
		}
		if overlaps(fold(c.Author), wantAuthor) {
			score += authorBoost
		}
		if intent.SameLanguage && wantLang != "" && hasLanguage(c.Language, wantLang) {
			score += languageBoost
		}
		if c.DocumentURL != "" {
			score += documentBoost
		}
		c.RelevanceScore = clamp(score)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RelevanceScore > out[j].RelevanceScore
	})
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// overlaps reports whether either string contains the other. Both must be
// non-empty; an empty string would otherwise match everything.
func overlaps(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// hasLanguage matches want against a comma-separated language list such as
// "en, fr".
func hasLanguage(langs, want string) bool {
	for _, l := range strings.Split(langs, ",") {
		if fold(l) == want {
			return true
		}
	}
	return false
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
