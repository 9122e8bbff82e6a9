// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"

	"github.com/pdiddy/bookfinder/internal/sources"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// prior is the starting relevance of a candidate, keyed by catalog and by
// whether the catalog supplied a document link.
type prior struct {
	withDocument    float64
	withoutDocument float64
}

var priors = map[string]prior{
	sources.NameGutendex:          {0.9, 0.5},
	sources.NameArabicCollections: {0.9, 0.6},
	sources.NameGoogleBooks:       {0.8, 0.8},
	sources.NameInternetArchive:   {0.7, 0.3},
}

const unknownSourcePrior = 0.5

// Prior returns the starting score for a candidate from source.
func Prior(source string, hasDocument bool) float64 {
	p, ok := priors[source]
	if !ok {
		return unknownSourcePrior
	}
	if hasDocument {
		return p.withDocument
	}
	return p.withoutDocument
}

// Normalize maps raw catalog records onto candidates. Records whose title is
// empty after trimming are discarded. Authors are joined with ", " and a
// missing language defaults to defaultLanguage. No deduplication happens
// here.
func Normalize(records []types.RawRecord, defaultLanguage string) []types.CandidateBook {
	out := make([]types.CandidateBook, 0, len(records))
	for _, r := range records {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			continue
		}

		authors := make([]string, 0, len(r.Authors))
		for _, a := range r.Authors {
			if a = strings.TrimSpace(a); a != "" {
				authors = append(authors, a)
			}
		}
		categories := make([]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}

		lang := strings.TrimSpace(r.Language)
		if lang == "" {
			lang = defaultLanguage
		}
		docURL := strings.TrimSpace(r.DocumentURL)
		tag := r.DocumentSourceTag
		if docURL == "" {
			tag = ""
		} else if tag == "" {
			tag = r.SourceAPI
		}

		out = append(out, types.CandidateBook{
			Title:             title,
			Author:            strings.Join(authors, ", "),
			Description:       strings.TrimSpace(r.Description),
			Categories:        categories,
			CoverImageURL:     strings.TrimSpace(r.CoverImageURL),
			DocumentURL:       docURL,
			DocumentSourceTag: tag,
			ISBN:              strings.TrimSpace(r.ISBN),
			PublicationDate:   strings.TrimSpace(r.PublicationDate),
			Publisher:         strings.TrimSpace(r.Publisher),
			Language:          lang,
			SourceAPI:         r.SourceAPI,
			ExternalID:        r.ExternalID,
			RelevanceScore:    Prior(r.SourceAPI, docURL != ""),
		})
	}
	return out
}

// Deduplicate keeps the first candidate for every (title, author) key and
// preserves input order. Matching is exact after lowercasing and trimming,
// so "Pride & Prejudice" and "Pride and Prejudice" stay distinct.
func Deduplicate(cands []types.CandidateBook) []types.CandidateBook {
	seen := make(map[string]bool, len(cands))
	out := make([]types.CandidateBook, 0, len(cands))
	for _, c := range cands {
		key := dedupKey(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func dedupKey(c types.CandidateBook) string {
	return strings.ToLower(strings.TrimSpace(c.Title)) + "|" + strings.ToLower(strings.TrimSpace(c.Author))
}
