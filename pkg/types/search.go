// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bookfinder pipeline:
// raw source records, normalized candidates, query intent, acquisition and
// verification results, configuration, and the error taxonomy.
package types

// RawRecord is the common shape every catalog adapter produces. Anything an
// adapter cannot map into these fields is dropped at this boundary.
type RawRecord struct {
	Title             string
	Authors           []string
	Description       string
	Categories        []string
	CoverImageURL     string
	DocumentURL       string
	DocumentSourceTag string
	ISBN              string
	PublicationDate   string
	Publisher         string
	Language          string

	// SourceAPI names the adapter that produced the record (e.g. "gutendex").
	SourceAPI string

	// ExternalID is the catalog-native identifier (volume ID, Gutenberg ID,
	// archive identifier).
	ExternalID string
}

// CandidateBook is a normalized search result. RelevanceScore starts at the
// per-source prior and is rewritten only by the ranker.
type CandidateBook struct {
	// ID addresses the candidate inside a search session. Empty until the
	// candidate list is stored.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Title       string   `json:"title" yaml:"title"`
	Author      string   `json:"author" yaml:"author"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []string `json:"categories" yaml:"categories"`

	CoverImageURL string `json:"cover_image_url,omitempty" yaml:"cover_image_url,omitempty"`

	// DocumentURL is believed to point at a downloadable document.
	DocumentURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// DocumentSourceTag names the catalog or locator strategy that supplied
	// DocumentURL.
	DocumentSourceTag string `json:"pdf_source,omitempty" yaml:"pdf_source,omitempty"`

	// DocumentVerified is set only after a successful verification within
	// the current session.
	DocumentVerified bool `json:"pdf_verified" yaml:"pdf_verified"`

	ISBN            string `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	PublicationDate string `json:"publication_date,omitempty" yaml:"publication_date,omitempty"`
	Publisher       string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Language        string `json:"language" yaml:"language"`

	SourceAPI  string `json:"source_api" yaml:"source_api"`
	ExternalID string `json:"external_id,omitempty" yaml:"external_id,omitempty"`

	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// CategoryDetails and AuthorInfo are filled by enrichment after ranking.
	CategoryDetails []CategoryInfo `json:"category_details,omitempty" yaml:"category_details,omitempty"`
	AuthorInfo      *AuthorInfo    `json:"author_info,omitempty" yaml:"author_info,omitempty"`
}

// CategoryInfo is a category ready for display.
type CategoryInfo struct {
	Name        string `json:"name" yaml:"name"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
	WikiLink    string `json:"wikilink,omitempty" yaml:"wikilink,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// AuthorInfo describes a candidate's author.
type AuthorInfo struct {
	Name         string   `json:"name" yaml:"name"`
	Image        string   `json:"image,omitempty" yaml:"image,omitempty"`
	WikiLink     string   `json:"wikilink,omitempty" yaml:"wikilink,omitempty"`
	Professions  []string `json:"profession,omitempty" yaml:"profession,omitempty"`
	Descriptions []string `json:"descriptions,omitempty" yaml:"descriptions,omitempty"`
}

// QueryIntent is the structured reading of a free-text query produced by the
// extraction oracle (or by the fallback when the oracle is unavailable).
type QueryIntent struct {
	Title            string   `json:"title" yaml:"title"`
	Author           string   `json:"author,omitempty" yaml:"author,omitempty"`
	Categories       []string `json:"categories" yaml:"categories"`
	Language         string   `json:"language" yaml:"language"`
	SearchVariations []string `json:"search_variations" yaml:"search_variations"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`

	// SameLanguage flags a query written in Language itself (an Arabic
	// query for Arabic books). Candidates in that language are boosted.
	SameLanguage bool `json:"is_native_language_query" yaml:"is_native_language_query"`
}

// FallbackIntent returns the intent used when the oracle fails: the raw
// query is the title and the only variation.
func FallbackIntent(query, language string) QueryIntent {
	return QueryIntent{
		Title:            query,
		Categories:       []string{},
		Language:         language,
		SearchVariations: []string{query},
		SameLanguage:     language == "ar",
	}
}
