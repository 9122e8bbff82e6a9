package search

import (
	"reflect"
	"testing"

	"github.com/pdiddy/bookfinder/internal/sources"
	"github.com/pdiddy/bookfinder/pkg/types"
)

func TestPrior(t *testing.T) {
	tests := []struct {
		source string
		hasDoc bool
		want   float64
	}{
		{sources.NameGutendex, true, 0.9},
		{sources.NameGutendex, false, 0.5},
		{sources.NameArabicCollections, true, 0.9},
		{sources.NameArabicCollections, false, 0.6},
		{sources.NameGoogleBooks, true, 0.8},
		{sources.NameGoogleBooks, false, 0.8},
		{sources.NameInternetArchive, true, 0.7},
		{sources.NameInternetArchive, false, 0.3},
		{"mystery", true, 0.5},
		{"", false, 0.5},
	}
	for _, tt := range tests {
		if got := Prior(tt.source, tt.hasDoc); got != tt.want {
			t.Errorf("Prior(%q, %v) = %v, want %v", tt.source, tt.hasDoc, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	records := []types.RawRecord{
		{
			Title:       "  Moby Dick ",
			Authors:     []string{"Herman Melville", " ", "Anon "},
			Categories:  []string{"Fiction", ""},
			DocumentURL: " https://archive.org/download/m/m.pdf ",
			SourceAPI:   sources.NameInternetArchive,
			ExternalID:  "m",
		},
		{Title: "\t\n", SourceAPI: sources.NameGutendex},
		{Title: "Emma", SourceAPI: sources.NameGutendex, Language: "en"},
	}

	got := Normalize(records, "fr")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	m := got[0]
	if m.Title != "Moby Dick" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Author != "Herman Melville, Anon" {
		t.Errorf("Author = %q", m.Author)
	}
	if !reflect.DeepEqual(m.Categories, []string{"Fiction"}) {
		t.Errorf("Categories = %v", m.Categories)
	}
	if m.DocumentURL != "https://archive.org/download/m/m.pdf" {
		t.Errorf("DocumentURL = %q", m.DocumentURL)
	}
	if m.DocumentSourceTag != sources.NameInternetArchive {
		t.Errorf("DocumentSourceTag = %q, want source name", m.DocumentSourceTag)
	}
	if m.Language != "fr" {
		t.Errorf("Language = %q, want default fr", m.Language)
	}
	if m.RelevanceScore != 0.7 {
		t.Errorf("RelevanceScore = %v, want 0.7", m.RelevanceScore)
	}
	if m.DocumentVerified {
		t.Error("DocumentVerified must start false")
	}

	e := got[1]
	if e.Language != "en" || e.RelevanceScore != 0.5 || e.DocumentSourceTag != "" {
		t.Errorf("Emma = %+v", e)
	}
}

func TestDeduplicate(t *testing.T) {
	cands := []types.CandidateBook{
		{Title: "Pride and Prejudice", Author: "Jane Austen", SourceAPI: "gutendex"},
		{Title: "pride and prejudice ", Author: " JANE AUSTEN", SourceAPI: "google_books"},
		{Title: "Pride & Prejudice", Author: "Jane Austen", SourceAPI: "google_books"},
		{Title: "Pride and Prejudice", Author: "", SourceAPI: "internet_archive"},
		{Title: "Emma", Author: "Jane Austen", SourceAPI: "gutendex"},
	}

	got := Deduplicate(cands)
	var srcs []string
	for _, c := range got {
		srcs = append(srcs, c.Title+"|"+c.SourceAPI)
	}
	want := []string{
		"Pride and Prejudice|gutendex",
		"Pride & Prejudice|google_books",
		"Pride and Prejudice|internet_archive",
		"Emma|gutendex",
	}
	if !reflect.DeepEqual(srcs, want) {
		t.Errorf("Deduplicate = %v, want %v", srcs, want)
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	cands := []types.CandidateBook{
		{Title: "A", Author: "x"}, {Title: "a", Author: "X"}, {Title: "B"}, {Title: "b "},
	}
	once := Deduplicate(cands)
	twice := Deduplicate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Deduplicate not idempotent: %v vs %v", once, twice)
	}

	seen := map[string]bool{}
	for _, c := range once {
		k := dedupKey(c)
		if seen[k] {
			t.Errorf("duplicate key %q survived", k)
		}
		seen[k] = true
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Errorf("Deduplicate(nil) = %v", got)
	}
}
