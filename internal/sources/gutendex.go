// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// gutendexAPIBase is the Gutendex books endpoint. Declared as a var so tests
// can substitute an httptest server.
var gutendexAPIBase = "https://gutendex.com/books"

// Gutendex queries the Project Gutenberg catalog through the Gutendex API.
// Public-domain texts there usually come with direct download links.
type Gutendex struct {
	Base
}

// Name returns the catalog identifier.
func (g *Gutendex) Name() string { return NameGutendex }

// Search runs a full-text search over titles and authors.
func (g *Gutendex) Search(ctx context.Context, query string, hints Hints) ([]types.RawRecord, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	books, err := g.query(ctx, query)
	if err != nil {
		return nil, unavailable(g.Name(), err)
	}

	var records []types.RawRecord
	for _, b := range books {
		if hints.MaxResults > 0 && len(records) >= hints.MaxResults {
			break
		}
		authors := make([]string, 0, len(b.Authors))
		for _, a := range b.Authors {
			if a.Name != "" {
				authors = append(authors, a.Name)
			}
		}
		langs := make([]string, 0, len(b.Languages))
		for _, l := range b.Languages {
			langs = append(langs, NormalizeLanguage(l))
		}
		records = append(records, types.RawRecord{
			Title:             b.Title,
			Authors:           authors,
			Description:       fmt.Sprintf("Public domain book from Project Gutenberg. Download count: %d", b.DownloadCount),
			Categories:        b.Subjects,
			DocumentURL:       b.documentURL(),
			DocumentSourceTag: NameGutendex,
			Publisher:         "Project Gutenberg",
			Language:          strings.Join(langs, ", "),
			SourceAPI:         NameGutendex,
			ExternalID:        strconv.Itoa(b.ID),
		})
	}
	g.log().Debug("source.gutendex.done", "query", query, "records", len(records))
	return records, nil
}

// FindDocument looks a title up by name (then by title and author) and
// returns the PDF links of books whose title matches. It backs the locator's
// Gutenberg strategy.
func (g *Gutendex) FindDocument(ctx context.Context, title, author string) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	terms := []string{title}
	if author != "" {
		terms = append(terms, title+" "+author)
	}

	want := strings.ToLower(strings.TrimSpace(title))
	var links []string
	seen := map[string]bool{}
	for _, term := range terms {
		books, err := g.query(ctx, term)
		if err != nil {
			return links, unavailable(g.Name(), err)
		}
		for _, b := range books {
			got := strings.ToLower(strings.TrimSpace(b.Title))
			if want == "" || got == "" || !(strings.Contains(got, want) || strings.Contains(want, got)) {
				continue
			}
			if u := b.format("application/pdf"); u != "" && !seen[u] {
				seen[u] = true
				links = append(links, u)
			}
		}
		if len(links) > 0 {
			break
		}
	}
	return links, nil
}

func (g *Gutendex) query(ctx context.Context, term string) ([]gutendexBook, error) {
	params := url.Values{"search": {term}}
	var resp gutendexResponse
	if err := g.getJSON(ctx, gutendexAPIBase+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Gutendex API JSON structures. Formats maps MIME type to URL.
type gutendexResponse struct {
	Count   int            `json:"count"`
	Results []gutendexBook `json:"results"`
}

type gutendexBook struct {
	ID            int               `json:"id"`
	Title         string            `json:"title"`
	Authors       []gutendexPerson  `json:"authors"`
	Subjects      []string          `json:"subjects"`
	Languages     []string          `json:"languages"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
}

type gutendexPerson struct {
	Name string `json:"name"`
}

// documentURL prefers a PDF rendition, then EPUB.
func (b gutendexBook) documentURL() string {
	if u := b.format("application/pdf"); u != "" {
		return u
	}
	return b.format("application/epub+zip")
}

// format returns the URL of the first format whose MIME type starts with
// mime. Keys are visited in sorted order so the choice is stable.
func (b gutendexBook) format(mime string) string {
	keys := make([]string, 0, len(b.Formats))
	for k := range b.Formats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(strings.ToLower(k), mime) {
			return b.Formats[k]
		}
	}
	return ""
}
