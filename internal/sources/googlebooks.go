// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// googleBooksAPIBase is the Google Books volumes endpoint. Declared as a var
// so tests can substitute an httptest server.
var googleBooksAPIBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksDownloadBase builds download links for public-domain volumes.
var googleBooksDownloadBase = "https://books.google.com/books/download/"

// GoogleBooks queries the Google Books API. It is the broadest catalog but
// rarely supplies a direct document link.
type GoogleBooks struct {
	Base

	// APIKey is optional; it raises the anonymous quota.
	APIKey string
}

// Name returns the catalog identifier.
func (g *GoogleBooks) Name() string { return NameGoogleBooks }

// Search queries the volumes endpoint and maps each volume to a RawRecord.
func (g *GoogleBooks) Search(ctx context.Context, query string, hints Hints) ([]types.RawRecord, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	q := query
	if hints.PreferLanguage == "ar" {
		q += " language:ar"
	}
	maxResults := hints.MaxResults
	if maxResults <= 0 || maxResults > 40 {
		maxResults = 10
	}

	params := url.Values{
		"q":          {q},
		"maxResults": {fmt.Sprintf("%d", maxResults)},
		"printType":  {"books"},
	}
	if g.APIKey != "" {
		params.Set("key", g.APIKey)
	}

	var resp googleBooksResponse
	if err := g.getJSON(ctx, googleBooksAPIBase+"?"+params.Encode(), &resp); err != nil {
		return nil, unavailable(g.Name(), err)
	}

	var records []types.RawRecord
	for _, item := range resp.Items {
		vi := item.VolumeInfo
		records = append(records, types.RawRecord{
			Title:             vi.Title,
			Authors:           vi.Authors,
			Description:       vi.Description,
			Categories:        vi.Categories,
			CoverImageURL:     vi.ImageLinks.best(),
			DocumentURL:       googleDocumentURL(item),
			DocumentSourceTag: NameGoogleBooks,
			ISBN:              extractISBN(vi.IndustryIdentifiers),
			PublicationDate:   vi.PublishedDate,
			Publisher:         vi.Publisher,
			Language:          NormalizeLanguage(vi.Language),
			SourceAPI:         NameGoogleBooks,
			ExternalID:        item.ID,
		})
	}
	g.log().Debug("source.google_books.done", "query", query, "records", len(records))
	return records, nil
}

// googleDocumentURL prefers a PDF download link, then EPUB, then a
// constructed link for public-domain volumes that are fully or partially
// viewable.
func googleDocumentURL(item googleBooksItem) string {
	ai := item.AccessInfo
	if ai.PDF.IsAvailable && ai.PDF.DownloadLink != "" {
		return ai.PDF.DownloadLink
	}
	if ai.EPUB.IsAvailable && ai.EPUB.DownloadLink != "" {
		return ai.EPUB.DownloadLink
	}
	if ai.PublicDomain && item.ID != "" && (ai.Viewability == "ALL_PAGES" || ai.Viewability == "PARTIAL") {
		return googleBooksDownloadBase + "id" + item.ID + ".pdf"
	}
	return ""
}

func extractISBN(ids []googleIdentifier) string {
	for _, id := range ids {
		if id.Type == "ISBN_13" || id.Type == "ISBN_10" {
			return strings.TrimSpace(id.Identifier)
		}
	}
	return ""
}

// Google Books API JSON structures.
type googleBooksResponse struct {
	Items []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string           `json:"id"`
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	AccessInfo googleAccessInfo `json:"accessInfo"`
}

type googleVolumeInfo struct {
	Title               string             `json:"title"`
	Authors             []string           `json:"authors"`
	Description         string             `json:"description"`
	Categories          []string           `json:"categories"`
	Publisher           string             `json:"publisher"`
	PublishedDate       string             `json:"publishedDate"`
	Language            string             `json:"language"`
	IndustryIdentifiers []googleIdentifier `json:"industryIdentifiers"`
	ImageLinks          googleImageLinks   `json:"imageLinks"`
}

type googleIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleImageLinks struct {
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Thumbnail string `json:"thumbnail"`
}

func (l googleImageLinks) best() string {
	for _, u := range []string{l.Large, l.Medium, l.Small, l.Thumbnail} {
		if u != "" {
			return u
		}
	}
	return ""
}

type googleAccessInfo struct {
	Viewability  string         `json:"viewability"`
	PublicDomain bool           `json:"publicDomain"`
	PDF          googleDownload `json:"pdf"`
	EPUB         googleDownload `json:"epub"`
}

type googleDownload struct {
	IsAvailable  bool   `json:"isAvailable"`
	DownloadLink string `json:"downloadLink"`
}
