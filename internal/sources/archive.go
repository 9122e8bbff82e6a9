// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// Internet Archive endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	archiveSearchBase   = "https://archive.org/advancedsearch.php"
	archiveMetadataBase = "https://archive.org/metadata/"
	archiveDownloadBase = "https://archive.org/download/"
	archiveImageBase    = "https://archive.org/services/img/"
)

var archiveFields = []string{"identifier", "title", "creator", "description", "subject", "date", "language", "format"}

// InternetArchive queries the Internet Archive advanced search for texts and
// resolves real PDF filenames through the item metadata API.
type InternetArchive struct {
	Base
}

// Name returns the catalog identifier.
func (a *InternetArchive) Name() string { return NameInternetArchive }

// Search returns texts matching query. Items whose formats include a PDF
// rendition get their document link from the metadata API; a failed lookup
// leaves the link empty rather than failing the search.
func (a *InternetArchive) Search(ctx context.Context, query string, hints Hints) ([]types.RawRecord, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	q := "(" + query + ") AND mediatype:texts"
	if hints.PreferLanguage == "ar" {
		q += " AND language:Arabic"
	}
	rows := hints.MaxResults
	if rows <= 0 {
		rows = 10
	}

	docs, err := a.advancedSearch(ctx, q, archiveFields, rows)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}

	var records []types.RawRecord
	for _, d := range docs {
		if d.Identifier == "" {
			continue
		}
		var docURL string
		if d.Format.contains("PDF") || d.Format.contains("Abbyy GZ") {
			u, err := a.ResolvePDF(ctx, d.Identifier)
			if err != nil {
				a.log().Debug("source.internet_archive.resolve_failed", "identifier", d.Identifier, "error", err)
			}
			docURL = u
		}
		records = append(records, types.RawRecord{
			Title:             d.Title.first(),
			Authors:           d.Creator,
			Description:       d.Description.first(),
			Categories:        d.Subject,
			CoverImageURL:     archiveImageBase + d.Identifier,
			DocumentURL:       docURL,
			DocumentSourceTag: NameInternetArchive,
			PublicationDate:   d.Date.first(),
			Publisher:         "Internet Archive",
			Language:          NormalizeLanguage(d.Language.first()),
			SourceAPI:         NameInternetArchive,
			ExternalID:        d.Identifier,
		})
	}
	a.log().Debug("source.internet_archive.done", "query", query, "records", len(records))
	return records, nil
}

// ResolvePDF finds the download URL of an item's PDF: a file in PDF format
// first, then any .pdf file, then any PDF derivative, and finally the
// conventional <id>/<id>.pdf path if a HEAD request confirms it exists.
// It returns "" with a nil error when the item has no PDF.
func (a *InternetArchive) ResolvePDF(ctx context.Context, identifier string) (string, error) {
	var meta archiveMetadata
	if err := a.getJSON(ctx, archiveMetadataBase+url.PathEscape(identifier), &meta); err != nil {
		return "", fmt.Errorf("fetching metadata for %s: %w", identifier, err)
	}

	download := func(name string) string {
		return archiveDownloadBase + url.PathEscape(identifier) + "/" + escapePath(name)
	}
	for _, f := range meta.Files {
		if f.Format == "PDF" && strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
			return download(f.Name), nil
		}
	}
	for _, f := range meta.Files {
		if strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
			return download(f.Name), nil
		}
	}
	for _, f := range meta.Files {
		name := strings.ToLower(f.Name)
		if strings.Contains(name, "pdf") && !strings.HasSuffix(name, ".xml") {
			return download(f.Name), nil
		}
	}

	standard := download(identifier + ".pdf")
	resp, err := a.do(ctx, http.MethodHead, standard)
	if err != nil {
		return "", nil
	}
	resp.Body.Close()
	return standard, nil
}

// FindDocument searches for PDF texts by title and creator and returns the
// resolved PDF links of the top hits. It backs the locator's archive strategy.
func (a *InternetArchive) FindDocument(ctx context.Context, title, author string) ([]string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	q := "title:(" + title + ")"
	if author != "" {
		q += " AND creator:(" + author + ")"
	}
	q += " AND mediatype:texts AND format:PDF"

	docs, err := a.advancedSearch(ctx, q, []string{"identifier", "title", "creator"}, 5)
	if err != nil {
		return nil, unavailable(a.Name(), err)
	}

	var links []string
	for _, d := range docs {
		if d.Identifier == "" {
			continue
		}
		u, err := a.ResolvePDF(ctx, d.Identifier)
		if err != nil || u == "" {
			continue
		}
		links = append(links, u)
	}
	return links, nil
}

func (a *InternetArchive) advancedSearch(ctx context.Context, q string, fields []string, rows int) ([]archiveDoc, error) {
	params := url.Values{
		"q":      {q},
		"fl[]":   fields,
		"rows":   {fmt.Sprintf("%d", rows)},
		"page":   {"1"},
		"output": {"json"},
	}
	var resp archiveSearchResponse
	if err := a.getJSON(ctx, archiveSearchBase+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Response.Docs, nil
}

// escapePath escapes each segment of a file name that may contain slashes.
func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// Internet Archive JSON structures. Most fields arrive either as a string
// or as a list of strings depending on the item.
type archiveSearchResponse struct {
	Response struct {
		Docs []archiveDoc `json:"docs"`
	} `json:"response"`
}

type archiveDoc struct {
	Identifier  string     `json:"identifier"`
	Title       stringList `json:"title"`
	Creator     stringList `json:"creator"`
	Description stringList `json:"description"`
	Subject     stringList `json:"subject"`
	Date        stringList `json:"date"`
	Language    stringList `json:"language"`
	Format      stringList `json:"format"`
}

type archiveMetadata struct {
	Files []archiveFile `json:"files"`
}

type archiveFile struct {
	Name   string `json:"name"`
	Format string `json:"format"`
}

// stringList decodes a JSON string or array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s stringList) first() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func (s stringList) contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
