// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bookfinder/internal/library"
	"github.com/pdiddy/bookfinder/internal/oracle"
	"github.com/pdiddy/bookfinder/internal/session"
	"github.com/pdiddy/bookfinder/internal/sources"
	"github.com/pdiddy/bookfinder/internal/verify"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// --- fakes ---

type fakeSource struct {
	name    string
	records []types.RawRecord
	err     error

	mu      sync.Mutex
	queries []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(_ context.Context, query string, _ sources.Hints) ([]types.RawRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, fmt.Errorf("%s: %w: %w", f.name, types.ErrSourceUnavailable, f.err)
	}
	return f.records, nil
}

type fakeOracle struct {
	intent types.QueryIntent
	err    error
}

func (f fakeOracle) ExtractIntent(context.Context, string, string) (types.QueryIntent, error) {
	return f.intent, f.err
}

func (f fakeOracle) FindDocumentLinks(context.Context, string, string, string) ([]oracle.Link, error) {
	return nil, oracle.ErrDisabled
}

func (f fakeOracle) Enrich(_ context.Context, cand types.CandidateBook, _ string) (types.CandidateBook, error) {
	return cand, oracle.ErrDisabled
}

// enrichingOracle fails enrichment for the titles in fail and otherwise adds
// author details. It also tries to rewrite fields enrichment must not touch.
type enrichingOracle struct {
	fakeOracle
	fail map[string]bool

	mu     sync.Mutex
	titles []string
}

func (e *enrichingOracle) Enrich(_ context.Context, cand types.CandidateBook, language string) (types.CandidateBook, error) {
	e.mu.Lock()
	e.titles = append(e.titles, cand.Title)
	e.mu.Unlock()
	if e.fail[cand.Title] {
		return types.CandidateBook{}, errors.New("503 overloaded")
	}
	cand.AuthorInfo = &types.AuthorInfo{Name: cand.Author, Professions: []string{"Novelist"}}
	cand.CategoryDetails = []types.CategoryInfo{{Name: "Fiction", Icon: "📖"}}
	cand.Description = "Enriched in " + language + "."
	cand.RelevanceScore = 0
	cand.DocumentURL = "https://elsewhere.example/book.pdf"
	return cand, nil
}

type fakeLocator struct {
	url, tag string
	err      error
	calls    int
}

func (f *fakeLocator) Locate(context.Context, types.CandidateBook) (string, string, error) {
	f.calls++
	return f.url, f.tag, f.err
}

// fakeVerifier accepts the URLs in ok and rejects everything else as a
// content type mismatch.
type fakeVerifier struct {
	ok    map[string]bool
	calls []string
}

func (f *fakeVerifier) Verify(_ context.Context, u string) types.VerifyReport {
	f.calls = append(f.calls, u)
	if f.ok[u] {
		return types.VerifyReport{URL: u, State: types.StateVerified, ContentType: "application/pdf", SizeBytes: 1024}
	}
	return types.VerifyReport{URL: u, State: types.StateTypeRejected, SizeBytes: -1,
		Err: fmt.Errorf("%w: text/html", types.ErrContentTypeMismatch)}
}

type fakeAcquirer struct {
	result types.AcquisitionResult
	urls   []string
}

func (f *fakeAcquirer) Acquire(_ context.Context, u, _, _ string) types.AcquisitionResult {
	f.urls = append(f.urls, u)
	return f.result
}

func newTestOrchestrator(t *testing.T, o oracle.Oracle, srcs ...sources.Source) *Orchestrator {
	t.Helper()
	lib, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })

	cfg := types.DefaultPipelineConfig().Search
	cfg.Deadline = 2 * time.Second
	return &Orchestrator{
		Oracle:       o,
		Sources:      func(string) []sources.Source { return srcs },
		SearchConfig: cfg,
		Locator:      &fakeLocator{err: types.ErrNoDocumentFound},
		Verifier:     &fakeVerifier{},
		Acquirer:     &fakeAcquirer{},
		Sessions:     session.NewMemoryStore(time.Hour),
		Library:      lib,
	}
}

var prideIntent = types.QueryIntent{
	Title:            "Pride and Prejudice",
	Author:           "Jane Austen",
	Categories:       []string{"Fiction"},
	Language:         "en",
	SearchVariations: []string{"Pride and Prejudice Jane Austen", "Pride and Prejudice"},
}

func prideSources() (*fakeSource, *fakeSource, *fakeSource) {
	gutendex := &fakeSource{name: sources.NameGutendex, records: []types.RawRecord{{
		Title:             "Pride and Prejudice",
		Authors:           []string{"Jane Austen"},
		DocumentURL:       "https://www.gutenberg.org/ebooks/1342.pdf",
		DocumentSourceTag: sources.NameGutendex,
		Language:          "en",
		SourceAPI:         sources.NameGutendex,
		ExternalID:        "1342",
	}}}
	google := &fakeSource{name: sources.NameGoogleBooks, records: []types.RawRecord{
		{Title: "Jane Austen's World", Authors: []string{"Maggie Lane"}, Language: "en", SourceAPI: sources.NameGoogleBooks},
		{Title: "Pride and Prejudice", Authors: []string{"Jane Austen"}, Language: "en", SourceAPI: sources.NameGoogleBooks},
	}}
	archive := &fakeSource{name: sources.NameInternetArchive, err: errors.New("HTTP 503")}
	return gutendex, google, archive
}

// --- search ---

func TestSearchPrideAndPrejudice(t *testing.T) {
	gutendex, google, archive := prideSources()
	orc := newTestOrchestrator(t, fakeOracle{intent: prideIntent}, gutendex, google, archive)

	resp, err := orc.Search(context.Background(), SearchRequest{Query: "pride and prejudice by austen", Language: "en"})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	top := resp.Results[0]
	assert.Equal(t, sources.NameGutendex, top.SourceAPI)
	assert.Equal(t, 1.0, top.RelevanceScore)
	assert.Equal(t, "Jane Austen's World", resp.Results[1].Title)
	assert.Equal(t, 0.8, resp.Results[1].RelevanceScore)

	assert.Equal(t, 2, resp.TotalFound)
	assert.Empty(t, resp.Message)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, resp.SessionID+"-1", top.ID)
	assert.Len(t, resp.SourceErrors, 1)

	// Only the first variation is fanned out by default.
	assert.Equal(t, []string{"Pride and Prejudice Jane Austen"}, gutendex.queries)

	stored, err := orc.SessionResults(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.Results, stored)
}

func TestSearchValidation(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{intent: prideIntent})
	tests := []struct {
		name string
		req  SearchRequest
	}{
		{"empty query", SearchRequest{Query: "   "}},
		{"unsupported language", SearchRequest{Query: "Emma", Language: "fr"}},
		{"too many results", SearchRequest{Query: "Emma", MaxResults: 21}},
		{"negative results", SearchRequest{Query: "Emma", MaxResults: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orc.Search(context.Background(), tt.req)
			assert.ErrorIs(t, err, types.ErrInvalidRequest)
		})
	}
}

func TestSearchOracleFallback(t *testing.T) {
	src := &fakeSource{name: sources.NameGutendex}
	orc := newTestOrchestrator(t, fakeOracle{err: errors.New("rate limited")}, src)

	resp, err := orc.Search(context.Background(), SearchRequest{Query: "الأيام", Language: "ar"})
	require.NoError(t, err)
	assert.Equal(t, "الأيام", resp.Intent.Title)
	assert.Equal(t, []string{"الأيام"}, resp.Intent.SearchVariations)
	assert.True(t, resp.Intent.SameLanguage)
	assert.Equal(t, []string{"الأيام"}, src.queries)
}

func TestSearchNoResults(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{intent: prideIntent}, &fakeSource{name: sources.NameGutendex})

	resp, err := orc.Search(context.Background(), SearchRequest{Query: "no such book"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, noResultsMessage, resp.Message)

	stored, err := orc.SessionResults(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestSearchMaxVariations(t *testing.T) {
	src := &fakeSource{name: sources.NameGutendex}
	orc := newTestOrchestrator(t, fakeOracle{intent: prideIntent}, src)
	orc.SearchConfig.MaxVariations = 0

	_, err := orc.Search(context.Background(), SearchRequest{Query: "pride"})
	require.NoError(t, err)
	assert.ElementsMatch(t, prideIntent.SearchVariations, src.queries)
}

func TestSearchEnrichesTopCandidates(t *testing.T) {
	gutendex, google, archive := prideSources()
	eo := &enrichingOracle{fakeOracle: fakeOracle{intent: prideIntent}, fail: map[string]bool{"Jane Austen's World": true}}
	orc := newTestOrchestrator(t, eo, gutendex, google, archive)

	resp, err := orc.Search(context.Background(), SearchRequest{Query: "pride and prejudice", Language: "en"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.ElementsMatch(t, []string{"Pride and Prejudice", "Jane Austen's World"}, eo.titles)

	top := resp.Results[0]
	require.NotNil(t, top.AuthorInfo)
	assert.Equal(t, "Jane Austen", top.AuthorInfo.Name)
	assert.Equal(t, []types.CategoryInfo{{Name: "Fiction", Icon: "📖"}}, top.CategoryDetails)
	assert.Equal(t, "Enriched in en.", top.Description)
	assert.Equal(t, 1.0, top.RelevanceScore, "ranking survives enrichment")
	assert.Equal(t, "https://www.gutenberg.org/ebooks/1342.pdf", top.DocumentURL)

	failed := resp.Results[1]
	assert.Equal(t, "Jane Austen's World", failed.Title, "a failed enrichment keeps the candidate")
	assert.Nil(t, failed.AuthorInfo)
	assert.Equal(t, 0.8, failed.RelevanceScore)

	stored, err := orc.SessionResults(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.Results, stored, "the session holds the enriched candidates")
}

func TestSearchEnrichLimit(t *testing.T) {
	gutendex, google, archive := prideSources()
	eo := &enrichingOracle{fakeOracle: fakeOracle{intent: prideIntent}}
	orc := newTestOrchestrator(t, eo, gutendex, google, archive)

	orc.SearchConfig.EnrichResults = 1
	resp, err := orc.Search(context.Background(), SearchRequest{Query: "pride"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Pride and Prejudice"}, eo.titles)
	assert.NotNil(t, resp.Results[0].AuthorInfo)
	assert.Nil(t, resp.Results[1].AuthorInfo)

	eo.titles = nil
	orc.SearchConfig.EnrichResults = 0
	_, err = orc.Search(context.Background(), SearchRequest{Query: "pride"})
	require.NoError(t, err)
	assert.Empty(t, eo.titles)
}

func TestSessionResultsUnknown(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	_, err := orc.SessionResults(context.Background(), "missing")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

// --- acquire ---

// storeCandidates saves cands as a session and returns them with IDs.
func storeCandidates(t *testing.T, orc *Orchestrator, cands ...types.CandidateBook) []types.CandidateBook {
	t.Helper()
	s := &session.Session{Query: "q", Language: "en", Candidates: cands}
	require.NoError(t, orc.Sessions.Save(context.Background(), s))
	return s.Candidates
}

func TestAcquireVerifiesBeforeDownload(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	acq := &fakeAcquirer{result: types.AcquisitionResult{Success: true, StoredPath: "books/pdfs/x.pdf"}}
	orc.Acquirer = acq
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Emma", DocumentURL: "https://example.com/emma.html"})

	resp, err := orc.Acquire(context.Background(), AcquireRequest{CandidateID: cands[0].ID})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Kind, types.ErrContentTypeMismatch)
	assert.Contains(t, resp.Error, "content type mismatch")
	assert.Empty(t, acq.urls, "nothing is downloaded from a rejected link")
}

func TestAcquireLocatesMissingLink(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	const link = "https://archive.org/download/emma/emma.pdf"
	loc := &fakeLocator{url: link, tag: "internet_archive"}
	acq := &fakeAcquirer{result: types.AcquisitionResult{Success: true, StoredPath: "books/pdfs/Emma_Jane_Austen.pdf"}}
	orc.Locator, orc.Verifier, orc.Acquirer = loc, &fakeVerifier{ok: map[string]bool{link: true}}, acq
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Emma", Author: "Jane Austen"})

	resp, err := orc.Acquire(context.Background(), AcquireRequest{CandidateID: cands[0].ID})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{link}, acq.urls)
	assert.Equal(t, link, resp.Candidate.DocumentURL)
	assert.True(t, resp.Candidate.DocumentVerified)

	stored, err := orc.Sessions.GetCandidate(context.Background(), cands[0].ID)
	require.NoError(t, err)
	assert.Equal(t, link, stored.DocumentURL)
	assert.Equal(t, "internet_archive", stored.DocumentSourceTag)
	assert.True(t, stored.DocumentVerified)

	// The stored verified flag spares a second check.
	v := orc.Verifier.(*fakeVerifier)
	_, err = orc.Acquire(context.Background(), AcquireRequest{CandidateID: cands[0].ID})
	require.NoError(t, err)
	assert.Len(t, v.calls, 1)
	assert.Equal(t, 1, loc.calls)
}

func TestAcquireSkipVerification(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	acq := &fakeAcquirer{result: types.AcquisitionResult{Success: true}}
	orc.Acquirer = acq
	cand := types.CandidateBook{Title: "Emma", DocumentURL: "https://example.com/get.php?id=1"}

	resp, err := orc.Acquire(context.Background(), AcquireRequest{Candidate: &cand, SkipVerification: true})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Empty(t, orc.Verifier.(*fakeVerifier).calls)
	assert.Len(t, acq.urls, 1)
}

func TestAcquireInlineCandidateIsAlwaysVerified(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	acq := &fakeAcquirer{result: types.AcquisitionResult{Success: true}}
	orc.Acquirer = acq
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Emma", DocumentURL: "https://example.com/emma.pdf"})

	// A caller-supplied verified flag and a borrowed session ID carry no
	// weight.
	inline := types.CandidateBook{
		ID:               cands[0].ID,
		Title:            "Emma",
		DocumentURL:      "https://evil.example/page.html",
		DocumentVerified: true,
	}
	resp, err := orc.Acquire(context.Background(), AcquireRequest{Candidate: &inline})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Kind, types.ErrContentTypeMismatch)
	assert.Equal(t, []string{"https://evil.example/page.html"}, orc.Verifier.(*fakeVerifier).calls)
	assert.Empty(t, acq.urls)
	assert.False(t, resp.Candidate.DocumentVerified)

	stored, err := orc.Sessions.GetCandidate(context.Background(), cands[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/emma.pdf", stored.DocumentURL)
}

func TestAcquireNoDocumentFound(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Unfindable"})

	resp, err := orc.Acquire(context.Background(), AcquireRequest{CandidateID: cands[0].ID})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.ErrorIs(t, resp.Kind, types.ErrNoDocumentFound)
}

func TestAcquireUnknownCandidate(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	_, err := orc.Acquire(context.Background(), AcquireRequest{CandidateID: "nope-1"})
	assert.ErrorIs(t, err, types.ErrCandidateNotFound)

	_, err = orc.Acquire(context.Background(), AcquireRequest{})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

// --- verify only ---

func TestVerifyOnlyHTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<!doctype html><html><body>Read online</body></html>")
	}))
	defer srv.Close()

	orc := newTestOrchestrator(t, fakeOracle{})
	orc.Verifier = verify.New(types.DefaultPipelineConfig().Verify, srv.Client(), nil)

	resp := orc.VerifyOnly(context.Background(), srv.URL+"/book.pdf")
	assert.False(t, resp.IsValid)
	assert.Contains(t, resp.Error, types.ErrContentTypeMismatch.Error())
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
}

func TestVerifyOnlyValid(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	orc.Verifier = &fakeVerifier{ok: map[string]bool{"https://example.com/a.pdf": true}}

	resp := orc.VerifyOnly(context.Background(), " https://example.com/a.pdf ")
	assert.True(t, resp.IsValid)
	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.SizeBytes)
	assert.EqualValues(t, 1024, *resp.SizeBytes)
}

// --- add from search ---

func TestAddFromSearch(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	const link = "https://www.gutenberg.org/ebooks/158.pdf"
	orc.Verifier = &fakeVerifier{ok: map[string]bool{link: true}}
	orc.Acquirer = &fakeAcquirer{result: types.AcquisitionResult{Success: true, StoredPath: "books/pdfs/Emma_Jane_Austen.pdf"}}
	cands := storeCandidates(t, orc,
		types.CandidateBook{Title: "Emma", Author: "Jane Austen", DocumentURL: link, Categories: []string{"Fiction"}, SourceAPI: "gutendex"},
		types.CandidateBook{Title: "Persuasion", Author: "Jane Austen"},
	)
	ctx := context.Background()

	resp, err := orc.AddFromSearch(ctx, AddRequest{CandidateID: cands[0].ID, DownloadRequested: true})
	require.NoError(t, err)
	assert.Equal(t, DocumentDownloaded, resp.DocumentStatus)
	assert.Equal(t, "books/pdfs/Emma_Jane_Austen.pdf", resp.Book.PDFPath)
	assert.Equal(t, "Fiction", resp.Book.Category)
	assert.Equal(t, library.StatusDraft, resp.Book.Status)

	got, err := orc.Library.Get(ctx, resp.BookID)
	require.NoError(t, err)
	assert.Equal(t, "Emma", got.Title)

	// Download failures are recorded, not fatal.
	orc.Acquirer = &fakeAcquirer{result: types.Failed(types.FormatUnknown, types.ErrNoDocumentFound,
		fmt.Errorf("%w: %q", types.ErrNoDocumentFound, "Persuasion"))}
	resp, err = orc.AddFromSearch(ctx, AddRequest{CandidateID: cands[1].ID, Status: "published", CustomCategory: "Romance", DownloadRequested: true})
	require.NoError(t, err)
	assert.Contains(t, resp.DocumentStatus, "failed: ")
	assert.Empty(t, resp.Book.PDFPath)
	assert.Equal(t, "Romance", resp.Book.Category)
	assert.Equal(t, library.StatusPublished, resp.Book.Status)
}

func TestAddFromSearchDuplicate(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	ctx := context.Background()
	existing, err := orc.Library.Create(ctx, library.Book{Title: "pride and prejudice", Author: "JANE AUSTEN"})
	require.NoError(t, err)
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Pride and Prejudice", Author: "Jane Austen"})

	_, err = orc.AddFromSearch(ctx, AddRequest{CandidateID: cands[0].ID})
	require.ErrorIs(t, err, types.ErrDuplicateBook)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, existing.ID, dup.ExistingID)
}

func TestAddFromSearchSkipped(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	acq := &fakeAcquirer{}
	orc.Acquirer = acq
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Emma", Author: "Jane Austen"})

	resp, err := orc.AddFromSearch(context.Background(), AddRequest{CandidateID: cands[0].ID})
	require.NoError(t, err)
	assert.Equal(t, DocumentSkipped, resp.DocumentStatus)
	assert.Empty(t, acq.urls)
}

func TestAddFromSearchInvalid(t *testing.T) {
	orc := newTestOrchestrator(t, fakeOracle{})
	cands := storeCandidates(t, orc, types.CandidateBook{Title: "Emma"})

	_, err := orc.AddFromSearch(context.Background(), AddRequest{})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	_, err = orc.AddFromSearch(context.Background(), AddRequest{CandidateID: cands[0].ID, Status: "archived"})
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
	_, err = orc.AddFromSearch(context.Background(), AddRequest{CandidateID: "gone-1"})
	assert.ErrorIs(t, err, types.ErrCandidateNotFound)
}
