// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrate runs the pipeline operations the CLI and the HTTP
// server expose: searching the catalogs, acquiring a candidate's document,
// verifying a single URL, and adding a candidate to the library.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/pdiddy/bookfinder/internal/acquire"
	"github.com/pdiddy/bookfinder/internal/convert"
	"github.com/pdiddy/bookfinder/internal/httputil"
	"github.com/pdiddy/bookfinder/internal/library"
	"github.com/pdiddy/bookfinder/internal/locate"
	"github.com/pdiddy/bookfinder/internal/oracle"
	"github.com/pdiddy/bookfinder/internal/search"
	"github.com/pdiddy/bookfinder/internal/session"
	"github.com/pdiddy/bookfinder/internal/sources"
	"github.com/pdiddy/bookfinder/internal/verify"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// maxResultsLimit is the largest result count a search may ask for.
const maxResultsLimit = 20

// Locator finds a document link for a candidate without one.
type Locator interface {
	Locate(ctx context.Context, cand types.CandidateBook) (string, string, error)
}

// Verifier checks a document URL.
type Verifier interface {
	Verify(ctx context.Context, rawURL string) types.VerifyReport
}

// Acquirer downloads and stores a document.
type Acquirer interface {
	Acquire(ctx context.Context, rawURL, titleHint, authorHint string) types.AcquisitionResult
}

// Orchestrator holds the pipeline stages. Tests assemble one directly with
// fakes; production code uses New.
type Orchestrator struct {
	Oracle oracle.Oracle

	// Sources returns the catalogs to query for a language.
	Sources func(language string) []sources.Source

	SearchConfig types.SearchConfig
	Locator      Locator
	Verifier     Verifier
	Acquirer     Acquirer
	Sessions     session.Store
	Library      *library.Store
	Logger       *slog.Logger
}

// New wires every stage from cfg. A converter that cannot be set up and an
// unreachable Redis are logged and degraded; a library that cannot be
// opened is an error.
func New(ctx context.Context, cfg types.PipelineConfig, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := &http.Client{}

	lib, err := library.Open(cfg.Library.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening library: %w", err)
	}

	sessions, err := session.New(ctx, cfg.Session)
	if err != nil {
		if errors.Is(err, types.ErrInvalidConfig) {
			lib.Close()
			return nil, err
		}
		logger.Warn("session.fallback", "backend", cfg.Session.Backend, "error", err)
		sessions = session.NewMemoryStore(cfg.Session.TTL)
	}

	conv, err := convert.New(ctx, cfg.Acquisition)
	if err != nil {
		logger.Warn("convert.unavailable", "backend", cfg.Acquisition.Converter, "error", err)
	}

	orc := oracle.New(cfg.Oracle, client, logger)
	verifier := verify.New(cfg.Verify, client, logger)

	finderBase := func(name string, sc types.SourceConfig) sources.Base {
		return sources.Base{
			Client:    client,
			UserAgent: cfg.Search.UserAgent,
			Timeout:   sc.Timeout,
			Limiter:   httputil.NewLimiter(name, sc.RatePerSecond),
			Logger:    logger,
		}
	}
	gutendex := &sources.Gutendex{Base: finderBase(sources.NameGutendex, cfg.Search.Gutendex)}
	archive := &sources.InternetArchive{Base: finderBase(sources.NameInternetArchive, cfg.Search.InternetArchive)}

	return &Orchestrator{
		Oracle: orc,
		Sources: func(language string) []sources.Source {
			return sources.FromConfig(cfg.Search, client, logger, language == "ar")
		},
		SearchConfig: cfg.Search,
		Locator:      locate.New(cfg.Locator, orc, gutendex, archive, verifier, logger),
		Verifier:     verifier,
		Acquirer:     acquire.New(cfg.Acquisition, client, conv, logger),
		Sessions:     sessions,
		Library:      lib,
		Logger:       logger,
	}, nil
}

// Close releases the library and, when it holds one, the session store's
// connection.
func (o *Orchestrator) Close() error {
	var errs []error
	if c, ok := o.Sessions.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if o.Library != nil {
		errs = append(errs, o.Library.Close())
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// SearchRequest is a free-text book search.
type SearchRequest struct {
	Query      string `json:"book_name"`
	Language   string `json:"language"`
	MaxResults int    `json:"max_results"`
}

// SearchResponse carries the ranked candidates of one search session.
type SearchResponse struct {
	SessionID  string                `json:"search_session"`
	Results    []types.CandidateBook `json:"results"`
	TotalFound int                   `json:"total_found"`
	Intent     types.QueryIntent     `json:"extracted_info"`
	Message    string                `json:"message,omitempty"`

	DuplicatesRemoved int      `json:"duplicates_removed"`
	SourceErrors      []string `json:"source_errors,omitempty"`
}

// noResultsMessage is reported with an empty result list.
const noResultsMessage = "No books found matching your search criteria"

func (o *Orchestrator) validate(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("%w: book name is required", types.ErrInvalidRequest)
	}
	req.Language = strings.ToLower(strings.TrimSpace(req.Language))
	switch req.Language {
	case "":
		req.Language = "en"
	case "en", "ar":
	default:
		return fmt.Errorf("%w: language must be en or ar, got %q", types.ErrInvalidRequest, req.Language)
	}
	if req.MaxResults == 0 {
		req.MaxResults = o.SearchConfig.MaxResults
	}
	if req.MaxResults < 1 || req.MaxResults > maxResultsLimit {
		return fmt.Errorf("%w: max_results must be between 1 and %d", types.ErrInvalidRequest, maxResultsLimit)
	}
	return nil
}

// Search reads the query through the oracle, fans it out to the catalogs,
// enriches the top candidates, and stores the ranked candidates as a new
// session. Finding nothing is not
// an error: the response carries an empty list and a message.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if err := o.validate(&req); err != nil {
		return SearchResponse{}, err
	}

	intent, err := o.Oracle.ExtractIntent(ctx, req.Query, req.Language)
	if err != nil {
		o.log().Warn("search.intent.fallback", "query", req.Query, "error", err)
		intent = types.FallbackIntent(req.Query, req.Language)
	}
	if intent.Language == "" {
		intent.Language = req.Language
	}
	if len(intent.SearchVariations) == 0 {
		intent.SearchVariations = []string{req.Query}
	}
	if n := o.SearchConfig.MaxVariations; n > 0 && len(intent.SearchVariations) > n {
		intent.SearchVariations = intent.SearchVariations[:n]
	}

	out := search.Run(ctx, o.Sources(req.Language), intent, search.Options{
		Deadline:   o.SearchConfig.Deadline,
		MaxResults: req.MaxResults,
		Sequential: o.SearchConfig.Sequential,
		Hints:      sources.Hints{PreferLanguage: req.Language, MaxResults: req.MaxResults},
		Logger:     o.Logger,
	})
	o.enrich(ctx, out.Results, req.Language)

	s := &session.Session{
		Query:      req.Query,
		Language:   req.Language,
		Intent:     intent,
		Candidates: out.Results,
	}
	if s.Candidates == nil {
		s.Candidates = []types.CandidateBook{}
	}
	if err := o.Sessions.Save(ctx, s); err != nil {
		return SearchResponse{}, fmt.Errorf("saving search session: %w", err)
	}

	resp := SearchResponse{
		SessionID:         s.ID,
		Results:           s.Candidates,
		TotalFound:        len(s.Candidates),
		Intent:            intent,
		DuplicatesRemoved: out.DupsRemoved,
		SourceErrors:      out.SourceErrors,
	}
	if resp.TotalFound == 0 {
		resp.Message = noResultsMessage
	}
	return resp, nil
}

// enrich asks the oracle for display details on the top
// SearchConfig.EnrichResults candidates, concurrently. Only the enrichment
// fields are taken from the answer; a candidate whose enrichment fails stays
// as ranked.
func (o *Orchestrator) enrich(ctx context.Context, cands []types.CandidateBook, language string) {
	n := min(o.SearchConfig.EnrichResults, len(cands))
	if n <= 0 {
		return
	}
	var wg sync.WaitGroup
	for i := range cands[:n] {
		wg.Add(1)
		go func(c *types.CandidateBook) {
			defer wg.Done()
			got, err := o.Oracle.Enrich(ctx, *c, language)
			if err != nil {
				if errors.Is(err, oracle.ErrDisabled) {
					o.log().Debug("search.enrich.disabled", "title", c.Title)
				} else {
					o.log().Warn("search.enrich.failed", "title", c.Title, "error", err)
				}
				return
			}
			c.Description = got.Description
			c.Categories = got.Categories
			c.CategoryDetails = got.CategoryDetails
			c.AuthorInfo = got.AuthorInfo
		}(&cands[i])
	}
	wg.Wait()
}

// SessionResults returns the candidates of a stored search.
func (o *Orchestrator) SessionResults(ctx context.Context, sessionID string) ([]types.CandidateBook, error) {
	s, err := o.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Candidates, nil
}

// AcquireRequest selects a candidate by session ID or carries one inline.
type AcquireRequest struct {
	CandidateID      string               `json:"search_result_id"`
	Candidate        *types.CandidateBook `json:"candidate,omitempty"`
	SkipVerification bool                 `json:"skip_verification"`
}

// AcquireResponse is the acquisition outcome plus the candidate as it
// stands afterwards (a located link, the verified flag).
type AcquireResponse struct {
	types.AcquisitionResult
	Candidate types.CandidateBook `json:"candidate"`
}

// candidate resolves the request's candidate. An inline candidate is
// caller-supplied: it is never treated as verified and never written back
// to a session.
func (o *Orchestrator) candidate(ctx context.Context, req AcquireRequest) (types.CandidateBook, error) {
	if req.Candidate != nil {
		cand := *req.Candidate
		cand.ID = ""
		cand.DocumentVerified = false
		return cand, nil
	}
	if req.CandidateID == "" {
		return types.CandidateBook{}, fmt.Errorf("%w: search_result_id is required", types.ErrInvalidRequest)
	}
	return o.Sessions.GetCandidate(ctx, req.CandidateID)
}

// Acquire materializes the document of a candidate. A candidate without a
// link goes through the locator first; the link is verified unless the
// request skips it, and nothing is downloaded from a link that failed.
// Pipeline failures are reported in the result, lookup failures as errors.
func (o *Orchestrator) Acquire(ctx context.Context, req AcquireRequest) (AcquireResponse, error) {
	cand, err := o.candidate(ctx, req)
	if err != nil {
		return AcquireResponse{}, err
	}
	return o.acquire(ctx, cand, req.SkipVerification), nil
}

func (o *Orchestrator) acquire(ctx context.Context, cand types.CandidateBook, skipVerify bool) AcquireResponse {
	resp := AcquireResponse{Candidate: cand}
	changed := false

	if cand.DocumentURL == "" {
		if o.Locator == nil {
			resp.AcquisitionResult = types.Failed(types.FormatUnknown, types.ErrNoDocumentFound,
				fmt.Errorf("%w: %q", types.ErrNoDocumentFound, cand.Title))
			return resp
		}
		u, tag, err := o.Locator.Locate(ctx, cand)
		if err != nil {
			resp.AcquisitionResult = types.Failed(types.FormatUnknown, types.ErrNoDocumentFound, err)
			return resp
		}
		cand.DocumentURL, cand.DocumentSourceTag, cand.DocumentVerified = u, tag, false
		changed = true
	}

	if !skipVerify && !cand.DocumentVerified {
		rep := o.Verifier.Verify(ctx, cand.DocumentURL)
		if !rep.IsValid() {
			o.log().Info("acquire.verify.rejected", "url", cand.DocumentURL, "state", rep.State, "error", rep.Err)
			o.saveCandidate(ctx, cand, changed)
			resp.Candidate = cand
			resp.AcquisitionResult = types.Failed(types.FormatUnknown, kindOf(rep.State), reportError(rep))
			return resp
		}
		cand.DocumentVerified = true
		changed = true
	}

	o.saveCandidate(ctx, cand, changed)
	resp.Candidate = cand
	resp.AcquisitionResult = o.Acquirer.Acquire(ctx, cand.DocumentURL, cand.Title, cand.Author)
	return resp
}

// saveCandidate writes a changed session candidate back. Inline candidates
// carry no ID and are not stored.
func (o *Orchestrator) saveCandidate(ctx context.Context, cand types.CandidateBook, changed bool) {
	if !changed || cand.ID == "" {
		return
	}
	if err := o.Sessions.UpdateCandidate(ctx, cand); err != nil {
		o.log().Warn("session.update.error", "candidate", cand.ID, "error", err)
	}
}

// kindOf maps a terminal verification state onto the error taxonomy.
func kindOf(state types.VerifyState) error {
	switch state {
	case types.StateSyntaxRejected:
		return types.ErrURLSyntaxInvalid
	case types.StateTypeRejected:
		return types.ErrContentTypeMismatch
	case types.StateSizeRejected:
		return types.ErrPayloadTooLarge
	}
	return types.ErrURLUnreachable
}

func reportError(rep types.VerifyReport) error {
	if rep.Err != nil {
		return rep.Err
	}
	return fmt.Errorf("%w: %s", kindOf(rep.State), rep.URL)
}

// VerifyResponse is the outcome of checking a single URL.
type VerifyResponse struct {
	IsValid     bool   `json:"is_valid"`
	Error       string `json:"error,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   *int64 `json:"file_size,omitempty"`
}

// VerifyOnly runs the verifier on rawURL without downloading anything.
func (o *Orchestrator) VerifyOnly(ctx context.Context, rawURL string) VerifyResponse {
	rep := o.Verifier.Verify(ctx, strings.TrimSpace(rawURL))
	resp := VerifyResponse{
		IsValid:     rep.IsValid(),
		Error:       rep.ErrorString(),
		ContentType: rep.ContentType,
	}
	if rep.SizeBytes >= 0 && rep.State != types.StateSyntaxRejected {
		size := rep.SizeBytes
		resp.SizeBytes = &size
	}
	return resp
}

// AddRequest adds a session candidate to the library.
type AddRequest struct {
	CandidateID       string `json:"search_result_id"`
	Status            string `json:"status"`
	CustomCategory    string `json:"custom_category"`
	DownloadRequested bool   `json:"download_pdf"`
}

// Document status values of an AddResponse. A failed download reads
// "failed: <reason>".
const (
	DocumentSkipped    = "skipped"
	DocumentDownloaded = "downloaded"
)

// AddResponse describes the created library record.
type AddResponse struct {
	BookID         int64        `json:"book_id"`
	Message        string       `json:"message"`
	DocumentStatus string       `json:"pdf_status"`
	Book           library.Book `json:"book"`
}

// DuplicateError reports a library book with the same title and author.
// It matches types.ErrDuplicateBook under errors.Is.
type DuplicateError struct {
	ExistingID int64
	Title      string
	Author     string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%v: %q by %q (id %d)", types.ErrDuplicateBook, e.Title, e.Author, e.ExistingID)
}

func (e *DuplicateError) Is(target error) bool { return target == types.ErrDuplicateBook }

// AddFromSearch creates a library record from a session candidate. When a
// download is requested its failure is recorded in DocumentStatus and the
// record is created anyway.
func (o *Orchestrator) AddFromSearch(ctx context.Context, req AddRequest) (AddResponse, error) {
	if req.CandidateID == "" {
		return AddResponse{}, fmt.Errorf("%w: search_result_id is required", types.ErrInvalidRequest)
	}
	status, err := library.ParseStatus(req.Status)
	if err != nil {
		return AddResponse{}, err
	}
	cand, err := o.Sessions.GetCandidate(ctx, req.CandidateID)
	if err != nil {
		return AddResponse{}, err
	}

	existing, found, err := o.Library.FindByTitleAuthor(ctx, cand.Title, cand.Author)
	if err != nil {
		return AddResponse{}, err
	}
	if found {
		return AddResponse{}, &DuplicateError{ExistingID: existing.ID, Title: existing.Title, Author: existing.Author}
	}

	book := library.FromCandidate(cand, strings.TrimSpace(req.CustomCategory))
	book.Status = status

	docStatus := DocumentSkipped
	if req.DownloadRequested {
		res := o.acquire(ctx, cand, false)
		if res.Success {
			book.PDFPath = res.StoredPath
			docStatus = DocumentDownloaded
		} else {
			docStatus = "failed: " + res.Error
		}
	}

	book, err = o.Library.Create(ctx, book)
	if err != nil {
		return AddResponse{}, err
	}
	o.log().Info("library.added", "id", book.ID, "title", book.Title, "pdf_status", docStatus)
	return AddResponse{
		BookID:         book.ID,
		Message:        fmt.Sprintf("Book %q added successfully", book.Title),
		DocumentStatus: docStatus,
		Book:           book,
	}, nil
}
