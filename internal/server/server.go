// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the pipeline operations and the library over a JSON
// HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/bookfinder/internal/library"
	"github.com/pdiddy/bookfinder/internal/orchestrate"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// Pipeline is the set of operations the API serves.
type Pipeline interface {
	Search(ctx context.Context, req orchestrate.SearchRequest) (orchestrate.SearchResponse, error)
	SessionResults(ctx context.Context, sessionID string) ([]types.CandidateBook, error)
	Acquire(ctx context.Context, req orchestrate.AcquireRequest) (orchestrate.AcquireResponse, error)
	VerifyOnly(ctx context.Context, rawURL string) orchestrate.VerifyResponse
	AddFromSearch(ctx context.Context, req orchestrate.AddRequest) (orchestrate.AddResponse, error)
}

// Books reads library records.
type Books interface {
	Get(ctx context.Context, id int64) (library.Book, error)
	List(ctx context.Context, opts library.ListOptions) ([]library.Book, int, error)
}

// Server is the HTTP API.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	pipeline   Pipeline
	books      Books
	logger     *slog.Logger
}

// New creates a server listening on cfg.Addr. Write timeouts are left to
// the pipeline's own deadlines, since an acquisition can stream for longer
// than a typical API call.
func New(cfg types.ServerConfig, pipeline Pipeline, books Books, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:   http.NewServeMux(),
		pipeline: pipeline,
		books:    books,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.HandleFunc("POST /api/books/ai-search", s.handleSearch)
	s.router.HandleFunc("GET /api/books/search-results/{session}", s.handleSessionResults)
	s.router.HandleFunc("POST /api/books/acquire", s.handleAcquire)
	s.router.HandleFunc("POST /api/books/verify-pdf", s.handleVerify)
	s.router.HandleFunc("POST /api/books/add-from-search", s.handleAddFromSearch)

	s.router.HandleFunc("GET /api/books", s.handleListBooks)
	s.router.HandleFunc("GET /api/books/{id}", s.handleGetBook)
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with an ID (echoed in X-Request-ID) and
// logs it once it completes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http.request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
