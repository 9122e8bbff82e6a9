// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pdiddy/bookfinder/internal/library"
	"github.com/pdiddy/bookfinder/internal/orchestrate"
	"github.com/pdiddy/bookfinder/internal/session"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// maxBodyBytes bounds request bodies; every request is a small JSON object.
const maxBodyBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req orchestrate.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.pipeline.Search(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessionResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.pipeline.SessionResults(r.Context(), r.PathValue("session"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
}

// handleAcquire answers 200 for pipeline failures too; the body says what
// went wrong.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req orchestrate.AcquireRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.pipeline.Acquire(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"pdf_url"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "pdf_url is required")
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.VerifyOnly(r.Context(), req.URL))
}

func (s *Server) handleAddFromSearch(w http.ResponseWriter, r *http.Request) {
	var req orchestrate.AddRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := s.pipeline.AddFromSearch(r.Context(), req)
	var dup *orchestrate.DuplicateError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            dup.Error(),
			"existing_book_id": dup.ExistingID,
		})
		return
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := library.ListOptions{}
	var err error
	if opts.Limit, err = intParam(q.Get("limit"), 20); err != nil || opts.Limit < 1 || opts.Limit > 100 {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	if opts.Offset, err = intParam(q.Get("offset"), 0); err != nil || opts.Offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	if st := q.Get("status"); st != "" {
		if opts.Status, err = library.ParseStatus(st); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	books, total, err := s.books.List(r.Context(), opts)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if books == nil {
		books = []library.Book{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": books,
		"count":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	b, err := s.books.Get(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrCandidateNotFound),
		errors.Is(err, types.ErrBookNotFound),
		errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrDuplicateBook):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("http.error", "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
