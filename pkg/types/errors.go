// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Pipeline error taxonomy. Stages wrap these with fmt.Errorf("...: %w") so
// callers classify failures with errors.Is.
var (
	// ErrSourceUnavailable marks a catalog that failed; it contributes zero
	// results and never aborts a search.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoCandidatesFound is reported as an empty result with a message,
	// not as a failed search.
	ErrNoCandidatesFound = errors.New("no candidates found")

	ErrURLSyntaxInvalid    = errors.New("url syntax invalid")
	ErrURLUnreachable      = errors.New("url unreachable")
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrConversionFailed    = errors.New("conversion failed")
	ErrStorageFailed       = errors.New("storage failed")

	ErrNoDocumentFound   = errors.New("no document link found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrCandidateNotFound = errors.New("candidate not found")
	ErrDuplicateBook     = errors.New("book already exists")
	ErrBookNotFound      = errors.New("book not found")

	// ErrInvalidConfig is the only fatal condition; it is raised at startup.
	ErrInvalidConfig = errors.New("invalid configuration")
)
