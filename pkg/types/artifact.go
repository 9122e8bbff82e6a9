// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DetectedFormat classifies what an acquisition actually materialized.
type DetectedFormat string

const (
	FormatDocument  DetectedFormat = "document"
	FormatConverted DetectedFormat = "alternate-format-converted"
	FormatUnknown   DetectedFormat = "unknown"
)

// AcquisitionResult is produced once per acquire call and consumed
// immediately by the caller. StoredPath is set iff Success; Error is set iff
// not Success.
type AcquisitionResult struct {
	Success        bool           `json:"success"`
	StoredPath     string         `json:"stored_path,omitempty"`
	DetectedFormat DetectedFormat `json:"format"`
	Error          string         `json:"error,omitempty"`
	SizeBytes      int64          `json:"size_bytes,omitempty"`

	// Kind is the taxonomy sentinel behind Error, for errors.Is checks.
	Kind error `json:"-"`
}

// Failed builds an unsuccessful result from err. The sentinel kind is
// kept for callers that branch on it.
func Failed(format DetectedFormat, kind, err error) AcquisitionResult {
	return AcquisitionResult{
		DetectedFormat: format,
		Error:          err.Error(),
		Kind:           kind,
	}
}

// VerifyState is a terminal state of the verification state machine.
type VerifyState string

const (
	StateUnchecked      VerifyState = "unchecked"
	StateSyntaxRejected VerifyState = "syntax_rejected"
	StateNetworkError   VerifyState = "network_error"
	StateTypeRejected   VerifyState = "type_rejected"
	StateSizeRejected   VerifyState = "size_rejected"
	StateVerified       VerifyState = "verified"
)

// VerifyReport is the outcome of checking one URL.
type VerifyReport struct {
	URL         string      `json:"url"`
	State       VerifyState `json:"state"`
	ContentType string      `json:"content_type,omitempty"`

	// SizeBytes is the declared size, or -1 when the server sent none.
	SizeBytes int64 `json:"file_size"`

	Err error `json:"-"`
}

// IsValid reports whether the URL reached the Verified state.
func (r VerifyReport) IsValid() bool {
	return r.State == StateVerified
}

// ErrorString returns the failure message, or "" for a verified URL.
func (r VerifyReport) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
