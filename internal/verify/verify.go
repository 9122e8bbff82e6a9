// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verify checks, without downloading the whole payload, whether a URL
// very likely serves a genuine document of the expected kind.
//
// A check moves through syntax, existence, type, and size stages and stops
// at the first failure. At most a 1 KiB prefix of the body is read.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pdiddy/bookfinder/pkg/types"
)

// prefixSize bounds how much of a body the type check reads.
const prefixSize = 1024

// Kind describes a document type by MIME type and magic bytes found at
// Offset. The zero Kind means "any supported document".
type Kind struct {
	Name      string
	MIMETypes []string
	Signature []byte
	Offset    int
}

var (
	KindPDF  = Kind{Name: "PDF", MIMETypes: []string{"application/pdf"}, Signature: []byte("%PDF")}
	KindEPUB = Kind{Name: "EPUB", MIMETypes: []string{"application/epub+zip"}, Signature: []byte("PK\x03\x04")}
	KindMOBI = Kind{
		Name:      "MOBI",
		MIMETypes: []string{"application/x-mobipocket-ebook", "application/vnd.amazon.ebook"},
		Signature: []byte("BOOKMOBI"),
		Offset:    60,
	}
)

// kinds lists every document kind the acquirer can store or convert.
var kinds = []Kind{KindPDF, KindEPUB, KindMOBI}

// extKinds maps file name segments to kinds. Project Gutenberg names its
// files like 1342.epub3.images or 1342.kf8.images, so every segment after
// the first is considered, not only the last.
var extKinds = map[string]Kind{
	"pdf":    KindPDF,
	"epub":   KindEPUB,
	"epub3":  KindEPUB,
	"mobi":   KindMOBI,
	"kf8":    KindMOBI,
	"kindle": KindMOBI,
}

// KindFor picks the expected kind from the URL path. It returns the zero
// Kind when the path names no document type.
func KindFor(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Kind{}
	}
	segs := strings.Split(strings.ToLower(path.Base(u.Path)), ".")
	for i := len(segs) - 1; i >= 1; i-- {
		if k, ok := extKinds[segs[i]]; ok {
			return k
		}
	}
	return Kind{}
}

// kindDeclaredBy returns the kind whose MIME type contentType names.
func kindDeclaredBy(contentType string) (Kind, bool) {
	for _, k := range kinds {
		if k.declaredBy(contentType) {
			return k, true
		}
	}
	return Kind{}, false
}

// kindOf returns the kind whose signature prefix carries.
func kindOf(prefix []byte) (Kind, bool) {
	for _, k := range kinds {
		if k.matches(prefix) {
			return k, true
		}
	}
	return Kind{}, false
}

func (k Kind) matches(prefix []byte) bool {
	if len(k.Signature) == 0 || len(prefix) < k.Offset {
		return false
	}
	return bytes.HasPrefix(prefix[k.Offset:], k.Signature)
}

func (k Kind) declaredBy(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	for _, m := range k.MIMETypes {
		if mt == m {
			return true
		}
	}
	return false
}

func (k Kind) label() string {
	if k.Name == "" {
		return "a PDF, EPUB or MOBI document"
	}
	return k.Name
}

// Verifier runs the verification state machine.
type Verifier struct {
	Client    *http.Client
	UserAgent string

	// ProbeTimeout bounds the whole check, including the prefix read.
	ProbeTimeout time.Duration

	// MaxBytes rejects documents whose declared size is larger.
	MaxBytes int64

	Logger *slog.Logger
}

// New builds a Verifier from configuration.
func New(cfg types.VerifyConfig, client *http.Client, logger *slog.Logger) *Verifier {
	return &Verifier{
		Client:       client,
		UserAgent:    cfg.UserAgent,
		ProbeTimeout: cfg.ProbeTimeout,
		MaxBytes:     cfg.MaxBytes,
		Logger:       logger,
	}
}

func (v *Verifier) log() *slog.Logger {
	if v.Logger == nil {
		return slog.Default()
	}
	return v.Logger
}

func (v *Verifier) httpClient() *http.Client {
	if v.Client == nil {
		return http.DefaultClient
	}
	return v.Client
}

// Verify checks rawURL against the kind its path suggests. When the path
// is silent the declared content type decides, then the body signature.
func (v *Verifier) Verify(ctx context.Context, rawURL string) types.VerifyReport {
	return v.VerifyAs(ctx, rawURL, KindFor(rawURL))
}

// VerifyAs checks rawURL against kind. Failures are reported in the returned
// report, never as panics or errors.
func (v *Verifier) VerifyAs(ctx context.Context, rawURL string, kind Kind) types.VerifyReport {
	start := time.Now()
	report, kind := v.check(ctx, strings.TrimSpace(rawURL), kind)
	v.log().Debug("verify.done",
		"url", rawURL,
		"kind", kind.label(),
		"state", report.State,
		"content_type", report.ContentType,
		"size", report.SizeBytes,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}

func (v *Verifier) check(ctx context.Context, rawURL string, kind Kind) (types.VerifyReport, Kind) {
	report := types.VerifyReport{URL: rawURL, State: types.StateUnchecked, SizeBytes: -1}

	if err := CheckSyntax(rawURL); err != nil {
		report.State = types.StateSyntaxRejected
		report.Err = err
		return report, kind
	}

	if v.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.ProbeTimeout)
		defer cancel()
	}

	resp, err := v.probe(ctx, rawURL)
	if err != nil {
		report.State = types.StateNetworkError
		report.Err = fmt.Errorf("%w: %v", types.ErrURLUnreachable, err)
		return report, kind
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		report.State = types.StateNetworkError
		report.Err = fmt.Errorf("%w: HTTP %d", types.ErrURLUnreachable, resp.StatusCode)
		return report, kind
	}
	report.ContentType = resp.Header.Get("Content-Type")
	if resp.ContentLength >= 0 {
		report.SizeBytes = resp.ContentLength
	}

	if kind.Name == "" {
		if declared, ok := kindDeclaredBy(report.ContentType); ok {
			kind = declared
		}
	}
	if !kind.declaredBy(report.ContentType) {
		prefix, err := v.prefix(ctx, rawURL, resp)
		if err != nil {
			report.State = types.StateNetworkError
			report.Err = fmt.Errorf("%w: reading body: %v", types.ErrURLUnreachable, err)
			return report, kind
		}
		matched := kind.matches(prefix)
		if kind.Name == "" {
			kind, matched = kindOf(prefix)
		}
		if !matched {
			report.State = types.StateTypeRejected
			report.Err = fmt.Errorf("%w: content type %q and body do not look like %s",
				types.ErrContentTypeMismatch, report.ContentType, kind.label())
			return report, kind
		}
	}

	if v.MaxBytes > 0 && report.SizeBytes > v.MaxBytes {
		report.State = types.StateSizeRejected
		report.Err = fmt.Errorf("%w: %d bytes exceeds limit of %d", types.ErrPayloadTooLarge, report.SizeBytes, v.MaxBytes)
		return report, kind
	}

	report.State = types.StateVerified
	return report, kind
}

// probe issues a HEAD request and falls back to a streamed GET when HEAD
// fails or the server does not support it. Redirects are followed.
func (v *Verifier) probe(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := v.do(ctx, http.MethodHead, rawURL)
	if err == nil && resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotImplemented {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	} else if ctx.Err() != nil {
		return nil, err
	}
	return v.do(ctx, http.MethodGet, rawURL)
}

// prefix returns up to prefixSize leading body bytes. A GET probe response
// is read directly; after a HEAD probe a new GET is issued.
func (v *Verifier) prefix(ctx context.Context, rawURL string, probed *http.Response) ([]byte, error) {
	body := probed.Body
	if probed.Request == nil || probed.Request.Method != http.MethodGet {
		resp, err := v.do(ctx, http.MethodGet, rawURL)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		body = resp.Body
	}

	buf := make([]byte, prefixSize)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

func (v *Verifier) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if v.UserAgent != "" {
		req.Header.Set("User-Agent", v.UserAgent)
	}
	return v.httpClient().Do(req)
}
