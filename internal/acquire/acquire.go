// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads a document from an untrusted URL and stores it.
// Downloads are streamed to a temp file under a size cap, checked for the PDF
// signature, and converted to PDF first when they arrive as EPUB or MOBI.
// Nothing is moved into storage until every check has passed.
package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/bookfinder/internal/convert"
	"github.com/pdiddy/bookfinder/internal/verify"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// chunkSize is the streaming copy buffer.
const chunkSize = 32 * 1024

var pdfSignature = []byte("%PDF")

// alternateTypes maps alternate e-book MIME types to file extensions.
var alternateTypes = map[string]string{
	"application/epub+zip":           ".epub",
	"application/x-mobipocket-ebook": ".mobi",
	"application/vnd.amazon.ebook":   ".mobi",
}

// DetectFormat classifies a download by URL extension, then by declared
// content type.
func DetectFormat(rawURL, contentType string) types.DetectedFormat {
	switch alternateExt(rawURL, "") {
	case ".pdf":
		return types.FormatDocument
	case ".epub", ".mobi":
		return types.FormatConverted
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/pdf" {
		return types.FormatDocument
	}
	if _, ok := alternateTypes[mt]; ok {
		return types.FormatConverted
	}
	return types.FormatUnknown
}

// alternateExt returns the document extension the URL path names (see
// verify.KindFor), falling back to the one implied by contentType.
func alternateExt(rawURL, contentType string) string {
	switch verify.KindFor(rawURL).Name {
	case verify.KindPDF.Name:
		return ".pdf"
	case verify.KindEPUB.Name:
		return ".epub"
	case verify.KindMOBI.Name:
		return ".mobi"
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	return alternateTypes[mt]
}

// Acquirer materializes documents.
type Acquirer struct {
	Client    *http.Client
	UserAgent string

	// Timeout bounds one acquisition, conversion included.
	Timeout time.Duration

	MaxBytes  int64
	Converter convert.Converter
	Storage   Storage
	Logger    *slog.Logger
}

// New builds an Acquirer that stores under cfg.MediaDir.
func New(cfg types.AcquisitionConfig, client *http.Client, conv convert.Converter, logger *slog.Logger) *Acquirer {
	return &Acquirer{
		Client:    client,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		MaxBytes:  cfg.MaxBytes,
		Converter: conv,
		Storage:   &LocalStorage{Root: cfg.MediaDir},
		Logger:    logger,
	}
}

func (a *Acquirer) log() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *Acquirer) httpClient() *http.Client {
	if a.Client == nil {
		return http.DefaultClient
	}
	return a.Client
}

// acquireError carries the taxonomy kind alongside the message.
type acquireError struct {
	kind error
	err  error
}

func (e *acquireError) Error() string { return e.err.Error() }
func (e *acquireError) Unwrap() error { return e.err }

func fail(kind error, format string, args ...any) error {
	return &acquireError{kind: kind, err: fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)}
}

// Acquire downloads rawURL and stores it as a PDF named after the title and
// author hints. Failures come back in the result, never as a panic; no file
// is left behind for a failed acquisition.
func (a *Acquirer) Acquire(ctx context.Context, rawURL, titleHint, authorHint string) types.AcquisitionResult {
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	start := time.Now()
	format := DetectFormat(rawURL, "")
	res, err := a.acquire(ctx, rawURL, titleHint, authorHint, &format)
	if err != nil {
		kind := types.ErrStorageFailed
		var ae *acquireError
		if errors.As(err, &ae) {
			kind = ae.kind
		}
		a.log().Warn("acquire.failed", "url", rawURL, "format", format, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return types.Failed(format, kind, err)
	}
	a.log().Info("acquire.done", "url", rawURL, "format", res.DetectedFormat, "path", res.StoredPath,
		"size", res.SizeBytes, "elapsed_ms", time.Since(start).Milliseconds())
	return res
}

func (a *Acquirer) acquire(ctx context.Context, rawURL, title, author string, format *types.DetectedFormat) (types.AcquisitionResult, error) {
	if err := verify.CheckSyntax(rawURL); err != nil {
		return types.AcquisitionResult{}, &acquireError{kind: types.ErrURLSyntaxInvalid, err: err}
	}

	staging, err := a.Storage.Staging()
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "%v", err)
	}

	resp, err := a.get(ctx, rawURL)
	if err != nil {
		return types.AcquisitionResult{}, err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	*format = DetectFormat(rawURL, contentType)
	if resp.ContentLength > a.MaxBytes {
		return types.AcquisitionResult{}, fail(types.ErrPayloadTooLarge, "declared %d bytes, limit %d", resp.ContentLength, a.MaxBytes)
	}

	if *format == types.FormatConverted {
		return a.acquireAlternate(ctx, resp.Body, staging, alternateExt(rawURL, contentType), title, author)
	}
	return a.acquireDocument(resp.Body, staging, title, author)
}

func (a *Acquirer) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fail(types.ErrURLSyntaxInvalid, "%v", err)
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf, application/epub+zip, */*;q=0.5")

	resp, err := a.httpClient().Do(req)
	if err != nil {
		return nil, fail(types.ErrURLUnreachable, "%v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fail(types.ErrURLUnreachable, "HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	return resp, nil
}

// acquireDocument streams body to a temp file in the staging directory and
// moves it into storage once it carries the PDF signature. Documents of
// unknown format take this path too.
func (a *Acquirer) acquireDocument(body io.Reader, staging, title, author string) (types.AcquisitionResult, error) {
	tmp, err := os.CreateTemp(staging, ".acquire-*.tmp")
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "creating temp file: %v", err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			os.Remove(tmpPath)
		}
	}()

	n, err := a.stream(tmp, body)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fail(types.ErrStorageFailed, "closing temp file: %v", closeErr)
	}
	if err != nil {
		return types.AcquisitionResult{}, err
	}
	if err := checkSignature(tmpPath); err != nil {
		return types.AcquisitionResult{}, err
	}

	stored, err := a.Storage.Put(tmpPath, GenerateFilename(title, author, ".pdf"))
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "%v", err)
	}
	keep = true
	return types.AcquisitionResult{
		Success:        true,
		StoredPath:     stored,
		DetectedFormat: types.FormatDocument,
		SizeBytes:      n,
	}, nil
}

// acquireAlternate downloads an EPUB or MOBI into a scoped temp directory,
// converts it, and stores the PDF. The directory is removed on every path.
func (a *Acquirer) acquireAlternate(ctx context.Context, body io.Reader, staging, ext, title, author string) (types.AcquisitionResult, error) {
	if ext != ".epub" && ext != ".mobi" {
		ext = ".epub"
	}
	dir, err := os.MkdirTemp(staging, ".convert-*")
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "creating temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "source"+ext)
	in, err := os.Create(inPath)
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "creating temp file: %v", err)
	}
	_, err = a.stream(in, body)
	if closeErr := in.Close(); err == nil && closeErr != nil {
		err = fail(types.ErrStorageFailed, "closing temp file: %v", closeErr)
	}
	if err != nil {
		return types.AcquisitionResult{}, err
	}

	if a.Converter == nil {
		return types.AcquisitionResult{}, fail(types.ErrConversionFailed, "no converter configured")
	}
	outPath := filepath.Join(dir, "converted.pdf")
	if err := a.Converter.Convert(ctx, inPath, outPath); err != nil {
		return types.AcquisitionResult{}, fail(types.ErrConversionFailed, "%v", err)
	}
	if err := checkSignature(outPath); err != nil {
		return types.AcquisitionResult{}, fail(types.ErrConversionFailed, "converted output is not a PDF")
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrConversionFailed, "%v", err)
	}

	stored, err := a.Storage.Put(outPath, GenerateFilename(title, author, ".pdf"))
	if err != nil {
		return types.AcquisitionResult{}, fail(types.ErrStorageFailed, "%v", err)
	}
	return types.AcquisitionResult{
		Success:        true,
		StoredPath:     stored,
		DetectedFormat: types.FormatConverted,
		SizeBytes:      info.Size(),
	}, nil
}

// stream copies body to w in fixed chunks and aborts as soon as the cap is
// exceeded.
func (a *Acquirer) stream(w io.Writer, body io.Reader) (int64, error) {
	capped := &cappedReader{r: body, max: a.MaxBytes}
	n, err := io.CopyBuffer(struct{ io.Writer }{w}, capped, make([]byte, chunkSize))
	if err != nil {
		if errors.Is(err, types.ErrPayloadTooLarge) {
			return n, &acquireError{kind: types.ErrPayloadTooLarge, err: err}
		}
		var pe *os.PathError
		if errors.As(err, &pe) {
			return n, fail(types.ErrStorageFailed, "writing download: %v", err)
		}
		return n, fail(types.ErrURLUnreachable, "reading download: %v", err)
	}
	return n, nil
}

// cappedReader fails once more than max bytes have been read.
type cappedReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, fmt.Errorf("%w: more than %d bytes", types.ErrPayloadTooLarge, c.max)
	}
	return n, err
}

func checkSignature(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fail(types.ErrStorageFailed, "%v", err)
	}
	defer f.Close()

	head := make([]byte, len(pdfSignature))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfSignature) {
		return fail(types.ErrContentTypeMismatch, "downloaded file is not a PDF")
	}
	return nil
}
