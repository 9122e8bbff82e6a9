// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the catalog clients that feed the search stage:
// Google Books, Gutendex (Project Gutenberg), the Internet Archive, and Arabic
// Collections Online. Every client fails closed: an error wraps
// types.ErrSourceUnavailable and the caller treats the catalog as empty.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/bookfinder/internal/httputil"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// Catalog names double as RawRecord.SourceAPI values.
const (
	NameGoogleBooks       = "google_books"
	NameGutendex          = "gutendex"
	NameInternetArchive   = "internet_archive"
	NameArabicCollections = "aco"
)

// Hints carries optional per-search preferences.
type Hints struct {
	// PreferLanguage biases the catalog toward a language tag ("ar", "en").
	PreferLanguage string

	// MaxResults caps what a single catalog returns; 0 uses the catalog default.
	MaxResults int
}

// Source searches a single catalog.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, hints Hints) ([]types.RawRecord, error)
}

// Base carries the settings every catalog client shares.
type Base struct {
	Client    *http.Client
	UserAgent string

	// Timeout bounds one Search call, including any follow-up lookups.
	Timeout time.Duration

	Limiter *httputil.Limiter
	Logger  *slog.Logger
}

func (b *Base) log() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

func (b *Base) httpClient() *http.Client {
	if b.Client == nil {
		return http.DefaultClient
	}
	return b.Client
}

// withTimeout derives the per-call context.
func (b *Base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.Timeout)
}

// do issues one rate-limited request with at most one retry and returns the
// response when the status is 200. The caller closes the body.
func (b *Base) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	if err := b.Limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, b.httpClient(), req, 1)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	return resp, nil
}

// getJSON fetches rawURL and decodes the JSON body into v.
func (b *Base) getJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := b.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// unavailable wraps err so callers can classify it as a failed catalog.
func unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, types.ErrSourceUnavailable, err)
}

// NormalizeLanguage maps the language spellings catalogs use ("ara",
// "Arabic", "eng") onto short tags. Unknown values are lowercased as is.
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	switch l {
	case "ar", "ara", "arabic":
		return "ar"
	case "en", "eng", "english":
		return "en"
	case "fr", "fre", "fra", "french":
		return "fr"
	case "de", "ger", "deu", "german":
		return "de"
	}
	return l
}

// FromConfig builds the enabled catalog clients in registration order. The
// Arabic Collections client is included only when arabic is true.
func FromConfig(cfg types.SearchConfig, client *http.Client, logger *slog.Logger, arabic bool) []Source {
	base := func(name string, sc types.SourceConfig) Base {
		return Base{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Timeout:   sc.Timeout,
			Limiter:   httputil.NewLimiter(name, sc.RatePerSecond),
			Logger:    logger,
		}
	}

	var out []Source
	if cfg.GoogleBooks.Enabled {
		out = append(out, &GoogleBooks{Base: base(NameGoogleBooks, cfg.GoogleBooks), APIKey: cfg.GoogleBooks.APIKey})
	}
	if cfg.Gutendex.Enabled {
		out = append(out, &Gutendex{Base: base(NameGutendex, cfg.Gutendex)})
	}
	if cfg.InternetArchive.Enabled {
		out = append(out, &InternetArchive{Base: base(NameInternetArchive, cfg.InternetArchive)})
	}
	if arabic && cfg.ArabicCollections.Enabled {
		out = append(out, &ArabicCollections{Base: base(NameArabicCollections, cfg.ArabicCollections)})
	}
	return out
}
