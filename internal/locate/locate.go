// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package locate finds a document link for a candidate book that arrived
// without one. Strategies are tried in order under one shared deadline; the
// first link that passes the URL heuristic (and, when configured, the
// verifier) wins.
package locate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/bookfinder/internal/oracle"
	"github.com/pdiddy/bookfinder/internal/verify"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// Strategy names double as the DocumentSourceTag of a located link.
const (
	StrategyOracle          = "oracle"
	StrategyGutendex        = "gutendex"
	StrategyInternetArchive = "internet_archive"
)

// Strategy proposes document links for a candidate, best first.
type Strategy interface {
	Name() string
	Find(ctx context.Context, cand types.CandidateBook) ([]string, error)
}

// Verifier checks a link before the locator accepts it.
type Verifier interface {
	Verify(ctx context.Context, rawURL string) types.VerifyReport
}

// Locator runs Strategies in order.
type Locator struct {
	Strategies []Strategy

	// Deadline is shared by every strategy; zero leaves only the caller's ctx.
	Deadline time.Duration

	// Verifier, when set, must accept a link before it is returned.
	Verifier Verifier

	Logger *slog.Logger
}

// New builds the standard chain: oracle, then Gutendex, then the Internet
// Archive. A nil finder skips its strategy. The verifier is attached only
// when cfg.VerifyLinks is set.
func New(cfg types.LocatorConfig, o oracle.Oracle, gutendex, archive Finder, v Verifier, logger *slog.Logger) *Locator {
	l := &Locator{Deadline: cfg.Deadline, Logger: logger}
	if o != nil {
		l.Strategies = append(l.Strategies, OracleStrategy{Oracle: o})
	}
	if gutendex != nil {
		l.Strategies = append(l.Strategies, CatalogStrategy{Label: StrategyGutendex, Finder: gutendex})
	}
	if archive != nil {
		l.Strategies = append(l.Strategies, CatalogStrategy{Label: StrategyInternetArchive, Finder: archive})
	}
	if cfg.VerifyLinks {
		l.Verifier = v
	}
	return l
}

func (l *Locator) log() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Locate returns the first acceptable link and the name of the strategy
// that produced it. A strategy error is logged and the chain moves on. When
// no strategy yields a link, the error wraps types.ErrNoDocumentFound.
func (l *Locator) Locate(ctx context.Context, cand types.CandidateBook) (string, string, error) {
	if l.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Deadline)
		defer cancel()
	}

	start := time.Now()
	tried := map[string]bool{}
	for _, s := range l.Strategies {
		if ctx.Err() != nil {
			break
		}
		links, err := s.Find(ctx, cand)
		if err != nil {
			l.log().Warn("locate.strategy.error", "strategy", s.Name(), "title", cand.Title, "error", err)
		}
		for _, u := range links {
			if tried[u] || !verify.LooksLikeDocumentURL(u) {
				continue
			}
			tried[u] = true
			if l.Verifier != nil {
				if r := l.Verifier.Verify(ctx, u); !r.IsValid() {
					l.log().Debug("locate.link.rejected", "strategy", s.Name(), "url", u, "state", r.State)
					continue
				}
			}
			l.log().Info("locate.found", "strategy", s.Name(), "url", u,
				"elapsed_ms", time.Since(start).Milliseconds())
			return u, s.Name(), nil
		}
	}

	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("%w: %q: %w", types.ErrNoDocumentFound, cand.Title, err)
	}
	return "", "", fmt.Errorf("%w: %q", types.ErrNoDocumentFound, cand.Title)
}

// OracleStrategy asks the oracle for links in the candidate's language.
type OracleStrategy struct {
	Oracle oracle.Oracle
}

func (OracleStrategy) Name() string { return StrategyOracle }

func (s OracleStrategy) Find(ctx context.Context, cand types.CandidateBook) ([]string, error) {
	links, err := s.Oracle.FindDocumentLinks(ctx, cand.Title, cand.Author, cand.Language)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, link.URL)
	}
	return urls, nil
}

// Finder is a catalog that can look a document up by title and author.
type Finder interface {
	FindDocument(ctx context.Context, title, author string) ([]string, error)
}

// CatalogStrategy adapts a catalog Finder under a strategy name.
type CatalogStrategy struct {
	Label  string
	Finder Finder
}

func (s CatalogStrategy) Name() string { return s.Label }

func (s CatalogStrategy) Find(ctx context.Context, cand types.CandidateBook) ([]string, error) {
	return s.Finder.FindDocument(ctx, cand.Title, cand.Author)
}
