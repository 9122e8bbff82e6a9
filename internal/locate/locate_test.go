// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bookfinder/internal/oracle"
	"github.com/pdiddy/bookfinder/pkg/types"
)

type stubStrategy struct {
	name  string
	links []string
	err   error
	delay time.Duration
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Find(ctx context.Context, _ types.CandidateBook) ([]string, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.links, s.err
}

// allowList verifies only the listed URLs.
type allowList map[string]bool

func (a allowList) Verify(_ context.Context, u string) types.VerifyReport {
	if a[u] {
		return types.VerifyReport{URL: u, State: types.StateVerified}
	}
	return types.VerifyReport{URL: u, State: types.StateTypeRejected}
}

type stubOracle struct {
	links []oracle.Link
	err   error
	got   []string
}

func (s *stubOracle) ExtractIntent(context.Context, string, string) (types.QueryIntent, error) {
	return types.QueryIntent{}, errors.New("not used")
}

func (s *stubOracle) FindDocumentLinks(_ context.Context, title, author, language string) ([]oracle.Link, error) {
	s.got = []string{title, author, language}
	return s.links, s.err
}

func (s *stubOracle) Enrich(_ context.Context, cand types.CandidateBook, _ string) (types.CandidateBook, error) {
	return cand, errors.New("not used")
}

type stubFinder struct {
	links []string
}

func (f stubFinder) FindDocument(context.Context, string, string) ([]string, error) {
	return f.links, nil
}

var emma = types.CandidateBook{Title: "Emma", Author: "Jane Austen", Language: "en"}

func TestLocateFirstStrategyWins(t *testing.T) {
	first := &stubStrategy{name: "a", links: []string{"https://a.example/emma.pdf"}}
	second := &stubStrategy{name: "b", links: []string{"https://b.example/emma.pdf"}}
	l := &Locator{Strategies: []Strategy{first, second}}

	u, tag, err := l.Locate(context.Background(), emma)
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/emma.pdf", u)
	assert.Equal(t, "a", tag)
	assert.Equal(t, 0, second.calls)
}

func TestLocateSkipsPagesAndErrors(t *testing.T) {
	failing := &stubStrategy{name: "broken", err: errors.New("503")}
	pages := &stubStrategy{name: "pages", links: []string{
		"https://example.com/search?q=emma",
		"https://example.com/emma.html",
		"not a url",
	}}
	good := &stubStrategy{name: "good", links: []string{"https://archive.org/download/emma/emma.pdf"}}
	l := &Locator{Strategies: []Strategy{failing, pages, good}}

	u, tag, err := l.Locate(context.Background(), emma)
	require.NoError(t, err)
	assert.Equal(t, "https://archive.org/download/emma/emma.pdf", u)
	assert.Equal(t, "good", tag)
}

func TestLocateWithVerifier(t *testing.T) {
	s := &stubStrategy{name: "a", links: []string{
		"https://dead.example/emma.pdf",
		"https://live.example/emma.pdf",
	}}
	l := &Locator{
		Strategies: []Strategy{s},
		Verifier:   allowList{"https://live.example/emma.pdf": true},
	}

	u, _, err := l.Locate(context.Background(), emma)
	require.NoError(t, err)
	assert.Equal(t, "https://live.example/emma.pdf", u)
}

func TestLocateNothingFound(t *testing.T) {
	l := &Locator{
		Strategies: []Strategy{&stubStrategy{name: "a", links: []string{"https://x.example/x.pdf"}}},
		Verifier:   allowList{},
	}
	_, _, err := l.Locate(context.Background(), emma)
	assert.ErrorIs(t, err, types.ErrNoDocumentFound)
}

func TestLocateSharedDeadline(t *testing.T) {
	slow := &stubStrategy{name: "slow", delay: time.Second}
	after := &stubStrategy{name: "after", links: []string{"https://x.example/x.pdf"}}
	l := &Locator{Strategies: []Strategy{slow, after}, Deadline: 20 * time.Millisecond}

	start := time.Now()
	_, _, err := l.Locate(context.Background(), emma)
	assert.ErrorIs(t, err, types.ErrNoDocumentFound)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 0, after.calls, "strategies after the deadline are not run")
}

func TestOracleStrategy(t *testing.T) {
	o := &stubOracle{links: []oracle.Link{
		{URL: "https://a.example/1.pdf", Reliability: 0.9},
		{URL: "https://a.example/2.pdf", Reliability: 0.5},
	}}
	s := OracleStrategy{Oracle: o}

	links, err := s.Find(context.Background(), types.CandidateBook{Title: "الأيام", Author: "طه حسين", Language: "ar"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1.pdf", "https://a.example/2.pdf"}, links)
	assert.Equal(t, []string{"الأيام", "طه حسين", "ar"}, o.got)
	assert.Equal(t, StrategyOracle, s.Name())
}

func TestNewChainOrder(t *testing.T) {
	cfg := types.DefaultPipelineConfig().Locator
	o := &stubOracle{err: oracle.ErrDisabled}
	l := New(cfg, o, stubFinder{links: []string{"https://www.gutenberg.org/files/158/158-pdf.pdf"}},
		stubFinder{links: []string{"https://archive.org/download/emma/emma.pdf"}},
		allowList{"https://archive.org/download/emma/emma.pdf": true}, nil)

	require.Len(t, l.Strategies, 3)
	assert.Equal(t, StrategyOracle, l.Strategies[0].Name())
	assert.Equal(t, StrategyGutendex, l.Strategies[1].Name())
	assert.Equal(t, StrategyInternetArchive, l.Strategies[2].Name())
	assert.Equal(t, 30*time.Second, l.Deadline)

	u, tag, err := l.Locate(context.Background(), emma)
	require.NoError(t, err)
	assert.Equal(t, "https://archive.org/download/emma/emma.pdf", u)
	assert.Equal(t, StrategyInternetArchive, tag)

	cfg.VerifyLinks = false
	l = New(cfg, nil, nil, stubFinder{}, allowList{}, nil)
	assert.Nil(t, l.Verifier)
	require.Len(t, l.Strategies, 1)
}
