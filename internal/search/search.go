// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a query out to the catalog clients and turns their raw
// records into a deduplicated, ranked candidate list.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/bookfinder/internal/sources"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// Options controls one search run.
type Options struct {
	// Deadline bounds the whole fan-out. Tasks still running when it
	// expires contribute nothing. Zero means no deadline beyond ctx.
	Deadline time.Duration

	// MaxResults truncates the ranked list; 0 keeps everything.
	MaxResults int

	// Sequential queries one catalog at a time and stops as soon as
	// MaxResults raw records have been collected.
	Sequential bool

	Hints  sources.Hints
	Logger *slog.Logger
}

func (o Options) log() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// FanOutResult holds the merged records of every task that finished in time.
type FanOutResult struct {
	Records []types.RawRecord

	// SourceErrors lists "<source>: <error>" for every failed task.
	SourceErrors []string

	// TimedOut lists the sources of tasks cut off by the deadline.
	TimedOut []string
}

// Output is the result of a full search run.
type Output struct {
	Results      []types.CandidateBook `json:"results"`
	DupsRemoved  int                   `json:"duplicates_removed"`
	SourceErrors []string              `json:"source_errors,omitempty"`
	TimedOut     []string              `json:"timed_out,omitempty"`
}

type task struct {
	source sources.Source
	query  string
}

type taskResult struct {
	index   int
	records []types.RawRecord
	err     error
}

// FanOut issues one task per (source, variation) pair. At most len(srcs)
// tasks run at once. Records are merged in source order, then variation
// order, regardless of completion order. A failed source contributes no
// records; FanOut itself never fails.
func FanOut(ctx context.Context, srcs []sources.Source, variations []string, opts Options) FanOutResult {
	var tasks []task
	for _, s := range srcs {
		for _, v := range variations {
			if strings.TrimSpace(v) == "" {
				continue
			}
			tasks = append(tasks, task{source: s, query: v})
		}
	}
	if len(tasks) == 0 {
		return FanOutResult{}
	}

	runCtx, cancel := withDeadline(ctx, opts.Deadline)
	defer cancel()

	if opts.Sequential {
		return runSequential(runCtx, tasks, opts)
	}

	sem := semaphore.NewWeighted(int64(len(srcs)))
	ch := make(chan taskResult, len(tasks))
	for i, t := range tasks {
		go func(i int, t task) {
			if err := sem.Acquire(runCtx, 1); err != nil {
				ch <- taskResult{index: i, err: err}
				return
			}
			defer sem.Release(1)
			records, err := t.source.Search(runCtx, t.query, opts.Hints)
			ch <- taskResult{index: i, records: records, err: err}
		}(i, t)
	}

	slots := make([]*taskResult, len(tasks))
	received := 0
collect:
	for received < len(tasks) {
		select {
		case r := <-ch:
			slots[r.index] = &r
			received++
		case <-runCtx.Done():
			break collect
		}
	}

	var out FanOutResult
	for i, t := range tasks {
		r := slots[i]
		if r == nil {
			out.TimedOut = append(out.TimedOut, t.source.Name())
			opts.log().Warn("search.task.timeout", "source", t.source.Name(), "query", t.query)
			continue
		}
		out.merge(t, *r, opts.log())
	}
	return out
}

func runSequential(ctx context.Context, tasks []task, opts Options) FanOutResult {
	var out FanOutResult
	for i, t := range tasks {
		if ctx.Err() != nil {
			for _, rest := range tasks[i:] {
				out.TimedOut = append(out.TimedOut, rest.source.Name())
			}
			break
		}
		records, err := t.source.Search(ctx, t.query, opts.Hints)
		out.merge(t, taskResult{index: i, records: records, err: err}, opts.log())
		if opts.MaxResults > 0 && len(out.Records) >= opts.MaxResults {
			break
		}
	}
	return out
}

func (out *FanOutResult) merge(t task, r taskResult, logger *slog.Logger) {
	if r.err != nil {
		out.SourceErrors = append(out.SourceErrors, fmt.Sprintf("%s: %v", t.source.Name(), r.err))
		logger.Warn("search.source.failed", "source", t.source.Name(), "query", t.query, "error", r.err)
		return
	}
	logger.Debug("search.source.done", "source", t.source.Name(), "query", t.query, "records", len(r.records))
	out.Records = append(out.Records, r.records...)
}

func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Run searches every source for the intent's variations, then normalizes,
// deduplicates, ranks, and truncates the results. Variations default to the
// intent title when the intent carries none.
func Run(ctx context.Context, srcs []sources.Source, intent types.QueryIntent, opts Options) Output {
	variations := intent.SearchVariations
	if len(variations) == 0 && intent.Title != "" {
		variations = []string{intent.Title}
	}

	start := time.Now()
	fan := FanOut(ctx, srcs, variations, opts)

	cands := Normalize(fan.Records, intent.Language)
	deduped := Deduplicate(cands)
	ranked := Rank(deduped, intent)
	if opts.MaxResults > 0 && len(ranked) > opts.MaxResults {
		ranked = ranked[:opts.MaxResults]
	}

	opts.log().Info("search.done",
		"variations", len(variations),
		"sources", len(srcs),
		"records", len(fan.Records),
		"results", len(ranked),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Output{
		Results:      ranked,
		DupsRemoved:  len(cands) - len(deduped),
		SourceErrors: fan.SourceErrors,
		TimedOut:     fan.TimedOut,
	}
}

// FormatTable writes results as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-50s  %-24s  %-4s  %-5s  %-16s  %s\n",
		"Rank", "Title", "Author", "Lang", "Score", "Source", "Document")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, c := range out.Results {
		doc := ""
		if c.DocumentURL != "" {
			doc = "yes"
			if c.DocumentVerified {
				doc = "verified"
			}
		}
		fmt.Fprintf(w, "%-4d  %-50s  %-24s  %-4s  %-5.2f  %-16s  %s\n",
			i+1, truncate(c.Title, 50), truncate(c.Author, 24), truncate(c.Language, 4), c.RelevanceScore, c.SourceAPI, doc)
	}

	fmt.Fprintf(w, "\n%d results", len(out.Results))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes results as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Results)
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
