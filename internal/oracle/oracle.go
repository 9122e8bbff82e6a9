// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle wraps a Generative AI API as narrow capabilities: reading a
// free-text query into a structured intent, suggesting document links for a
// book, and enriching a ranked candidate for display. Answers are schema-validated; a failed or malformed answer is
// an error the caller recovers from.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pdiddy/bookfinder/internal/verify"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// ErrDisabled is returned by the oracle used when no provider is configured.
var ErrDisabled = errors.New("oracle disabled")

// linkTemperature is used for multi-link discovery.
const linkTemperature = 0.2

// minDescriptionRunes is the shortest description enrichment leaves alone.
const minDescriptionRunes = 30

// Link is a suggested document URL.
type Link struct {
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	Reliability float64 `json:"reliability"`
}

// Oracle extracts intent from queries, suggests document links, and
// enriches candidates.
type Oracle interface {
	ExtractIntent(ctx context.Context, query, language string) (types.QueryIntent, error)
	FindDocumentLinks(ctx context.Context, title, author, language string) ([]Link, error)

	// Enrich returns cand with display details in language: structured
	// categories, author information, and a rewritten description when the
	// current one is missing or short. On error cand is returned unchanged.
	Enrich(ctx context.Context, cand types.CandidateBook, language string) (types.CandidateBook, error)
}

// New builds the oracle for cfg.Provider. A missing API key or the "none"
// provider yields an oracle that always returns ErrDisabled.
func New(cfg types.AIConfig, client *http.Client, logger *slog.Logger) Oracle {
	var c Completer
	switch cfg.Provider {
	case types.ProviderGroq:
		if cfg.APIKey != "" {
			c = &ChatCompleter{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxRetries: cfg.MaxRetries, Client: client}
		}
	case types.ProviderAnthropic:
		if cfg.APIKey != "" {
			c = &ClaudeCompleter{APIKey: cfg.APIKey, Model: cfg.Model, MaxRetries: cfg.MaxRetries, Client: client}
		}
	}
	if c == nil {
		return Disabled{}
	}
	return &LLM{Completer: c, Temperature: cfg.Temperature, Timeout: cfg.Timeout, Logger: logger}
}

// Disabled is the oracle used when no provider is configured.
type Disabled struct{}

func (Disabled) ExtractIntent(context.Context, string, string) (types.QueryIntent, error) {
	return types.QueryIntent{}, ErrDisabled
}

func (Disabled) FindDocumentLinks(context.Context, string, string, string) ([]Link, error) {
	return nil, ErrDisabled
}

func (Disabled) Enrich(_ context.Context, cand types.CandidateBook, _ string) (types.CandidateBook, error) {
	return cand, ErrDisabled
}

// LLM implements Oracle on top of a Completer.
type LLM struct {
	Completer Completer

	// Temperature is used for intent extraction.
	Temperature float64

	// Timeout bounds each completion; zero leaves only the caller's ctx.
	Timeout time.Duration

	Logger *slog.Logger
}

func (o *LLM) log() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// intentAnswer mirrors the JSON the extraction prompt asks for. Optional
// fields are pointers because the model answers null for unknown values.
type intentAnswer struct {
	Title            *string  `json:"title"`
	Author           *string  `json:"author"`
	Categories       []string `json:"categories"`
	Language         *string  `json:"language"`
	SearchVariations []string `json:"search_variations"`
	Description      *string  `json:"description"`
	IsArabicQuery    *bool    `json:"is_arabic_query"`
}

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":             map[string]any{"type": []any{"string", "null"}},
		"author":            map[string]any{"type": []any{"string", "null"}},
		"categories":        map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
		"language":          map[string]any{"type": []any{"string", "null"}},
		"search_variations": map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
		"description":       map[string]any{"type": []any{"string", "null"}},
		"is_arabic_query":   map[string]any{"type": []any{"boolean", "null"}},
	},
}

var multiLinkSchema = map[string]any{
	"type":     "object",
	"required": []any{"pdf_urls"},
	"properties": map[string]any{
		"pdf_urls": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"url"},
				"properties": map[string]any{
					"url":         map[string]any{"type": "string"},
					"source":      map[string]any{"type": []any{"string", "null"}},
					"reliability": map[string]any{"type": []any{"number", "null"}},
				},
			},
		},
	},
}

var singleLinkSchema = map[string]any{
	"type":     "object",
	"required": []any{"pdf_url"},
	"properties": map[string]any{
		"pdf_url":    map[string]any{"type": []any{"string", "null"}},
		"source":     map[string]any{"type": []any{"string", "null"}},
		"confidence": map[string]any{"type": []any{"number", "null"}},
	},
}

var enrichSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"categories": map[string]any{
			"type": []any{"array", "null"},
			"items": map[string]any{
				"type":     "object",
				"required": []any{"name"},
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"icon":        map[string]any{"type": []any{"string", "null"}},
					"wikilink":    map[string]any{"type": []any{"string", "null"}},
					"description": map[string]any{"type": []any{"string", "null"}},
				},
			},
		},
		"author": map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"name":         map[string]any{"type": []any{"string", "null"}},
				"image":        map[string]any{"type": []any{"string", "null"}},
				"wikilink":     map[string]any{"type": []any{"string", "null"}},
				"profession":   map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
				"descriptions": map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
			},
		},
		"book_summary": map[string]any{"type": []any{"string", "null"}},
	},
}

var describeSchema = map[string]any{
	"type":     "object",
	"required": []any{"description"},
	"properties": map[string]any{
		"description": map[string]any{"type": "string"},
	},
}

// ExtractIntent asks the model to read query as a book request. Fields the
// model leaves out are filled from the query: the title defaults to the
// query, the variations to [query], and the language to language.
func (o *LLM) ExtractIntent(ctx context.Context, query, language string) (types.QueryIntent, error) {
	prompt, err := render(promptsFor(language).extract, struct{ Query string }{query})
	if err != nil {
		return types.QueryIntent{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var ans intentAnswer
	if err := o.ask(ctx, "extract", prompt, o.Temperature, intentSchema, &ans); err != nil {
		return types.QueryIntent{}, err
	}

	intent := types.QueryIntent{
		Title:            strings.TrimSpace(deref(ans.Title)),
		Author:           strings.TrimSpace(deref(ans.Author)),
		Categories:       nonEmpty(ans.Categories),
		Language:         strings.TrimSpace(deref(ans.Language)),
		SearchVariations: nonEmpty(ans.SearchVariations),
		Description:      strings.TrimSpace(deref(ans.Description)),
		SameLanguage:     language == "ar",
	}
	if intent.Title == "" {
		intent.Title = query
	}
	if len(intent.SearchVariations) == 0 {
		intent.SearchVariations = []string{query}
	}
	if intent.Language == "" {
		intent.Language = language
	}
	if ans.IsArabicQuery != nil {
		intent.SameLanguage = *ans.IsArabicQuery
	}
	return intent, nil
}

// FindDocumentLinks asks for several links ordered by reliability. If that
// answer fails, it falls back to asking for a single link. Links that do not
// look like direct downloads are dropped.
func (o *LLM) FindDocumentLinks(ctx context.Context, title, author, language string) ([]Link, error) {
	ps := promptsFor(language)
	data := struct{ Title, Author string }{title, author}

	prompt, err := render(ps.multiLink, data)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	var multi struct {
		PDFURLs []struct {
			URL         string   `json:"url"`
			Source      *string  `json:"source"`
			Reliability *float64 `json:"reliability"`
		} `json:"pdf_urls"`
	}
	multiErr := o.ask(ctx, "links", prompt, linkTemperature, multiLinkSchema, &multi)
	if multiErr == nil {
		var links []Link
		for _, p := range multi.PDFURLs {
			u := strings.TrimSpace(p.URL)
			if !verify.LooksLikeDocumentURL(u) {
				continue
			}
			l := Link{URL: u, Source: deref(p.Source)}
			if p.Reliability != nil {
				l.Reliability = *p.Reliability
			}
			links = append(links, l)
		}
		sort.SliceStable(links, func(i, j int) bool { return links[i].Reliability > links[j].Reliability })
		return links, nil
	}
	if ctx.Err() != nil {
		return nil, multiErr
	}

	prompt, err = render(ps.singleLink, data)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}
	var single struct {
		PDFURL     *string  `json:"pdf_url"`
		Source     *string  `json:"source"`
		Confidence *float64 `json:"confidence"`
	}
	if err := o.ask(ctx, "link", prompt, o.Temperature, singleLinkSchema, &single); err != nil {
		return nil, fmt.Errorf("multi-link: %v; single link: %w", multiErr, err)
	}
	u := strings.TrimSpace(deref(single.PDFURL))
	if !verify.LooksLikeDocumentURL(u) {
		return nil, nil
	}
	l := Link{URL: u, Source: deref(single.Source)}
	if single.Confidence != nil {
		l.Reliability = *single.Confidence
	}
	return []Link{l}, nil
}

// enrichAnswer mirrors the JSON the enrichment prompt asks for.
type enrichAnswer struct {
	Categories []struct {
		Name        string  `json:"name"`
		Icon        *string `json:"icon"`
		WikiLink    *string `json:"wikilink"`
		Description *string `json:"description"`
	} `json:"categories"`
	Author *struct {
		Name         *string  `json:"name"`
		Image        *string  `json:"image"`
		WikiLink     *string  `json:"wikilink"`
		Profession   []string `json:"profession"`
		Descriptions []string `json:"descriptions"`
	} `json:"author"`
	BookSummary *string `json:"book_summary"`
}

// Enrich maps cand's categories into language, then asks for category and
// author details in one completion. A description shorter than
// minDescriptionRunes is replaced by the answer's book summary, or failing
// that by a second completion; a failed rewrite keeps the old description.
func (o *LLM) Enrich(ctx context.Context, cand types.CandidateBook, language string) (types.CandidateBook, error) {
	ps := promptsFor(language)
	out := cand
	out.Categories = MapCategories(cand.Categories, language)

	var summary string
	if len(out.Categories) > 0 || out.Author != "" {
		cats := strings.Join(out.Categories, ", ")
		if cats == "" {
			cats = "Unknown"
		}
		prompt, err := render(ps.enrich, struct{ Title, Author, Categories string }{out.Title, out.Author, cats})
		if err != nil {
			return cand, fmt.Errorf("rendering prompt: %w", err)
		}
		var ans enrichAnswer
		if err := o.ask(ctx, "enrich", prompt, o.Temperature, enrichSchema, &ans); err != nil {
			return cand, err
		}
		out.CategoryDetails = categoryDetails(ans, language)
		out.AuthorInfo = authorInfo(ans, out.Author)
		summary = strings.TrimSpace(deref(ans.BookSummary))
	}

	if utf8.RuneCountInString(strings.TrimSpace(out.Description)) >= minDescriptionRunes {
		return out, nil
	}
	if utf8.RuneCountInString(summary) >= minDescriptionRunes {
		out.Description = summary
		return out, nil
	}
	if desc, err := o.describe(ctx, ps, out); err != nil {
		o.log().Warn("oracle.describe.skipped", "title", out.Title, "error", err)
	} else if desc != "" {
		out.Description = desc
	}
	return out, nil
}

func (o *LLM) describe(ctx context.Context, ps promptSet, cand types.CandidateBook) (string, error) {
	data := struct{ Title, Author, Description string }{cand.Title, cand.Author, strings.TrimSpace(cand.Description)}
	prompt, err := render(ps.describe, data)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	var ans struct {
		Description string `json:"description"`
	}
	if err := o.ask(ctx, "describe", prompt, o.Temperature, describeSchema, &ans); err != nil {
		return "", err
	}
	return strings.TrimSpace(ans.Description), nil
}

func categoryDetails(ans enrichAnswer, language string) []types.CategoryInfo {
	var out []types.CategoryInfo
	seen := map[string]bool{}
	for _, c := range ans.Categories {
		name := strings.TrimSpace(MapCategory(c.Name, language))
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, types.CategoryInfo{
			Name:        name,
			Icon:        strings.TrimSpace(deref(c.Icon)),
			WikiLink:    httpLink(deref(c.WikiLink)),
			Description: strings.TrimSpace(deref(c.Description)),
		})
	}
	return out
}

// authorInfo keeps the catalog's author name over the model's spelling.
func authorInfo(ans enrichAnswer, author string) *types.AuthorInfo {
	if ans.Author == nil {
		return nil
	}
	a := &types.AuthorInfo{
		Name:         strings.TrimSpace(author),
		Image:        httpLink(deref(ans.Author.Image)),
		WikiLink:     httpLink(deref(ans.Author.WikiLink)),
		Professions:  nonEmpty(ans.Author.Profession),
		Descriptions: nonEmpty(ans.Author.Descriptions),
	}
	if a.Name == "" {
		a.Name = strings.TrimSpace(deref(ans.Author.Name))
	}
	if a.Name == "" {
		return nil
	}
	return a
}

// httpLink returns s when it is an absolute http(s) URL and "" otherwise.
func httpLink(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return s
}

// ask runs one completion, validates the answer against schema, and decodes
// it into out.
func (o *LLM) ask(ctx context.Context, task, prompt string, temperature float64, schema map[string]any, out any) error {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	rid := uuid.New().String()
	start := time.Now()
	o.log().Debug("oracle."+task+".start", "req_id", rid, "temp", temperature, "prompt_len", len(prompt))

	content, err := o.Completer.Complete(ctx, Completion{Prompt: prompt, Temperature: temperature})
	if err != nil {
		o.log().Warn("oracle."+task+".http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return err
	}
	raw := []byte(stripFences(content))

	if err := validateJSON(schema, raw); err != nil {
		o.log().Warn("oracle."+task+".schema_validation_failed", "req_id", rid, "error", err,
			"content", content, "elapsed_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding answer: %w", err)
	}

	o.log().Debug("oracle."+task+".ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// validateJSON validates data against schemaMap.
func validateJSON(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
