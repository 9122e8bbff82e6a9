package types

import (
	"fmt"
	"time"
)

// DefaultMaxDocumentBytes caps every verified or downloaded document (50 MB).
const DefaultMaxDocumentBytes int64 = 50 * 1024 * 1024

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bookfinder/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceConfig holds per-catalog settings. Each catalog carries its own
// timeout because their latencies differ by an order of magnitude.
type SourceConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RatePerSecond throttles outgoing requests; 0 disables throttling.
	RatePerSecond int `json:"rate_per_second" yaml:"rate_per_second"`

	// APIKey is optional (Google Books only).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxResults is the default result count when a request names none.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Deadline bounds the whole fan-out; stragglers count as empty.
	Deadline time.Duration `json:"deadline" yaml:"deadline"`

	// MaxVariations limits how many oracle search variations are fanned out.
	MaxVariations int `json:"max_variations" yaml:"max_variations"`

	// Sequential queries catalogs one at a time instead of concurrently.
	Sequential bool `json:"sequential" yaml:"sequential"`

	// EnrichResults is how many top-ranked candidates the oracle enriches
	// with category and author details. Zero turns enrichment off.
	EnrichResults int `json:"enrich_results" yaml:"enrich_results"`

	GoogleBooks     SourceConfig `json:"google_books" yaml:"google_books"`
	Gutendex        SourceConfig `json:"gutendex" yaml:"gutendex"`
	InternetArchive SourceConfig `json:"internet_archive" yaml:"internet_archive"`

	// ArabicCollections is only consulted for Arabic queries.
	ArabicCollections SourceConfig `json:"arabic_collections" yaml:"arabic_collections"`
}

// VerifyConfig holds settings for URL verification.
type VerifyConfig struct {
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// ProbeTimeout bounds each HEAD or partial GET.
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout"`

	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`
}

// LocatorConfig holds settings for finding a document link when a candidate
// has none.
type LocatorConfig struct {
	// Deadline is shared by every strategy in the chain.
	Deadline time.Duration `json:"deadline" yaml:"deadline"`

	// VerifyLinks makes the chain verify each link before accepting it.
	VerifyLinks bool `json:"verify_links" yaml:"verify_links"`
}

// ConversionBackend identifies the e-book to PDF conversion tool.
type ConversionBackend string

const (
	BackendContainer ConversionBackend = "container"
	BackendCalibre   ConversionBackend = "calibre"
	BackendNone      ConversionBackend = "none"
)

// AcquisitionConfig holds settings for the acquisition stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// MediaDir is the storage root; documents land in MediaDir/books/pdfs/.
	MediaDir string `json:"media_dir" yaml:"media_dir"`

	// Converter selects how EPUB and MOBI downloads become PDFs.
	Converter ConversionBackend `json:"converter" yaml:"converter"`

	// ConverterImage is the container image used by the container backend.
	ConverterImage string `json:"converter_image" yaml:"converter_image"`

	// ContainerRuntime pins "docker" or "podman"; empty picks the first
	// one that works.
	ContainerRuntime string `json:"container_runtime" yaml:"container_runtime"`
}

// OracleProvider selects the LLM API behind the oracle.
type OracleProvider string

const (
	ProviderGroq      OracleProvider = "groq"
	ProviderAnthropic OracleProvider = "anthropic"
	ProviderNone      OracleProvider = "none"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	Provider OracleProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "llama3-8b-8192").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (OpenAI-compatible APIs).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Temperature float64       `json:"temperature" yaml:"temperature"`

	// MaxRetries is the number of retry attempts for failed API calls.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SessionConfig selects where search sessions are kept.
type SessionConfig struct {
	// Backend is "redis" or "memory".
	Backend   string        `json:"backend" yaml:"backend"`
	RedisAddr string        `json:"redis_addr" yaml:"redis_addr"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
}

// LibraryConfig holds settings for the local book library.
type LibraryConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Search      SearchConfig      `json:"search" yaml:"search"`
	Verify      VerifyConfig      `json:"verify" yaml:"verify"`
	Locator     LocatorConfig     `json:"locator" yaml:"locator"`
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Oracle      AIConfig          `json:"oracle" yaml:"oracle"`
	Session     SessionConfig     `json:"session" yaml:"session"`
	Library     LibraryConfig     `json:"library" yaml:"library"`
	Server      ServerConfig      `json:"server" yaml:"server"`
}

// Validate checks the process-wide constants. A failure here is fatal and
// must stop the process before it serves anything.
func (c PipelineConfig) Validate() error {
	if c.Verify.MaxBytes <= 0 || c.Acquisition.MaxBytes <= 0 {
		return fmt.Errorf("%w: document size cap must be positive", ErrInvalidConfig)
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 20 {
		return fmt.Errorf("%w: search.max_results %d outside 1..20", ErrInvalidConfig, c.Search.MaxResults)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"search.deadline", c.Search.Deadline},
		{"search.google_books.timeout", c.Search.GoogleBooks.Timeout},
		{"search.gutendex.timeout", c.Search.Gutendex.Timeout},
		{"search.internet_archive.timeout", c.Search.InternetArchive.Timeout},
		{"search.arabic_collections.timeout", c.Search.ArabicCollections.Timeout},
		{"verify.probe_timeout", c.Verify.ProbeTimeout},
		{"locator.deadline", c.Locator.Deadline},
		{"acquisition.timeout", c.Acquisition.Timeout},
	}
	for _, dur := range durations {
		if dur.d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, dur.name, dur.d)
		}
	}
	if c.Acquisition.MediaDir == "" {
		return fmt.Errorf("%w: acquisition.media_dir is empty", ErrInvalidConfig)
	}
	return nil
}

// DefaultPipelineConfig returns the built-in defaults.
func DefaultPipelineConfig() PipelineConfig {
	const ua = "bookfinder/0.1"
	return PipelineConfig{
		Search: SearchConfig{
			UserAgent:         ua,
			MaxResults:        5,
			Deadline:          15 * time.Second,
			MaxVariations:     1,
			EnrichResults:     5,
			GoogleBooks:       SourceConfig{Enabled: true, Timeout: 3 * time.Second, RatePerSecond: 5},
			Gutendex:          SourceConfig{Enabled: true, Timeout: 5 * time.Second, RatePerSecond: 2},
			InternetArchive:   SourceConfig{Enabled: true, Timeout: 15 * time.Second, RatePerSecond: 2},
			ArabicCollections: SourceConfig{Enabled: true, Timeout: 15 * time.Second, RatePerSecond: 1},
		},
		Verify: VerifyConfig{
			UserAgent:    ua,
			ProbeTimeout: 8 * time.Second,
			MaxBytes:     DefaultMaxDocumentBytes,
		},
		Locator: LocatorConfig{
			Deadline:    30 * time.Second,
			VerifyLinks: true,
		},
		Acquisition: AcquisitionConfig{
			HTTPConfig:     HTTPConfig{Timeout: 30 * time.Second, UserAgent: ua},
			MaxBytes:       DefaultMaxDocumentBytes,
			MediaDir:       "media",
			Converter:      BackendContainer,
			ConverterImage: "ebook-convert:latest",
		},
		Oracle: AIConfig{
			Provider:    ProviderGroq,
			Model:       "llama3-8b-8192",
			Timeout:     20 * time.Second,
			Temperature: 0.3,
			MaxRetries:  1,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     time.Hour,
		},
		Library: LibraryConfig{DBPath: "data/library.db"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}
