package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bookfinder/internal/orchestrate"
	"github.com/pdiddy/bookfinder/pkg/types"
)

// registerDefaults seeds viper with the built-in pipeline defaults so that
// every key can be overridden from the config file or a BOOKFINDER_ env var.
func registerDefaults() {
	d := types.DefaultPipelineConfig()

	viper.SetDefault("search.user_agent", d.Search.UserAgent)
	viper.SetDefault("search.max_results", d.Search.MaxResults)
	viper.SetDefault("search.deadline", d.Search.Deadline)
	viper.SetDefault("search.max_variations", d.Search.MaxVariations)
	viper.SetDefault("search.sequential", d.Search.Sequential)
	viper.SetDefault("search.enrich_results", d.Search.EnrichResults)
	sourceDefaults("search.google_books", d.Search.GoogleBooks)
	sourceDefaults("search.gutendex", d.Search.Gutendex)
	sourceDefaults("search.internet_archive", d.Search.InternetArchive)
	sourceDefaults("search.arabic_collections", d.Search.ArabicCollections)

	viper.SetDefault("verify.user_agent", d.Verify.UserAgent)
	viper.SetDefault("verify.probe_timeout", d.Verify.ProbeTimeout)
	viper.SetDefault("verify.max_bytes", d.Verify.MaxBytes)

	viper.SetDefault("locator.deadline", d.Locator.Deadline)
	viper.SetDefault("locator.verify_links", d.Locator.VerifyLinks)

	viper.SetDefault("acquisition.timeout", d.Acquisition.Timeout)
	viper.SetDefault("acquisition.user_agent", d.Acquisition.UserAgent)
	viper.SetDefault("acquisition.max_bytes", d.Acquisition.MaxBytes)
	viper.SetDefault("acquisition.media_dir", d.Acquisition.MediaDir)
	viper.SetDefault("acquisition.converter", string(d.Acquisition.Converter))
	viper.SetDefault("acquisition.converter_image", d.Acquisition.ConverterImage)
	viper.SetDefault("acquisition.container_runtime", d.Acquisition.ContainerRuntime)

	viper.SetDefault("oracle.provider", string(d.Oracle.Provider))
	viper.SetDefault("oracle.model", d.Oracle.Model)
	viper.SetDefault("oracle.api_key", "")
	viper.SetDefault("oracle.base_url", "")
	viper.SetDefault("oracle.timeout", d.Oracle.Timeout)
	viper.SetDefault("oracle.temperature", d.Oracle.Temperature)
	viper.SetDefault("oracle.max_retries", d.Oracle.MaxRetries)

	viper.SetDefault("session.backend", d.Session.Backend)
	viper.SetDefault("session.redis_addr", "localhost:6379")
	viper.SetDefault("session.ttl", d.Session.TTL)

	viper.SetDefault("library.db_path", d.Library.DBPath)
	viper.SetDefault("server.addr", d.Server.Addr)
}

func sourceDefaults(prefix string, sc types.SourceConfig) {
	viper.SetDefault(prefix+".enabled", sc.Enabled)
	viper.SetDefault(prefix+".timeout", sc.Timeout)
	viper.SetDefault(prefix+".rate_per_second", sc.RatePerSecond)
	viper.SetDefault(prefix+".api_key", "")
}

func sourceConfig(prefix string) types.SourceConfig {
	return types.SourceConfig{
		Enabled:       viper.GetBool(prefix + ".enabled"),
		Timeout:       viper.GetDuration(prefix + ".timeout"),
		RatePerSecond: viper.GetInt(prefix + ".rate_per_second"),
		APIKey:        viper.GetString(prefix + ".api_key"),
	}
}

// pipelineConfig assembles the effective configuration and validates it.
// API keys not set in config or env come from .secrets/.
func pipelineConfig() (types.PipelineConfig, error) {
	cfg := types.PipelineConfig{
		Search: types.SearchConfig{
			UserAgent:         viper.GetString("search.user_agent"),
			MaxResults:        viper.GetInt("search.max_results"),
			Deadline:          viper.GetDuration("search.deadline"),
			MaxVariations:     viper.GetInt("search.max_variations"),
			Sequential:        viper.GetBool("search.sequential"),
			EnrichResults:     viper.GetInt("search.enrich_results"),
			GoogleBooks:       sourceConfig("search.google_books"),
			Gutendex:          sourceConfig("search.gutendex"),
			InternetArchive:   sourceConfig("search.internet_archive"),
			ArabicCollections: sourceConfig("search.arabic_collections"),
		},
		Verify: types.VerifyConfig{
			UserAgent:    viper.GetString("verify.user_agent"),
			ProbeTimeout: viper.GetDuration("verify.probe_timeout"),
			MaxBytes:     viper.GetInt64("verify.max_bytes"),
		},
		Locator: types.LocatorConfig{
			Deadline:    viper.GetDuration("locator.deadline"),
			VerifyLinks: viper.GetBool("locator.verify_links"),
		},
		Acquisition: types.AcquisitionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("acquisition.timeout"),
				UserAgent: viper.GetString("acquisition.user_agent"),
			},
			MaxBytes:         viper.GetInt64("acquisition.max_bytes"),
			MediaDir:         viper.GetString("acquisition.media_dir"),
			Converter:        types.ConversionBackend(viper.GetString("acquisition.converter")),
			ConverterImage:   viper.GetString("acquisition.converter_image"),
			ContainerRuntime: viper.GetString("acquisition.container_runtime"),
		},
		Oracle: types.AIConfig{
			Provider:    types.OracleProvider(viper.GetString("oracle.provider")),
			Model:       viper.GetString("oracle.model"),
			APIKey:      viper.GetString("oracle.api_key"),
			BaseURL:     viper.GetString("oracle.base_url"),
			Timeout:     viper.GetDuration("oracle.timeout"),
			Temperature: viper.GetFloat64("oracle.temperature"),
			MaxRetries:  viper.GetInt("oracle.max_retries"),
		},
		Session: types.SessionConfig{
			Backend:   viper.GetString("session.backend"),
			RedisAddr: viper.GetString("session.redis_addr"),
			TTL:       viper.GetDuration("session.ttl"),
		},
		Library: types.LibraryConfig{DBPath: viper.GetString("library.db_path")},
		Server:  types.ServerConfig{Addr: viper.GetString("server.addr")},
	}

	cfg.Search.GoogleBooks.APIKey = secretDefault("google-books-api-key", cfg.Search.GoogleBooks.APIKey)
	switch cfg.Oracle.Provider {
	case types.ProviderGroq:
		cfg.Oracle.APIKey = secretDefault("groq-api-key", cfg.Oracle.APIKey)
	case types.ProviderAnthropic:
		cfg.Oracle.APIKey = secretDefault("anthropic-api-key", cfg.Oracle.APIKey)
	}

	if err := cfg.Validate(); err != nil {
		return types.PipelineConfig{}, err
	}
	return cfg, nil
}

// newOrchestrator builds the pipeline from the effective configuration.
// The caller closes it.
func newOrchestrator(ctx context.Context) (*orchestrate.Orchestrator, types.PipelineConfig, error) {
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, cfg, err
	}
	orc, err := orchestrate.New(ctx, cfg, slog.Default())
	if err != nil {
		return nil, cfg, err
	}
	return orc, cfg, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration bookfinder would run with: built-in
defaults overlaid with the config file and BOOKFINDER_ environment variables.
API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		cfg.Oracle.APIKey = mask(cfg.Oracle.APIKey)
		cfg.Search.GoogleBooks.APIKey = mask(cfg.Search.GoogleBooks.APIKey)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(&cfg); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return enc.Close()
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

func init() {
	rootCmd.AddCommand(configCmd)
}
