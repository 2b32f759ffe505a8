// Package config loads rga settings from the config file, environment and
// command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mdresch/requirements-gathering-agent/internal/fallback"
	"github.com/mdresch/requirements-gathering-agent/internal/library"
	"github.com/mdresch/requirements-gathering-agent/internal/provider"
	"github.com/mdresch/requirements-gathering-agent/internal/resilience"
	"github.com/mdresch/requirements-gathering-agent/internal/tokens"
)

// EnvPrefix prefixes environment overrides, e.g. RGA_ACTIVE_PROVIDER.
const EnvPrefix = "RGA"

// ProviderConfig describes one configured LLM endpoint.
type ProviderConfig struct {
	Name          string `mapstructure:"name"`
	Vendor        string `mapstructure:"vendor"`
	Host          string `mapstructure:"host"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	ContextWindow int    `mapstructure:"context_window"`
}

// LibraryConfig controls project loading.
type LibraryConfig struct {
	MaxTokens        int                `mapstructure:"max_tokens"`
	PrioritizeRecent bool               `mapstructure:"prioritize_recent"`
	MinFileSize      int64              `mapstructure:"min_file_size"`
	MaxFileSize      int64              `mapstructure:"max_file_size"`
	MaxDepth         int                `mapstructure:"max_depth"`
	Include          []string           `mapstructure:"include"`
	Exclude          []string           `mapstructure:"exclude"`
	CategoryWeights  map[string]float64 `mapstructure:"category_weights"`
	Format           string             `mapstructure:"format"`
}

// FallbackConfig controls the context fallback engine.
type FallbackConfig struct {
	WarnReduction    float64                     `mapstructure:"warn_reduction"`
	ConfirmReduction float64                     `mapstructure:"confirm_reduction"`
	DocumentTypes    map[string]fallback.Profile `mapstructure:"document_types"`
}

// Config is the full rga configuration.
type Config struct {
	Providers      []ProviderConfig `mapstructure:"providers"`
	ActiveProvider string           `mapstructure:"active_provider"`

	Tokenizer     string  `mapstructure:"tokenizer"`
	CharsPerToken float64 `mapstructure:"chars_per_token"`

	Library  LibraryConfig          `mapstructure:"library"`
	Retry    resilience.RetryConfig `mapstructure:"retry"`
	Fallback FallbackConfig         `mapstructure:"fallback"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Single-provider shorthand from --host/--key/--model/--vendor.
	Host   string `mapstructure:"host"`
	APIKey string `mapstructure:"key"`
	Model  string `mapstructure:"model"`
	Vendor string `mapstructure:"vendor"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tokenizer", "chars")
	v.SetDefault("chars_per_token", tokens.DefaultCharsPerToken)

	v.SetDefault("library.max_tokens", library.DefaultMaxTokens)
	v.SetDefault("library.prioritize_recent", true)
	v.SetDefault("library.min_file_size", 0)
	v.SetDefault("library.max_file_size", 1<<20)
	v.SetDefault("library.max_depth", 10)
	v.SetDefault("library.format", string(library.FormatStructured))

	v.SetDefault("retry.max_retries", resilience.DefaultMaxRetries)
	v.SetDefault("retry.base_delay", resilience.DefaultBaseDelay)
	v.SetDefault("retry.max_delay", resilience.DefaultMaxDelay)
	v.SetDefault("retry.backoff_multiplier", resilience.DefaultBackoffMultiplier)
	v.SetDefault("retry.failure_threshold", resilience.DefaultFailureThreshold)
	v.SetDefault("retry.recovery_timeout", resilience.DefaultRecoveryTimeout)

	v.SetDefault("fallback.warn_reduction", fallback.DefaultWarnReduction)
	v.SetDefault("fallback.confirm_reduction", fallback.DefaultConfirmReduction)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// BindEnv enables RGA_* overrides for nested keys.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if c.Host != "" && len(c.Providers) == 0 {
		c.Providers = []ProviderConfig{{
			Name:   "default",
			Vendor: c.Vendor,
			Host:   c.Host,
			APIKey: c.APIKey,
			Model:  c.Model,
		}}
	}
	if c.ActiveProvider == "" && len(c.Providers) > 0 {
		c.ActiveProvider = c.Providers[0].Name
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, p := range c.Providers {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.Host == "" && provider.ParseVendorConfig(p.Vendor) != provider.TypeOpenAI {
			errs = append(errs, fmt.Errorf("provider %s: host is required", p.Name))
		}
		if p.ContextWindow < 0 {
			errs = append(errs, fmt.Errorf("provider %s: context_window must not be negative", p.Name))
		}
	}
	if c.ActiveProvider != "" && len(c.Providers) > 0 && !seen[c.ActiveProvider] {
		errs = append(errs, fmt.Errorf("active_provider %q is not configured", c.ActiveProvider))
	}
	if c.Library.MaxTokens < 0 {
		errs = append(errs, errors.New("library.max_tokens must not be negative"))
	}
	if c.Library.MaxFileSize > 0 && c.Library.MinFileSize > c.Library.MaxFileSize {
		errs = append(errs, errors.New("library.min_file_size exceeds library.max_file_size"))
	}
	if _, err := library.ParseFormat(c.Library.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Fallback.ConfirmReduction > 0 && c.Fallback.WarnReduction > c.Fallback.ConfirmReduction {
		errs = append(errs, errors.New("fallback.warn_reduction exceeds fallback.confirm_reduction"))
	}
	return errors.Join(errs...)
}

// Provider returns the named provider, or the active one for "".
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	if name == "" {
		name = c.ActiveProvider
	}
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Estimator builds the configured token estimator.
func (c *Config) Estimator() (tokens.Estimator, error) {
	return tokens.New(c.Tokenizer, c.CharsPerToken)
}

// Options converts the library section into loader options.
func (l LibraryConfig) Options() (library.Options, error) {
	opts := library.DefaultOptions()
	opts.MaxTokens = l.MaxTokens
	opts.PrioritizeRecent = l.PrioritizeRecent
	opts.MinFileSize = l.MinFileSize
	opts.MaxFileSize = l.MaxFileSize
	opts.Include = l.Include
	opts.Exclude = l.Exclude

	if len(l.CategoryWeights) > 0 {
		opts.CategoryWeights = make(map[library.Category]float64, len(l.CategoryWeights))
		for name, w := range l.CategoryWeights {
			cat, ok := library.ParseCategory(name)
			if !ok {
				return opts, fmt.Errorf("library.category_weights: unknown category %q", name)
			}
			opts.CategoryWeights[cat] = w
		}
	}
	return opts, nil
}

// EngineOptions converts the fallback section into engine options.
func (f FallbackConfig) EngineOptions() []fallback.EngineOption {
	opts := []fallback.EngineOption{fallback.WithThresholds(f.WarnReduction, f.ConfirmReduction)}
	if len(f.DocumentTypes) > 0 {
		opts = append(opts, fallback.WithProfiles(f.DocumentTypes))
	}
	return opts
}
