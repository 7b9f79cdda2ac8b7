// Package config loads airesponse settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dan-solli/airesponse/pkg/cache"
	"github.com/dan-solli/airesponse/pkg/llm"
	"github.com/dan-solli/airesponse/pkg/query"
)

// Config holds all airesponse configuration.
type Config struct {
	Credentials llm.Credentials `yaml:"credentials"`
	Client      ClientConfig    `yaml:"client"`
	Query       QueryConfig     `yaml:"query"`
	Cache       CacheConfig     `yaml:"cache"`
	Extract     ExtractConfig   `yaml:"extract"`

	// TracePath receives JSONL operation traces in tracing builds; empty disables export
	TracePath string `yaml:"trace_path"`

	// Metrics enables the Prometheus collector
	Metrics bool `yaml:"metrics"`
}

// ClientConfig controls the remote model client.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	StrictFinish   bool          `yaml:"strict_finish"`
}

// QueryConfig supplies request defaults.
type QueryConfig struct {
	DefaultModel   string         `yaml:"default_model"`
	DefaultBackend string         `yaml:"default_backend"`
	MaxParallel    int            `yaml:"max_parallel"`
	DefaultOptions map[string]any `yaml:"default_options"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Driver  string        `yaml:"driver"`
	TTL     time.Duration `yaml:"ttl"`
}

// ExtractConfig controls structured extraction.
type ExtractConfig struct {
	// Mode is root, first or all
	Mode               string `yaml:"mode"`
	CoerceStringArrays bool   `yaml:"coerce_string_arrays"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			MaxRetries:     3,
			RetryDelay:     time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Query: QueryConfig{
			DefaultModel:   "gpt-4o-mini",
			DefaultBackend: string(llm.BackendOpenAI),
			MaxParallel:    query.DefaultMaxParallel,
			DefaultOptions: query.DefaultOptions(),
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    "airesponse_cache.db",
			Driver:  cache.DriverModernc,
		},
		Extract: ExtractConfig{
			Mode: "root",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
// Credentials missing from the file are taken from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Credentials = mergeCredentials(cfg.Credentials, llm.CredentialsFromEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeCredentials(c, env llm.Credentials) llm.Credentials {
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = env.OpenAIAPIKey
	}
	if c.AzureAPIKey == "" {
		c.AzureAPIKey = env.AzureAPIKey
	}
	if c.AzureEndpoint == "" {
		c.AzureEndpoint = env.AzureEndpoint
	}
	if c.AzureAPIVersion == "" {
		c.AzureAPIVersion = env.AzureAPIVersion
	}
	return c
}

// Validate checks enumerated values and ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Query.DefaultBackend != "" {
		if _, err := llm.ParseBackend(c.Query.DefaultBackend); err != nil {
			errs = append(errs, fmt.Errorf("query.default_backend: %w", err))
		}
	}
	if c.Query.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("query.max_parallel must not be negative"))
	}
	if c.Client.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("client.max_retries must not be negative"))
	}
	if c.Client.RetryDelay < 0 || c.Client.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("client durations must not be negative"))
	}
	switch c.Cache.Driver {
	case "", cache.DriverModernc, cache.DriverCGO:
	default:
		errs = append(errs, fmt.Errorf("cache.driver must be %q or %q, got %q", cache.DriverModernc, cache.DriverCGO, c.Cache.Driver))
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, fmt.Errorf("cache.path is required when the cache is enabled"))
	}
	switch c.Extract.Mode {
	case "", "root", "first", "all":
	default:
		errs = append(errs, fmt.Errorf("extract.mode must be root, first or all, got %q", c.Extract.Mode))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
