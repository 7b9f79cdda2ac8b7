package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Client.RequestTimeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Client.RequestTimeout)
	}
	if cfg.Query.MaxParallel != 100 {
		t.Errorf("expected max_parallel 100, got %d", cfg.Query.MaxParallel)
	}
	if cfg.Query.DefaultOptions["temperature"] != 0.7 {
		t.Errorf("expected default temperature 0.7, got %v", cfg.Query.DefaultOptions["temperature"])
	}
	if !cfg.Cache.Enabled || cfg.Cache.Driver != "sqlite" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_AZURE_KEY", "az-test-123")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := writeConfig(t, `
credentials:
  azure_api_key: ${TEST_AZURE_KEY}
  azure_endpoint: https://example.openai.azure.com
client:
  max_retries: 5
  retry_delay: 250ms
  request_timeout: 2m
  strict_finish: true
query:
  default_model: my-deployment
  default_backend: azure
  max_parallel: 8
  default_options:
    temperature: 0
    seed: 42
cache:
  enabled: true
  path: /tmp/responses.db
  ttl: 24h
extract:
  coerce_string_arrays: true
trace_path: traces.jsonl
metrics: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Credentials.AzureAPIKey != "az-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Credentials.AzureAPIKey)
	}
	if cfg.Credentials.OpenAIAPIKey != "sk-from-env" {
		t.Errorf("missing credential not taken from environment: got %q", cfg.Credentials.OpenAIAPIKey)
	}
	if cfg.Client.MaxRetries != 5 || cfg.Client.RetryDelay != 250*time.Millisecond || cfg.Client.RequestTimeout != 2*time.Minute {
		t.Errorf("unexpected client config: %+v", cfg.Client)
	}
	if !cfg.Client.StrictFinish {
		t.Error("expected strict_finish")
	}
	if cfg.Query.DefaultBackend != "azure" || cfg.Query.MaxParallel != 8 {
		t.Errorf("unexpected query config: %+v", cfg.Query)
	}
	if cfg.Query.DefaultOptions["seed"] != 42 {
		t.Errorf("expected seed 42, got %v", cfg.Query.DefaultOptions["seed"])
	}
	if cfg.Cache.TTL != 24*time.Hour || cfg.Cache.Path != "/tmp/responses.db" {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.Driver != "sqlite" {
		t.Errorf("driver default should survive a partial cache section, got %q", cfg.Cache.Driver)
	}
	if cfg.Extract.Mode != "root" || !cfg.Extract.CoerceStringArrays {
		t.Errorf("unexpected extract config: %+v", cfg.Extract)
	}
	if cfg.TracePath != "traces.jsonl" || !cfg.Metrics {
		t.Errorf("unexpected trace/metrics config: %q %v", cfg.TracePath, cfg.Metrics)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "query:\n  default_backend: gemini\n", "default_backend"},
		{"bad driver", "cache:\n  driver: postgres\n", "cache.driver"},
		{"negative retries", "client:\n  max_retries: -1\n", "max_retries"},
		{"enabled cache without path", "cache:\n  path: \"\"\n", "cache.path"},
		{"bad extract mode", "extract:\n  mode: last\n", "extract.mode"},
		{"not yaml", "query: [unclosed\n", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
