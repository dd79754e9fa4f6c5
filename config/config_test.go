package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty api url",
			mutate: func(cfg *Config) {
				cfg.APIBaseURL = ""
			},
			wantErr: "API base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.APIBaseURL = "http://"
			},
			wantErr: "API base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative rate limit",
			mutate: func(cfg *Config) {
				cfg.RateLimit = -1
			},
			wantErr: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidateImport(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "backoff exceeds max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "zero dedupe size",
			mutate: func(cfg *Config) {
				cfg.DedupeMaxSize = 0
			},
			wantErr: "dedupe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.ValidateImport(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidateImportAPIFormatNeedsNoFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputFormat = "api"
	cfg.OutputFile = ""
	if err := cfg.ValidateImport(); err != nil {
		t.Fatalf("api format without output file should validate, got %v", err)
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("default server config should validate, got %v", err)
	}
	if err := cfg.ValidateImport(); err != nil {
		t.Fatalf("default import config should validate, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKSHOP_API_URL", "http://api.example.test")
	t.Setenv("BOOKSHOP_TIMEOUT", "3s")
	t.Setenv("BOOKSHOP_IMPORT_PAGES", "9")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.APIBaseURL != "http://api.example.test" {
		t.Fatalf("api url = %q", cfg.APIBaseURL)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", cfg.Timeout)
	}
	if cfg.MaxPages != 9 {
		t.Fatalf("max pages = %d, want 9", cfg.MaxPages)
	}
	if cfg.BackendURL != DefaultConfig().BackendURL {
		t.Fatalf("unset variable changed backend url to %q", cfg.BackendURL)
	}
}

func TestLoadEnvInvalidValue(t *testing.T) {
	t.Setenv("BOOKSHOP_IMPORT_PAGES", "many")
	if _, err := FromEnv(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}
