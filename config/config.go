package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds client, dev server and importer configuration.
type Config struct {
	APIBaseURL string        `env:"BOOKSHOP_API_URL"`
	Timeout    time.Duration `env:"BOOKSHOP_TIMEOUT"`
	RateLimit  float64       `env:"BOOKSHOP_RATE_LIMIT"` // requests per second, 0 disables
	UserAgent  string        `env:"BOOKSHOP_USER_AGENT"`
	Verbose    bool          `env:"BOOKSHOP_VERBOSE"`

	ListenAddr    string `env:"BOOKSHOP_LISTEN_ADDR"`
	BackendURL    string `env:"BOOKSHOP_BACKEND_URL"`
	ProxyInsecure bool   `env:"BOOKSHOP_PROXY_INSECURE"`
	MetricsAddr   string `env:"BOOKSHOP_METRICS_ADDR"`

	ImportURL          string        `env:"BOOKSHOP_IMPORT_URL"`
	MaxPages           int           `env:"BOOKSHOP_IMPORT_PAGES"`
	Parallelism        int           `env:"BOOKSHOP_IMPORT_PARALLEL"`
	Delay              time.Duration `env:"BOOKSHOP_IMPORT_DELAY"`
	RandomDelay        time.Duration `env:"BOOKSHOP_IMPORT_RANDOM_DELAY"`
	MaxRetries         int           `env:"BOOKSHOP_IMPORT_MAX_RETRIES"`
	RetryBackoff       time.Duration `env:"BOOKSHOP_IMPORT_RETRY_BACKOFF"`
	RetryBackoffMax    time.Duration `env:"BOOKSHOP_IMPORT_RETRY_BACKOFF_MAX"`
	RespectRobotsTxt   bool          `env:"BOOKSHOP_IMPORT_RESPECT_ROBOTS"`
	PipelineBufferSize int           `env:"BOOKSHOP_IMPORT_BUFFER"`
	BatchSize          int           `env:"BOOKSHOP_IMPORT_BATCH"`
	DedupeMaxSize      int           `env:"BOOKSHOP_IMPORT_DEDUPE_MAX"`
	DefaultCondition   string        `env:"BOOKSHOP_IMPORT_CONDITION"`
	DefaultAuthor      string        `env:"BOOKSHOP_IMPORT_AUTHOR"`
	OutputFile         string        `env:"BOOKSHOP_IMPORT_OUTPUT"`
	OutputFormat       string        `env:"BOOKSHOP_IMPORT_FORMAT"` // csv, json, api, or tee
}

// DefaultConfig returns defaults matching the local development setup.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL: "http://localhost:4000",
		Timeout:    10 * time.Second,
		RateLimit:  0,
		UserAgent:  "bookshop-client/1.0",
		Verbose:    false,

		ListenAddr:    ":4000",
		BackendURL:    "http://localhost:5555",
		ProxyInsecure: true,
		MetricsAddr:   "",

		ImportURL:          "https://books.toscrape.com",
		MaxPages:           5,
		Parallelism:        4,
		Delay:              0,
		RandomDelay:        0,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		RespectRobotsTxt:   false,
		PipelineBufferSize: 256,
		BatchSize:          32,
		DedupeMaxSize:      10000,
		DefaultCondition:   "used",
		DefaultAuthor:      "Unknown",
		OutputFile:         "output/listings.csv",
		OutputFormat:       "csv",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if err := validateURL("API base URL", c.APIBaseURL); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// ValidateServer checks the settings used by the dev server.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	return validateURL("backend URL", c.BackendURL)
}

// ValidateImport checks the settings used by the listing importer.
func (c *Config) ValidateImport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := validateURL("import URL", c.ImportURL); err != nil {
		return err
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.DefaultCondition == "" {
		return fmt.Errorf("default condition cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "tee":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "api":
	default:
		return fmt.Errorf("output format must be csv, json, api, or tee")
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
