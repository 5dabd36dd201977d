// Package config provides configuration management for osparc-tables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/itisfoundation/osparc-tables/internal/constants"
)

// Config holds everything the API client, table models and CLI need.
type Config struct {
	// API settings
	APIBaseURL string
	APIKey     string
	APISecret  string

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy

	// Table settings
	ServerMaxLimit  int           // Largest page requested from the server
	PageConcurrency int           // Chunk requests in flight per range (0 = unbounded)
	CacheRows       int           // Rows kept per table model window
	MaxRetries      int           // HTTP retries per request; row loading never retries by default
	RequestTimeout  time.Duration // Per-request timeout
	DateLayout      string        // Layout for date columns
	DefsFile        string        // Optional YAML resource definitions override

	// Logging
	LogFile string

	// Export sinks
	S3Region        string
	S3Endpoint      string // Custom endpoint (MinIO, Ceph); empty = AWS
	S3AccessKey     string
	S3SecretKey     string
	AzureServiceURL string // https://<account>.blob.core.windows.net/?<sas>
}

// Validation errors
var (
	ErrMissingPlatformURL  = errors.New("platform_url is required")
	ErrInvalidPlatformURL  = errors.New("platform_url must be an absolute http(s) URL")
	ErrMissingAPIKey       = errors.New("api_key is required")
	ErrInvalidPageLimit    = fmt.Errorf("server_max_limit must be between 1 and %d", constants.ServerMaxLimit)
	ErrInvalidConcurrency  = fmt.Errorf("page_concurrency must be between 0 and %d", constants.MaxPageConcurrency)
	ErrInvalidCacheRows    = fmt.Errorf("cache_rows must be at least %d", constants.MinCacheRows)
	ErrInvalidMaxRetries   = errors.New("max_retries must not be negative")
	ErrUnsupportedProxy    = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost    = errors.New("proxy host is required for basic and ntlm proxy modes")
	ErrInvalidRequestLimit = errors.New("request_timeout must be positive")
)

// Default returns a Config populated with defaults.
func Default() *Config {
	return &Config{
		APIBaseURL:      constants.DefaultPlatformURL,
		ProxyMode:       "no-proxy",
		ServerMaxLimit:  constants.ServerMaxLimit,
		PageConcurrency: constants.DefaultPageConcurrency,
		CacheRows:       constants.DefaultCacheRows,
		MaxRetries:      0,
		RequestTimeout:  constants.DefaultRequestTimeout,
		DateLayout:      constants.DefaultDateLayout,
	}
}

// MergeWithEnv applies OSPARC_* environment variables over the current values.
func (c *Config) MergeWithEnv() {
	if v := os.Getenv("OSPARC_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OSPARC_API_SECRET"); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv("OSPARC_API_URL"); v != "" {
		c.APIBaseURL = v
	}
}

// MergeWithFlags merges command-line values over env and file values.
// Priority (highest to lowest): flags > environment > config file > defaults.
// Empty flag values leave the current value untouched.
func (c *Config) MergeWithFlags(apiKey, apiSecret, apiBaseURL, defsFile, logFile string) {
	c.MergeWithEnv()

	if apiKey != "" {
		c.APIKey = apiKey
	}
	if apiSecret != "" {
		c.APISecret = apiSecret
	}
	if apiBaseURL != "" {
		c.APIBaseURL = apiBaseURL
	}
	if defsFile != "" {
		c.DefsFile = defsFile
	}
	if logFile != "" {
		c.LogFile = logFile
	}
}

// Validate checks the settings that do not depend on credentials.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingPlatformURL
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidPlatformURL
	}
	if c.ServerMaxLimit < 1 || c.ServerMaxLimit > constants.ServerMaxLimit {
		return ErrInvalidPageLimit
	}
	if c.PageConcurrency < 0 || c.PageConcurrency > constants.MaxPageConcurrency {
		return ErrInvalidConcurrency
	}
	if c.CacheRows < constants.MinCacheRows {
		return ErrInvalidCacheRows
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestLimit
	}

	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if c.ProxyHost == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrUnsupportedProxy
	}

	return nil
}

// ValidateForConnection checks the settings required before any API call.
func (c *Config) ValidateForConnection() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// NeedsProxyPassword returns true if the proxy mode requires a password that is not set.
func (c *Config) NeedsProxyPassword() bool {
	mode := strings.ToLower(c.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return c.ProxyUser != "" && c.ProxyPassword == ""
}
