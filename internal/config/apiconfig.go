package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/ini.v1"
)

// The apiconfig file is an INI file:
//
//	[osparc]
//	platform_url = https://osparc.io
//	api_key = <key>
//	api_secret = <secret>
//
//	[tables]
//	server_max_limit = 49
//	page_concurrency = 4
//	cache_rows = 1000
//	max_retries = 0
//	request_timeout = 60s
//	date_layout = 2006-01-02 15:04
//	defs_file =
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	no_proxy =
//
//	[export]
//	s3_region = eu-central-1
//	s3_endpoint =
//	s3_access_key =
//	s3_secret_key =
//	azure_service_url =
//
//	[logging]
//	file =
//
// The proxy password is never written to disk.

// DefaultAPIConfigPath returns the default path for the apiconfig file.
//   - Windows: %USERPROFILE%\.config\osparc\apiconfig
//   - Unix: ~/.config/osparc/apiconfig
func DefaultAPIConfigPath() (string, error) {
	var home string
	if runtime.GOOS == "windows" {
		home = os.Getenv("USERPROFILE")
		if home == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
	} else {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	return filepath.Join(home, ".config", "osparc", "apiconfig"), nil
}

// LoadAPIConfig loads configuration from an INI file on top of Default().
// If the file doesn't exist, returns the defaults and no error.
// If the file exists but is invalid, returns an error.
func LoadAPIConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultAPIConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load apiconfig: %w", err)
	}

	osparc := iniFile.Section("osparc")
	cfg.APIBaseURL = osparc.Key("platform_url").MustString(cfg.APIBaseURL)
	cfg.APIKey = osparc.Key("api_key").String()
	cfg.APISecret = osparc.Key("api_secret").String()

	tables := iniFile.Section("tables")
	cfg.ServerMaxLimit = tables.Key("server_max_limit").MustInt(cfg.ServerMaxLimit)
	cfg.PageConcurrency = tables.Key("page_concurrency").MustInt(cfg.PageConcurrency)
	cfg.CacheRows = tables.Key("cache_rows").MustInt(cfg.CacheRows)
	cfg.MaxRetries = tables.Key("max_retries").MustInt(cfg.MaxRetries)
	cfg.RequestTimeout = tables.Key("request_timeout").MustDuration(cfg.RequestTimeout)
	cfg.DateLayout = tables.Key("date_layout").MustString(cfg.DateLayout)
	cfg.DefsFile = tables.Key("defs_file").String()

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(0)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()

	export := iniFile.Section("export")
	cfg.S3Region = export.Key("s3_region").String()
	cfg.S3Endpoint = export.Key("s3_endpoint").String()
	cfg.S3AccessKey = export.Key("s3_access_key").String()
	cfg.S3SecretKey = export.Key("s3_secret_key").String()
	cfg.AzureServiceURL = export.Key("azure_service_url").String()

	cfg.LogFile = iniFile.Section("logging").Key("file").String()

	return cfg, nil
}

// SaveAPIConfig saves configuration to an INI file.
// Creates parent directories if they don't exist. The file holds the API
// secret, so it is written with 0600 permissions.
func SaveAPIConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultAPIConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name string
		keys [][2]string
	}{
		{"osparc", [][2]string{
			{"platform_url", cfg.APIBaseURL},
			{"api_key", cfg.APIKey},
			{"api_secret", cfg.APISecret},
		}},
		{"tables", [][2]string{
			{"server_max_limit", fmt.Sprintf("%d", cfg.ServerMaxLimit)},
			{"page_concurrency", fmt.Sprintf("%d", cfg.PageConcurrency)},
			{"cache_rows", fmt.Sprintf("%d", cfg.CacheRows)},
			{"max_retries", fmt.Sprintf("%d", cfg.MaxRetries)},
			{"request_timeout", cfg.RequestTimeout.String()},
			{"date_layout", cfg.DateLayout},
			{"defs_file", cfg.DefsFile},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
		}},
		{"export", [][2]string{
			{"s3_region", cfg.S3Region},
			{"s3_endpoint", cfg.S3Endpoint},
			{"s3_access_key", cfg.S3AccessKey},
			{"s3_secret_key", cfg.S3SecretKey},
			{"azure_service_url", cfg.AzureServiceURL},
		}},
		{"logging", [][2]string{
			{"file", cfg.LogFile},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}
