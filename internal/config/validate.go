package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Research.MaxInitialResults < 1 {
		return fmt.Errorf("research.max_initial_results must be >= 1, got %d", cfg.Research.MaxInitialResults)
	}
	if cfg.Research.MaxLevel2PerPage < 0 {
		return fmt.Errorf("research.max_level2_per_page must be >= 0, got %d", cfg.Research.MaxLevel2PerPage)
	}
	if cfg.Research.MaxTotalPages < 0 {
		return fmt.Errorf("research.max_total_pages must be >= 0, got %d", cfg.Research.MaxTotalPages)
	}
	if cfg.Research.OverallDeadline < 0 {
		return fmt.Errorf("research.overall_deadline must be >= 0")
	}

	switch cfg.Search.Provider {
	case "duckduckgo", "searxng":
	default:
		return fmt.Errorf("search.provider must be 'duckduckgo' or 'searxng', got %q", cfg.Search.Provider)
	}
	if cfg.Search.Provider == "searxng" && cfg.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url is required for the searxng provider")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxConcurrency < 1 {
		return fmt.Errorf("fetcher.max_concurrency must be >= 1, got %d", cfg.Fetcher.MaxConcurrency)
	}
	if cfg.Fetcher.MaxConcurrency > 1000 {
		return fmt.Errorf("fetcher.max_concurrency must be <= 1000, got %d", cfg.Fetcher.MaxConcurrency)
	}
	if cfg.Fetcher.PerHostMinInterval < 0 {
		return fmt.Errorf("fetcher.per_host_min_interval must be >= 0")
	}
	if cfg.Fetcher.MaxRetries < 0 {
		return fmt.Errorf("fetcher.max_retries must be >= 0, got %d", cfg.Fetcher.MaxRetries)
	}
	if cfg.Fetcher.MaxBytesPerPage <= 0 {
		return fmt.Errorf("fetcher.max_bytes_per_page must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.UserAgent == "" {
		return fmt.Errorf("fetcher.user_agent must not be empty")
	}

	if cfg.AI.Enabled {
		switch cfg.AI.Provider {
		case "ollama", "openai", "custom":
		default:
			return fmt.Errorf("ai.provider must be 'ollama', 'openai', or 'custom', got %q", cfg.AI.Provider)
		}
		if cfg.AI.Endpoint == "" {
			return fmt.Errorf("ai.endpoint is required when ai.enabled is true")
		}
	}

	validBackends := map[string]bool{
		"json": true, "jsonl": true, "mongodb": true, "none": true,
	}
	for _, backend := range cfg.Storage.Backends() {
		if !validBackends[backend] {
			return fmt.Errorf("storage.backend %q is not supported (valid: json, jsonl, mongodb, none)", backend)
		}
		if backend == "mongodb" && cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for the mongodb backend")
		}
	}

	if cfg.Report.TopSources < 1 {
		return fmt.Errorf("report.top_sources must be >= 1, got %d", cfg.Report.TopSources)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a crawl target.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
