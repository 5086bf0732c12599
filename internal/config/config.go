package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for DeepStalk.
type Config struct {
	Research Research `mapstructure:"research" yaml:"research"`
	Search   Search   `mapstructure:"search"   yaml:"search"`
	Fetcher  Fetcher  `mapstructure:"fetcher"  yaml:"fetcher"`
	AI       AI       `mapstructure:"ai"       yaml:"ai"`
	Storage  Storage  `mapstructure:"storage"  yaml:"storage"`
	Report   Report   `mapstructure:"report"   yaml:"report"`
	Logging  Logging  `mapstructure:"logging"  yaml:"logging"`
	Metrics  Metrics  `mapstructure:"metrics"  yaml:"metrics"`
}

// Research controls the shape of a research run: how many search hits
// seed the crawl, how far the second level fans out, and the overall
// wall-clock budget.
type Research struct {
	MaxInitialResults int           `mapstructure:"max_initial_results" yaml:"max_initial_results"`
	MaxLevel2PerPage  int           `mapstructure:"max_level2_per_page" yaml:"max_level2_per_page"`
	MaxTotalPages     int           `mapstructure:"max_total_pages"     yaml:"max_total_pages"`
	OverallDeadline   time.Duration `mapstructure:"overall_deadline"    yaml:"overall_deadline"`
}

// Search selects and configures the search provider that seeds a run.
type Search struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key"  yaml:"api_key"`
}

// Fetcher controls the HTTP client and politeness behavior.
type Fetcher struct {
	RequestTimeout     time.Duration `mapstructure:"request_timeout"       yaml:"request_timeout"`
	MaxConcurrency     int           `mapstructure:"max_concurrency"       yaml:"max_concurrency"`
	PerHostMinInterval time.Duration `mapstructure:"per_host_min_interval" yaml:"per_host_min_interval"`
	MaxRetries         int           `mapstructure:"max_retries"           yaml:"max_retries"`
	MaxBytesPerPage    int64         `mapstructure:"max_bytes_per_page"    yaml:"max_bytes_per_page"`
	UserAgent          string        `mapstructure:"user_agent"            yaml:"user_agent"`
	FollowRedirects    bool          `mapstructure:"follow_redirects"      yaml:"follow_redirects"`
	MaxRedirects       int           `mapstructure:"max_redirects"         yaml:"max_redirects"`
	TLSInsecure        bool          `mapstructure:"tls_insecure"          yaml:"tls_insecure"`
	IdleConnTimeout    time.Duration `mapstructure:"idle_conn_timeout"     yaml:"idle_conn_timeout"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"        yaml:"max_idle_conns"`
}

// AI controls optional LLM-backed summarization. When disabled, or when
// the provider fails, the deterministic synthesizer is used.
type AI struct {
	Enabled     bool    `mapstructure:"enabled"     yaml:"enabled"`
	Provider    string  `mapstructure:"provider"    yaml:"provider"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Endpoint    string  `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey      string  `mapstructure:"api_key"     yaml:"api_key"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// Storage controls where research results are archived. Backend is a
// comma-separated list ("json", "jsonl", "mongodb").
type Storage struct {
	Backend         string `mapstructure:"backend"          yaml:"backend"`
	OutputDir       string `mapstructure:"output_dir"       yaml:"output_dir"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// Backends returns the configured backend names, split and trimmed.
func (s Storage) Backends() []string {
	var out []string
	for _, b := range strings.Split(s.Backend, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Report controls PDF report generation.
type Report struct {
	PDF        bool `mapstructure:"pdf"         yaml:"pdf"`
	TopSources int  `mapstructure:"top_sources" yaml:"top_sources"`
}

// Logging controls logging behavior.
type Logging struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// Metrics controls the metrics endpoint.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Research: Research{
			MaxInitialResults: 20,
			MaxLevel2PerPage:  10,
			MaxTotalPages:     0, // unlimited
			OverallDeadline:   120 * time.Second,
		},
		Search: Search{
			Provider: "duckduckgo",
		},
		Fetcher: Fetcher{
			RequestTimeout:     30 * time.Second,
			MaxConcurrency:     10,
			PerHostMinInterval: 500 * time.Millisecond,
			MaxRetries:         2,
			MaxBytesPerPage:    1_000_000,
			UserAgent:          "DeepStalk/" + Version + " (+https://github.com/IshaanNene/DeepStalk)",
			FollowRedirects:    true,
			MaxRedirects:       5,
			IdleConnTimeout:    90 * time.Second,
			MaxIdleConns:       100,
		},
		AI: AI{
			Enabled:     false,
			Provider:    "ollama",
			Model:       "llama3.2",
			Endpoint:    "http://localhost:11434",
			MaxTokens:   1024,
			Temperature: 0.2,
		},
		Storage: Storage{
			Backend:         "json",
			OutputDir:       "./output",
			MongoDatabase:   "deepstalk",
			MongoCollection: "research",
		},
		Report: Report{
			PDF:        false,
			TopSources: 20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: Metrics{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
