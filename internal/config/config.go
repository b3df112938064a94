// Package config holds docnerd's runtime configuration: a single Config
// record loaded from YAML with environment overrides, no ambient env reads
// inside the core packages themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all docnerd configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Scraper   ScraperDefaults `yaml:"scraper"`
	Browser   BrowserConfig   `yaml:"browser"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
	Limits    Limits          `yaml:"limits"`
}

// EmbeddingConfig mirrors embedding.Config's shape so the config package
// doesn't need to import internal/embedding; the CLI wiring layer converts
// one into the other.
type EmbeddingConfig struct {
	Provider      string `yaml:"provider"` // "openai", "google", or "bedrock"
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`
	OpenAIModel   string `yaml:"openai_model"`
	GoogleAPIKey  string `yaml:"google_api_key"`
	GoogleModel   string `yaml:"google_model"`
	BedrockRegion string `yaml:"bedrock_region,omitempty"`
	BedrockModel  string `yaml:"bedrock_model,omitempty"`
}

// ScraperDefaults supplies defaults for ScraperOptions fields a caller omits.
type ScraperDefaults struct {
	MaxPages          int    `yaml:"max_pages"`
	MaxDepth          int    `yaml:"max_depth"`
	MaxConcurrency    int    `yaml:"max_concurrency"`
	Scope             string `yaml:"scope"` // subpages, hostname, domain
	FollowRedirects   bool   `yaml:"follow_redirects"`
	ScrapeMode        string `yaml:"scrape_mode"` // fetch, playwright, auto
	IgnoreErrors      bool   `yaml:"ignore_errors"`
	FetchTimeout      string `yaml:"fetch_timeout"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// BrowserConfig configures the headless-Chrome fetcher used for
// scrape_mode "playwright" sources a plain HTTP GET can't render; other
// modes use it only when no plain fetcher can handle the URL.
type BrowserConfig struct {
	Enabled             bool   `yaml:"enabled"`
	DebuggerURL         string `yaml:"debugger_url"`
	Headless            bool   `yaml:"headless"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
}

// ChunkingConfig sets the size bounds shared by the text splitter and the
// greedy optimizer merge pass (characters).
type ChunkingConfig struct {
	MinSize       int `yaml:"min_size"`
	PreferredSize int `yaml:"preferred_size"`
	MaxSize       int `yaml:"max_size"`
	JSONMaxDepth  int `yaml:"json_max_depth"`
	JSONMaxChunks int `yaml:"json_max_chunks"`
}

// RetrievalConfig holds the RRF fusion weights and the oversampling
// multipliers applied to each ranker before fusion (§4.6).
type RetrievalConfig struct {
	VectorWeight     float64 `yaml:"vector_weight"`
	FTSWeight        float64 `yaml:"fts_weight"`
	RRFK             int     `yaml:"rrf_k"`
	VectorMultiplier int     `yaml:"vector_multiplier"` // candidate pool = limit * VectorMultiplier
	FTSOverfetch     int     `yaml:"fts_overfetch"`      // candidate pool = limit * FTSOverfetch
}

// LoggingConfig drives internal/logging.Initialize.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// Limits enforces system-wide resource constraints.
type Limits struct {
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"`
	JobTimeout        string `yaml:"job_timeout"`
}

// DefaultConfig returns sensible defaults per spec §6's ScraperOptions and
// the chunking/retrieval defaults named in spec §4.3/§4.6.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "",
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			OpenAIModel: "text-embedding-3-small",
			GoogleModel: "gemini-embedding-001",
		},
		Scraper: ScraperDefaults{
			MaxPages:          1000,
			MaxDepth:          3,
			MaxConcurrency:    3,
			Scope:             "subpages",
			FollowRedirects:   true,
			ScrapeMode:        "auto",
			IgnoreErrors:      true,
			FetchTimeout:      "30s",
			RequestsPerSecond: 2,
		},
		Browser: BrowserConfig{
			Enabled:             false,
			Headless:            true,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			NavigationTimeoutMs: 30000,
		},
		Chunking: ChunkingConfig{
			MinSize:       500,
			PreferredSize: 1500,
			MaxSize:       5000,
			JSONMaxDepth:  5,
			JSONMaxChunks: 1000,
		},
		Retrieval: RetrievalConfig{
			VectorWeight:     1.0,
			FTSWeight:        1.0,
			RRFK:             60,
			VectorMultiplier: 10,
			FTSOverfetch:     2,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Limits: Limits{
			MaxConcurrentJobs: 4,
			JobTimeout:        "30m",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults if
// the file doesn't exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			resolveDataDir(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	resolveDataDir(cfg)
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides layers environment variables over file/default config.
// Together with resolveDataDir, this is where the module reads the process
// environment; everything below it takes a fully-resolved Config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.OpenAIAPIKey = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.Embedding.GoogleAPIKey = v
	}
	if v := os.Getenv("DOCNERD_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
}

// resolveDataDir applies the priority order from spec §6: explicit config →
// environment variable → OS application-data directory → temp fallback.
func resolveDataDir(c *Config) {
	if c.DataDir != "" {
		return
	}
	if v := os.Getenv("DOCNERD_DATA_DIR"); v != "" {
		c.DataDir = v
		return
	}
	if ucd, err := os.UserConfigDir(); err == nil && ucd != "" {
		c.DataDir = filepath.Join(ucd, "docnerd")
		return
	}
	c.DataDir = filepath.Join(os.TempDir(), "docnerd")
}

// GetJobTimeout returns the job timeout as a duration.
func (c *Config) GetJobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Limits.JobTimeout)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// GetFetchTimeout returns the scraper's fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scraper.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks that the configuration is internally consistent, failing
// fast at startup with a ConfigurationError-worthy message (the caller wraps
// it; config itself has no dependency on internal/errs to stay leaf-level).
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("embedding provider 'openai' requires openai_api_key")
		}
	case "google":
		if c.Embedding.GoogleAPIKey == "" {
			return fmt.Errorf("embedding provider 'google' requires google_api_key")
		}
	case "bedrock":
		if c.Embedding.BedrockRegion == "" || c.Embedding.BedrockModel == "" {
			return fmt.Errorf("embedding provider 'bedrock' requires bedrock_region and bedrock_model")
		}
	default:
		return fmt.Errorf("invalid embedding provider: %s (use 'openai', 'google', or 'bedrock')", c.Embedding.Provider)
	}
	if c.Chunking.MinSize <= 0 || c.Chunking.PreferredSize < c.Chunking.MinSize || c.Chunking.MaxSize < c.Chunking.PreferredSize {
		return fmt.Errorf("invalid chunking bounds: min=%d preferred=%d max=%d", c.Chunking.MinSize, c.Chunking.PreferredSize, c.Chunking.MaxSize)
	}
	return nil
}
