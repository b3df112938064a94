// Package main implements the docnerd CLI: index/refresh a documentation
// source, search the resulting store, and inspect running jobs.
//
// File index:
//   - main.go        - entry point, rootCmd, global flags, wiring
//   - cmd_index.go   - indexCmd (enqueue a scrape job)
//   - cmd_refresh.go - refreshCmd (enqueue a refresh job over an existing version)
//   - cmd_search.go  - searchCmd (hybrid search + context assembly)
//   - cmd_jobs.go    - jobsCmd and its list/status/cancel subcommands
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docnerd/internal/config"
	"docnerd/internal/content"
	"docnerd/internal/embedding"
	"docnerd/internal/fetch"
	"docnerd/internal/job"
	"docnerd/internal/logging"
	"docnerd/internal/split"
	"docnerd/internal/store"
)

var (
	configPath string
	dataDir    string
	verbose    bool

	logger          *zap.Logger
	cfg             *config.Config
	db              *store.Store
	manager         *job.Manager
	embeddingEngine embedding.Engine
	browserFetcher  *fetch.BrowserFetcher
)

var rootCmd = &cobra.Command{
	Use:   "docnerd",
	Short: "Index documentation sources and search them with hybrid retrieval",
	Long: `docnerd crawls documentation sites and source trees, normalizes and
chunks their content, and serves hybrid (vector + full-text) search over the
result.

Examples:
  docnerd index https://docs.example.com/ --library example --version 1.0
  docnerd refresh --library example --version 1.0
  docnerd search --library example "how do I configure retries"
  docnerd jobs list`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := logging.Initialize(cfg.DataDir, cfg.Logging.DebugMode, cfg.Logging.Categories, cfg.Logging.Level, cfg.Logging.JSONFormat); err != nil {
			logger.Warn("failed to initialize file logging", zap.Error(err))
		}

		engine, err := embedding.NewEngine(embedding.Config{
			Provider:      cfg.Embedding.Provider,
			OpenAIAPIKey:  cfg.Embedding.OpenAIAPIKey,
			OpenAIBaseURL: cfg.Embedding.OpenAIBaseURL,
			OpenAIModel:   cfg.Embedding.OpenAIModel,
			GoogleAPIKey:  cfg.Embedding.GoogleAPIKey,
			GoogleModel:   cfg.Embedding.GoogleModel,
			BedrockRegion: cfg.Embedding.BedrockRegion,
			BedrockModel:  cfg.Embedding.BedrockModel,
		})
		if err != nil {
			return fmt.Errorf("build embedding engine: %w", err)
		}
		embeddingEngine = engine

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		dbPath := cfg.DataDir + "/docnerd.db"
		db, err = store.Open(cmd.Context(), dbPath, engine)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}

		strategy := job.NewCrawlStrategy(buildFetchers(cfg), content.NewRegistry(), chunkingLimits(cfg))
		manager = job.NewManager(job.NewStoreAdapter(db), strategy, cfg.Limits.MaxConcurrentJobs)

		return recoverJobsOnStart(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = db.Close()
		}
		if browserFetcher != nil {
			_ = browserFetcher.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func buildFetchers(cfg *config.Config) []fetch.Fetcher {
	fetchers := []fetch.Fetcher{
		fetch.NewHTTPFetcher(cfg.Scraper.RequestsPerSecond, cfg.GetFetchTimeout()),
		fetch.NewFileFetcher(),
	}
	if cfg.Browser.Enabled {
		browserFetcher = fetch.NewBrowserFetcher(fetch.BrowserConfig{
			DebuggerURL:         cfg.Browser.DebuggerURL,
			Headless:            cfg.Browser.Headless,
			ViewportWidth:       cfg.Browser.ViewportWidth,
			ViewportHeight:      cfg.Browser.ViewportHeight,
			NavigationTimeoutMs: cfg.Browser.NavigationTimeoutMs,
		})
		fetchers = append(fetchers, browserFetcher)
	}
	return fetchers
}

func chunkingLimits(cfg *config.Config) split.Limits {
	return split.Limits{
		MinSize:       cfg.Chunking.MinSize,
		PreferredSize: cfg.Chunking.PreferredSize,
		MaxSize:       cfg.Chunking.MaxSize,
	}
}

// recoverJobsOnStart requeues versions left queued by a prior process and
// handles ones left running per §7's recovery policy. Recovery itself (re-running
// interrupted scrapes) is left disabled by default; interrupted jobs are
// marked failed so an operator can explicitly re-issue them.
func recoverJobsOnStart(ctx context.Context) error {
	running, err := db.GetVersionsByStatus(ctx, "running")
	if err != nil {
		return fmt.Errorf("scan running versions: %w", err)
	}
	queued, err := db.GetVersionsByStatus(ctx, "queued")
	if err != nil {
		return fmt.Errorf("scan queued versions: %w", err)
	}
	return manager.RecoverOnStart(ctx, toVersionRefs(ctx, running), toVersionRefs(ctx, queued), false)
}

func toVersionRefs(ctx context.Context, versions []store.Version) []job.VersionRef {
	out := make([]job.VersionRef, 0, len(versions))
	for _, v := range versions {
		name, err := db.LibraryName(ctx, v.LibraryID)
		if err != nil {
			logger.Warn("skipping version with unresolved library during recovery", zap.Int64("version_id", v.ID), zap.Error(err))
			continue
		}
		out = append(out, job.VersionRef{ID: v.ID, Library: name, Version: v.Version})
	}
	return out
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the configured data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(indexCmd, refreshCmd, searchCmd, jobsCmd)
}

func defaultConfigPath() string {
	if ucd, err := os.UserConfigDir(); err == nil && ucd != "" {
		return ucd + "/docnerd/config.yaml"
	}
	return "docnerd.yaml"
}

func waitWithSpinner(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 24*time.Hour)
	defer cancel()
	return manager.WaitForJobCompletion(ctx, id)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
