package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docnerd/internal/job"
)

var (
	indexLibrary         string
	indexVersion         string
	indexMaxPages        int
	indexMaxDepth        int
	indexMaxConcurrency  int
	indexScope           string
	indexIncludePatterns []string
	indexExcludePatterns []string
	indexFollow          bool
	indexScrapeMode      string
	indexWait            bool
)

var indexCmd = &cobra.Command{
	Use:   "index [url]",
	Short: "Crawl a documentation source and index it",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexLibrary, "library", "", "Library name (required)")
	indexCmd.Flags().StringVar(&indexVersion, "version", "", "Version label (required)")
	indexCmd.Flags().IntVar(&indexMaxPages, "max-pages", 0, "Maximum pages to crawl (default from config)")
	indexCmd.Flags().IntVar(&indexMaxDepth, "max-depth", 0, "Maximum crawl depth (default from config)")
	indexCmd.Flags().IntVar(&indexMaxConcurrency, "max-concurrency", 0, "Concurrent fetches within this job (default from config)")
	indexCmd.Flags().StringVar(&indexScope, "scope", "", "Link scope: subpages, hostname, or domain (default from config)")
	indexCmd.Flags().StringArrayVar(&indexIncludePatterns, "include", nil, "Only follow links matching this glob or /regex/")
	indexCmd.Flags().StringArrayVar(&indexExcludePatterns, "exclude", nil, "Never follow links matching this glob or /regex/")
	indexCmd.Flags().BoolVar(&indexFollow, "follow-redirects", true, "Follow HTTP redirects")
	indexCmd.Flags().StringVar(&indexScrapeMode, "scrape-mode", "", "fetch, playwright, or auto (default from config)")
	indexCmd.Flags().BoolVar(&indexWait, "wait", true, "Block until the job finishes")
	indexCmd.MarkFlagRequired("library")
	indexCmd.MarkFlagRequired("version")
}

func runIndex(cmd *cobra.Command, args []string) error {
	opts := job.ScraperOptions{
		URL:             args[0],
		Library:         indexLibrary,
		Version:         indexVersion,
		MaxPages:        firstNonZero(indexMaxPages, cfg.Scraper.MaxPages),
		MaxDepth:        firstNonZero(indexMaxDepth, cfg.Scraper.MaxDepth),
		MaxConcurrency:  firstNonZero(indexMaxConcurrency, cfg.Scraper.MaxConcurrency),
		Scope:           firstNonEmpty(indexScope, cfg.Scraper.Scope),
		FollowRedirects: indexFollow,
		ScrapeMode:      firstNonEmpty(indexScrapeMode, cfg.Scraper.ScrapeMode),
		IncludePatterns: indexIncludePatterns,
		ExcludePatterns: indexExcludePatterns,
		IgnoreErrors:    cfg.Scraper.IgnoreErrors,
	}

	id, err := manager.EnqueueScrapeJob(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("enqueue scrape job: %w", err)
	}
	fmt.Printf("job %s queued for %s@%s\n", id, indexLibrary, indexVersion)

	if !indexWait {
		return nil
	}
	if err := waitWithSpinner(cmd.Context(), id); err != nil {
		return fmt.Errorf("job %s: %w", id, err)
	}
	fmt.Printf("job %s completed\n", id)
	return nil
}

func firstNonZero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
