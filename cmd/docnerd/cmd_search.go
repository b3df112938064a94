package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docnerd/internal/retrieval"
)

var (
	searchLibrary string
	searchVersion string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Hybrid (vector + full-text) search over an indexed library version",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchLibrary, "library", "", "Library name (required)")
	searchCmd.Flags().StringVar(&searchVersion, "version", "", "Version range/label; defaults to the best indexed version")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	searchCmd.MarkFlagRequired("library")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := args[0]

	v, err := db.FindBestVersion(ctx, searchLibrary, searchVersion)
	if err != nil {
		return fmt.Errorf("resolve version: %w", err)
	}
	if v == nil {
		return fmt.Errorf("no indexed version matches %s@%s", searchLibrary, searchVersion)
	}

	ranked, err := retrieval.HybridSearch(ctx, db, embeddingEngine, cfg.Retrieval, v.ID, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(ranked) == 0 {
		fmt.Println("no results")
		return nil
	}

	regions, err := retrieval.Assemble(ctx, db, ranked)
	if err != nil {
		return fmt.Errorf("assemble context: %w", err)
	}

	for i, r := range regions {
		fmt.Printf("%d. %s (%s) score=%.4f\n", i+1, r.Title, r.URL, r.Score)
		fmt.Println(strings.TrimSpace(truncate(r.Content, 500)))
		fmt.Println()
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
